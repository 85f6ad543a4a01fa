package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dtnitsch/seo-pipeline/models"
)

// SavePage upserts a snapshot keyed by its normalized URL. A re-fetch
// replaces the previous row.
func (db *DB) SavePage(ctx context.Context, p *models.PageSnapshot) error {
	signals, err := json.Marshal(p.Signals)
	if err != nil {
		return fmt.Errorf("failed to encode signals: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO page_snapshots (url, domain, content_hash, fingerprint, signals, status_code, load_time_ms, fetched_at, job_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			domain = excluded.domain,
			content_hash = excluded.content_hash,
			fingerprint = excluded.fingerprint,
			signals = excluded.signals,
			status_code = excluded.status_code,
			load_time_ms = excluded.load_time_ms,
			fetched_at = excluded.fetched_at,
			job_id = excluded.job_id
	`, p.URL, p.Domain, p.ContentHash, p.Fingerprint, string(signals), p.StatusCode, p.LoadTimeMs, millis(p.FetchedAt), nullString(p.JobID))
	if err != nil {
		return fmt.Errorf("failed to save page: %w", err)
	}
	return nil
}

const pageColumns = `url, domain, content_hash, fingerprint, signals, status_code, load_time_ms, fetched_at, job_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (*models.PageSnapshot, error) {
	var (
		p         models.PageSnapshot
		signals   string
		status    sql.NullInt64
		fetchedAt sql.NullInt64
		jobID     sql.NullString
	)
	if err := row.Scan(&p.URL, &p.Domain, &p.ContentHash, &p.Fingerprint, &signals, &status, &p.LoadTimeMs, &fetchedAt, &jobID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(signals), &p.Signals); err != nil {
		return nil, fmt.Errorf("failed to decode signals for %s: %w", p.URL, err)
	}
	p.StatusCode = int(status.Int64)
	p.FetchedAt = fromMillis(fetchedAt)
	p.JobID = jobID.String
	return &p, nil
}

// GetPage returns the live snapshot for url, or ErrNotFound.
func (db *DB) GetPage(ctx context.Context, url string) (*models.PageSnapshot, error) {
	row := db.QueryRowContext(ctx, "SELECT "+pageColumns+" FROM page_snapshots WHERE url = ?", url)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return p, nil
}

// ListPages returns the snapshots of one domain, or of every domain when
// domain is empty, ordered by URL.
func (db *DB) ListPages(ctx context.Context, domain string) ([]*models.PageSnapshot, error) {
	query := "SELECT " + pageColumns + " FROM page_snapshots"
	var args []any
	if domain != "" {
		query += " WHERE domain = ?"
		args = append(args, domain)
	}
	query += " ORDER BY url"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []*models.PageSnapshot
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// CountPages returns the number of live snapshots.
func (db *DB) CountPages(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM page_snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}
