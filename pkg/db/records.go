package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/quality"
)

func encodePayload(r *models.Record) (sql.NullString, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case r.Type == models.RecordNews && r.News != nil:
		data, err = json.Marshal(r.News)
	case r.Type == models.RecordSEO && r.SEO != nil:
		data, err = json.Marshal(r.SEO)
	case r.Type == models.RecordCompetitor && r.Competitor != nil:
		data, err = json.Marshal(r.Competitor)
	default:
		return sql.NullString{}, nil
	}
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodePayload(r *models.Record, payload sql.NullString) error {
	if !payload.Valid || payload.String == "" {
		return nil
	}
	data := []byte(payload.String)
	switch r.Type {
	case models.RecordNews:
		r.News = &models.NewsPayload{}
		return json.Unmarshal(data, r.News)
	case models.RecordSEO:
		r.SEO = &models.SEOPayload{}
		return json.Unmarshal(data, r.SEO)
	case models.RecordCompetitor:
		r.Competitor = &models.CompetitorPayload{}
		return json.Unmarshal(data, r.Competitor)
	}
	return nil
}

// SaveRecord inserts a content record when r.ID is zero and updates it
// otherwise. It returns the record id.
func (db *DB) SaveRecord(ctx context.Context, r *models.Record) (int64, error) {
	payload, err := encodePayload(r)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload: %w", err)
	}

	if r.ID != 0 {
		_, err := db.ExecContext(ctx, `
			UPDATE records SET type = ?, url = ?, payload = ?, created_at = ?, updated_at = ?
			WHERE record_id = ?
		`, string(r.Type), r.URL, payload, millis(r.CreatedAt), millis(r.UpdatedAt), r.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to update record: %w", err)
		}
		return r.ID, nil
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO records (type, url, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(r.Type), r.URL, payload, millis(r.CreatedAt), millis(r.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get record ID: %w", err)
	}
	r.ID = id
	return id, nil
}

const recordColumns = `record_id, type, url, payload, created_at, updated_at`

// scanRecord reports an undecodable payload as an IntegrityError.
func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		r                  models.Record
		typ                string
		url, payload       sql.NullString
		created, updatedAt sql.NullInt64
	)
	if err := row.Scan(&r.ID, &typ, &url, &payload, &created, &updatedAt); err != nil {
		return nil, err
	}
	r.Type = models.RecordType(typ)
	r.URL = url.String
	r.CreatedAt = fromMillis(created)
	r.UpdatedAt = fromMillis(updatedAt)
	if err := decodePayload(&r, payload); err != nil {
		return nil, &quality.IntegrityError{RecordID: r.ID, Reason: "undecodable payload: " + err.Error()}
	}
	return &r, nil
}

// GetRecord returns one record, or ErrNotFound.
func (db *DB) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	r, err := scanRecord(db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM records WHERE record_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return r, nil
}

// CountRecords returns the number of stored records.
func (db *DB) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// DuplicateGroups returns every URL held by more than one record.
func (db *DB) DuplicateGroups(ctx context.Context) ([]quality.DuplicateGroup, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT url, record_id, updated_at FROM records
		WHERE url IN (
			SELECT url FROM records WHERE url IS NOT NULL AND url != ''
			GROUP BY url HAVING COUNT(*) > 1
		)
		ORDER BY url, record_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicates: %w", err)
	}
	defer rows.Close()

	var groups []quality.DuplicateGroup
	for rows.Next() {
		var (
			url     string
			ref     quality.RecordRef
			updated sql.NullInt64
		)
		if err := rows.Scan(&url, &ref.ID, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate: %w", err)
		}
		ref.UpdatedAt = fromMillis(updated)
		if n := len(groups); n == 0 || groups[n-1].URL != url {
			groups = append(groups, quality.DuplicateGroup{URL: url})
		}
		last := &groups[len(groups)-1]
		last.Records = append(last.Records, ref)
	}
	return groups, rows.Err()
}

// CountStale counts records last updated before the cutoff.
func (db *DB) CountStale(ctx context.Context, updatedBefore time.Time) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE updated_at < ?", updatedBefore.UnixMilli()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale records: %w", err)
	}
	return n, nil
}

// SampleRecords returns up to n records chosen at random.
func (db *DB) SampleRecords(ctx context.Context, n int) ([]models.Record, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+recordColumns+" FROM records ORDER BY RANDOM() LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("failed to sample records: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// DeleteRecords removes the given records in one transaction and returns
// how many were deleted.
func (db *DB) DeleteRecords(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleted := 0
	for start := 0; start < len(ids); start += 500 {
		chunk := ids[start:min(start+500, len(ids))]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM records WHERE record_id IN ("+placeholders+")", args...)
		if err != nil {
			return 0, fmt.Errorf("failed to delete records: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count deleted records: %w", err)
		}
		deleted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit deletion: %w", err)
	}
	return deleted, nil
}

var _ quality.RecordStore = (*DB)(nil)
