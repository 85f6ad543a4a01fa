package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
)

// CrawlRun summarizes one persisted site crawl.
type CrawlRun struct {
	RunID          int64
	Seed           string
	JobID          string
	StartedAt      time.Time
	Duration       time.Duration
	PageCount      int
	DuplicateCount int
	FailedCount    int
	SkippedCount   int
	Platform       string
}

// SaveCrawlRun stores a crawl summary and its per-URL failures in one
// transaction and returns the run id.
func (db *DB) SaveCrawlRun(ctx context.Context, jobID string, res *models.CrawlResult) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		platform   sql.NullString
		confidence sql.NullFloat64
	)
	if res.CMS != nil {
		platform = nullString(string(res.CMS.Platform))
		confidence = sql.NullFloat64{Float64: res.CMS.Confidence, Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO crawl_runs (seed, job_id, started_at, duration_ms, page_count, duplicate_count, failed_count, skipped_count, platform, platform_confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.Seed, nullString(jobID), millis(res.StartedAt), res.Duration.Milliseconds(),
		len(res.PageURLs), len(res.Duplicates), len(res.Failures), res.Skipped, platform, confidence)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	for _, f := range res.Failures {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO crawl_failures (run_id, url, kind, error_message)
			VALUES (?, ?, ?, ?)
		`, runID, f.URL, f.Kind, nullString(f.Error))
		if err != nil {
			return 0, fmt.Errorf("failed to insert crawl failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl run: %w", err)
	}
	return runID, nil
}

// ListCrawlRuns returns the most recent runs, newest first.
func (db *DB) ListCrawlRuns(ctx context.Context, limit int) ([]CrawlRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, seed, job_id, started_at, duration_ms, page_count, duplicate_count, failed_count, skipped_count, platform
		FROM crawl_runs ORDER BY started_at DESC, run_id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}
	defer rows.Close()

	var runs []CrawlRun
	for rows.Next() {
		var (
			r               CrawlRun
			jobID, platform sql.NullString
			started         sql.NullInt64
			durationMs      int64
		)
		if err := rows.Scan(&r.RunID, &r.Seed, &jobID, &started, &durationMs, &r.PageCount, &r.DuplicateCount, &r.FailedCount, &r.SkippedCount, &platform); err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}
		r.JobID = jobID.String
		r.Platform = platform.String
		r.StartedAt = fromMillis(started)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CrawlFailures returns the failures recorded for one run.
func (db *DB) CrawlFailures(ctx context.Context, runID int64) ([]models.PageFailure, error) {
	rows, err := db.QueryContext(ctx, "SELECT url, kind, error_message FROM crawl_failures WHERE run_id = ? ORDER BY failure_id", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl failures: %w", err)
	}
	defer rows.Close()

	var out []models.PageFailure
	for rows.Next() {
		var (
			f   models.PageFailure
			msg sql.NullString
		)
		if err := rows.Scan(&f.URL, &f.Kind, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan crawl failure: %w", err)
		}
		f.Error = msg.String
		out = append(out, f)
	}
	return out, rows.Err()
}
