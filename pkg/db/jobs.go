package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dtnitsch/seo-pipeline/models"
)

// SaveJob upserts a job's definition and scheduler state.
func (db *DB) SaveJob(ctx context.Context, j *models.CrawlJob) error {
	cfg, err := json.Marshal(j.Config)
	if err != nil {
		return fmt.Errorf("failed to encode job config: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO crawl_jobs (job_id, name, type, schedule, is_active, last_run, retry_attempts, max_retries, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			schedule = excluded.schedule,
			is_active = excluded.is_active,
			last_run = excluded.last_run,
			retry_attempts = excluded.retry_attempts,
			max_retries = excluded.max_retries,
			config = excluded.config
	`, j.ID, j.Name, string(j.Type), j.Schedule, j.IsActive, millis(j.LastRun), j.RetryAttempts, j.MaxRetries, string(cfg))
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func scanJob(row rowScanner) (*models.CrawlJob, error) {
	var (
		j       models.CrawlJob
		typ     string
		lastRun sql.NullInt64
		cfg     sql.NullString
	)
	if err := row.Scan(&j.ID, &j.Name, &typ, &j.Schedule, &j.IsActive, &lastRun, &j.RetryAttempts, &j.MaxRetries, &cfg); err != nil {
		return nil, err
	}
	j.Type = models.JobType(typ)
	j.LastRun = fromMillis(lastRun)
	if cfg.Valid && cfg.String != "" {
		if err := json.Unmarshal([]byte(cfg.String), &j.Config); err != nil {
			return nil, fmt.Errorf("failed to decode config for job %s: %w", j.ID, err)
		}
	}
	return &j, nil
}

const jobColumns = `job_id, name, type, schedule, is_active, last_run, retry_attempts, max_retries, config`

// GetJob returns one persisted job, or ErrNotFound.
func (db *DB) GetJob(ctx context.Context, id string) (*models.CrawlJob, error) {
	j, err := scanJob(db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM crawl_jobs WHERE job_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// LoadJobs returns every persisted job ordered by id.
func (db *DB) LoadJobs(ctx context.Context) ([]models.CrawlJob, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+jobColumns+" FROM crawl_jobs ORDER BY job_id")
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.CrawlJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// RecordExecution appends one execution to the job's history.
func (db *DB) RecordExecution(ctx context.Context, e *models.JobExecution) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO job_executions (execution_id, job_id, started_at, duration_ms, status, error_message, attempt)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.JobID, millis(e.StartedAt), e.DurationMs, e.Status, nullString(e.Error), e.Attempt)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

// ListExecutions returns the most recent executions, newest first. An empty
// jobID lists every job; limit <= 0 means no limit.
func (db *DB) ListExecutions(ctx context.Context, jobID string, limit int) ([]models.JobExecution, error) {
	query := `SELECT execution_id, job_id, started_at, duration_ms, status, error_message, attempt FROM job_executions`
	var args []any
	if jobID != "" {
		query += " WHERE job_id = ?"
		args = append(args, jobID)
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var execs []models.JobExecution
	for rows.Next() {
		var (
			e       models.JobExecution
			started sql.NullInt64
			errMsg  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.JobID, &started, &e.DurationMs, &e.Status, &errMsg, &e.Attempt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		e.StartedAt = fromMillis(started)
		e.Error = errMsg.String
		execs = append(execs, e)
	}
	return execs, rows.Err()
}
