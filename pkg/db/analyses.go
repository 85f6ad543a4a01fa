package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
)

// SaveAnalysis appends one scoring result and returns its id.
func (db *DB) SaveAnalysis(ctx context.Context, a *models.AnalysisResult) (int64, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return 0, fmt.Errorf("failed to encode analysis: %w", err)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO analysis_results (url, analyzed_at, overall, result, error_message)
		VALUES (?, ?, ?, ?, ?)
	`, a.URL, millis(a.Timestamp), a.Overall, string(data), nullString(a.Error))
	if err != nil {
		return 0, fmt.Errorf("failed to save analysis: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get analysis ID: %w", err)
	}
	return id, nil
}

// LatestAnalysis returns the newest analysis of url, or ErrNotFound.
func (db *DB) LatestAnalysis(ctx context.Context, url string) (*models.AnalysisResult, error) {
	var data string
	err := db.QueryRowContext(ctx, `
		SELECT result FROM analysis_results WHERE url = ?
		ORDER BY analyzed_at DESC, analysis_id DESC LIMIT 1
	`, url).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	var a models.AnalysisResult
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &a, nil
}

// SaveQualityIssues replaces the stored issue set with the report's issues.
// Codes absent from the report are cleared.
func (db *DB) SaveQualityIssues(ctx context.Context, report *models.QualityReport) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	at := millis(report.GeneratedAt)
	for _, is := range report.Issues {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO quality_issues (code, severity, message, affected, share, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				severity = excluded.severity,
				message = excluded.message,
				affected = excluded.affected,
				share = excluded.share,
				updated_at = excluded.updated_at
		`, is.Code, string(is.Severity), is.Message, is.Affected, is.Share, at)
		if err != nil {
			return fmt.Errorf("failed to save quality issue %s: %w", is.Code, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM quality_issues WHERE updated_at < ?", at); err != nil {
		return fmt.Errorf("failed to clear resolved issues: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit quality issues: %w", err)
	}
	return nil
}

// QualityIssues returns the stored issues, most severe first.
func (db *DB) QualityIssues(ctx context.Context) ([]models.QualityIssue, time.Time, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT code, severity, message, affected, share, updated_at FROM quality_issues
		ORDER BY CASE severity
			WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
			affected DESC, code
	`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to list quality issues: %w", err)
	}
	defer rows.Close()

	var (
		issues []models.QualityIssue
		latest time.Time
	)
	for rows.Next() {
		var (
			is      models.QualityIssue
			sev     string
			updated sql.NullInt64
		)
		if err := rows.Scan(&is.Code, &sev, &is.Message, &is.Affected, &is.Share, &updated); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan quality issue: %w", err)
		}
		is.Severity = models.Severity(sev)
		if t := fromMillis(updated); t.After(latest) {
			latest = t
		}
		issues = append(issues, is)
	}
	return issues, latest, rows.Err()
}
