package models

import "time"

// JobType discriminates what a scheduled job does.
type JobType string

const (
	JobTypeSEO        JobType = "seo"
	JobTypeNews       JobType = "news"
	JobTypeCompetitor JobType = "competitor"
	// JobTypeSystem covers the built-in maintenance jobs.
	JobTypeSystem JobType = "system"
)

// CrawlJob is a recurring unit of work. Jobs are deactivated, never deleted.
type CrawlJob struct {
	ID            string    `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	Type          JobType   `json:"type" yaml:"type"`
	Schedule      string    `json:"schedule" yaml:"schedule"`
	IsActive      bool      `json:"is_active" yaml:"is_active"`
	LastRun       time.Time `json:"last_run,omitempty" yaml:"last_run,omitempty"`
	RetryAttempts int       `json:"retry_attempts" yaml:"retry_attempts"`
	MaxRetries    int       `json:"max_retries" yaml:"max_retries"`
	Config        JobConfig `json:"config" yaml:"config"`
}

// JobConfig holds per-job crawl settings.
type JobConfig struct {
	Targets  []string `json:"targets,omitempty" yaml:"targets,omitempty"`
	MaxPages int      `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`
	MaxDepth int      `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	// Task names the maintenance routine of a system job.
	Task string `json:"task,omitempty" yaml:"task,omitempty"`
}

// Execution statuses.
const (
	ExecutionSucceeded = "succeeded"
	ExecutionFailed    = "failed"
)

// JobExecution is the record of one job run.
type JobExecution struct {
	ID         string    `json:"id" yaml:"id"`
	JobID      string    `json:"job_id" yaml:"job_id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	DurationMs int64     `json:"duration_ms" yaml:"duration_ms"`
	Status     string    `json:"status" yaml:"status"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	Attempt    int       `json:"attempt" yaml:"attempt"` // retry attempts before this run
}

// JobStats aggregates executions of one job.
type JobStats struct {
	Executions    int     `json:"executions" yaml:"executions"`
	Successes     int     `json:"successes" yaml:"successes"`
	Failures      int     `json:"failures" yaml:"failures"`
	Skipped       int     `json:"skipped" yaml:"skipped"`
	AvgDurationMs float64 `json:"avg_duration_ms" yaml:"avg_duration_ms"`
	LastStatus    string  `json:"last_status,omitempty" yaml:"last_status,omitempty"`
}

// SchedulerMetrics is a point-in-time snapshot of scheduler counters.
type SchedulerMetrics struct {
	TotalJobs     int                 `json:"total_jobs" yaml:"total_jobs"`
	ActiveJobs    int                 `json:"active_jobs" yaml:"active_jobs"`
	Running       []string            `json:"running" yaml:"running"`
	Executions    int                 `json:"executions" yaml:"executions"`
	Successes     int                 `json:"successes" yaml:"successes"`
	Failures      int                 `json:"failures" yaml:"failures"`
	Skipped       int                 `json:"skipped" yaml:"skipped"`
	AvgDurationMs float64             `json:"avg_duration_ms" yaml:"avg_duration_ms"`
	Jobs          map[string]JobStats `json:"jobs" yaml:"jobs"`
}
