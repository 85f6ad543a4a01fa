package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- Page snapshots: one live row per normalized URL, replaced on re-fetch
CREATE TABLE IF NOT EXISTS page_snapshots (
    url TEXT PRIMARY KEY,
    domain TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    signals TEXT NOT NULL,           -- JSON encoded models.Signals
    status_code INTEGER,
    load_time_ms INTEGER DEFAULT 0,
    fetched_at INTEGER NOT NULL,     -- unix ms
    job_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_pages_domain ON page_snapshots(domain);
CREATE INDEX IF NOT EXISTS idx_pages_hash ON page_snapshots(content_hash);

-- Jobs: deactivated, never deleted
CREATE TABLE IF NOT EXISTS crawl_jobs (
    job_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    schedule TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    last_run INTEGER,
    retry_attempts INTEGER NOT NULL DEFAULT 0,
    max_retries INTEGER NOT NULL DEFAULT 0,
    config TEXT                      -- JSON encoded models.JobConfig
);

-- Job executions: append-only run history
CREATE TABLE IF NOT EXISTS job_executions (
    execution_id TEXT PRIMARY KEY,
    job_id TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    status TEXT NOT NULL,
    error_message TEXT,
    attempt INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_executions_job ON job_executions(job_id, started_at DESC);

-- Crawl runs: one row per site crawl
CREATE TABLE IF NOT EXISTS crawl_runs (
    run_id INTEGER PRIMARY KEY AUTOINCREMENT,
    seed TEXT NOT NULL,
    job_id TEXT,
    started_at INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    page_count INTEGER DEFAULT 0,
    duplicate_count INTEGER DEFAULT 0,
    failed_count INTEGER DEFAULT 0,
    skipped_count INTEGER DEFAULT 0,
    platform TEXT,
    platform_confidence REAL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at DESC);

-- Crawl failures: per-URL failures within a run
CREATE TABLE IF NOT EXISTS crawl_failures (
    failure_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL,
    url TEXT NOT NULL,
    kind TEXT NOT NULL,
    error_message TEXT,
    FOREIGN KEY (run_id) REFERENCES crawl_runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_failures_run ON crawl_failures(run_id);

-- Content records: typed payloads validated by the quality audit
CREATE TABLE IF NOT EXISTS records (
    record_id INTEGER PRIMARY KEY AUTOINCREMENT,
    type TEXT NOT NULL,              -- news, seo, competitor
    url TEXT,
    payload TEXT,                    -- JSON encoded payload matching type
    created_at INTEGER,
    updated_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_records_url ON records(url);
CREATE INDEX IF NOT EXISTS idx_records_updated ON records(updated_at);

-- Analysis results: one per scoring invocation
CREATE TABLE IF NOT EXISTS analysis_results (
    analysis_id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    analyzed_at INTEGER NOT NULL,
    overall REAL NOT NULL,
    result TEXT NOT NULL,            -- JSON encoded models.AnalysisResult
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_analysis_url ON analysis_results(url, analyzed_at DESC);

-- Quality issues: latest audit state per issue code
CREATE TABLE IF NOT EXISTS quality_issues (
    code TEXT PRIMARY KEY,
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    affected INTEGER NOT NULL,
    share REAL NOT NULL,
    updated_at INTEGER NOT NULL
);
`
