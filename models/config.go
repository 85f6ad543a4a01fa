// Package models defines data structures for configuration, crawling,
// scheduling, quality reporting and scoring.
package models

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrInvalidMaxConcurrency = errors.New("crawl.max_concurrency must be at least 1")
	ErrInvalidTimeout        = errors.New("crawl.timeout_ms must be at least 1")
	ErrInvalidDelay          = errors.New("crawl.delay_ms must be non-negative")
	ErrInvalidMaxPages       = errors.New("crawl.max_pages must be at least 1")
	ErrInvalidMaxDepth       = errors.New("crawl.max_depth must be non-negative")
	ErrInvalidBatchSize      = errors.New("crawl.batch_size must be at least 1")
	ErrInvalidThreshold      = errors.New("crawl.similarity_threshold must be within (0, 1]")
	ErrInvalidStaleAfter     = errors.New("quality.stale_after must be positive")
	ErrInvalidSampleSize     = errors.New("quality.sample_size must be at least 1")
	ErrInvalidWeight         = errors.New("scoring.weights must be non-negative")
	ErrJobMissingID          = errors.New("job id is required")
	ErrJobInvalidType        = errors.New("job type must be one of: seo, news, competitor")
	ErrJobMissingSchedule    = errors.New("job schedule is required")
	ErrJobDuplicateID        = errors.New("job ids must be unique")
	ErrInvalidLogLevel       = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config represents the complete pipeline configuration.
type Config struct {
	Crawl    CrawlConfig    `yaml:"crawl"`
	Jobs     []JobSpec      `yaml:"jobs"`
	Sources  SourcesConfig  `yaml:"sources"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Quality  QualityConfig  `yaml:"quality"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CrawlConfig holds crawl and fetch options.
type CrawlConfig struct {
	DelayMs             int     `yaml:"delay_ms"`
	MaxConcurrency      int     `yaml:"max_concurrency"`
	TimeoutMs           int     `yaml:"timeout_ms"`
	UserAgent           string  `yaml:"user_agent"`
	MaxPages            int     `yaml:"max_pages"`
	MaxDepth            int     `yaml:"max_depth"`
	BatchSize           int     `yaml:"batch_size"`
	BatchDelayMs        int     `yaml:"batch_delay_ms"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// Render selects the headless browser backend; false uses plain HTTP.
	Render     bool   `yaml:"render"`
	BrowserURL string `yaml:"browser_url"` // existing DevTools endpoint, optional

	CacheDir string        `yaml:"cache_dir"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Delay returns the politeness delay.
func (c CrawlConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// Timeout returns the hard per-fetch timeout.
func (c CrawlConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// BatchDelay returns the pause between CrawlMultiple batches.
func (c CrawlConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// JobSpec describes a configured recurring job.
type JobSpec struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Type       JobType  `yaml:"type"`
	Schedule   string   `yaml:"schedule"`
	Targets    []string `yaml:"targets"`
	MaxPages   int      `yaml:"max_pages"`
	MaxDepth   int      `yaml:"max_depth"`
	MaxRetries int      `yaml:"max_retries"`
	Keywords   []string `yaml:"keywords"`
	Disabled   bool     `yaml:"disabled"`
}

// ToJob converts the spec into a fresh CrawlJob.
func (s JobSpec) ToJob() CrawlJob {
	name := s.Name
	if name == "" {
		name = s.ID
	}
	return CrawlJob{
		ID:         s.ID,
		Name:       name,
		Type:       s.Type,
		Schedule:   s.Schedule,
		IsActive:   !s.Disabled,
		MaxRetries: s.MaxRetries,
		Config: JobConfig{
			Targets:  s.Targets,
			MaxPages: s.MaxPages,
			MaxDepth: s.MaxDepth,
			Keywords: s.Keywords,
		},
	}
}

// SourcesConfig feeds the built-in news-ingestion and competitor-sweep jobs.
// A job is registered only when its list is non-empty.
type SourcesConfig struct {
	News        []string `yaml:"news"`
	Competitors []string `yaml:"competitors"`
	Keywords    []string `yaml:"keywords"`
}

// ScoringConfig holds the category weight table.
type ScoringConfig struct {
	Weights map[Category]float64 `yaml:"weights"`
}

// QualityConfig holds data quality validator settings.
type QualityConfig struct {
	StaleAfter time.Duration `yaml:"stale_after"`
	SampleSize int           `yaml:"sample_size"`
}

// DatabaseConfig holds the content store location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a configuration with every field set to a usable value.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			DelayMs:             1000,
			MaxConcurrency:      4,
			TimeoutMs:           30000,
			UserAgent:           "seo-pipeline/1.0 (+https://example.com/bot)",
			MaxPages:            50,
			MaxDepth:            3,
			BatchSize:           3,
			BatchDelayMs:        5000,
			SimilarityThreshold: 0.9,
			Render:              true,
			CacheTTL:            time.Hour,
		},
		Scoring: ScoringConfig{Weights: DefaultWeights()},
		Quality: QualityConfig{
			StaleAfter: 7 * 24 * time.Hour,
			SampleSize: 200,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DefaultWeights returns the default category weight table.
func DefaultWeights() map[Category]float64 {
	return map[Category]float64{
		CategoryContent:   0.30,
		CategoryTechnical: 0.25,
		CategoryKeyword:   0.20,
		CategoryLinks:     0.15,
		CategoryImages:    0.10,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if len(cfg.Scoring.Weights) == 0 {
		cfg.Scoring.Weights = DefaultWeights()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	cc := c.Crawl
	if cc.MaxConcurrency < 1 {
		return ErrInvalidMaxConcurrency
	}
	if cc.TimeoutMs < 1 {
		return ErrInvalidTimeout
	}
	if cc.DelayMs < 0 {
		return ErrInvalidDelay
	}
	if cc.MaxPages < 1 {
		return ErrInvalidMaxPages
	}
	if cc.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if cc.BatchSize < 1 {
		return ErrInvalidBatchSize
	}
	if cc.SimilarityThreshold <= 0 || cc.SimilarityThreshold > 1 {
		return ErrInvalidThreshold
	}
	if c.Quality.StaleAfter <= 0 {
		return ErrInvalidStaleAfter
	}
	if c.Quality.SampleSize < 1 {
		return ErrInvalidSampleSize
	}
	for _, w := range c.Scoring.Weights {
		if w < 0 {
			return ErrInvalidWeight
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}

	seen := make(map[string]struct{}, len(c.Jobs))
	for i, j := range c.Jobs {
		if j.ID == "" {
			return fmt.Errorf("%w at index %d", ErrJobMissingID, i)
		}
		if _, dup := seen[j.ID]; dup {
			return fmt.Errorf("%w: %s", ErrJobDuplicateID, j.ID)
		}
		seen[j.ID] = struct{}{}
	}
	return nil
}

// Check reports whether the job can be scheduled. Jobs failing it are
// skipped at startup; the rest of the configuration still loads.
func (s JobSpec) Check() error {
	switch s.Type {
	case JobTypeSEO, JobTypeNews, JobTypeCompetitor:
	default:
		return fmt.Errorf("%w: job %s has %q", ErrJobInvalidType, s.ID, s.Type)
	}
	if strings.TrimSpace(s.Schedule) == "" {
		return fmt.Errorf("%w: job %s", ErrJobMissingSchedule, s.ID)
	}
	return nil
}
