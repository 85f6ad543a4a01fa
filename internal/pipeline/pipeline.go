// Package pipeline wires the crawler, scorer, quality validator and
// scheduler into one service built from a single configuration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/caching"
	"github.com/dtnitsch/seo-pipeline/pkg/crawler"
	"github.com/dtnitsch/seo-pipeline/pkg/db"
	"github.com/dtnitsch/seo-pipeline/pkg/fetcher"
	"github.com/dtnitsch/seo-pipeline/pkg/frontier"
	"github.com/dtnitsch/seo-pipeline/pkg/metrics"
	"github.com/dtnitsch/seo-pipeline/pkg/quality"
	"github.com/dtnitsch/seo-pipeline/pkg/scheduler"
	"github.com/dtnitsch/seo-pipeline/pkg/scoring"
)

// Service is the composition root. Every control operation goes through it.
type Service struct {
	cfg       *models.Config
	store     *db.DB
	logger    *slog.Logger
	fetcher   fetcher.Fetcher
	pool      *fetcher.Pool
	crawler   *crawler.Crawler
	engine    *scoring.Engine
	metrics   *metrics.Fallback
	validator *quality.Validator
	scheduler *scheduler.Scheduler

	stuckAfter time.Duration
	now        func() time.Time

	// set through Options
	customFetcher fetcher.Fetcher
	keywords      metrics.KeywordProvider
	ranks         metrics.RankProvider
	schedOpts     []scheduler.Option
}

// Option configures a Service.
type Option func(*Service)

// WithFetcher replaces the fetcher chosen from configuration.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(s *Service) { s.customFetcher = f }
}

// WithMetricProviders sets the third-party keyword and rank providers.
func WithMetricProviders(kp metrics.KeywordProvider, rp metrics.RankProvider) Option {
	return func(s *Service) { s.keywords, s.ranks = kp, rp }
}

// WithSchedulerOptions passes options through to the scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(s *Service) { s.schedOpts = append(s.schedOpts, opts...) }
}

// WithStuckAfter sets how long a run may last before the health check
// reports it as stuck.
func WithStuckAfter(d time.Duration) Option {
	return func(s *Service) { s.stuckAfter = d }
}

// DefaultStuckAfter is the default health-check threshold for long runs.
const DefaultStuckAfter = 2 * time.Hour

// New builds every component and registers the configured and built-in jobs.
// Configured jobs that cannot be scheduled are logged and skipped.
func New(cfg *models.Config, store *db.DB, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = models.DefaultConfig()
	}
	if store == nil {
		return nil, errors.New("pipeline requires a store")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Service{
		cfg:        cfg,
		store:      store,
		logger:     logger,
		stuckAfter: DefaultStuckAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	f, err := s.buildFetcher()
	if err != nil {
		return nil, err
	}
	s.fetcher = f
	s.pool = fetcher.NewPool(f, cfg.Crawl.MaxConcurrency, fetcher.Options{
		Timeout:   cfg.Crawl.Timeout(),
		UserAgent: cfg.Crawl.UserAgent,
	})
	s.crawler = crawler.New(crawler.OptionsFromConfig(cfg.Crawl), s.pool, logger, store)
	s.metrics = metrics.WithFallback(s.keywords, s.ranks, logger)
	s.engine = scoring.NewEngine(cfg.Scoring.Weights, s.metrics, logger)
	s.validator = quality.New(store, cfg.Quality, logger)
	s.scheduler = scheduler.New(store, logger, s.schedOpts...)

	if err := s.registerJobs(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) buildFetcher() (fetcher.Fetcher, error) {
	var f fetcher.Fetcher
	switch {
	case s.customFetcher != nil:
		f = s.customFetcher
	case s.cfg.Crawl.Render:
		f = fetcher.NewRodFetcher(s.cfg.Crawl.BrowserURL, s.logger)
	default:
		f = fetcher.NewHTTPFetcher(&http.Client{})
	}

	if s.cfg.Crawl.CacheDir == "" {
		return f, nil
	}
	cache, err := caching.NewCache(s.cfg.Crawl.CacheDir, s.cfg.Crawl.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to open render cache: %w", err)
	}
	return caching.NewFetcher(f, cache, s.logger), nil
}

// registerJobs merges configured jobs with their persisted scheduler state
// and registers them along with the built-in jobs. Built-in jobs register
// first; a configured job that cannot be scheduled or reuses a taken id is
// logged and skipped.
func (s *Service) registerJobs(ctx context.Context) error {
	persisted, err := s.store.LoadJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted jobs: %w", err)
	}
	state := make(map[string]models.CrawlJob, len(persisted))
	for _, j := range persisted {
		state[j.ID] = j
	}

	jobs := builtinJobs(s.cfg)
	builtin := len(jobs)
	for _, spec := range s.cfg.Jobs {
		if err := spec.Check(); err != nil {
			s.logger.Error("Skipping invalid job", "job_id", spec.ID, "error", err)
			continue
		}
		jobs = append(jobs, spec.ToJob())
	}

	for i, job := range jobs {
		if prev, ok := state[job.ID]; ok {
			job.IsActive = job.IsActive && prev.IsActive
			job.RetryAttempts = prev.RetryAttempts
			job.LastRun = prev.LastRun
		}
		if err := s.scheduler.Register(job, s.runnerFor(job)); err != nil {
			var se *scheduler.SchedulingError
			switch {
			case errors.As(err, &se):
				s.logger.Error("Skipping job with invalid schedule", "job_id", job.ID, "schedule", job.Schedule, "error", se.Err)
				continue
			case errors.Is(err, scheduler.ErrDuplicateJob) && i >= builtin:
				s.logger.Error("Skipping job with reserved or duplicate id", "job_id", job.ID, "error", err)
				continue
			}
			return err
		}
		if err := s.store.SaveJob(ctx, &job); err != nil {
			s.logger.Error("Failed to save job", "job_id", job.ID, "error", err)
		}
	}
	return nil
}

// Close releases the browser, if one was started.
func (s *Service) Close() error {
	if c, ok := s.fetcher.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// StartScheduler starts the tick loop.
func (s *Service) StartScheduler(ctx context.Context) {
	s.scheduler.Start(ctx)
}

// StopScheduler halts the tick loop and waits for in-flight runs.
func (s *Service) StopScheduler() {
	s.scheduler.Stop()
}

// TriggerJobNow starts a job immediately. It reports false when the job is
// already running.
func (s *Service) TriggerJobNow(id string) (bool, error) {
	return s.scheduler.TriggerNow(id)
}

// WaitForRuns blocks until every started run has finished.
func (s *Service) WaitForRuns() {
	s.scheduler.Wait()
}

// ReactivateJob re-enables a job and resets its retry count.
func (s *Service) ReactivateJob(id string) error {
	return s.scheduler.Reactivate(id)
}

// MetricsSnapshot returns the scheduler counters.
func (s *Service) MetricsSnapshot() models.SchedulerMetrics {
	return s.scheduler.Metrics()
}

// Jobs returns every registered job with its current scheduler state.
func (s *Service) Jobs() []models.CrawlJob {
	return s.scheduler.Jobs()
}

// NextRun returns when a job is next due.
func (s *Service) NextRun(id string) (time.Time, bool) {
	return s.scheduler.NextRun(id)
}

// JobHistory lists recent executions of a job, newest first.
func (s *Service) JobHistory(ctx context.Context, id string, limit int) ([]models.JobExecution, error) {
	return s.store.ListExecutions(ctx, id, limit)
}

// QualityReport generates a fresh report and persists its issues.
func (s *Service) QualityReport(ctx context.Context) (*models.QualityReport, error) {
	report, err := s.validator.GenerateReport(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveQualityIssues(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// CleanupDuplicates keeps the newest record per URL and returns how many
// were deleted.
func (s *Service) CleanupDuplicates(ctx context.Context) (int, error) {
	return s.validator.CleanupDuplicates(ctx)
}

// AnalyzeURL fetches one page, scores it and stores the analysis.
func (s *Service) AnalyzeURL(ctx context.Context, rawURL string, target scoring.Target) (*models.AnalysisResult, error) {
	u, err := frontier.Normalize(rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize url: %w", err)
	}
	res, err := s.pool.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	analysis := s.engine.AnalyzeHTML(ctx, res.HTML, u, target)
	if _, err := s.store.SaveAnalysis(ctx, analysis); err != nil {
		return analysis, err
	}
	return analysis, nil
}

// CrawlSite crawls seeds outside the scheduler, persisting snapshots and
// run summaries. With analyze set, every new snapshot is also scored.
func (s *Service) CrawlSite(ctx context.Context, seeds []string, target scoring.Target, analyze bool) ([]*models.CrawlResult, error) {
	results, err := s.crawler.CrawlMultiple(ctx, seeds)
	for _, res := range results {
		if res == nil {
			continue
		}
		if _, serr := s.store.SaveCrawlRun(ctx, "", res); serr != nil {
			s.logger.Error("Failed to save crawl run", "seed", res.Seed, "error", serr)
		}
		if !analyze {
			continue
		}
		for i := range res.Pages {
			a := s.engine.Analyze(ctx, &res.Pages[i], target)
			if _, serr := s.store.SaveAnalysis(ctx, a); serr != nil {
				s.logger.Error("Failed to save analysis", "url", a.URL, "error", serr)
			}
		}
	}
	return results, err
}
