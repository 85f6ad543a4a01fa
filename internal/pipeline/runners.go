package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/crawler"
	"github.com/dtnitsch/seo-pipeline/pkg/scheduler"
	"github.com/dtnitsch/seo-pipeline/pkg/scoring"
)

// Built-in job ids and the system tasks they run.
const (
	JobNewsIngestion   = "news-ingestion"
	JobCompetitorSweep = "competitor-sweep"
	JobQualityAudit    = "quality-audit"
	JobCleanup         = "cleanup"
	JobHealthCheck     = "health-check"

	TaskQualityAudit = "quality_audit"
	TaskCleanup      = "cleanup_duplicates"
	TaskHealthCheck  = "health_check"
)

// newsMaxDepth bounds news crawls to a source's front page and the
// articles it links to.
const newsMaxDepth = 1

// ErrCrawlFailed is returned by a crawl job when no seed produced a page.
var ErrCrawlFailed = errors.New("no target produced a page")

// builtinJobs returns the maintenance jobs plus the source sweeps that
// have targets configured.
func builtinJobs(cfg *models.Config) []models.CrawlJob {
	var jobs []models.CrawlJob
	if len(cfg.Sources.News) > 0 {
		jobs = append(jobs, models.CrawlJob{
			ID: JobNewsIngestion, Name: "News ingestion", Type: models.JobTypeNews,
			Schedule: "@every 1h", IsActive: true, MaxRetries: 3,
			Config: models.JobConfig{Targets: cfg.Sources.News, MaxDepth: newsMaxDepth, Keywords: cfg.Sources.Keywords},
		})
	}
	if len(cfg.Sources.Competitors) > 0 {
		jobs = append(jobs, models.CrawlJob{
			ID: JobCompetitorSweep, Name: "Competitor sweep", Type: models.JobTypeCompetitor,
			Schedule: "0 3 * * *", IsActive: true, MaxRetries: 2,
			Config: models.JobConfig{Targets: cfg.Sources.Competitors, Keywords: cfg.Sources.Keywords},
		})
	}
	return append(jobs,
		models.CrawlJob{
			ID: JobQualityAudit, Name: "Data quality audit", Type: models.JobTypeSystem,
			Schedule: "0 */6 * * *", IsActive: true, MaxRetries: 3,
			Config: models.JobConfig{Task: TaskQualityAudit},
		},
		models.CrawlJob{
			ID: JobCleanup, Name: "Duplicate cleanup", Type: models.JobTypeSystem,
			Schedule: "30 4 * * *", IsActive: true, MaxRetries: 3,
			Config: models.JobConfig{Task: TaskCleanup},
		},
		models.CrawlJob{
			ID: JobHealthCheck, Name: "Health check", Type: models.JobTypeSystem,
			Schedule: "*/5 * * * *", IsActive: true, MaxRetries: 5,
			Config: models.JobConfig{Task: TaskHealthCheck},
		},
	)
}

// runnerFor returns the RunFunc for a job's type, or nil for an unknown type.
func (s *Service) runnerFor(job models.CrawlJob) scheduler.RunFunc {
	switch job.Type {
	case models.JobTypeSEO, models.JobTypeNews, models.JobTypeCompetitor:
		return s.runCrawlJob
	case models.JobTypeSystem:
		return s.runSystemJob
	}
	return nil
}

// crawlerFor applies a job's limits on top of the configured crawl options.
func (s *Service) crawlerFor(job models.CrawlJob) *crawler.Crawler {
	opts := s.crawler.Options()
	opts.JobID = job.ID
	if job.Config.MaxPages > 0 {
		opts.MaxPages = job.Config.MaxPages
	}
	if job.Config.MaxDepth > 0 {
		opts.MaxDepth = job.Config.MaxDepth
	}
	return s.crawler.WithOptions(opts)
}

// runCrawlJob crawls the job's targets, scores every new snapshot and
// stores a typed content record per page. It fails only when no target
// produced a page.
func (s *Service) runCrawlJob(ctx context.Context, job models.CrawlJob) error {
	if len(job.Config.Targets) == 0 {
		return fmt.Errorf("job %s has no targets", job.ID)
	}
	target := scoring.Target{Keywords: job.Config.Keywords}

	results, err := s.crawlerFor(job).CrawlMultiple(ctx, job.Config.Targets)
	if err != nil {
		return fmt.Errorf("failed to crawl targets: %w", err)
	}

	pages := 0
	for _, res := range results {
		if res == nil {
			continue
		}
		if _, err := s.store.SaveCrawlRun(ctx, job.ID, res); err != nil {
			s.logger.Error("Failed to save crawl run", "job_id", job.ID, "seed", res.Seed, "error", err)
		}
		for i := range res.Pages {
			page := &res.Pages[i]
			analysis := s.engine.Analyze(ctx, page, target)
			if _, err := s.store.SaveAnalysis(ctx, analysis); err != nil {
				s.logger.Error("Failed to save analysis", "job_id", job.ID, "url", page.URL, "error", err)
			}
			rec := s.recordFor(ctx, job, page, analysis)
			if _, err := s.store.SaveRecord(ctx, rec); err != nil {
				s.logger.Error("Failed to save record", "job_id", job.ID, "url", page.URL, "error", err)
			}
			pages++
		}
	}

	if pages == 0 {
		return fmt.Errorf("%w: %s", ErrCrawlFailed, strings.Join(job.Config.Targets, ", "))
	}
	s.logger.Info("Crawl job complete", "job_id", job.ID, "type", job.Type, "pages", pages)
	return nil
}

// recordFor turns a snapshot and its analysis into the content record for
// the job's type.
func (s *Service) recordFor(ctx context.Context, job models.CrawlJob, page *models.PageSnapshot, a *models.AnalysisResult) *models.Record {
	now := s.now()
	rec := &models.Record{URL: page.URL, CreatedAt: now, UpdatedAt: now}

	switch job.Type {
	case models.JobTypeNews:
		rec.Type = models.RecordNews
		source := page.Signals.SiteName
		if source == "" {
			source = page.Domain
		}
		rec.News = &models.NewsPayload{
			Title:   page.Signals.Title,
			Summary: page.Signals.Excerpt,
			Content: page.Signals.Text,
			Source:  source,
			Author:  page.Signals.Author,
		}
	case models.JobTypeCompetitor:
		rec.Type = models.RecordCompetitor
		payload := &models.CompetitorPayload{
			Domain:       page.Domain,
			Title:        page.Signals.Title,
			OverallScore: a.Overall,
			WordCount:    page.Signals.WordCount,
		}
		if len(job.Config.Keywords) > 0 {
			ranks, err := s.metrics.Rankings(ctx, page.Domain, job.Config.Keywords)
			if err != nil {
				s.logger.Warn("Failed to fetch rankings", "job_id", job.ID, "domain", page.Domain, "error", err)
			}
			for _, r := range ranks {
				if r.Position > 0 {
					if payload.Rankings == nil {
						payload.Rankings = map[string]int{}
					}
					payload.Rankings[r.Keyword] = r.Position
				}
			}
		}
		rec.Competitor = payload
	default:
		rec.Type = models.RecordSEO
		scores := make(map[string]float64, len(a.Scores))
		for cat, cr := range a.Scores {
			scores[string(cat)] = cr.Score
		}
		rec.SEO = &models.SEOPayload{
			Title:        page.Signals.Title,
			OverallScore: a.Overall,
			Scores:       scores,
			WordCount:    page.Signals.WordCount,
			Keywords:     job.Config.Keywords,
		}
	}
	return rec
}

// runSystemJob dispatches a maintenance task.
func (s *Service) runSystemJob(ctx context.Context, job models.CrawlJob) error {
	switch job.Config.Task {
	case TaskQualityAudit:
		report, err := s.QualityReport(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("Quality audit complete", "score", report.QualityScore, "issues", len(report.Issues))
		return nil
	case TaskCleanup:
		n, err := s.CleanupDuplicates(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("Duplicate cleanup complete", "deleted", n)
		return nil
	case TaskHealthCheck:
		// stuck runs are reported, not retried; only an unreachable store fails the job
		h, err := s.HealthCheck(ctx)
		if err != nil && h.Database != "ok" {
			return err
		}
		return nil
	}
	return fmt.Errorf("unknown system task %q", job.Config.Task)
}
