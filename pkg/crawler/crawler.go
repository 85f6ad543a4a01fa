// Package crawler runs a breadth-first crawl of one site, composing the
// frontier, fetch pool, extractor, deduplicator and CMS detector.
package crawler

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/detector"
	"github.com/dtnitsch/seo-pipeline/pkg/fetcher"
	"github.com/dtnitsch/seo-pipeline/pkg/frontier"
	"github.com/dtnitsch/seo-pipeline/pkg/parser"
	"github.com/dtnitsch/seo-pipeline/pkg/similarity"
)

// KindStore marks a page that was fetched but could not be persisted.
const KindStore = "store"

// Options bound one crawl.
type Options struct {
	MaxPages            int
	MaxDepth            int
	MaxConcurrency      int
	Delay               time.Duration
	BatchSize           int
	BatchDelay          time.Duration
	SimilarityThreshold float64
	JobID               string
}

// OptionsFromConfig maps crawl configuration to Options.
func OptionsFromConfig(cfg models.CrawlConfig) Options {
	return Options{
		MaxPages:            cfg.MaxPages,
		MaxDepth:            cfg.MaxDepth,
		MaxConcurrency:      cfg.MaxConcurrency,
		Delay:               cfg.Delay(),
		BatchSize:           cfg.BatchSize,
		BatchDelay:          cfg.BatchDelay(),
		SimilarityThreshold: cfg.SimilarityThreshold,
	}
}

// PageSink receives every distinct snapshot as it is produced.
type PageSink interface {
	SavePage(ctx context.Context, page *models.PageSnapshot) error
}

// Crawler owns nothing between crawls; every Crawl call starts with an
// empty frontier, visited set and fingerprint index.
type Crawler struct {
	opts   Options
	pool   *fetcher.Pool
	logger *slog.Logger
	sink   PageSink
	now    func() time.Time
}

// New returns a Crawler. sink may be nil when pages only need to be returned.
func New(opts Options, pool *fetcher.Pool, logger *slog.Logger, sink PageSink) *Crawler {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Crawler{
		opts:   opts,
		pool:   pool,
		logger: logger,
		sink:   sink,
		now:    time.Now,
	}
}

// WithOptions returns a copy of c using opts, sharing the pool, logger and sink.
func (c *Crawler) WithOptions(opts Options) *Crawler {
	return New(opts, c.pool, c.logger, c.sink)
}

// Options returns the crawler's effective options.
func (c *Crawler) Options() Options {
	return c.opts
}

// crawlState is the per-crawl arena, discarded when Crawl returns.
type crawlState struct {
	filter   *frontier.Filter
	queue    *frontier.Queue
	visited  map[string]struct{}
	hashes   map[string]struct{}
	index    *similarity.Index
	limiters map[string]*rate.Limiter
	admitted int
	cmsDone  bool
}

// Crawl crawls the site rooted at seed. Only an invalid seed is an error;
// page-level failures are recorded in the result and the crawl continues.
func (c *Crawler) Crawl(ctx context.Context, seed string) (*models.CrawlResult, error) {
	seedURL, err := frontier.Normalize(seed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize seed %q: %w", seed, err)
	}

	filter, err := frontier.NewFilter()
	if err != nil {
		return nil, err
	}
	st := &crawlState{
		filter:   filter,
		queue:    frontier.NewQueue(filter),
		visited:  map[string]struct{}{seedURL: {}},
		hashes:   map[string]struct{}{},
		index:    similarity.NewIndex(c.opts.SimilarityThreshold),
		limiters: map[string]*rate.Limiter{},
		admitted: 1,
	}
	st.queue.Push(models.CrawlTarget{URL: seedURL, Depth: 0, Domain: frontier.Domain(seedURL)})

	result := &models.CrawlResult{Seed: seedURL, StartedAt: c.now()}
	c.logger.Info("Starting crawl", "seed", seedURL, "max_pages", c.opts.MaxPages, "max_depth", c.opts.MaxDepth)

	for st.queue.Len() > 0 && len(result.Pages) < c.opts.MaxPages {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("Crawl interrupted", "seed", seedURL, "error", err)
			break
		}

		batch := c.nextBatch(st, result)
		if len(batch) == 0 {
			continue
		}

		outcomes := c.fetchBatch(ctx, st, batch)
		for i, out := range outcomes {
			c.process(ctx, st, result, batch[i], out)
		}
	}

	result.Duration = c.now().Sub(result.StartedAt)
	c.logger.Info("Crawl complete",
		"seed", seedURL,
		"pages", len(result.Pages),
		"duplicates", len(result.Duplicates),
		"failures", len(result.Failures),
		"skipped", result.Skipped,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// nextBatch pops up to MaxConcurrency fetchable targets in priority order.
// Skip patterns are re-checked here because CMS hints may have been added
// after a target was queued.
func (c *Crawler) nextBatch(st *crawlState, result *models.CrawlResult) []models.CrawlTarget {
	var batch []models.CrawlTarget
	for len(batch) < c.opts.MaxConcurrency {
		t, ok := st.queue.Pop()
		if !ok {
			break
		}
		if t.Depth > 0 && st.filter.ShouldSkip(t.URL) {
			result.Skipped++
			continue
		}
		batch = append(batch, t)
	}
	return batch
}

// fetchBatch fetches targets concurrently. Each fetch first waits for its
// domain's politeness limiter. Outcomes are returned in batch order.
func (c *Crawler) fetchBatch(ctx context.Context, st *crawlState, batch []models.CrawlTarget) []fetcher.Outcome {
	out := make([]fetcher.Outcome, len(batch))
	var wg sync.WaitGroup
	for i, t := range batch {
		lim := c.limiter(st, t.Domain)
		wg.Add(1)
		go func(i int, t models.CrawlTarget) {
			defer wg.Done()
			if err := lim.Wait(ctx); err != nil {
				out[i] = fetcher.Outcome{URL: t.URL, Err: &fetcher.FetchError{Kind: fetcher.KindTimeout, URL: t.URL, Err: err}}
				return
			}
			res, err := c.pool.Fetch(ctx, t.URL)
			out[i] = fetcher.Outcome{URL: t.URL, Result: res, Err: err}
		}(i, t)
	}
	wg.Wait()
	return out
}

func (c *Crawler) limiter(st *crawlState, domain string) *rate.Limiter {
	lim, ok := st.limiters[domain]
	if !ok {
		limit := rate.Inf
		if c.opts.Delay > 0 {
			limit = rate.Every(c.opts.Delay)
		}
		lim = rate.NewLimiter(limit, 1)
		st.limiters[domain] = lim
	}
	return lim
}

func (c *Crawler) process(ctx context.Context, st *crawlState, result *models.CrawlResult, t models.CrawlTarget, out fetcher.Outcome) {
	if out.Err != nil {
		c.logger.Warn("Fetch failed", "url", t.URL, "error", out.Err)
		result.Failures = append(result.Failures, models.PageFailure{
			URL:   t.URL,
			Kind:  fetcher.Kind(out.Err),
			Error: out.Err.Error(),
		})
		return
	}
	res := out.Result
	if final, err := frontier.Normalize(res.FinalURL, nil); err == nil {
		st.visited[final] = struct{}{}
	}

	sig := parser.Extract(res.HTML, t.URL)

	if !st.cmsDone {
		st.cmsDone = true
		cms := detector.Detect(detector.EvidenceFrom(res, sig))
		result.CMS = &cms
		if err := st.filter.Extend(cms.Hints); err != nil {
			c.logger.Warn("Failed to apply CMS hints", "platform", cms.Platform, "error", err)
		}
		c.logger.Info("Detected CMS", "seed", result.Seed, "platform", cms.Platform, "confidence", cms.Confidence)
	}

	contentHash := fmt.Sprintf("%x", sha256.Sum256([]byte(sig.Text)))
	fp := similarity.Hash(sig.Text)
	if _, dup := st.hashes[contentHash]; dup || !st.index.Add(fp) {
		c.logger.Debug("Skipping duplicate content", "url", t.URL)
		result.Duplicates = append(result.Duplicates, t.URL)
		return
	}
	st.hashes[contentHash] = struct{}{}

	snap := models.PageSnapshot{
		URL:         t.URL,
		Domain:      t.Domain,
		ContentHash: contentHash,
		Fingerprint: fp.String(),
		Signals:     sig,
		StatusCode:  res.StatusCode,
		LoadTimeMs:  res.LoadTimeMs,
		FetchedAt:   c.now(),
		JobID:       c.opts.JobID,
	}
	if c.sink != nil {
		if err := c.sink.SavePage(ctx, &snap); err != nil {
			c.logger.Error("Failed to store page", "url", t.URL, "error", err)
			result.Failures = append(result.Failures, models.PageFailure{URL: t.URL, Kind: KindStore, Error: err.Error()})
			return
		}
	}
	result.Pages = append(result.Pages, snap)
	result.PageURLs = append(result.PageURLs, snap.URL)
	c.logger.Debug("Stored page", "url", t.URL, "depth", t.Depth, "words", sig.WordCount)

	if t.Depth >= c.opts.MaxDepth {
		return
	}
	for _, link := range sig.InternalLinks {
		if st.admitted >= c.opts.MaxPages {
			return
		}
		if link.NoFollow {
			continue
		}
		if _, seen := st.visited[link.URL]; seen {
			continue
		}
		st.visited[link.URL] = struct{}{}
		if st.filter.ShouldSkip(link.URL) {
			result.Skipped++
			continue
		}
		st.admitted++
		st.queue.Push(models.CrawlTarget{
			URL:            link.URL,
			Depth:          t.Depth + 1,
			Domain:         frontier.Domain(link.URL),
			DiscoveredFrom: t.URL,
		})
	}
}
