package crawler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dtnitsch/seo-pipeline/models"
)

// KindInvalidSeed marks a seed that could not be crawled at all.
const KindInvalidSeed = "invalid_seed"

// CrawlMultiple crawls seeds in fixed-size batches. Seeds within a batch run
// concurrently; BatchDelay separates batches. Results are in seed order and
// an unusable seed yields a result carrying one failure. The returned error
// is non-nil only when ctx ends before every batch has started.
func (c *Crawler) CrawlMultiple(ctx context.Context, seeds []string) ([]*models.CrawlResult, error) {
	results := make([]*models.CrawlResult, len(seeds))

	for start := 0; start < len(seeds); start += c.opts.BatchSize {
		if start > 0 && c.opts.BatchDelay > 0 {
			timer := time.NewTimer(c.opts.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return results, ctx.Err()
			case <-timer.C:
			}
		}

		end := min(start+c.opts.BatchSize, len(seeds))
		c.logger.Info("Crawling batch", "from", start, "to", end-1, "total", len(seeds))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				res, err := c.Crawl(ctx, seeds[i])
				if err != nil {
					c.logger.Warn("Skipping seed", "seed", seeds[i], "error", err)
					res = &models.CrawlResult{
						Seed:      seeds[i],
						StartedAt: c.now(),
						Failures:  []models.PageFailure{{URL: seeds[i], Kind: KindInvalidSeed, Error: err.Error()}},
					}
				}
				results[i] = res
				return nil
			})
		}
		_ = g.Wait()
	}
	return results, nil
}
