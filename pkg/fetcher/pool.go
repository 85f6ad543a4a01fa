package fetcher

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/dtnitsch/seo-pipeline/models"
)

// Outcome is the result of one pooled fetch.
type Outcome struct {
	URL    string
	Result *models.FetchResult
	Err    error
}

// Pool bounds the number of in-flight fetches and enforces a hard
// per-fetch timeout. It never retries.
type Pool struct {
	fetcher Fetcher
	sem     *semaphore.Weighted
	opts    Options
}

// NewPool wraps f with at most maxConcurrency concurrent fetches.
func NewPool(f Fetcher, maxConcurrency int, opts Options) *Pool {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Pool{
		fetcher: f,
		sem:     semaphore.NewWeighted(int64(maxConcurrency)),
		opts:    opts,
	}
}

// Fetch fetches url once a slot is free. A fetch still running when the
// timeout elapses is abandoned and reported as a timeout.
func (p *Pool) Fetch(ctx context.Context, url string) (*models.FetchResult, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, wrapError(url, fmt.Errorf("failed to acquire fetch slot: %w", err))
	}
	defer p.sem.Release(1)

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	type reply struct {
		res *models.FetchResult
		err error
	}
	done := make(chan reply, 1)
	go func() {
		res, err := p.fetcher.Fetch(ctx, url, p.opts)
		done <- reply{res, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, wrapError(url, r.err)
		}
		return r.res, nil
	case <-ctx.Done():
		return nil, wrapError(url, ctx.Err())
	}
}
