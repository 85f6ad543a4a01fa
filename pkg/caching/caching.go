// Package caching keeps rendered pages on disk for a limited time so repeated
// crawls of the same URL skip the browser.
package caching

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/fetcher"
)

// Cache is a file-based cache with a TTL.
type Cache struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

// NewCache creates a Cache rooted at path, creating the directory if needed.
func NewCache(path string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{
		path: path,
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

// key generates a SHA256 hash of the URL to use as a filename.
func (c *Cache) key(url string) string {
	hash := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", hash)
}

// Get returns the cached data for url if present and not expired.
func (c *Cache) Get(url string) ([]byte, bool) {
	filePath := filepath.Join(c.path, c.key(url))

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, false
	}
	if c.now().Sub(info.ModTime()) > c.ttl {
		return nil, false
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores data for url.
func (c *Cache) Set(url string, data []byte) error {
	filePath := filepath.Join(c.path, c.key(url))
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}

// entry is the on-disk form of a fetch result. FetchResult hides HTML from
// JSON, so it is carried separately.
type entry struct {
	Result models.FetchResult `json:"result"`
	HTML   string             `json:"html"`
}

// Fetcher serves fetches from the cache and fills it on a miss.
type Fetcher struct {
	next   fetcher.Fetcher
	cache  *Cache
	logger *slog.Logger
}

// NewFetcher wraps next with cache.
func NewFetcher(next fetcher.Fetcher, cache *Cache, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{next: next, cache: cache, logger: logger}
}

// Fetch implements fetcher.Fetcher. Failed fetches are never cached.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts fetcher.Options) (*models.FetchResult, error) {
	if data, ok := f.cache.Get(url); ok {
		var e entry
		if err := json.Unmarshal(data, &e); err == nil {
			f.logger.Debug("Render cache hit", "url", url)
			res := e.Result
			res.HTML = e.HTML
			return &res, nil
		}
		f.logger.Warn("Discarding corrupt cache entry", "url", url)
	}

	res, err := f.next.Fetch(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(entry{Result: *res, HTML: res.HTML})
	if err != nil {
		f.logger.Warn("Failed to encode cache entry", "url", url, "error", err)
		return res, nil
	}
	if err := f.cache.Set(url, data); err != nil {
		f.logger.Warn("Failed to write cache entry", "url", url, "error", err)
	}
	return res, nil
}
