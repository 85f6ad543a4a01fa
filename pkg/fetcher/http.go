package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/dtnitsch/seo-pipeline/models"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// HTTPFetcher fetches static HTML without executing scripts.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher using client, or a default client when nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{client: client}
}

// Fetch GETs url and decodes the body to UTF-8.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, opts Options) (*models.FetchResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: url, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, wrapError(url, err)
	}
	defer resp.Body.Close()

	if err := statusError(url, resp.StatusCode); err != nil {
		return nil, err
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: url, Err: fmt.Errorf("failed to detect charset: %w", err)}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, wrapError(url, fmt.Errorf("failed to read response body: %w", err))
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[strings.ToLower(k)] = resp.Header.Get(k)
	}
	var cookies []string
	for _, c := range resp.Cookies() {
		cookies = append(cookies, c.Name)
	}

	return &models.FetchResult{
		URL:         url,
		FinalURL:    resp.Request.URL.String(),
		HTML:        string(body),
		StatusCode:  resp.StatusCode,
		LoadTimeMs:  time.Since(start).Milliseconds(),
		CookieNames: cookies,
		Headers:     headers,
	}, nil
}
