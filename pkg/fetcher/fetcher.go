// Package fetcher retrieves rendered HTML for a URL, either through a
// headless browser or plain HTTP, under a bounded concurrency pool.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
)

// Failure kinds reported in FetchError.Kind.
const (
	KindTimeout = "timeout"
	KindNetwork = "network"
	KindHTTP4xx = "http4xx"
	KindHTTP5xx = "http5xx"
)

// Options control a single fetch.
type Options struct {
	Timeout   time.Duration
	UserAgent string
}

// Fetcher retrieves one URL. Implementations must honor ctx cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts Options) (*models.FetchResult, error)
}

// FetchError describes why a URL could not be fetched.
type FetchError struct {
	Kind       string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// statusError returns a FetchError for a non-success status, or nil.
func statusError(url string, status int) error {
	switch {
	case status >= 500:
		return &FetchError{Kind: KindHTTP5xx, URL: url, StatusCode: status}
	case status >= 400:
		return &FetchError{Kind: KindHTTP4xx, URL: url, StatusCode: status}
	}
	return nil
}

// wrapError classifies a transport error.
func wrapError(url string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Kind: classify(err), URL: url, Err: err}
}

func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// Kind returns the failure kind of err, or "network" for errors that are not
// a FetchError.
func Kind(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}
