package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/dtnitsch/seo-pipeline/models"
)

// RodFetcher renders pages in a shared headless Chrome. Each fetch opens
// and closes its own tab.
type RodFetcher struct {
	controlURL string
	logger     *slog.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launched *launcher.Launcher
}

// NewRodFetcher returns a fetcher that connects to controlURL, or launches a
// local headless browser on first use when controlURL is empty.
func NewRodFetcher(controlURL string, logger *slog.Logger) *RodFetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RodFetcher{controlURL: controlURL, logger: logger}
}

func (f *RodFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	u := f.controlURL
	if u == "" {
		l := launcher.New().Headless(true).Leakless(true)
		var err error
		u, err = l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		f.launched = l
		f.logger.Debug("Launched headless browser", "control_url", u)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	f.browser = browser
	return browser, nil
}

// Fetch navigates a fresh tab to url and returns the rendered DOM.
func (f *RodFetcher) Fetch(ctx context.Context, url string, opts Options) (*models.FetchResult, error) {
	browser, err := f.connect()
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: url, Err: err}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, wrapError(url, fmt.Errorf("failed to open page: %w", err))
	}
	defer func() {
		// ctx may already be past its deadline; the tab must still close
		if cerr := page.Context(context.WithoutCancel(ctx)).Close(); cerr != nil {
			f.logger.Debug("Failed to close page", "url", url, "error", cerr)
		}
	}()

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			return nil, wrapError(url, fmt.Errorf("failed to set user agent: %w", err))
		}
	}

	var (
		status  int
		headers = map[string]string{}
	)
	waitDocument := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		status = e.Response.Status
		for k, v := range e.Response.Headers {
			headers[strings.ToLower(k)] = v.String()
		}
		return true
	})

	start := time.Now()
	if err := page.Navigate(url); err != nil {
		return nil, wrapError(url, fmt.Errorf("failed to navigate: %w", err))
	}
	waitDocument()
	if err := page.WaitLoad(); err != nil {
		return nil, wrapError(url, fmt.Errorf("failed to wait for load: %w", err))
	}
	loadTime := time.Since(start)

	if err := statusError(url, status); err != nil {
		return nil, err
	}

	html, err := page.HTML()
	if err != nil {
		return nil, wrapError(url, fmt.Errorf("failed to read DOM: %w", err))
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	var cookieNames []string
	if cookies, err := page.Cookies(nil); err == nil {
		for _, c := range cookies {
			cookieNames = append(cookieNames, c.Name)
		}
	}

	return &models.FetchResult{
		URL:         url,
		FinalURL:    finalURL,
		HTML:        html,
		StatusCode:  status,
		LoadTimeMs:  loadTime.Milliseconds(),
		CookieNames: cookieNames,
		Headers:     headers,
	}, nil
}

// Close shuts down the browser connection and any browser it launched.
func (f *RodFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if f.browser != nil {
		err = f.browser.Close()
		f.browser = nil
	}
	if f.launched != nil {
		f.launched.Cleanup()
		f.launched = nil
	}
	return err
}
