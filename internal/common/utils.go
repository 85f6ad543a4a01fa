// Package common holds helpers shared by the command actions: logger and
// config construction from flags, URL cleanup and output rendering.
package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/db"
)

// DefaultConfigPath is read when --config is not given and the file exists.
const DefaultConfigPath = "config.yaml"

var (
	markdownLinkPattern = regexp.MustCompile(`^\[.*?\]\((https?://[^\)]+)\)$`)
	urlPattern          = regexp.MustCompile(`^https?://[a-zA-Z0-9][-a-zA-Z0-9.]*[a-zA-Z0-9](:[0-9]+)?(/[^\s]*)?$`)
)

// NewLogger builds the JSON stderr logger. --quiet wins over --log-level,
// which wins over the configured level.
func NewLogger(c *cli.Context, configured string) *slog.Logger {
	level := parseLevel(configured)
	if c.IsSet("log-level") {
		level = parseLevel(c.String("log-level"))
	}
	if c.Bool("quiet") {
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// LoadConfig reads --config (or config.yaml when present) and applies flag
// overrides. Without a file the defaults are used.
func LoadConfig(c *cli.Context) (*models.Config, error) {
	path := c.String("config")
	if path == "" {
		if _, err := os.Stat(DefaultConfigPath); err == nil {
			path = DefaultConfigPath
		}
	}

	cfg := models.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = models.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if c.IsSet("db") {
		cfg.Database.Path = c.String("db")
	}
	if c.Bool("no-render") {
		cfg.Crawl.Render = false
	}
	if c.IsSet("browser-url") {
		cfg.Crawl.BrowserURL = c.String("browser-url")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// OpenStore opens the configured content store.
func OpenStore(cfg *models.Config) (*db.DB, error) {
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// Output renders v as YAML (the default) or JSON according to --format.
func Output(c *cli.Context, v any) error {
	return Render(c.App.Writer, c.String("format"), v)
}

// Render writes v to w in the named format.
func Render(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "", "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown output format %q (want yaml or json)", format)
}

// SanitizeURL performs basic cleanup on URLs to handle common copy-paste
// issues: surrounding whitespace, markdown link syntax and stray punctuation.
func SanitizeURL(rawURL string) string {
	cleaned := strings.TrimSpace(rawURL)

	if m := markdownLinkPattern.FindStringSubmatch(cleaned); len(m) > 1 {
		cleaned = m[1]
	}
	cleaned = strings.TrimRight(cleaned, `,.)}]"'>;`)
	cleaned = strings.TrimLeft(cleaned, `([<"'`)
	return strings.TrimSpace(cleaned)
}

// SanitizeAndValidateURLs sanitizes all URLs and returns (sanitized URLs, invalid URLs).
// Invalid URLs are those that fail validation even after sanitization.
func SanitizeAndValidateURLs(urls []string) ([]string, []string) {
	sanitized := make([]string, 0, len(urls))
	var invalid []string

	for _, raw := range urls {
		cleaned := SanitizeURL(raw)
		if cleaned == "" || strings.Contains(cleaned, " ") || !urlPattern.MatchString(cleaned) {
			invalid = append(invalid, raw)
			continue
		}
		parsed, err := url.Parse(cleaned)
		if err != nil || parsed.Host == "" || strings.ContainsAny(parsed.Host, "{}[]<>\"'") {
			invalid = append(invalid, raw)
			continue
		}
		sanitized = append(sanitized, cleaned)
	}
	return sanitized, invalid
}

// URLArgs collects URLs from the comma-separated --urls flag and the
// positional arguments, rejecting the command when any are malformed.
func URLArgs(c *cli.Context) ([]string, error) {
	var raw []string
	if c.IsSet("urls") {
		raw = append(raw, SplitList(c.String("urls"))...)
	}
	raw = append(raw, c.Args().Slice()...)
	if len(raw) == 0 {
		return nil, errors.New("no URLs provided")
	}

	urls, invalid := SanitizeAndValidateURLs(raw)
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid URLs: %s", strings.Join(invalid, ", "))
	}
	return urls, nil
}

// SplitList splits a comma-separated flag value, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
