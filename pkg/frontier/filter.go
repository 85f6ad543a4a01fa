package frontier

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/dtnitsch/seo-pipeline/models"
)

// defaultSkipPatterns reject paths that never carry indexable content.
var defaultSkipPatterns = []string{
	// admin
	`(?i)/(wp-admin|admin|administrator|backend|dashboard)(/|$)`,
	// auth
	`(?i)/(login|logout|signin|sign-in|signup|sign-up|register|auth|oauth|account|my-account|password-reset)(/|$|\?)`,
	// cart
	`(?i)/(cart|basket|checkout|order-received)(/|$|\?)`,
	// feeds
	`(?i)/(feed|rss|atom)(/|$|\.xml)`,
	`(?i)[?&](feed|format)=(rss|atom|json)`,
	// search result pages and print views
	`(?i)[?&](replytocom|print|share)=`,
}

// binaryExtensions are never fetched.
var binaryExtensions = map[string]struct{}{
	".pdf": {}, ".zip": {}, ".rar": {}, ".tar": {}, ".gz": {}, ".7z": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".ico": {}, ".bmp": {},
	".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".webm": {},
	".mp3": {}, ".wav": {}, ".flac": {}, ".ogg": {},
	".exe": {}, ".dmg": {}, ".iso": {}, ".apk": {},
	".css": {}, ".js": {}, ".json": {}, ".xml": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
}

var compiledDefaults = mustCompile(defaultSkipPatterns)

func mustCompile(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// CompilePatterns compiles a list of regular expressions.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Filter decides which URLs enter the frontier. It starts with the default
// skip list and can be extended with CMS hints for the rest of a crawl.
type Filter struct {
	mu     sync.RWMutex
	skip   []*regexp.Regexp
	follow []*regexp.Regexp
}

// NewFilter returns a Filter with the default skip list plus extra patterns.
func NewFilter(extra ...string) (*Filter, error) {
	compiled, err := CompilePatterns(extra)
	if err != nil {
		return nil, err
	}
	skip := append(append([]*regexp.Regexp(nil), compiledDefaults...), compiled...)
	return &Filter{skip: skip}, nil
}

// Extend adds the hints' skip and follow patterns. It only affects
// decisions made after the call.
func (f *Filter) Extend(hints models.CrawlHints) error {
	skip, err := CompilePatterns(hints.SkipPatterns)
	if err != nil {
		return err
	}
	follow, err := CompilePatterns(hints.FollowPatterns)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.skip = append(f.skip, skip...)
	f.follow = append(f.follow, follow...)
	return nil
}

// ShouldSkip reports whether rawURL must not be fetched.
func (f *Filter) ShouldSkip(rawURL string) bool {
	if hasBinaryExtension(rawURL) {
		return true
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, re := range f.skip {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// Followed reports whether rawURL matches a follow pattern.
func (f *Filter) Followed(rawURL string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, re := range f.follow {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// ShouldSkip checks rawURL against the default skip list and the optional
// hints. Invalid hint patterns are ignored.
func ShouldSkip(rawURL string, hints *models.CrawlHints) bool {
	f := &Filter{skip: append([]*regexp.Regexp(nil), compiledDefaults...)}
	if hints != nil {
		_ = f.Extend(models.CrawlHints{SkipPatterns: validPatterns(hints.SkipPatterns)})
	}
	return f.ShouldSkip(rawURL)
}

func validPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func hasBinaryExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	_, ok := binaryExtensions[ext]
	return ok
}
