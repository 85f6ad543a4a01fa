package frontier

import (
	"errors"
	"net/url"
	"testing"

	"github.com/dtnitsch/seo-pipeline/models"
)

func TestNormalize(t *testing.T) {
	base, _ := url.Parse("https://Example.com/blog/post/")

	tests := []struct {
		name    string
		raw     string
		base    *url.URL
		want    string
		wantErr error
	}{
		{name: "lowercase host and scheme", raw: "HTTPS://EXAMPLE.com/Path", want: "https://example.com/Path"},
		{name: "default https port", raw: "https://example.com:443/a", want: "https://example.com/a"},
		{name: "default http port", raw: "http://example.com:80/a", want: "http://example.com/a"},
		{name: "custom port kept", raw: "http://example.com:8080/a", want: "http://example.com:8080/a"},
		{name: "fragment dropped", raw: "https://example.com/a#top", want: "https://example.com/a"},
		{name: "trailing slash stripped", raw: "https://example.com/a/b/", want: "https://example.com/a/b"},
		{name: "root keeps slash", raw: "https://example.com", want: "https://example.com/"},
		{name: "query sorted", raw: "https://example.com/s?b=2&a=1&a=0", want: "https://example.com/s?a=0&a=1&b=2"},
		{name: "empty query dropped", raw: "https://example.com/s?", want: "https://example.com/s"},
		{name: "semicolon query kept", raw: "http://example.com/p?a=1;b=2", want: "http://example.com/p?a=1;b=2"},
		{name: "escaped slash kept", raw: "https://example.com/a%2Fb/", want: "https://example.com/a%2Fb"},
		{name: "relative resolved", raw: "../other", base: base, want: "https://example.com/blog/other"},
		{name: "userinfo dropped", raw: "https://user:pw@example.com/", want: "https://example.com/"},
		{name: "mailto rejected", raw: "mailto:a@example.com", wantErr: ErrUnsupportedScheme},
		{name: "javascript rejected", raw: "javascript:void(0)", wantErr: ErrUnsupportedScheme},
		{name: "empty rejected", raw: "  ", wantErr: ErrEmptyURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, tt.base)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Normalize(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://Example.COM:443/a/b/?z=1&y=2#frag",
		"http://example.com",
		"http://[::1]:80/x/",
		"https://example.com/search?q=a+b&lang=en",
		"https://example.com/%7Euser/",
		"https://example.com/a//b/",
		"https://example.com/a%2Fb?x=1;y=2",
	}
	for _, raw := range inputs {
		once, err := Normalize(raw, nil)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", raw, err)
		}
		twice, err := Normalize(once, nil)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", raw, once, twice)
		}
	}
}

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/", false},
		{"https://example.com/blog/seo-basics", false},
		{"https://example.com/wp-admin/edit.php", true},
		{"https://example.com/login", true},
		{"https://example.com/cart", true},
		{"https://example.com/checkout/step-1", true},
		{"https://example.com/feed/", true},
		{"https://example.com/files/report.PDF", true},
		{"https://example.com/logo.png", true},
		{"https://example.com/post?replytocom=12", true},
		{"https://example.com/cartography", false},
	}

	f, err := NewFilter()
	if err != nil {
		t.Fatalf("NewFilter() error: %v", err)
	}
	for _, tt := range tests {
		if got := f.ShouldSkip(tt.url); got != tt.want {
			t.Errorf("ShouldSkip(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestFilterExtend(t *testing.T) {
	f, err := NewFilter()
	if err != nil {
		t.Fatalf("NewFilter() error: %v", err)
	}

	u := "https://shop.example.com/collections/all?sort_by=price"
	if f.ShouldSkip(u) {
		t.Fatalf("ShouldSkip(%q) = true before extension", u)
	}

	hints := models.CrawlHints{
		SkipPatterns:   []string{`[?&]sort_by=`},
		FollowPatterns: []string{`/products/`},
	}
	if err := f.Extend(hints); err != nil {
		t.Fatalf("Extend() error: %v", err)
	}
	if !f.ShouldSkip(u) {
		t.Errorf("ShouldSkip(%q) = false after extension", u)
	}
	if !f.Followed("https://shop.example.com/products/shoe") {
		t.Error("Followed() = false for follow pattern")
	}

	if err := f.Extend(models.CrawlHints{SkipPatterns: []string{"("}}); err == nil {
		t.Error("Extend() with invalid pattern should fail")
	}
}

func TestShouldSkipWithHints(t *testing.T) {
	hints := &models.CrawlHints{SkipPatterns: []string{"(", `/tag/`}}
	if !ShouldSkip("https://example.com/tag/go", hints) {
		t.Error("valid hint pattern was ignored")
	}
	if ShouldSkip("https://example.com/about", hints) {
		t.Error("invalid hint pattern should be ignored, not match")
	}
}

func TestPrioritize(t *testing.T) {
	targets := []models.CrawlTarget{
		{URL: "https://example.com/a/b/c", Depth: 1},
		{URL: "https://example.com/deep", Depth: 2},
		{URL: "https://example.com/x", Depth: 1},
		{URL: "https://example.com/", Depth: 0},
		{URL: "https://example.com/y", Depth: 1},
	}

	got := Prioritize(targets)
	want := []string{
		"https://example.com/",
		"https://example.com/x",
		"https://example.com/y",
		"https://example.com/a/b/c",
		"https://example.com/deep",
	}
	if len(got) != len(want) {
		t.Fatalf("Prioritize() returned %d targets, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].URL != want[i] {
			t.Errorf("Prioritize()[%d] = %q, want %q", i, got[i].URL, want[i])
		}
	}
	if targets[0].URL != "https://example.com/a/b/c" {
		t.Error("Prioritize() modified its input")
	}
}

func TestQueueOrder(t *testing.T) {
	f, _ := NewFilter()
	_ = f.Extend(models.CrawlHints{FollowPatterns: []string{`/products/`}})

	q := NewQueue(f)
	q.Push(models.CrawlTarget{URL: "https://example.com/about", Depth: 1})
	q.Push(models.CrawlTarget{URL: "https://example.com/products", Depth: 1})
	q.Push(models.CrawlTarget{URL: "https://example.com/products/", Depth: 1})
	q.Push(models.CrawlTarget{URL: "https://example.com/", Depth: 0})
	q.Push(models.CrawlTarget{URL: "https://example.com/products/shoe", Depth: 1})

	if q.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", q.Len())
	}

	var order []string
	for {
		tgt, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, tgt.URL)
	}
	want := []string{
		"https://example.com/",
		"https://example.com/products/",
		"https://example.com/about",
		"https://example.com/products",
		"https://example.com/products/shoe",
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("pop %d = %q, want %q", i, order[i], want[i])
		}
	}
}
