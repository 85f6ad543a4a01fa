package models

import "time"

// CrawlTarget is a discovered URL waiting in the frontier.
type CrawlTarget struct {
	URL            string `json:"url" yaml:"url"`
	Depth          int    `json:"depth" yaml:"depth"`
	Domain         string `json:"domain" yaml:"domain"`
	DiscoveredFrom string `json:"discovered_from,omitempty" yaml:"discovered_from,omitempty"`
}

// CMSFingerprint classifies the platform a site runs on.
type CMSFingerprint struct {
	Platform   Platform   `json:"platform" yaml:"platform"`
	Confidence float64    `json:"confidence" yaml:"confidence"` // 0-1
	Evidence   []string   `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Hints      CrawlHints `json:"hints" yaml:"hints"`
}

// Platform is a detected CMS tag.
type Platform string

const (
	PlatformUnknown     Platform = "unknown"
	PlatformWordPress   Platform = "wordpress"
	PlatformShopify     Platform = "shopify"
	PlatformDrupal      Platform = "drupal"
	PlatformJoomla      Platform = "joomla"
	PlatformMagento     Platform = "magento"
	PlatformWix         Platform = "wix"
	PlatformSquarespace Platform = "squarespace"
	PlatformGhost       Platform = "ghost"
	PlatformWebflow     Platform = "webflow"
	PlatformHubSpot     Platform = "hubspot"
)

// CrawlHints are platform-specific frontier adjustments.
// Patterns are regular expressions matched against the full URL.
type CrawlHints struct {
	SkipPatterns   []string `json:"skip_patterns,omitempty" yaml:"skip_patterns,omitempty"`
	FollowPatterns []string `json:"follow_patterns,omitempty" yaml:"follow_patterns,omitempty"`
}

// PageFailure records one URL that could not be turned into a snapshot.
type PageFailure struct {
	URL   string `json:"url" yaml:"url"`
	Kind  string `json:"kind" yaml:"kind"` // timeout, network, http4xx, http5xx, store
	Error string `json:"error" yaml:"error"`
}

// CrawlResult summarizes one site crawl.
type CrawlResult struct {
	Seed       string          `json:"seed" yaml:"seed"`
	Pages      []PageSnapshot  `json:"-" yaml:"-"`
	PageURLs   []string        `json:"pages" yaml:"pages"`
	Failures   []PageFailure   `json:"failures,omitempty" yaml:"failures,omitempty"`
	Duplicates []string        `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Skipped    int             `json:"skipped" yaml:"skipped"`
	CMS        *CMSFingerprint `json:"cms,omitempty" yaml:"cms,omitempty"`
	StartedAt  time.Time       `json:"started_at" yaml:"started_at"`
	Duration   time.Duration   `json:"duration" yaml:"duration"`
}
