package models

import "time"

// Category names one scoring dimension.
type Category string

const (
	CategoryContent   Category = "content"
	CategoryTechnical Category = "technical"
	CategoryKeyword   Category = "keyword"
	CategoryLinks     Category = "links"
	CategoryImages    Category = "images"
)

// Categories lists every category in report order.
var Categories = []Category{
	CategoryContent,
	CategoryTechnical,
	CategoryKeyword,
	CategoryLinks,
	CategoryImages,
}

// Issue is a problem found by one analyzer.
type Issue struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// CategoryResult is one analyzer's verdict.
type CategoryResult struct {
	Score     float64            `json:"score" yaml:"score"`
	Subscores map[string]float64 `json:"subscores,omitempty" yaml:"subscores,omitempty"`
	Issues    []Issue            `json:"issues,omitempty" yaml:"issues,omitempty"`
	Failed    bool               `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Recommendation is a human-readable suggestion tied to a detected issue.
type Recommendation struct {
	Code       string   `json:"code" yaml:"code"`
	Category   Category `json:"category" yaml:"category"`
	Priority   string   `json:"priority" yaml:"priority"` // high, medium, low
	Suggestion string   `json:"suggestion" yaml:"suggestion"`
}

// KeywordMetrics is search data for one keyword.
type KeywordMetrics struct {
	Keyword    string  `json:"keyword" yaml:"keyword"`
	Volume     int     `json:"volume" yaml:"volume"`
	Difficulty float64 `json:"difficulty" yaml:"difficulty"`
	CPC        float64 `json:"cpc" yaml:"cpc"`
	Estimated  bool    `json:"estimated,omitempty" yaml:"estimated,omitempty"`
}

// Rankings is the SERP position of a domain for one keyword.
type Rankings struct {
	Keyword             string         `json:"keyword" yaml:"keyword"`
	Position            int            `json:"position" yaml:"position"` // 0 = not ranked
	CompetitorPositions map[string]int `json:"competitor_positions,omitempty" yaml:"competitor_positions,omitempty"`
	Estimated           bool           `json:"estimated,omitempty" yaml:"estimated,omitempty"`
}

// AnalysisResult is produced by every scoring invocation.
type AnalysisResult struct {
	URL             string                      `json:"url" yaml:"url"`
	Timestamp       time.Time                   `json:"timestamp" yaml:"timestamp"`
	Scores          map[Category]CategoryResult `json:"scores" yaml:"scores"`
	Overall         float64                     `json:"overall" yaml:"overall"`
	Recommendations []Recommendation            `json:"recommendations" yaml:"recommendations"`
	Keywords        []KeywordMetrics            `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	// Error marks a default result produced instead of a real analysis.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
