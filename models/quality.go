package models

import "time"

// RecordType discriminates stored content records.
type RecordType string

const (
	RecordNews       RecordType = "news"
	RecordSEO        RecordType = "seo"
	RecordCompetitor RecordType = "competitor"
)

// Record is a stored content record. Exactly one payload matches Type.
type Record struct {
	ID        int64      `json:"id" yaml:"id"`
	Type      RecordType `json:"type" yaml:"type"`
	URL       string     `json:"url" yaml:"url"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"updated_at"`

	News       *NewsPayload       `json:"news,omitempty" yaml:"news,omitempty"`
	SEO        *SEOPayload        `json:"seo,omitempty" yaml:"seo,omitempty"`
	Competitor *CompetitorPayload `json:"competitor,omitempty" yaml:"competitor,omitempty"`
}

// NewsPayload is an ingested news article.
type NewsPayload struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Content     string    `json:"content"`
	Source      string    `json:"source,omitempty"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// SEOPayload is a stored analysis of one of our own pages.
type SEOPayload struct {
	Title        string             `json:"title,omitempty"`
	OverallScore float64            `json:"overall_score"`
	Scores       map[string]float64 `json:"scores,omitempty"`
	WordCount    int                `json:"word_count"`
	Keywords     []string           `json:"keywords,omitempty"`
}

// CompetitorPayload is a stored observation of a competitor page.
type CompetitorPayload struct {
	Domain       string         `json:"domain"`
	Title        string         `json:"title,omitempty"`
	OverallScore float64        `json:"overall_score"`
	WordCount    int            `json:"word_count"`
	Rankings     map[string]int `json:"rankings,omitempty"` // keyword -> position
}

// Severity grades a quality issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// QualityIssue describes one class of data problem.
type QualityIssue struct {
	Code     string   `json:"code" yaml:"code"`
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Affected int      `json:"affected" yaml:"affected"`
	Share    float64  `json:"share" yaml:"share"` // affected / total
}

// QualityReport is regenerated from scratch on every validator run.
type QualityReport struct {
	GeneratedAt      time.Time      `json:"generated_at" yaml:"generated_at"`
	TotalRecords     int            `json:"total_records" yaml:"total_records"`
	ValidRecords     int            `json:"valid_records" yaml:"valid_records"`
	InvalidRecords   int            `json:"invalid_records" yaml:"invalid_records"`
	DuplicateRecords int            `json:"duplicate_records" yaml:"duplicate_records"`
	StaleRecords     int            `json:"stale_records" yaml:"stale_records"`
	SampleSize       int            `json:"sample_size" yaml:"sample_size"`
	QualityScore     float64        `json:"quality_score" yaml:"quality_score"`
	Issues           []QualityIssue `json:"issues" yaml:"issues"`
}
