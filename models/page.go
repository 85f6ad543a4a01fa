package models

import "time"

// PageSnapshot is the persisted result of one successful fetch of a URL.
// A later successful fetch of the same normalized URL supersedes it.
type PageSnapshot struct {
	URL         string    `json:"url" yaml:"url"`
	Domain      string    `json:"domain" yaml:"domain"`
	ContentHash string    `json:"content_hash" yaml:"content_hash"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	Signals     Signals   `json:"signals" yaml:"signals"`
	StatusCode  int       `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	LoadTimeMs  int64     `json:"load_time_ms" yaml:"load_time_ms"`
	FetchedAt   time.Time `json:"fetched_at" yaml:"fetched_at"`
	JobID       string    `json:"job_id,omitempty" yaml:"job_id,omitempty"`
}

// Signals holds everything the extractor pulls out of one HTML document.
type Signals struct {
	Title           string   `json:"title"`
	MetaDescription string   `json:"meta_description,omitempty"`
	MetaKeywords    []string `json:"meta_keywords,omitempty"`
	MetaRobots      string   `json:"meta_robots,omitempty"`
	Viewport        string   `json:"viewport,omitempty"`
	Generator       string   `json:"generator,omitempty"`
	Canonical       string   `json:"canonical,omitempty"`
	HTMLLang        string   `json:"html_lang,omitempty"`

	OpenGraph map[string]string `json:"open_graph,omitempty"`
	Twitter   map[string]string `json:"twitter,omitempty"`

	H1 []string `json:"h1,omitempty"`
	H2 []string `json:"h2,omitempty"`
	H3 []string `json:"h3,omitempty"`

	StructuredData []StructuredDataBlock `json:"structured_data,omitempty"`

	InternalLinks []Link   `json:"internal_links,omitempty"`
	ExternalLinks []Link   `json:"external_links,omitempty"`
	Images        []Image  `json:"images,omitempty"`
	Assets        []string `json:"assets,omitempty"` // script and stylesheet URLs

	Text            string  `json:"text,omitempty"`
	WordCount       int     `json:"word_count"`
	ReadingTimeMin  float64 `json:"reading_time_min"`
	TextToHTMLRatio float64 `json:"text_to_html_ratio"`

	// Language detection (lingua), falls back to the html lang attribute
	Language           string  `json:"language,omitempty"`
	LanguageConfidence float64 `json:"language_confidence,omitempty"`

	// Readability enrichment
	Author   string `json:"author,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`
	SiteName string `json:"site_name,omitempty"`

	// Best-effort extraction notes (invalid JSON-LD, unparsable hrefs).
	Warnings []string `json:"warnings,omitempty"`
}

// IsEmpty reports whether the extractor found nothing worth scoring.
func (s *Signals) IsEmpty() bool {
	return s.Title == "" && s.WordCount == 0 && len(s.H1) == 0 && s.MetaDescription == ""
}

// StructuredDataBlock is one parsed machine-readable metadata block.
type StructuredDataBlock struct {
	Format string   `json:"format"` // json-ld, microdata
	Types  []string `json:"types"`
	Fields []string `json:"fields,omitempty"` // sorted top-level property names
}

// Link is a deduplicated anchor target.
type Link struct {
	URL      string `json:"url"`
	Text     string `json:"text,omitempty"`
	NoFollow bool   `json:"nofollow,omitempty"`
}

// Image is an <img> element with its accessibility attributes.
type Image struct {
	Src   string `json:"src"`
	Alt   string `json:"alt,omitempty"`
	Title string `json:"title,omitempty"`
}

// FetchResult is the raw outcome of rendering one URL.
type FetchResult struct {
	URL         string            `json:"url"`
	FinalURL    string            `json:"final_url"`
	HTML        string            `json:"-"`
	StatusCode  int               `json:"status_code"`
	LoadTimeMs  int64             `json:"load_time_ms"`
	CookieNames []string          `json:"cookie_names,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}
