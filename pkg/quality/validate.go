// Package quality validates stored content records and reports on the
// health of the store as a whole.
package quality

import (
	"fmt"
	"maps"
	"math"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
)

// ValidationError is one field-level problem with a record.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Limits on record fields.
const (
	MaxTitleLength     = 300
	MinNewsContentLen  = 50
	MaxRankingPosition = 100
	// futureTolerance absorbs clock skew between news sources and us.
	futureTolerance = 24 * time.Hour
)

// spamPhrases flag promotional junk. Two distinct hits mark a text as spam.
var spamPhrases = []string{
	"buy now",
	"click here",
	"100% free",
	"act now",
	"limited time offer",
	"make money fast",
	"work from home",
	"risk-free",
	"no credit check",
	"casino bonus",
	"miracle cure",
	"winner!",
}

// Validate checks rec as of time.Now.
func Validate(rec models.Record) []ValidationError {
	return ValidateAt(rec, time.Now())
}

// ValidateAt checks rec, dispatching on its type tag. It returns nil for a
// valid record.
func ValidateAt(rec models.Record, now time.Time) []ValidationError {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(rec.URL) == "" {
		add("url", "is required")
	} else if u, err := url.Parse(rec.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("url", "is not a valid http(s) url: %q", rec.URL)
	}
	if rec.UpdatedAt.IsZero() {
		add("updated_at", "is required")
	} else if !rec.CreatedAt.IsZero() && rec.UpdatedAt.Before(rec.CreatedAt) {
		add("updated_at", "precedes created_at")
	}

	switch rec.Type {
	case models.RecordNews:
		if rec.News == nil {
			add("news", "payload is missing")
			break
		}
		errs = append(errs, validateNews(rec.News, now)...)
	case models.RecordSEO:
		if rec.SEO == nil {
			add("seo", "payload is missing")
			break
		}
		errs = append(errs, validateSEO(rec.SEO)...)
	case models.RecordCompetitor:
		if rec.Competitor == nil {
			add("competitor", "payload is missing")
			break
		}
		errs = append(errs, validateCompetitor(rec.Competitor)...)
	default:
		add("type", "unknown record type %q", rec.Type)
	}
	return errs
}

func validateNews(p *models.NewsPayload, now time.Time) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateTitle("news.title", p.Title, true)...)

	content := strings.TrimSpace(p.Content)
	switch {
	case content == "":
		errs = append(errs, ValidationError{"news.content", "is required"})
	case len(content) < MinNewsContentLen:
		errs = append(errs, ValidationError{"news.content", fmt.Sprintf("is shorter than %d characters", MinNewsContentLen)})
	}
	if !p.PublishedAt.IsZero() && p.PublishedAt.After(now.Add(futureTolerance)) {
		errs = append(errs, ValidationError{"news.published_at", "is in the future"})
	}
	if hits := SpamHits(p.Title + " " + p.Content); len(hits) >= 2 {
		errs = append(errs, ValidationError{"news.content", "looks like spam: " + strings.Join(hits, ", ")})
	}
	return errs
}

func validateSEO(p *models.SEOPayload) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateTitle("seo.title", p.Title, false)...)
	errs = append(errs, validateScore("seo.overall_score", p.OverallScore)...)
	for _, k := range slices.Sorted(maps.Keys(p.Scores)) {
		errs = append(errs, validateScore("seo.scores."+k, p.Scores[k])...)
	}
	if p.WordCount < 0 {
		errs = append(errs, ValidationError{"seo.word_count", "must not be negative"})
	}
	return errs
}

func validateCompetitor(p *models.CompetitorPayload) []ValidationError {
	var errs []ValidationError
	domain := strings.TrimSpace(p.Domain)
	switch {
	case domain == "":
		errs = append(errs, ValidationError{"competitor.domain", "is required"})
	case strings.ContainsAny(domain, " /:") || !strings.Contains(domain, "."):
		errs = append(errs, ValidationError{"competitor.domain", fmt.Sprintf("is not a hostname: %q", domain)})
	}
	errs = append(errs, validateTitle("competitor.title", p.Title, false)...)
	errs = append(errs, validateScore("competitor.overall_score", p.OverallScore)...)
	if p.WordCount < 0 {
		errs = append(errs, ValidationError{"competitor.word_count", "must not be negative"})
	}
	for _, kw := range slices.Sorted(maps.Keys(p.Rankings)) {
		if pos := p.Rankings[kw]; pos < 1 || pos > MaxRankingPosition {
			errs = append(errs, ValidationError{"competitor.rankings." + kw, fmt.Sprintf("position %d outside 1-%d", pos, MaxRankingPosition)})
		}
	}
	return errs
}

func validateTitle(field, title string, required bool) []ValidationError {
	title = strings.TrimSpace(title)
	if title == "" {
		if required {
			return []ValidationError{{field, "is required"}}
		}
		return nil
	}
	if len(title) > MaxTitleLength {
		return []ValidationError{{field, fmt.Sprintf("is longer than %d characters", MaxTitleLength)}}
	}
	return nil
}

func validateScore(field string, v float64) []ValidationError {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return []ValidationError{{field, fmt.Sprintf("%v outside 0-100", v)}}
	}
	return nil
}

// SpamHits returns the distinct spam phrases found in text.
func SpamHits(text string) []string {
	lower := strings.ToLower(text)
	var hits []string
	for _, p := range spamPhrases {
		if strings.Contains(lower, p) {
			hits = append(hits, p)
		}
	}
	return hits
}
