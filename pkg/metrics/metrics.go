// Package metrics defines the contract for third-party keyword and ranking
// data and a fallback that estimates values when a provider fails.
package metrics

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"math"
	"strings"

	"github.com/dtnitsch/seo-pipeline/models"
)

// ErrNoProvider is returned by Unavailable.
var ErrNoProvider = errors.New("no metrics provider configured")

// KeywordProvider returns search volume and difficulty for keywords.
type KeywordProvider interface {
	KeywordMetrics(ctx context.Context, keywords []string) ([]models.KeywordMetrics, error)
}

// RankProvider returns the SERP position of domain for keywords.
type RankProvider interface {
	Rankings(ctx context.Context, domain string, keywords []string) ([]models.Rankings, error)
}

// Unavailable is the provider used when none is configured. Every call fails,
// so a Fallback around it always estimates.
type Unavailable struct{}

func (Unavailable) KeywordMetrics(context.Context, []string) ([]models.KeywordMetrics, error) {
	return nil, ErrNoProvider
}

func (Unavailable) Rankings(context.Context, string, []string) ([]models.Rankings, error) {
	return nil, ErrNoProvider
}

// Fallback serves provider data and substitutes estimates, marked
// Estimated, when the provider errors or returns fewer rows than asked for.
type Fallback struct {
	keywords KeywordProvider
	ranks    RankProvider
	logger   *slog.Logger
}

// WithFallback wraps the given providers. Nil providers count as Unavailable.
func WithFallback(kp KeywordProvider, rp RankProvider, logger *slog.Logger) *Fallback {
	if kp == nil {
		kp = Unavailable{}
	}
	if rp == nil {
		rp = Unavailable{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fallback{keywords: kp, ranks: rp, logger: logger}
}

// KeywordMetrics never fails; missing rows are estimated. Results follow
// the order of keywords.
func (f *Fallback) KeywordMetrics(ctx context.Context, keywords []string) ([]models.KeywordMetrics, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	byKeyword := map[string]models.KeywordMetrics{}
	rows, err := f.keywords.KeywordMetrics(ctx, keywords)
	if err != nil && !errors.Is(err, ErrNoProvider) {
		f.logger.Warn("Keyword provider failed, using estimates", "error", err)
	}
	for _, r := range rows {
		byKeyword[normalize(r.Keyword)] = r
	}

	out := make([]models.KeywordMetrics, 0, len(keywords))
	for _, kw := range keywords {
		if r, ok := byKeyword[normalize(kw)]; ok && err == nil {
			out = append(out, r)
			continue
		}
		out = append(out, EstimateKeyword(kw))
	}
	return out, nil
}

// Rankings fails only when ctx is done; missing rows are reported as not
// ranked and marked Estimated.
func (f *Fallback) Rankings(ctx context.Context, domain string, keywords []string) ([]models.Rankings, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	byKeyword := map[string]models.Rankings{}
	rows, err := f.ranks.Rankings(ctx, domain, keywords)
	if err != nil && !errors.Is(err, ErrNoProvider) {
		f.logger.Warn("Rank provider failed, using estimates", "domain", domain, "error", err)
	}
	for _, r := range rows {
		byKeyword[normalize(r.Keyword)] = r
	}

	out := make([]models.Rankings, 0, len(keywords))
	for _, kw := range keywords {
		if r, ok := byKeyword[normalize(kw)]; ok && err == nil {
			out = append(out, r)
			continue
		}
		out = append(out, models.Rankings{Keyword: kw, Estimated: true})
	}
	return out, nil
}

// EstimateKeyword derives stable placeholder metrics from the keyword text.
// Longer phrases get lower volume and difficulty, as long-tail queries do.
func EstimateKeyword(keyword string) models.KeywordMetrics {
	words := max(1, len(strings.Fields(keyword)))
	h := fnv.New32a()
	h.Write([]byte(normalize(keyword)))
	jitter := float64(h.Sum32()%1000) / 1000 // [0,1)

	volume := int(math.Round(5000 / math.Pow(4, float64(words-1)) * (0.5 + jitter)))
	difficulty := math.Round(max(5, 80-15*float64(words-1)-20*jitter)*100) / 100
	cpc := math.Round((0.2+2*jitter)*100) / 100
	return models.KeywordMetrics{
		Keyword:    keyword,
		Volume:     volume,
		Difficulty: difficulty,
		CPC:        cpc,
		Estimated:  true,
	}
}

func normalize(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), " ")
}

var (
	_ KeywordProvider = (*Fallback)(nil)
	_ RankProvider    = (*Fallback)(nil)
)
