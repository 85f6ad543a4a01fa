// Package scoring turns extracted page signals into category scores, a
// weighted overall score and rule-based recommendations.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/metrics"
	"github.com/dtnitsch/seo-pipeline/pkg/parser"
)

// IssueAnalyzerFailed marks a category whose analyzer panicked.
const IssueAnalyzerFailed = "analyzer_failed"

// DefaultMinWords is the word count below which content counts as thin.
const DefaultMinWords = 300

// Target is the per-analysis configuration: what the page should rank for.
type Target struct {
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	MinWords int      `json:"min_words,omitempty" yaml:"min_words,omitempty"`
}

func (t Target) minWords() int {
	if t.MinWords > 0 {
		return t.MinWords
	}
	return DefaultMinWords
}

// Analyzer scores one category. Analyzers are pure.
type Analyzer func(models.Signals, Target) models.CategoryResult

// Analyzers returns the built-in analyzer for every category.
func Analyzers() map[models.Category]Analyzer {
	return map[models.Category]Analyzer{
		models.CategoryContent:   analyzeContent,
		models.CategoryTechnical: analyzeTechnical,
		models.CategoryKeyword:   analyzeKeyword,
		models.CategoryLinks:     analyzeLinks,
		models.CategoryImages:    analyzeImages,
	}
}

// Engine runs the analyzers and combines their scores.
type Engine struct {
	weights   map[models.Category]float64
	analyzers map[models.Category]Analyzer
	metrics   metrics.KeywordProvider
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine returns an Engine. An empty weight table uses
// models.DefaultWeights; a nil provider estimates every keyword.
func NewEngine(weights map[models.Category]float64, kp metrics.KeywordProvider, logger *slog.Logger) *Engine {
	if len(weights) == 0 {
		weights = models.DefaultWeights()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if kp == nil {
		kp = metrics.WithFallback(nil, nil, logger)
	}
	return &Engine{
		weights:   weights,
		analyzers: Analyzers(),
		metrics:   kp,
		logger:    logger,
		now:       time.Now,
	}
}

// AnalyzeHTML extracts signals from html and analyzes them.
func (e *Engine) AnalyzeHTML(ctx context.Context, html, pageURL string, target Target) *models.AnalysisResult {
	return e.analyze(ctx, pageURL, parser.Extract(html, pageURL), target)
}

// Analyze scores a stored snapshot. It always returns a result; a snapshot
// with nothing extracted yields DefaultResult.
func (e *Engine) Analyze(ctx context.Context, page *models.PageSnapshot, target Target) *models.AnalysisResult {
	if page == nil {
		return DefaultResult("", "no page", e.now())
	}
	return e.analyze(ctx, page.URL, page.Signals, target)
}

func (e *Engine) analyze(ctx context.Context, pageURL string, sig models.Signals, target Target) *models.AnalysisResult {
	now := e.now()
	if sig.IsEmpty() {
		e.logger.Debug("Nothing to score", "url", pageURL)
		return DefaultResult(pageURL, "no content extracted", now)
	}

	result := &models.AnalysisResult{
		URL:       pageURL,
		Timestamp: now,
		Scores:    make(map[models.Category]models.CategoryResult, len(models.Categories)),
	}
	for _, cat := range models.Categories {
		fn, ok := e.analyzers[cat]
		if !ok {
			continue
		}
		res := e.run(cat, fn, sig, target)
		if res.Failed {
			e.logger.Error("Analyzer failed", "url", pageURL, "category", cat, "error", res.Issues[0].Message)
		}
		result.Scores[cat] = res
	}
	result.Overall = Overall(result.Scores, e.weights)
	result.Recommendations = Annotate(sig, target)

	if len(target.Keywords) > 0 {
		kws, err := e.metrics.KeywordMetrics(ctx, target.Keywords)
		if err != nil {
			e.logger.Warn("Failed to load keyword metrics", "url", pageURL, "error", err)
		}
		result.Keywords = kws
	}
	return result
}

// run calls fn, converting a panic into a failed zero-score result.
func (e *Engine) run(cat models.Category, fn Analyzer, sig models.Signals, target Target) (res models.CategoryResult) {
	defer func() {
		if r := recover(); r != nil {
			res = models.CategoryResult{
				Failed: true,
				Issues: []models.Issue{{
					Code:    IssueAnalyzerFailed,
					Message: fmt.Sprintf("%s analyzer panicked: %v", cat, r),
				}},
			}
		}
	}()
	res = fn(sig, target)
	res.Score = clamp(res.Score)
	for k, v := range res.Subscores {
		res.Subscores[k] = clamp(v)
	}
	return res
}

// DefaultResult is returned in place of an analysis that could not run.
func DefaultResult(pageURL, reason string, now time.Time) *models.AnalysisResult {
	scores := make(map[models.Category]models.CategoryResult, len(models.Categories))
	for _, cat := range models.Categories {
		scores[cat] = models.CategoryResult{Score: 0}
	}
	return &models.AnalysisResult{
		URL:             pageURL,
		Timestamp:       now,
		Scores:          scores,
		Overall:         0,
		Recommendations: []models.Recommendation{},
		Error:           reason,
	}
}

// Overall is the weighted mean of the category scores, clamped to 0-100.
// Categories without a positive weight are ignored; if no category has
// one, the plain mean is used.
func Overall(scores map[models.Category]models.CategoryResult, weights map[models.Category]float64) float64 {
	var sum, total float64
	for _, cat := range models.Categories {
		res, ok := scores[cat]
		if !ok {
			continue
		}
		if w := weights[cat]; w > 0 {
			sum += w * res.Score
			total += w
		}
	}
	if total == 0 {
		for _, res := range scores {
			sum += res.Score
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return round2(clamp(sum / total))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
