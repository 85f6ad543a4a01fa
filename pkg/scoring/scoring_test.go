package scoring

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
)

var fixed = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, weights map[models.Category]float64) *Engine {
	t.Helper()
	e := NewEngine(weights, nil, nil)
	e.now = func() time.Time { return fixed }
	return e
}

func richPage() string {
	var body strings.Builder
	topics := []string{"crawl depth", "canonical tags", "internal links", "page speed", "structured data", "image alt text"}
	for i := 0; i < 36; i++ {
		topic := topics[i%len(topics)]
		fmt.Fprintf(&body, "<p>Section %d explains how %s affects rankings and what to change first on a typical site.", i, topic)
		if i%6 == 0 {
			body.WriteString(" A regular seo audit keeps these problems visible.")
		}
		body.WriteString("</p>\n")
	}
	return `<!DOCTYPE html>
<html lang="en">
<head>
<title>SEO audit checklist: fix crawl and content issues</title>
<meta name="description" content="A practical seo audit checklist covering crawl depth, canonical tags, internal links, page speed and structured data.">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta property="og:title" content="SEO audit checklist">
<link rel="canonical" href="https://example.com/seo-audit">
<script type="application/ld+json">{"@context":"https://schema.org","@type":"Article","headline":"SEO audit checklist"}</script>
</head>
<body>
<article>
<h1>The SEO audit checklist</h1>
<h2>Crawl health</h2>
<h3>Depth</h3>
<h2>Content</h2>
` + body.String() + `
<img src="/img/crawl.png" alt="Crawl depth diagram for a small site">
<img src="/img/links.png" alt="Internal link graph">
<p><a href="/guides/crawl">Crawl budget guide</a> <a href="/guides/canonical">Canonical tag guide</a>
<a href="/guides/links">Internal linking guide</a> <a href="/guides/speed">Page speed guide</a>
<a href="/guides/schema">Structured data guide</a> <a href="https://developers.google.com/search">Google search docs</a></p>
</article>
</body>
</html>`
}

const poorPage = `<html><head><title>Hi</title></head><body>
<h1>Welcome</h1><h1>Hello</h1>
<p>Sign up for the newsletter. The report was written by the team.</p>
<img src="/a.png"><img src="/b.png" alt="b.png">
<a href="https://other.example.org/">click here</a>
</body></html>`

func TestEmptyOrMalformedHTMLScoresZero(t *testing.T) {
	e := newEngine(t, nil)
	inputs := map[string]string{
		"empty":       "",
		"whitespace":  "   \n\t ",
		"unclosed":    "<html><head></head><body></body",
		"tags only":   "<div><span></div></p></span>",
		"bare script": "<script>var x = 1;</script>",
	}
	for name, html := range inputs {
		t.Run(name, func(t *testing.T) {
			res := e.AnalyzeHTML(context.Background(), html, "https://example.com/", Target{})
			if res == nil {
				t.Fatal("AnalyzeHTML() returned nil")
			}
			if res.Overall != 0 || res.Error == "" {
				t.Errorf("AnalyzeHTML() = overall %v error %q, want default result", res.Overall, res.Error)
			}
			for cat, cr := range res.Scores {
				if cr.Score != 0 {
					t.Errorf("%s score = %v, want 0", cat, cr.Score)
				}
			}
		})
	}

	if res := e.Analyze(context.Background(), nil, Target{}); res.Overall != 0 || res.Error == "" {
		t.Errorf("Analyze(nil) = %+v", res)
	}
}

func TestAnalyzeRanksPages(t *testing.T) {
	e := newEngine(t, nil)
	target := Target{Keywords: []string{"seo audit"}}

	good := e.AnalyzeHTML(context.Background(), richPage(), "https://example.com/seo-audit", target)
	poor := e.AnalyzeHTML(context.Background(), poorPage, "https://example.com/", target)

	for _, res := range []*models.AnalysisResult{good, poor} {
		if res.Error != "" {
			t.Fatalf("AnalyzeHTML() error marker %q", res.Error)
		}
		if len(res.Scores) != len(models.Categories) {
			t.Errorf("got %d category scores, want %d", len(res.Scores), len(models.Categories))
		}
		for cat, cr := range res.Scores {
			if cr.Score < 0 || cr.Score > 100 || cr.Failed {
				t.Errorf("%s = %+v", cat, cr)
			}
			for k, v := range cr.Subscores {
				if v < 0 || v > 100 {
					t.Errorf("%s.%s = %v", cat, k, v)
				}
			}
		}
		if res.Overall < 0 || res.Overall > 100 {
			t.Errorf("Overall = %v", res.Overall)
		}
		if len(res.Keywords) != 1 || !res.Keywords[0].Estimated {
			t.Errorf("Keywords = %+v, want one estimate", res.Keywords)
		}
	}

	if good.Overall <= poor.Overall {
		t.Errorf("rich page overall %v <= poor page overall %v", good.Overall, poor.Overall)
	}
	if g, p := good.Scores[models.CategoryTechnical].Score, poor.Scores[models.CategoryTechnical].Score; g <= p {
		t.Errorf("technical: rich %v <= poor %v", g, p)
	}
	if g, p := good.Scores[models.CategoryImages].Score, poor.Scores[models.CategoryImages].Score; g <= p {
		t.Errorf("images: rich %v <= poor %v", g, p)
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	e := newEngine(t, nil)
	target := Target{Keywords: []string{"seo audit", "crawl depth"}}
	a := e.AnalyzeHTML(context.Background(), richPage(), "https://example.com/seo-audit", target)
	b := e.AnalyzeHTML(context.Background(), richPage(), "https://example.com/seo-audit", target)
	if !reflect.DeepEqual(a, b) {
		t.Error("AnalyzeHTML() differs between identical calls")
	}
}

func TestOverall(t *testing.T) {
	scores := map[models.Category]models.CategoryResult{
		models.CategoryContent:   {Score: 100},
		models.CategoryTechnical: {Score: 0},
	}
	tests := []struct {
		name    string
		weights map[models.Category]float64
		want    float64
	}{
		{"weighted", map[models.Category]float64{models.CategoryContent: 3, models.CategoryTechnical: 1}, 75},
		{"missing category ignored", map[models.Category]float64{models.CategoryContent: 1, models.CategoryImages: 5}, 100},
		{"all zero falls back to mean", map[models.Category]float64{}, 50},
		{"negative weight ignored", map[models.Category]float64{models.CategoryContent: -1, models.CategoryTechnical: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(scores, tt.weights); got != tt.want {
				t.Errorf("Overall() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeightsChangeOverall(t *testing.T) {
	contentOnly := newEngine(t, map[models.Category]float64{models.CategoryContent: 1})
	imagesOnly := newEngine(t, map[models.Category]float64{models.CategoryImages: 1})

	a := contentOnly.AnalyzeHTML(context.Background(), poorPage, "https://example.com/", Target{})
	b := imagesOnly.AnalyzeHTML(context.Background(), poorPage, "https://example.com/", Target{})
	if a.Overall != a.Scores[models.CategoryContent].Score {
		t.Errorf("content-only overall %v != content score %v", a.Overall, a.Scores[models.CategoryContent].Score)
	}
	if b.Overall != b.Scores[models.CategoryImages].Score {
		t.Errorf("images-only overall %v != images score %v", b.Overall, b.Scores[models.CategoryImages].Score)
	}
}

func TestAnalyzerPanicIsContained(t *testing.T) {
	e := newEngine(t, nil)
	e.analyzers[models.CategoryLinks] = func(models.Signals, Target) models.CategoryResult {
		var m map[string]float64
		m["boom"] = 1
		return models.CategoryResult{}
	}

	res := e.AnalyzeHTML(context.Background(), poorPage, "https://example.com/", Target{})
	links := res.Scores[models.CategoryLinks]
	if !links.Failed || links.Score != 0 || len(links.Issues) != 1 || links.Issues[0].Code != IssueAnalyzerFailed {
		t.Errorf("links result = %+v, want failed default", links)
	}
	if res.Scores[models.CategoryContent].Failed {
		t.Error("content analyzer marked failed")
	}
	if res.Overall < 0 || res.Overall > 100 {
		t.Errorf("Overall = %v", res.Overall)
	}
}

func TestAnnotate(t *testing.T) {
	sig := models.Signals{
		Title:     "Site health checklist",
		H1:        []string{"SEO audit guide"},
		Text:      "The report was written by our analysts. Reports are reviewed weekly. Sign up for the newsletter.",
		WordCount: 17,
		Images:    []models.Image{{Src: "/a.png"}, {Src: "/b.png", Alt: "Chart"}},
	}
	recs := Annotate(sig, Target{Keywords: []string{"seo audit"}})

	got := map[string]models.Recommendation{}
	for _, r := range recs {
		got[r.Code] = r
	}
	for _, code := range []string{
		"keyword_missing_title",
		"missing_meta_description",
		"thin_content",
		"passive_voice",
		"cta_no_urgency",
		"missing_alt",
		"no_internal_links",
		"missing_canonical",
	} {
		if _, ok := got[code]; !ok {
			t.Errorf("Annotate() missing %s; got %v", code, recs)
		}
	}
	if _, ok := got["keyword_missing_h1"]; ok {
		t.Error("keyword_missing_h1 raised although the h1 contains the keyword")
	}
	if !strings.Contains(got["missing_alt"].Suggestion, "1 images") {
		t.Errorf("missing_alt suggestion = %q", got["missing_alt"].Suggestion)
	}

	for i := 1; i < len(recs); i++ {
		if priorityRank[recs[i-1].Priority] > priorityRank[recs[i].Priority] {
			t.Fatalf("recommendations out of priority order: %v", recs)
		}
	}

	urgent := sig
	urgent.Text += " Offer ends today."
	for _, r := range Annotate(urgent, Target{}) {
		if r.Code == "cta_no_urgency" {
			t.Error("cta_no_urgency raised for an urgent call to action")
		}
	}

	if !reflect.DeepEqual(recs, Annotate(sig, Target{Keywords: []string{"seo audit"}})) {
		t.Error("Annotate() is not deterministic")
	}
}
