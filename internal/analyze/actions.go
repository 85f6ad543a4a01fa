package analyze

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/seo-pipeline/internal/common"
	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/analytics"
	"github.com/dtnitsch/seo-pipeline/pkg/db"
	"github.com/dtnitsch/seo-pipeline/pkg/frontier"
	"github.com/dtnitsch/seo-pipeline/pkg/scoring"
)

// AnalyzeAction fetches and scores each URL, storing every result. A URL
// that cannot be fetched is logged and the rest still run.
func AnalyzeAction(c *cli.Context) error {
	urls, err := common.URLArgs(c)
	if err != nil {
		return err
	}
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	target := scoring.Target{
		Keywords: common.SplitList(c.String("keywords")),
		MinWords: c.Int("min-words"),
	}

	var (
		results []*models.AnalysisResult
		failed  int
	)
	for _, u := range urls {
		a, err := env.Service.AnalyzeURL(c.Context, u, target)
		if err != nil {
			env.Logger.Error("Failed to analyze URL", "url", u, "error", err)
			failed++
			continue
		}
		results = append(results, a)
	}

	if c.String("format") == "table" {
		err = writeScores(c, results)
	} else {
		err = common.Output(c, results)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d URLs could not be analyzed", failed, len(urls))
	}
	return nil
}

func writeScores(c *cli.Context, results []*models.AnalysisResult) error {
	headers := []string{"URL", "OVERALL"}
	for _, cat := range models.Categories {
		headers = append(headers, string(cat))
	}
	tbl := common.NewTable(append(headers, "TOP RECOMMENDATION")...)
	for _, a := range results {
		row := []string{a.URL, strconv.FormatFloat(a.Overall, 'f', 1, 64)}
		for _, cat := range models.Categories {
			row = append(row, strconv.FormatFloat(a.Scores[cat].Score, 'f', 0, 64))
		}
		top := a.Error
		if len(a.Recommendations) > 0 {
			top = a.Recommendations[0].Suggestion
		}
		tbl.Row(append(row, top)...)
	}
	return tbl.Write(c.App.Writer)
}

// ShowAction prints the most recent stored analysis of a URL.
func ShowAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("url is required")
	}
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	u, err := frontier.Normalize(c.Args().First(), nil)
	if err != nil {
		return err
	}
	a, err := env.Store.LatestAnalysis(c.Context, u)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("no analysis stored for %s; run 'seo-pipeline analyze %s' first", u, u)
	}
	if err != nil {
		return err
	}
	return common.Output(c, a)
}

// KeywordReport is the keyword breakdown of one stored page.
type KeywordReport struct {
	URL     string                   `json:"url" yaml:"url"`
	Words   int                      `json:"words" yaml:"words"`
	Top     []analytics.KeywordCount `json:"top" yaml:"top"`
	Density map[string]float64       `json:"density,omitempty" yaml:"density,omitempty"`
}

// KeywordsAction lists the most frequent words of crawled pages, merged
// across every page of --domain or for the single URL given.
func KeywordsAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	var pages []*models.PageSnapshot
	switch {
	case c.NArg() > 0:
		u, err := frontier.Normalize(c.Args().First(), nil)
		if err != nil {
			return err
		}
		p, err := env.Store.GetPage(c.Context, u)
		if err != nil {
			return fmt.Errorf("failed to load page %s: %w", u, err)
		}
		pages = append(pages, p)
	case c.IsSet("domain"):
		pages, err = env.Store.ListPages(c.Context, c.String("domain"))
		if err != nil {
			return err
		}
	default:
		return errors.New("a url or --domain is required")
	}
	if len(pages) == 0 {
		return errors.New("no crawled pages found")
	}

	report := KeywordReport{URL: pages[0].URL}
	if len(pages) > 1 {
		report.URL = c.String("domain")
	}
	counts := make([]map[string]int, 0, len(pages))
	var text strings.Builder
	for _, p := range pages {
		counts = append(counts, analytics.WordFrequency(p.Signals.Text))
		report.Words += p.Signals.WordCount
		text.WriteString(p.Signals.Text)
		text.WriteByte('\n')
	}
	report.Top = analytics.TopKeywords(analytics.Merge(counts...), c.Int("top"))

	if kws := common.SplitList(c.String("keywords")); len(kws) > 0 {
		report.Density = make(map[string]float64, len(kws))
		for _, k := range kws {
			report.Density[k] = analytics.Density(text.String(), k)
		}
	}
	return common.Output(c, report)
}
