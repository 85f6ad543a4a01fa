package crawl

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/seo-pipeline/internal/common"
	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/scoring"
)

// Summary is the per-seed outcome printed by CrawlAction.
type Summary struct {
	Seed       string   `json:"seed" yaml:"seed"`
	Platform   string   `json:"platform,omitempty" yaml:"platform,omitempty"`
	Pages      []string `json:"pages" yaml:"pages"`
	Duplicates []string `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Failures   []string `json:"failures,omitempty" yaml:"failures,omitempty"`
	Skipped    int      `json:"skipped" yaml:"skipped"`
	DurationMs int64    `json:"duration_ms" yaml:"duration_ms"`
}

// CrawlAction crawls each seed once, outside the scheduler.
func CrawlAction(c *cli.Context) error {
	urls, err := common.URLArgs(c)
	if err != nil {
		return err
	}

	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	target := scoring.Target{Keywords: common.SplitList(c.String("keywords"))}
	results, err := env.Service.CrawlSite(c.Context, urls, target, c.Bool("analyze"))
	if err != nil {
		env.Logger.Warn("Crawl interrupted", "error", err)
	}

	summaries := make([]Summary, 0, len(results))
	for _, res := range results {
		if res != nil {
			summaries = append(summaries, summarize(res))
		}
	}

	if c.String("format") != "table" {
		return common.Output(c, summaries)
	}
	tbl := common.NewTable("SEED", "PLATFORM", "PAGES", "DUPES", "FAILED", "SKIPPED", "TIME")
	for _, s := range summaries {
		tbl.Row(s.Seed, s.Platform,
			strconv.Itoa(len(s.Pages)), strconv.Itoa(len(s.Duplicates)), strconv.Itoa(len(s.Failures)),
			strconv.Itoa(s.Skipped), (time.Duration(s.DurationMs) * time.Millisecond).String())
	}
	return tbl.Write(c.App.Writer)
}

func summarize(res *models.CrawlResult) Summary {
	s := Summary{
		Seed:       res.Seed,
		Pages:      res.PageURLs,
		Duplicates: res.Duplicates,
		Skipped:    res.Skipped,
		DurationMs: res.Duration.Milliseconds(),
	}
	if res.CMS != nil {
		s.Platform = string(res.CMS.Platform)
	}
	for _, f := range res.Failures {
		s.Failures = append(s.Failures, fmt.Sprintf("[%s] %s: %s", f.Kind, f.URL, f.Error))
	}
	return s
}
