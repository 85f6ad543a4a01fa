package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/seo-pipeline/internal/common"
)

const timeLayout = "2006-01-02 15:04:05"

// RunsAction lists recent crawl runs.
func RunsAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	runs, err := env.Store.ListCrawlRuns(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	if c.String("format") != "table" {
		return common.Output(c, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(c.App.Writer, "No crawl runs found")
		return nil
	}

	tbl := common.NewTable("ID", "STARTED", "JOB", "PAGES", "DUPES", "FAILED", "SKIPPED", "PLATFORM", "SEED")
	for _, r := range runs {
		job := r.JobID
		if job == "" {
			job = "(manual)"
		}
		tbl.Row(strconv.FormatInt(r.RunID, 10), r.StartedAt.Local().Format(timeLayout), job,
			strconv.Itoa(r.PageCount), strconv.Itoa(r.DuplicateCount), strconv.Itoa(r.FailedCount),
			strconv.Itoa(r.SkippedCount), r.Platform, r.Seed)
	}
	if err := tbl.Write(c.App.Writer); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nTotal: %d runs\n", len(runs))
	fmt.Fprintf(c.App.Writer, "\nTip: Use 'seo-pipeline db run <id>' to see failures\n")
	return nil
}

// RunAction shows the failures recorded for one run, or the latest run.
func RunAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	runID, err := RunIDOrLatest(c, env.Store)
	if err != nil {
		return err
	}
	failures, err := env.Store.CrawlFailures(c.Context, runID)
	if err != nil {
		return err
	}
	if c.String("format") != "table" {
		return common.Output(c, map[string]any{"run_id": runID, "failures": failures})
	}

	fmt.Fprintf(c.App.Writer, "Run %d\n", runID)
	fmt.Fprintln(c.App.Writer, strings.Repeat("=", 60))
	if len(failures) == 0 {
		fmt.Fprintln(c.App.Writer, "No failures recorded")
		return nil
	}
	for i, f := range failures {
		fmt.Fprintf(c.App.Writer, "%2d. [%s] %s\n", i+1, f.Kind, f.URL)
		fmt.Fprintf(c.App.Writer, "    %s\n", f.Error)
	}
	return nil
}

// PagesAction lists stored page snapshots, optionally for one domain.
func PagesAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	pages, err := env.Store.ListPages(c.Context, c.String("domain"))
	if err != nil {
		return err
	}
	if c.String("format") != "table" {
		return common.Output(c, pages)
	}

	tbl := common.NewTable("FETCHED", "STATUS", "WORDS", "LOAD", "URL", "TITLE")
	for _, p := range pages {
		tbl.Row(p.FetchedAt.Local().Format(timeLayout), strconv.Itoa(p.StatusCode), strconv.Itoa(p.Signals.WordCount),
			fmt.Sprintf("%dms", p.LoadTimeMs), p.URL, p.Signals.Title)
	}
	if err := tbl.Write(c.App.Writer); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nTotal: %d pages\n", tbl.Len())
	return nil
}
