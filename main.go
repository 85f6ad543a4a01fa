package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/seo-pipeline/internal/analyze"
	"github.com/dtnitsch/seo-pipeline/internal/crawl"
	"github.com/dtnitsch/seo-pipeline/internal/db"
	"github.com/dtnitsch/seo-pipeline/internal/jobs"
	"github.com/dtnitsch/seo-pipeline/internal/quality"
	"github.com/dtnitsch/seo-pipeline/internal/schedule"
)

func formatFlag(def string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   def,
		Usage:   "Output format: table, yaml or json",
	}
}

func limitFlag(def int) *cli.IntFlag {
	return &cli.IntFlag{
		Name:  "limit",
		Value: def,
		Usage: "Maximum number of rows",
	}
}

func keywordsFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "keywords",
		Aliases: []string{"k"},
		Usage:   "Comma-separated target keywords",
	}
}

func urlsFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "urls",
		Usage: "Comma-separated URLs (positional arguments also accepted)",
	}
}

func main() {
	app := &cli.App{
		Name:  "seo-pipeline",
		Usage: "Crawl sites, score pages for SEO and run scheduled content jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config (default: ./config.yaml when present)",
				EnvVars: []string{"SEO_PIPELINE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "SQLite database path (overrides database.path)",
				EnvVars: []string{"SEO_PIPELINE_DB"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only log errors",
			},
			&cli.BoolFlag{
				Name:  "no-render",
				Usage: "Fetch with plain HTTP instead of a headless browser",
			},
			&cli.StringFlag{
				Name:  "browser-url",
				Usage: "DevTools endpoint of an already running browser",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "crawl",
				Usage:     "Crawl one or more sites and store their pages",
				ArgsUsage: "[url...]",
				Flags: []cli.Flag{
					urlsFlag(),
					keywordsFlag(),
					&cli.BoolFlag{Name: "analyze", Aliases: []string{"a"}, Usage: "Score every stored page"},
					formatFlag("table"),
				},
				Action: crawl.CrawlAction,
			},
			{
				Name:      "analyze",
				Usage:     "Fetch and score pages",
				ArgsUsage: "[url...]",
				Flags: []cli.Flag{
					urlsFlag(),
					keywordsFlag(),
					&cli.IntFlag{Name: "min-words", Usage: "Word count below which content is thin (default 300)"},
					formatFlag("table"),
				},
				Action: analyze.AnalyzeAction,
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "Print the latest stored analysis of a URL",
						ArgsUsage: "<url>",
						Flags:     []cli.Flag{formatFlag("yaml")},
						Action:    analyze.ShowAction,
					},
					{
						Name:      "keywords",
						Usage:     "Top words of a crawled page or domain",
						ArgsUsage: "[url]",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "domain", Usage: "Merge every page of this domain"},
							&cli.IntFlag{Name: "top", Value: 25, Usage: "Number of words to list"},
							keywordsFlag(),
							formatFlag("yaml"),
						},
						Action: analyze.KeywordsAction,
					},
				},
			},
			{
				Name:  "schedule",
				Usage: "Run the job scheduler",
				Subcommands: []*cli.Command{
					{
						Name:   "run",
						Usage:  "Start the scheduler and run until interrupted",
						Flags:  []cli.Flag{formatFlag("yaml")},
						Action: schedule.RunAction,
					},
					{
						Name:   "health",
						Usage:  "Check the database and look for stuck runs",
						Flags:  []cli.Flag{formatFlag("yaml")},
						Action: schedule.HealthAction,
					},
				},
			},
			{
				Name:  "jobs",
				Usage: "Inspect and control scheduled jobs",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List registered jobs",
						Flags:  []cli.Flag{formatFlag("table")},
						Action: jobs.ListAction,
					},
					{
						Name:      "trigger",
						Usage:     "Run a job now and wait for it",
						ArgsUsage: "<job-id>",
						Action:    jobs.TriggerAction,
					},
					{
						Name:      "reactivate",
						Usage:     "Re-enable a deactivated job",
						ArgsUsage: "<job-id>",
						Action:    jobs.ReactivateAction,
					},
					{
						Name:      "history",
						Usage:     "List recent executions of a job",
						ArgsUsage: "<job-id>",
						Flags:     []cli.Flag{limitFlag(20), formatFlag("table")},
						Action:    jobs.HistoryAction,
					},
				},
			},
			{
				Name:  "quality",
				Usage: "Data quality reports and cleanup",
				Subcommands: []*cli.Command{
					{
						Name:   "report",
						Usage:  "Generate and store a fresh quality report",
						Flags:  []cli.Flag{formatFlag("table")},
						Action: quality.ReportAction,
					},
					{
						Name:   "issues",
						Usage:  "Show the issues from the last report",
						Flags:  []cli.Flag{formatFlag("table")},
						Action: quality.IssuesAction,
					},
					{
						Name:   "cleanup",
						Usage:  "Delete records superseded by a newer record for the same URL",
						Action: quality.CleanupAction,
					},
				},
			},
			{
				Name:  "db",
				Usage: "Browse stored crawl data",
				Subcommands: []*cli.Command{
					{
						Name:   "runs",
						Usage:  "List recent crawl runs",
						Flags:  []cli.Flag{limitFlag(20), formatFlag("table")},
						Action: db.RunsAction,
					},
					{
						Name:      "run",
						Usage:     "Show failures of a crawl run (default: latest)",
						ArgsUsage: "[run-id]",
						Flags:     []cli.Flag{formatFlag("table")},
						Action:    db.RunAction,
					},
					{
						Name:  "pages",
						Usage: "List stored pages",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "domain", Usage: "Only pages of this domain"},
							formatFlag("table"),
						},
						Action: db.PagesAction,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
