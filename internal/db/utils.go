package db

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	dbpkg "github.com/dtnitsch/seo-pipeline/pkg/db"
)

// RunIDOrLatest returns the run id from args, or the latest run if not provided.
func RunIDOrLatest(c *cli.Context, database *dbpkg.DB) (int64, error) {
	if c.NArg() == 0 {
		runs, err := database.ListCrawlRuns(c.Context, 1)
		if err != nil {
			return 0, fmt.Errorf("failed to get latest run: %w", err)
		}
		if len(runs) == 0 {
			return 0, errors.New("no crawl runs found. Run 'seo-pipeline crawl <url>' first")
		}
		return runs[0].RunID, nil
	}

	runID, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid run ID: %s", c.Args().First())
	}
	return runID, nil
}
