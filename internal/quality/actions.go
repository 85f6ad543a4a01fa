package quality

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/seo-pipeline/internal/common"
	"github.com/dtnitsch/seo-pipeline/models"
)

// ReportAction generates a fresh quality report and stores its issues.
func ReportAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	report, err := env.Service.QualityReport(c.Context)
	if err != nil {
		return fmt.Errorf("failed to generate quality report: %w", err)
	}
	if c.String("format") != "table" {
		return common.Output(c, report)
	}

	fmt.Fprintf(c.App.Writer, "Quality score: %.1f\n", report.QualityScore)
	fmt.Fprintf(c.App.Writer, "Records:       %d total, %d valid, %d invalid, %d duplicate, %d stale (sample %d)\n\n",
		report.TotalRecords, report.ValidRecords, report.InvalidRecords, report.DuplicateRecords, report.StaleRecords, report.SampleSize)
	return writeIssues(c, report.Issues)
}

// IssuesAction prints the issues stored by the most recent report.
func IssuesAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	issues, generated, err := env.Store.QualityIssues(c.Context)
	if err != nil {
		return err
	}
	if c.String("format") != "table" {
		return common.Output(c, map[string]any{"generated_at": generated, "issues": issues})
	}
	if generated.IsZero() {
		fmt.Fprintln(c.App.Writer, "No quality report has been generated yet")
		return nil
	}
	fmt.Fprintf(c.App.Writer, "Report from %s\n\n", generated.Local().Format("2006-01-02 15:04:05"))
	return writeIssues(c, issues)
}

func writeIssues(c *cli.Context, issues []models.QualityIssue) error {
	if len(issues) == 0 {
		fmt.Fprintln(c.App.Writer, "No issues found")
		return nil
	}
	tbl := common.NewTable("SEVERITY", "CODE", "AFFECTED", "SHARE", "MESSAGE")
	for _, is := range issues {
		tbl.Row(string(is.Severity), is.Code, strconv.Itoa(is.Affected), fmt.Sprintf("%.1f%%", is.Share*100), is.Message)
	}
	return tbl.Write(c.App.Writer)
}

// CleanupAction removes records superseded by a newer record for the same URL.
func CleanupAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	n, err := env.Service.CleanupDuplicates(c.Context)
	if err != nil {
		return fmt.Errorf("failed to clean up duplicates: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Deleted %d duplicate records\n", n)
	return nil
}
