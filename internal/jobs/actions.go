package jobs

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/seo-pipeline/internal/common"
)

const timeLayout = "2006-01-02 15:04:05"

func jobID(c *cli.Context) (string, error) {
	if c.NArg() == 0 {
		return "", errors.New("job id is required")
	}
	return c.Args().First(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// ListAction prints every registered job with its state and next run.
func ListAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	jobs := env.Service.Jobs()
	if c.String("format") != "table" {
		return common.Output(c, jobs)
	}

	tbl := common.NewTable("ID", "TYPE", "SCHEDULE", "ACTIVE", "RETRIES", "LAST RUN", "NEXT RUN", "NAME")
	for _, j := range jobs {
		next := "-"
		if t, ok := env.Service.NextRun(j.ID); ok && j.IsActive {
			next = formatTime(t)
		}
		tbl.Row(j.ID, string(j.Type), j.Schedule, strconv.FormatBool(j.IsActive),
			fmt.Sprintf("%d/%d", j.RetryAttempts, j.MaxRetries), formatTime(j.LastRun), next, j.Name)
	}
	if err := tbl.Write(c.App.Writer); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nTotal: %d jobs\n", tbl.Len())
	return nil
}

// TriggerAction runs one job immediately and waits for it to finish.
func TriggerAction(c *cli.Context) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	started, err := env.Service.TriggerJobNow(id)
	if err != nil {
		return err
	}
	if !started {
		fmt.Fprintf(c.App.Writer, "Job %s is already running\n", id)
		return nil
	}
	env.Service.WaitForRuns()

	history, err := env.Service.JobHistory(c.Context, id, 1)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("job %s left no execution record", id)
	}
	last := history[0]
	fmt.Fprintf(c.App.Writer, "Job %s %s in %dms\n", id, last.Status, last.DurationMs)
	if last.Error != "" {
		return fmt.Errorf("job %s failed: %s", id, last.Error)
	}
	return nil
}

// ReactivateAction re-enables a deactivated job.
func ReactivateAction(c *cli.Context) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.Service.ReactivateJob(id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Job %s reactivated\n", id)
	return nil
}

// HistoryAction lists recent executions of a job.
func HistoryAction(c *cli.Context) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	history, err := env.Service.JobHistory(c.Context, id, c.Int("limit"))
	if err != nil {
		return err
	}
	if c.String("format") != "table" {
		return common.Output(c, history)
	}
	if len(history) == 0 {
		fmt.Fprintf(c.App.Writer, "No executions recorded for %s\n", id)
		return nil
	}

	tbl := common.NewTable("STARTED", "STATUS", "DURATION", "ATTEMPT", "ERROR")
	for _, e := range history {
		tbl.Row(formatTime(e.StartedAt), e.Status, fmt.Sprintf("%dms", e.DurationMs), strconv.Itoa(e.Attempt), e.Error)
	}
	return tbl.Write(c.App.Writer)
}
