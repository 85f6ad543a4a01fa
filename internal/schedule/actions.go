package schedule

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/seo-pipeline/internal/common"
)

// RunAction starts the scheduler and blocks until SIGINT or SIGTERM. In-flight
// runs are allowed to finish before the final metrics are printed.
func RunAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	env.Logger.Info("Starting scheduler", "jobs", len(env.Service.Jobs()), "db", env.Store.Path())
	env.Service.StartScheduler(context.WithoutCancel(ctx))

	<-ctx.Done()
	env.Logger.Info("Shutting down scheduler")
	env.Service.StopScheduler()

	return common.Output(c, env.Service.MetricsSnapshot())
}

// HealthAction runs a one-off health check. An unhealthy result is printed
// and returned as an error so the exit status reflects it.
func HealthAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	report, herr := env.Service.HealthCheck(c.Context)
	if err := common.Output(c, report); err != nil {
		return err
	}
	return herr
}
