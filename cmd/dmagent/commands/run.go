// ABOUTME: Run command starts the continuous outreach loop
// ABOUTME: Serves the keep-alive endpoints alongside the scheduler
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/httpapi"
	"github.com/harper/dmagent/internal/scheduler"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the outreach loop until interrupted",
		Long: `Log in to the platform and run the outreach loop.

Each cycle opens conversations with new leads within today's budget,
answers unread replies and then idles. A tripped kill-switch suspends
sending until the pause expires. The keep-alive server listens on PORT.

Examples:
  dmagent run
  dmagent run --verbose`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := openApp(ctx, needGenerator|needPlatform)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.login(ctx); err != nil {
		return err
	}

	srv := httpapi.NewServer(a.cfg.Port, httpapi.NewRouter(a.store, a.limiter, logger.Named("http")), logger.Named("http"))
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	sched := scheduler.New(scheduler.Deps{
		Leads:         a.store,
		Conversations: a.convs,
		Gate:          a.limiter,
		Messenger:     a.platform,
		Session:       a.bridge,
	},
		scheduler.WithPacing(scheduler.PacingFrom(a.cfg)),
		scheduler.WithRetryPolicy(scheduler.RetryPolicy{Backoff: a.cfg.ErrorBackoff}),
		scheduler.WithLogger(logger.Named("scheduler")),
	)

	logger.Info("outreach loop starting", zap.Int("port", a.cfg.Port))
	runErr := sched.Run(ctx)
	cancel()

	if err := <-serveErr; err != nil {
		logger.Warn("keep-alive server stopped", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("outreach loop: %w", runErr)
	}
	logger.Info("outreach loop stopped")
	return nil
}
