package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/goaudit/internal/api"
	"github.com/jonesrussell/goaudit/internal/schedule"
)

// shutdownTimeout bounds graceful drain of the HTTP server.
const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the audit API server, worker pool and scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.pool.Start(ctx); err != nil {
				return err
			}

			scheduler := schedule.NewScheduler(a.orchestrator, a.cfg.Schedules, a.log)
			if err := scheduler.Start(ctx); err != nil {
				return err
			}
			defer scheduler.Stop()

			server := api.NewServer(a.cfg.Server, a.repos, a.orchestrator, a.reports, a.log)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				a.log.Info("shutdown signal received", "signal", sig.String())
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.log.Warn("api server shutdown incomplete", "error", err)
			}

			cancel()
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCommand())
}
