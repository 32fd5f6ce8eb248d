package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/goaudit/internal/domain"
)

// pollInterval is how often `run --wait` checks audit progress.
const pollInterval = 2 * time.Second

func newRunCommand() *cobra.Command {
	var (
		maxPages int
		wait     bool
	)

	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Create and start an audit for a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.pool.Start(ctx); err != nil {
				return err
			}

			audit, err := a.orchestrator.CreateAudit(ctx, args[0], maxPages)
			if err != nil {
				return err
			}
			if err := a.orchestrator.Start(ctx, audit.ID); err != nil {
				return err
			}

			fmt.Printf("Audit %s started for %s\n", audit.ID, audit.Domain)

			if !wait {
				return nil
			}
			return a.waitForAudit(ctx, audit.ID)
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum pages to crawl (0 uses the configured default)")
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the audit to finish and print the report")
	return cmd
}

// waitForAudit polls until the audit reaches a terminal state, then prints
// its report.
func (a *app) waitForAudit(ctx context.Context, auditID string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastStep := ""
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		audit, err := a.repos.Audits.GetByID(ctx, auditID)
		if err != nil {
			return err
		}

		if audit.CurrentStep != lastStep {
			lastStep = audit.CurrentStep
			fmt.Printf("  %s: %s (%d%%)\n", audit.Status, audit.CurrentStep, audit.ProgressPercentage())
		}

		if !audit.Status.IsTerminal() {
			continue
		}

		if audit.Status == domain.StatusFailed {
			msg := "unknown error"
			if audit.ErrorMessage != nil {
				msg = *audit.ErrorMessage
			}
			return fmt.Errorf("audit failed: %s", msg)
		}

		summary, err := a.reports.Summarize(ctx, auditID)
		if err != nil {
			return err
		}
		renderSummary(summary)
		return nil
	}
}

func init() {
	rootCmd.AddCommand(newRunCommand())
}
