package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <audit-id>",
		Short: "Cancel a running audit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.orchestrator.Cancel(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Audit %s cancelled\n", args[0])
				return nil
			})
		},
	}
}

func newRestartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restart <audit-id>",
		Short: "Reset a finished audit and run it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.pool.Start(ctx); err != nil {
					return err
				}
				if err := a.orchestrator.Restart(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Audit %s restarted\n", args[0])
				return a.waitForAudit(ctx, args[0])
			})
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <audit-id>",
		Short: "Delete an audit and all its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.orchestrator.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Audit %s deleted\n", args[0])
				return nil
			})
		},
	}
}

// withApp bootstraps the app for one command invocation and tears it down
// afterwards.
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func init() {
	rootCmd.AddCommand(newCancelCommand())
	rootCmd.AddCommand(newRestartCommand())
	rootCmd.AddCommand(newDeleteCommand())
}
