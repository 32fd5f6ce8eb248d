package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			audits, err := a.repos.Audits.List(ctx, status, limit, 0)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Domain", "Status", "Score", "Pages", "Progress", "Created"})

			for _, audit := range audits {
				score := "-"
				if audit.Score != nil {
					score = intString(*audit.Score)
				}
				t.AppendRow(table.Row{
					audit.ID,
					audit.Domain,
					audit.Status,
					score,
					audit.PagesCrawled,
					intString(audit.ProgressPercentage()) + "%",
					audit.CreatedAt.Format("2006-01-02 15:04"),
				})
			}

			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, crawling, analyzing, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum audits to list")
	return cmd
}

func init() {
	rootCmd.AddCommand(newListCommand())
}
