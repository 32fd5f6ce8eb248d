package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/report"
)

func newReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report <audit-id>",
		Short: "Print the report for an audit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.reports.Summarize(ctx, args[0])
			if err != nil {
				return err
			}

			renderSummary(summary)
			return nil
		},
	}
}

func newCompareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <audit-id> <previous-audit-id>",
		Short: "Compare two completed audits of the same domain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			comparison, err := a.reports.Compare(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			renderComparison(comparison)
			return nil
		},
	}
}

// renderSummary prints one audit's report as tables.
func renderSummary(s *report.Summary) {
	fmt.Printf("\nAudit %s (%s)\n", s.Audit.ID, s.Audit.Domain)
	score := "-"
	if s.Audit.Score != nil {
		score = strconv.Itoa(*s.Audit.Score)
	}
	fmt.Printf("Status: %s   Score: %s (%s - %s)\n\n", s.Audit.Status, score, s.Grade, s.Label)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Category", "Score", "Findings"})
	for _, category := range []domain.Category{
		domain.CategoryPerformance,
		domain.CategoryMobile,
		domain.CategorySEO,
		domain.CategoryCheckout,
		domain.CategoryLinks,
	} {
		t.AppendRow(table.Row{
			category,
			fmt.Sprintf("%.1f", s.CategoryScores[category]),
			s.FindingsByCat[category],
		})
	}
	t.Render()

	t = table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Severity", "Count"})
	for _, severity := range domain.AllSeverities() {
		t.AppendRow(table.Row{severity, s.FindingsBySev[severity]})
	}
	t.Render()

	fmt.Printf("\nPages: %d   Links: %d (%d broken)   Samples: %d   Findings: %d\n",
		s.PagesCrawled, s.TotalLinks, s.BrokenLinks, s.SamplesCollected, s.TotalFindings)
}

// renderComparison prints a before/after view of two audits.
func renderComparison(c *report.Comparison) {
	currentScore, previousScore := 0, 0
	if c.Current.Audit.Score != nil {
		currentScore = *c.Current.Audit.Score
	}
	if c.Previous.Audit.Score != nil {
		previousScore = *c.Previous.Audit.Score
	}

	fmt.Printf("\nDomain: %s\n", c.Current.Audit.Domain)
	fmt.Printf("Previous: %d (%s)   Current: %d (%s)\n",
		previousScore, c.Previous.Grade, currentScore, c.Current.Grade)
	fmt.Printf("Change: %+d (%.2f%%, %s)\n\n", c.Change.Absolute, c.Change.Percentage, c.Change.Direction)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Category", "Previous", "Current", "Delta"})
	for _, category := range []domain.Category{
		domain.CategoryPerformance,
		domain.CategoryMobile,
		domain.CategorySEO,
		domain.CategoryCheckout,
		domain.CategoryLinks,
	} {
		prev := c.Previous.CategoryScores[category]
		curr := c.Current.CategoryScores[category]
		t.AppendRow(table.Row{
			category,
			fmt.Sprintf("%.1f", prev),
			fmt.Sprintf("%.1f", curr),
			fmt.Sprintf("%+.1f", curr-prev),
		})
	}
	t.Render()
}

func intString(v int) string {
	return strconv.Itoa(v)
}

func init() {
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newCompareCommand())
}
