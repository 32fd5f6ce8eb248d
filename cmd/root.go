// Package cmd implements the goaudit command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// cfgFile holds the path to the configuration file.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "goaudit",
	Short: "E-commerce site audit pipeline",
	Long: `goaudit crawls an e-commerce site, fans out SEO, performance, link
and checkout analysis across a worker pool, and aggregates the results
into a weighted conversion score.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	// Load .env early so config reads see the variables.
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml, ~/.goaudit/config.yaml, or /etc/goaudit/config.yaml)",
	)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("goaudit version %s\n", version)
		},
	})
}
