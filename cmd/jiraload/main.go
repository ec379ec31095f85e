package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telemat/jiraload/cmd/jiraload/commands"
	"github.com/telemat/jiraload/config"
	"github.com/telemat/jiraload/logger"
)

var rootCmd = &cobra.Command{
	Use:   "jiraload",
	Short: "jiraload - staged change-log import into a JIRA tracker database",
	Long: `jiraload - staged import of issue change logs into a JIRA tracker database.

A change log is a CSV file listing every state of every issue, ordered by
date. The import replays it against the tracker's database schema, then asks
the tracker to flush its caches and re-index the project.

Each run stops at the requested depth:
  syntax      - parse the file and check field syntax and chronology
  validation  - also resolve every referenced name against the tracker
  preview     - also diff components, versions and issues to create
  full        - actually write the issues and synchronize the tracker

Available commands:
  subscription - Manage tracker subscriptions (connection + project binding)
  import       - Run an import against a subscription
  status       - Show import runs of a subscription

Examples:
  jiraload subscription add gstack --url http://jira.example.org ...
  jiraload import gstack changes.csv --mode preview
  jiraload status gstack`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := logger.Initialize(cfg.JSONLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if verbose, _ := cmd.Flags().GetCount("verbose"); verbose > 0 {
			logger.SetVerbose()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity")

	rootCmd.AddCommand(commands.SubscriptionCmd)
	rootCmd.AddCommand(commands.ImportCmd)
	rootCmd.AddCommand(commands.StatusCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
