package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telemat/jiraload/logger"
	"github.com/telemat/jiraload/subscription"
	"github.com/telemat/jiraload/upload"
)

// StatusCmd shows the import runs of a subscription.
var StatusCmd = &cobra.Command{
	Use:   "status <subscription>",
	Short: "Show import runs of a subscription",
	Long: `Show the import runs of a subscription, newest first.

A run without an end time is still in progress and locks the subscription
against concurrent imports.

Example:
  jiraload status gstack`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(args[0])
	},
}

func runStatus(name string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	sub, err := subscription.NewStore(store, logger.Logger).ByName(ctx, name)
	if err != nil {
		return fmt.Errorf("unknown subscription %q: %w", name, err)
	}

	runs, err := upload.NewStatusStore(store, logger.Logger).BySubscription(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("failed to list import runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Printf("No import run for subscription %q\n", name)
		return nil
	}

	fmt.Printf("%-36s %-11s %-5s %-8s %-17s %s\n", "RUN", "MODE", "STEP", "OUTCOME", "STARTED", "ISSUES")
	for _, run := range runs {
		outcome := "ok"
		if run.Running() {
			outcome = "running"
		} else if run.Failed {
			outcome = "failed"
		}
		issues := "-"
		if run.Issues != nil {
			issues = fmt.Sprintf("%d", *run.Issues)
		}
		fmt.Printf("%-36s %-11s %-5d %-8s %-17s %s\n",
			run.ID, run.Mode, run.Step, outcome, run.Start.Format("2006-01-02 15:04"), issues)
	}
	return nil
}
