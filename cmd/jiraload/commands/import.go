package commands

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/telemat/jiraload/logger"
	"github.com/telemat/jiraload/subscription"
	"github.com/telemat/jiraload/sync"
	"github.com/telemat/jiraload/upload"
)

// ImportCmd runs the staged import pipeline.
var ImportCmd = &cobra.Command{
	Use:   "import <subscription> <file>",
	Short: "Import a change log into the subscribed tracker project",
	Long: `Import a CSV change log into the subscribed tracker project.

The file lists every state of every issue, one row per change, ordered by
date. The first row names the columns; any header that is not a known
column is treated as a custom field name.

The --mode flag bounds how far the run goes. Each mode includes all the
checks of the previous one:
  syntax      - parse and check field syntax, chronology and issue prefix
  validation  - resolve statuses, priorities, users... against the tracker
  preview     - diff components, versions and issues against existing data
  full        - write everything and synchronize the tracker (default)

Examples:
  jiraload import gstack changes.csv --mode syntax
  jiraload import gstack changes.csv --encoding ISO-8859-1
  jiraload import gstack changes.csv --mode full --author fdaugan`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		encoding, _ := cmd.Flags().GetString("encoding")
		author, _ := cmd.Flags().GetString("author")
		return runImport(args[0], args[1], mode, encoding, author)
	},
}

func init() {
	ImportCmd.Flags().String("mode", string(upload.ModeFull), "How far the run goes: syntax, validation, preview or full")
	ImportCmd.Flags().String("encoding", "", "IANA charset of the file, default UTF-8")
	ImportCmd.Flags().String("author", "", "Name recorded as the author of the run, default the OS user")
}

func runImport(name, path, rawMode, encoding, author string) error {
	mode, err := upload.ParseMode(rawMode)
	if err != nil {
		return err
	}
	if author == "" {
		author = osUser()
	}

	store, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	sub, err := subscription.NewStore(store, logger.Logger).ByName(ctx, name)
	if err != nil {
		return fmt.Errorf("unknown subscription %q: %w", name, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open change log: %w", err)
	}
	defer file.Close()

	statuses := upload.NewStatusStore(store, logger.Logger)
	synchronizer := sync.New(cfg.HTTPTimeout, logger.Logger)
	controller := upload.NewController(statuses, synchronizer, logger.Logger)
	controller.LogEvery = cfg.BulkLogEvery

	status, err := controller.Run(ctx, sub, file, encoding, mode, author)
	if err != nil {
		if status != nil {
			fmt.Printf("Import failed at step %d: %v\n", status.Step, err)
		}
		return err
	}
	printOutcome(status)
	return nil
}

func printOutcome(status *upload.ImportStatus) {
	fmt.Printf("Import %s succeeded in mode %s (%d steps)\n", status.ID, status.Mode, status.Step)
	if status.Changes != nil {
		fmt.Printf("  Changes: %d on %d issue(s)\n", *status.Changes, intOrZero(status.Issues))
	}
	if status.NewIssues != nil {
		fmt.Printf("  New issues: %d, new components: %d, new versions: %d\n",
			*status.NewIssues, intOrZero(status.NewComponents), intOrZero(status.NewVersions))
	}
	if status.Synchronized != nil {
		fmt.Printf("  Tracker synchronized: %t\n", *status.Synchronized)
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func osUser() string {
	if current, err := user.Current(); err == nil && current.Username != "" {
		return current.Username
	}
	return "unknown"
}
