package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telemat/jiraload/logger"
	"github.com/telemat/jiraload/subscription"
)

// SubscriptionCmd manages tracker subscriptions.
var SubscriptionCmd = &cobra.Command{
	Use:   "subscription",
	Short: "Manage tracker subscriptions",
	Long: `Manage tracker subscriptions.

A subscription binds a name to one project of one tracker instance: the
target database DSN, the tracker base URL, the project identifier and key,
and the optional administration account used for post-import
synchronization.

Examples:
  jiraload subscription add gstack \
      --dsn 'jira:secret@tcp(db.example.org:3306)/jiradb' \
      --url http://jira.example.org --project 10074 --pkey MDA \
      --admin-user admin --admin-password secret
  jiraload subscription ls
  jiraload subscription rm gstack`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var subscriptionAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new subscription",
	Long: `Register a new subscription under a unique name.

The admin credentials are optional. Without them, imports still work but the
tracker is not asked to flush caches or re-index after a full import.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubscriptionAdd(cmd, args[0])
	},
}

var subscriptionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubscriptionLs()
	},
}

var subscriptionRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubscriptionRm(args[0])
	},
}

func init() {
	flags := subscriptionAddCmd.Flags()
	flags.String("dsn", "", "MySQL DSN of the target tracker database")
	flags.String("url", "", "Base URL of the tracker web UI")
	flags.Int("project", 0, "Tracker project identifier")
	flags.String("pkey", "", "Tracker project key, the prefix of issue keys")
	flags.String("admin-user", "", "Administration account for post-import synchronization")
	flags.String("admin-password", "", "Password of the administration account")
	_ = subscriptionAddCmd.MarkFlagRequired("dsn")
	_ = subscriptionAddCmd.MarkFlagRequired("url")
	_ = subscriptionAddCmd.MarkFlagRequired("project")
	_ = subscriptionAddCmd.MarkFlagRequired("pkey")

	SubscriptionCmd.AddCommand(subscriptionAddCmd)
	SubscriptionCmd.AddCommand(subscriptionLsCmd)
	SubscriptionCmd.AddCommand(subscriptionRmCmd)
}

func runSubscriptionAdd(cmd *cobra.Command, name string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	flags := cmd.Flags()
	sub := &subscription.Subscription{Name: name}
	sub.DSN, _ = flags.GetString("dsn")
	sub.URL, _ = flags.GetString("url")
	sub.Project, _ = flags.GetInt("project")
	sub.Pkey, _ = flags.GetString("pkey")
	sub.AdminUser, _ = flags.GetString("admin-user")
	sub.AdminPassword, _ = flags.GetString("admin-password")

	if err := subscription.NewStore(store, logger.Logger).Create(context.Background(), sub); err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	fmt.Printf("Created subscription %q (#%d) for project %s\n", sub.Name, sub.ID, sub.Pkey)
	return nil
}

func runSubscriptionLs() error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	subs, err := subscription.NewStore(store, logger.Logger).List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		fmt.Println("No subscriptions")
		return nil
	}
	fmt.Printf("%-4s %-20s %-8s %-8s %s\n", "ID", "NAME", "PROJECT", "PKEY", "URL")
	for _, sub := range subs {
		fmt.Printf("%-4d %-20s %-8d %-8s %s\n", sub.ID, sub.Name, sub.Project, sub.Pkey, sub.URL)
	}
	return nil
}

func runSubscriptionRm(name string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := subscription.NewStore(store, logger.Logger).Delete(context.Background(), name); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	fmt.Printf("Deleted subscription %q\n", name)
	return nil
}
