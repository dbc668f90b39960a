package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/presentd/internal/dbus"
	"github.com/jmylchreest/presentd/internal/journal"
)

var clearHistoryOpts struct {
	dryRun bool
}

var clearHistoryCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry from the state journal",
	Long: `Remove every entry from the presentation state journal.

The daemon owns the journal file, so the journal is cleared over the bus and
presentd must be running.

Examples:
  # Clear the journal
  presentctl history clear

  # Show how many entries would be removed
  presentctl history clear --dry-run`,
	Args: cobra.NoArgs,
	RunE: runClearHistory,
}

func init() {
	historyCmd.AddCommand(clearHistoryCmd)

	clearHistoryCmd.Flags().BoolVar(&clearHistoryOpts.dryRun, "dry-run", false,
		"Show what would be removed without actually removing")
}

func runClearHistory(cmd *cobra.Command, args []string) error {
	if clearHistoryOpts.dryRun {
		changes, err := journal.ReadFile(resolveJournalPath())
		if err != nil {
			return err
		}
		fmt.Printf("Would remove %d entries\n", len(changes))
		return nil
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		removed, err := client.ClearJournal(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d entries\n", removed)
		return nil
	})
}
