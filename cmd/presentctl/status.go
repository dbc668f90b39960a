package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/presentd/internal/adapter/output"
	"github.com/jmylchreest/presentd/internal/dbus"
)

var statusOpts struct {
	format string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live window stacks of the running daemon",
	Long: `Show every window known to presentd with its presentation stack,
top first, along with the focused window and journal counters.

The waybar format is designed for a Waybar custom module:

  "custom/presentd": {
    "exec": "presentctl status --format waybar",
    "interval": 2,
    "return-type": "json",
    "on-click": "presentctl tui"
  }`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusOpts.format, "format", "f", "",
		"Output format (plain, json, waybar; default from config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	format := statusOpts.format
	if format == "" {
		format = getConfig().Output.Format
	}

	var status *dbus.Status
	err := withClient(func(ctx context.Context, client *dbus.Client) error {
		var err error
		status, err = client.Status(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, errNotRunning) && output.FormatType(format) == output.FormatWaybar {
			// Waybar hides the module on empty text
			return output.WriteStatus(os.Stdout, &dbus.Status{}, output.FormatWaybar)
		}
		return err
	}

	return output.WriteStatus(os.Stdout, status, output.FormatType(format))
}
