package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/presentd/internal/tui"
)

var tuiOpts struct {
	noWatch bool
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive live view",
	Long: `Launch the terminal user interface showing every window's presentation
stack as presentd sees it.

The TUI provides:
  - Live list of presentations, window tops marked, focused top highlighted
  - Search by text or filter expression (window=main, state=background)
  - Detail view with the window's full stack
  - Dismiss, bring to front, navigate back and clear
  - Copy a presentation or the full status to the clipboard

Key bindings:
  j/k, ↑/↓    Navigate list
  enter       View presentation details
  d           Dismiss presentation
  f           Bring presentation to front
  b           Navigate back
  X           Clear all presentations
  c           Copy presentation as JSON
  /           Search presentations
  r           Refresh now
  ?           Show help
  q           Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().BoolVar(&tuiOpts.noWatch, "no-watch", false,
		"Poll only, without listening for daemon signals")
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	client, err := connect(ctx)
	cancel()
	if err != nil {
		return err
	}

	return tui.Run(tui.RunOptions{
		Config:  getConfig(),
		Backend: client,
		Watch:   !tuiOpts.noWatch,
		Logger:  logger,
	})
}
