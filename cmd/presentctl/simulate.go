package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/presentd/internal/adapter/output"
	"github.com/jmylchreest/presentd/internal/scenario"
)

var simulateOpts struct {
	format   string
	clientID string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate FILE...",
	Short: "Replay scenario files against an in-process orchestrator",
	Long: `Run YAML scenario files against a private orchestrator with a virtual
clock. No daemon is needed and timeouts fire instantly in virtual time.

A directory argument runs every *.yaml file inside it.

Example scenario:

  name: toast over music
  windows:
    - {id: main, z_order: 1, interfaces: [Music, Alerts]}
  steps:
    - {action: request, name: music, window_id: main, interface: Music, lifespan: long}
    - {action: request, name: toast, window_id: main, interface: Alerts, lifespan: transient}
    - action: expect
      expect:
        states: {music: background, toast: foreground}
    - {action: wait, duration: 10s}
    - action: expect
      expect:
        states: {music: foreground, toast: none}`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&simulateOpts.format, "format", "f", "plain",
		"Output format (plain, json)")
	simulateCmd.Flags().StringVar(&simulateOpts.clientID, "client-id", "",
		"Client id recorded in state changes (default: scenario)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	files, err := scenarioFiles(args)
	if err != nil {
		return err
	}

	format := output.ParseFormat(simulateOpts.format)
	var failed int
	for _, path := range files {
		sc, err := scenario.Load(path)
		if err != nil {
			return err
		}

		result, err := scenario.Run(context.Background(), sc, scenario.Options{
			ClientID: simulateOpts.clientID,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		if err := output.WriteResult(os.Stdout, result, format, globalOpts.verbose); err != nil {
			return err
		}
		if !result.Passed {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(files))
	}
	return nil
}

// scenarioFiles expands directory arguments to their YAML files.
func scenarioFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(arg, pattern))
			if err != nil {
				return nil, err
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files found")
	}
	return files, nil
}
