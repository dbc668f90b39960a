package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/presentd/internal/adapter/input"
	"github.com/jmylchreest/presentd/internal/core"
	"github.com/jmylchreest/presentd/internal/dbus"
	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/scenario"
)

var requestOpts struct {
	window    string
	iface     string
	lifespan  string
	timeout   string
	metadata  string
	source    string
	fromInput bool
}

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Request a presentation on a window",
	Long: `Request a presentation and print its token.

Batches of requests can be read as JSON (an array or one object per
line) from stdin or a file:

  {"window": "main", "interface": "Alerts", "lifespan": "short", "timeout_ms": 5000}

Examples:
  # Show an alert on the main window with the default SHORT timeout
  presentctl request --window main --interface Alerts

  # A LONG presentation that never times out
  presentctl request -w main -i Music -l long --timeout disabled

  # Replay a batch of requests
  presentctl request --input requests.jsonl`,
	RunE: runRequest,
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss TOKEN...",
	Short: "Dismiss presentations",
	Long: `Dismiss one or more presentations by token. Tokens can also be piped
in with --stdin, e.g. from "presentctl history --state foreground --field token".`,
	RunE: runDismiss,
}

var foregroundCmd = &cobra.Command{
	Use:   "foreground TOKEN",
	Short: "Bring a presentation to the front of its window",
	Args:  cobra.ExactArgs(1),
	RunE:  runForeground,
}

var setOpts struct {
	lifespan string
	timeout  string
	metadata string
}

var setCmd = &cobra.Command{
	Use:   "set TOKEN",
	Short: "Change a presentation's lifespan, timeout or metadata",
	Long: `Change the properties of a live presentation.

Examples:
  # Keep a presentation until it is dismissed explicitly
  presentctl set 4 --lifespan permanent

  # Restart the timeout with 15 seconds
  presentctl set 4 --timeout 15s

  # Attach metadata
  presentctl set 4 --metadata '{"card":"weather"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runSet,
}

var stdinTokens bool

var backCmd = &cobra.Command{
	Use:   "back",
	Short: "Navigate back on the focused window",
	RunE:  runBack,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Dismiss every presentation on every window",
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(requestCmd, dismissCmd, foregroundCmd, setCmd, backCmd, clearCmd)

	requestCmd.Flags().StringVarP(&requestOpts.window, "window", "w", "",
		"Target window id")
	requestCmd.Flags().StringVarP(&requestOpts.iface, "interface", "i", "",
		"Interface name the presentation renders")
	requestCmd.Flags().StringVarP(&requestOpts.lifespan, "lifespan", "l", "short",
		"Lifespan (transient, short, long, permanent)")
	requestCmd.Flags().StringVarP(&requestOpts.timeout, "timeout", "t", "default",
		"Timeout (default, disabled, milliseconds or a duration like 5s)")
	requestCmd.Flags().StringVarP(&requestOpts.metadata, "metadata", "m", "",
		"Opaque metadata attached to the presentation")
	requestCmd.Flags().StringVar(&requestOpts.source, "input", "",
		"Read requests from a file, or - for stdin")
	requestCmd.Flags().BoolVar(&requestOpts.fromInput, "stdin", false,
		"Read requests from stdin")

	dismissCmd.Flags().BoolVar(&stdinTokens, "stdin", false,
		"Read tokens from stdin (whitespace separated)")

	setCmd.Flags().StringVarP(&setOpts.lifespan, "lifespan", "l", "",
		"New lifespan (transient, short, long, permanent)")
	setCmd.Flags().StringVarP(&setOpts.timeout, "timeout", "t", "",
		"New timeout (default, disabled, milliseconds or a duration)")
	setCmd.Flags().StringVarP(&setOpts.metadata, "metadata", "m", "",
		"New metadata")
}

func runRequest(cmd *cobra.Command, args []string) error {
	requests, err := collectRequests(cmd.Context())
	if err != nil {
		return err
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		var failed int
		for _, req := range requests {
			token, err := client.RequestWindow(ctx, req)
			if err != nil {
				logger.Warn("request failed", "window", req.WindowID, "interface", req.InterfaceName, "error", err)
				failed++
				continue
			}
			fmt.Println(token)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d requests failed", failed, len(requests))
		}
		return nil
	})
}

// collectRequests builds the request list from flags or an input adapter.
func collectRequests(ctx context.Context) ([]dbus.Request, error) {
	source := requestOpts.source
	if requestOpts.fromInput && source == "" {
		source = "-"
	}

	if source != "" {
		adapter, err := input.NewAdapter(source)
		if err != nil {
			return nil, fmt.Errorf("failed to create input adapter: %w", err)
		}
		requests, err := adapter.Import(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read requests: %w", err)
		}
		logger.Debug("read requests", "source", adapter.Name(), "count", len(requests))
		if len(requests) == 0 {
			return nil, fmt.Errorf("no requests in %s", adapter.Name())
		}
		return requests, nil
	}

	if requestOpts.window == "" {
		return nil, fmt.Errorf("--window is required")
	}
	if requestOpts.iface == "" {
		return nil, fmt.Errorf("--interface is required")
	}

	lifespan, err := model.ParseLifespan(requestOpts.lifespan)
	if err != nil {
		return nil, err
	}
	timeout, err := scenario.ParseTimeout(requestOpts.timeout)
	if err != nil {
		return nil, err
	}

	return []dbus.Request{{
		WindowID:      requestOpts.window,
		InterfaceName: requestOpts.iface,
		Lifespan:      lifespan,
		Timeout:       timeout,
		Metadata:      requestOpts.metadata,
	}}, nil
}

func runDismiss(cmd *cobra.Command, args []string) error {
	fields := args
	if stdinTokens {
		var err error
		fields, err = readTokenFields(fields)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	}
	tokens, err := parseTokens(fields)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return fmt.Errorf("no presentation tokens provided")
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		var successCount, failCount int
		for _, token := range tokens {
			if err := client.Dismiss(ctx, token); err != nil {
				logger.Warn("failed to dismiss presentation", "token", token, "error", err)
				failCount++
				continue
			}
			successCount++
		}

		if len(tokens) > 1 || globalOpts.verbose {
			fmt.Fprintf(os.Stderr, "Dismissed %d presentation(s)", successCount)
			if failCount > 0 {
				fmt.Fprintf(os.Stderr, ", %d failed", failCount)
			}
			fmt.Fprintln(os.Stderr)
		}
		if failCount > 0 {
			return fmt.Errorf("%d dismissals failed", failCount)
		}
		return nil
	})
}

func runForeground(cmd *cobra.Command, args []string) error {
	token, err := core.ParseToken(args[0])
	if err != nil {
		return err
	}
	return withClient(func(ctx context.Context, client *dbus.Client) error {
		return client.Foreground(ctx, token)
	})
}

func runSet(cmd *cobra.Command, args []string) error {
	token, err := core.ParseToken(args[0])
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if !flags.Changed("lifespan") && !flags.Changed("timeout") && !flags.Changed("metadata") {
		return fmt.Errorf("must specify --lifespan, --timeout or --metadata")
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		if flags.Changed("metadata") {
			if err := client.SetMetadata(ctx, token, setOpts.metadata); err != nil {
				return err
			}
		}
		if flags.Changed("lifespan") {
			lifespan, err := model.ParseLifespan(setOpts.lifespan)
			if err != nil {
				return err
			}
			if err := client.SetLifespan(ctx, token, lifespan); err != nil {
				return err
			}
		}
		if flags.Changed("timeout") {
			timeout, err := scenario.ParseTimeout(setOpts.timeout)
			if err != nil {
				return err
			}
			if err := client.SetTimeout(ctx, token, timeout); err != nil {
				return err
			}
		}
		return nil
	})
}

func runBack(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *dbus.Client) error {
		popped, err := client.NavigateBack(ctx)
		if err != nil {
			return err
		}
		if popped {
			fmt.Println("popped")
		} else {
			fmt.Println("nothing to pop")
		}
		return nil
	})
}

func runClear(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *dbus.Client) error {
		return client.ClearPresentations(ctx)
	})
}

// readTokenFields appends whitespace separated fields read from stdin.
func readTokenFields(fields []string) ([]string, error) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields = append(fields, strings.Fields(line)...)
	}
	return fields, scanner.Err()
}

// parseTokens parses and de-duplicates tokens, keeping their order.
func parseTokens(fields []string) ([]model.Token, error) {
	seen := make(map[model.Token]bool, len(fields))
	tokens := make([]model.Token, 0, len(fields))
	for _, f := range fields {
		token, err := core.ParseToken(f)
		if err != nil {
			return nil, err
		}
		if seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens, nil
}
