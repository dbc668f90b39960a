package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/presentd/internal/adapter/output"
	"github.com/jmylchreest/presentd/internal/config"
	"github.com/jmylchreest/presentd/internal/core"
	"github.com/jmylchreest/presentd/internal/journal"
	"github.com/jmylchreest/presentd/internal/model"
)

var historyOpts struct {
	journalPath string

	// Filter options
	since  string
	window string
	token  string
	state  string
	limit  int
	filter string
	search string

	// Sort options
	sortBy    string
	sortOrder string

	// Output options
	format     string
	field      string
	template   string
	lifecycles bool
	follow     bool
}

var historyCmd = &cobra.Command{
	Use:   "history [index|id]",
	Short: "Query the presentation state journal",
	Long: `Query the journal of presentation state changes written by presentd.

With an index (1-based, after filtering) or a journal entry ID argument,
outputs that single entry.

Filter expressions combine conditions with commas:
  window=main            entries of the main window
  to=none                dismissals
  lifespan>=long         long and permanent presentations
  interface~=^Alexa\.    interface matches a regex
  at<1h                  entries from the last hour

Examples:
  # The last hour of changes on the main window
  presentctl history --since 1h --window main

  # Every presentation that was backgrounded, as JSON
  presentctl history --state background --format json

  # One summary line per presentation
  presentctl history --lifecycles

  # Print changes as they happen
  presentctl history --follow --format line`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyOpts.journalPath, "journal", "",
		"Path to the journal file (default: from presentd.toml)")

	historyCmd.Flags().StringVar(&historyOpts.since, "since", "",
		"Show entries from the last duration (e.g., 1h, 7d, 1w; 0=all; default from config)")
	historyCmd.Flags().StringVarP(&historyOpts.window, "window", "w", "",
		"Filter by window id (exact match)")
	historyCmd.Flags().StringVarP(&historyOpts.token, "token", "t", "",
		"Filter by presentation token")
	historyCmd.Flags().StringVar(&historyOpts.state, "state", "",
		"Filter by target state (none, background, foreground, foreground_unfocused)")
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 0,
		"Maximum number of entries, keeping the newest (0=unlimited; default from config)")
	historyCmd.Flags().StringVar(&historyOpts.filter, "filter", "",
		"Filter expression (e.g. \"window=main,lifespan>=long\")")
	historyCmd.Flags().StringVarP(&historyOpts.search, "search", "s", "",
		"Search window, interface and client")

	historyCmd.Flags().StringVar(&historyOpts.sortBy, "sort", "time",
		"Sort by field (time, window, token, lifespan)")
	historyCmd.Flags().StringVar(&historyOpts.sortOrder, "order", "asc",
		"Sort order (asc, desc)")

	historyCmd.Flags().StringVarP(&historyOpts.format, "format", "f", "",
		"Output format (plain, line, json, ids; default from config)")
	historyCmd.Flags().StringVar(&historyOpts.field, "field", "",
		"Output a single field per entry (id, window, token, interface, client, lifespan, from, to, all)")
	historyCmd.Flags().StringVar(&historyOpts.template, "template", "",
		"Custom Go template for line and plain output")
	historyCmd.Flags().BoolVar(&historyOpts.lifecycles, "lifecycles", false,
		"Summarise one line per presentation instead of per change")
	historyCmd.Flags().BoolVar(&historyOpts.follow, "follow", false,
		"Keep running and print new entries as they are written")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := resolveJournalPath()
	logger.Debug("reading journal", "path", path)

	changes, err := journal.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no journal at %s (is the journal enabled?)", path)
		}
		return fmt.Errorf("failed to read journal: %w", err)
	}

	selected, err := selectChanges(cmd, changes, true)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		return outputLookup(os.Stdout, selected, args[0])
	}

	if err := outputChanges(os.Stdout, selected); err != nil {
		return err
	}

	if historyOpts.follow {
		lastID := ""
		if len(changes) > 0 {
			lastID = changes[len(changes)-1].ID
		}
		return followJournal(cmd, path, lastID)
	}
	return nil
}

// resolveJournalPath returns the --journal flag or the daemon's configured
// journal location.
func resolveJournalPath() string {
	if historyOpts.journalPath != "" {
		return historyOpts.journalPath
	}
	dcfg, err := config.LoadDaemonConfig("")
	if err != nil {
		logger.Warn("failed to load daemon config, using default journal path", "error", err)
		return config.DefaultJournalPath()
	}
	return dcfg.JournalPath()
}

// selectChanges applies filters, search and sort. The time window and limit
// only apply to the initial listing, not to followed entries.
func selectChanges(cmd *cobra.Command, changes []model.StateChange, initial bool) ([]model.StateChange, error) {
	c := getConfig()
	opts := core.FilterOptions{
		WindowID: historyOpts.window,
	}

	since := ""
	if initial {
		opts.Limit = c.History.Limit
		if cmd.Flags().Changed("limit") {
			opts.Limit = historyOpts.limit
		}
		since = c.History.Since
		if cmd.Flags().Changed("since") {
			since = historyOpts.since
		}
	}
	if since != "" {
		d, err := core.ParseDuration(since)
		if err != nil {
			return nil, fmt.Errorf("invalid --since: %w", err)
		}
		opts.Since = d
	}

	if historyOpts.token != "" {
		tok, err := core.ParseToken(historyOpts.token)
		if err != nil {
			return nil, err
		}
		opts.Token = &tok
	}

	if historyOpts.state != "" {
		st, err := model.ParseState(historyOpts.state)
		if err != nil {
			return nil, err
		}
		opts.State = &st
	}

	if historyOpts.filter != "" {
		expr, err := core.ParseFilter(historyOpts.filter)
		if err != nil {
			return nil, err
		}
		changes = core.FilterWithExpr(changes, expr)
	}

	if historyOpts.search != "" {
		changes = core.Search(changes, historyOpts.search)
	}

	changes = core.Filter(changes, opts)

	field, err := core.ParseSortField(historyOpts.sortBy)
	if err != nil {
		return nil, err
	}
	order, err := core.ParseSortOrder(historyOpts.sortOrder)
	if err != nil {
		return nil, err
	}
	core.Sort(changes, core.SortOptions{Field: field, Order: order})

	return changes, nil
}

func historyFormat() output.FormatType {
	if historyOpts.format != "" {
		return output.ParseFormat(historyOpts.format)
	}
	return output.ParseFormat(getConfig().Output.Format)
}

// outputChanges writes the selected entries.
func outputChanges(w io.Writer, changes []model.StateChange) error {
	if historyOpts.lifecycles {
		return output.WriteLifecycles(w, core.Lifecycles(changes), historyFormat())
	}

	if historyOpts.field != "" {
		for i := range changes {
			if _, err := fmt.Fprintln(w, output.FormatField(&changes[i], historyOpts.field)); err != nil {
				return err
			}
		}
		return nil
	}

	if len(changes) == 0 {
		logger.Debug("no journal entries to output")
		if historyFormat() != output.FormatJSON {
			return nil
		}
	}

	return createFormatter().Format(w, changes)
}

// outputLookup writes the single entry selected by index or journal ID.
func outputLookup(w io.Writer, changes []model.StateChange, arg string) error {
	var c *model.StateChange
	if idx, err := strconv.Atoi(arg); err == nil && idx > 0 {
		c = core.LookupByIndex(changes, idx)
		if c == nil {
			return fmt.Errorf("journal entry at index %d not found", idx)
		}
	} else {
		c = core.LookupByID(changes, arg)
		if c == nil {
			return fmt.Errorf("journal entry with ID %s not found", arg)
		}
	}

	if historyOpts.field != "" {
		_, err := fmt.Fprintln(w, output.FormatField(c, historyOpts.field))
		return err
	}

	// Single entries default to JSON
	if historyOpts.format == "" {
		return output.NewJSONFormatter(output.DefaultFormatterOptions()).FormatSingle(w, c)
	}
	return createFormatter().Format(w, []model.StateChange{*c})
}

// createFormatter creates the output formatter based on options.
func createFormatter() output.Formatter {
	opts := output.DefaultFormatterOptions()
	opts.Template = historyOpts.template
	opts.ShowClient = globalOpts.verbose
	return output.NewFormatter(historyFormat(), opts)
}

// followJournal prints entries written after lastID until interrupted.
func followJournal(cmd *cobra.Command, path, lastID string) error {
	updates := make(chan []model.StateChange, 8)
	watcher, err := journal.NewFileWatcher(path, func(changes []model.StateChange) {
		// Each update carries the whole journal
		select {
		case updates <- changes:
		default:
		}
	}, logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to watch journal: %w", err)
	}
	defer func() { _ = watcher.Stop() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case changes := <-updates:
			fresh := unseenChanges(changes, lastID)
			if len(fresh) == 0 {
				continue
			}
			lastID = fresh[len(fresh)-1].ID

			fresh, err := selectChanges(cmd, fresh, false)
			if err != nil {
				return err
			}
			if err := outputChanges(os.Stdout, fresh); err != nil {
				return err
			}
		case <-sigCh:
			return nil
		}
	}
}

// unseenChanges returns the entries after lastID. Compaction keeps the
// newest entries, so lastID normally survives it; when it is gone (the
// journal was cleared or compacted past it) every entry is new.
func unseenChanges(changes []model.StateChange, lastID string) []model.StateChange {
	if lastID == "" {
		return changes
	}
	for i := len(changes) - 1; i >= 0; i-- {
		if changes[i].ID == lastID {
			return changes[i+1:]
		}
	}
	return changes
}
