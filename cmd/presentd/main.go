// Package main is the entry point for the presentd presentation daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jmylchreest/presentd/internal/config"
	"github.com/jmylchreest/presentd/internal/daemon"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/presentd/presentd.toml)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	noWatch := flag.Bool("no-watch", false, "Disable config hot reload")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("presentd version", version)
		os.Exit(0)
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(*configPath, !*noWatch, logger); err != nil {
		logger.Error("presentd exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("presentd stopped")
}

func run(configPath string, watch bool, logger *slog.Logger) error {
	logger.Info("starting presentd", "version", version)

	if configPath == "" {
		configPath = config.DaemonConfigPath()
	}

	cfg, err := config.LoadDaemonConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := daemon.Options{
		Config:  cfg,
		Version: version,
		Logger:  logger,
	}
	if watch {
		opts.ConfigPath = configPath
	}

	svc, err := daemon.New(opts)
	if err != nil {
		return err
	}

	logger.Info("presentd ready",
		"client", svc.Client().ID(),
		"windows", len(cfg.Windows),
		"config", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return svc.Run(ctx)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
