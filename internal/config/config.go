// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultSince        = "24h"
	DefaultHistoryLimit = 100
	DefaultFormat       = "plain"
	DefaultRefresh      = "1s"
)

// Config represents the presentctl configuration.
type Config struct {
	History HistoryConfig `toml:"history"`
	Output  OutputConfig  `toml:"output"`
	TUI     TUIConfig     `toml:"tui"`
}

// HistoryConfig holds default journal query options.
type HistoryConfig struct {
	Since string `toml:"since"` // Default time filter (0 = all time)
	Limit int    `toml:"limit"` // Max entries (0 = unlimited)
}

// OutputConfig holds output options.
type OutputConfig struct {
	Format string `toml:"format"` // plain, line, json, ids
}

// TUIConfig holds TUI-specific settings.
type TUIConfig struct {
	Refresh   string `toml:"refresh"`   // Status poll interval
	ShowHelp  bool   `toml:"show_help"`
	Clipboard string `toml:"clipboard"` // Copy command; auto-detected when empty
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		History: HistoryConfig{
			Since: DefaultSince,
			Limit: DefaultHistoryLimit,
		},
		Output: OutputConfig{
			Format: DefaultFormat,
		},
		TUI: TUIConfig{
			Refresh:  DefaultRefresh,
			ShowHelp: true,
		},
	}
}

func configHome() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return configHome
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	return filepath.Join(configHome(), "presentd", "presentctl.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "presentd")
}

// DefaultJournalPath returns the path to the journal JSONL file.
func DefaultJournalPath() string {
	return filepath.Join(DataPath(), "journal.jsonl")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	// Start with defaults
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}
