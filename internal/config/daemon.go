package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/timeout"
)

// DisabledDuration is the Duration stored for "disabled".
const DisabledDuration = Duration(-time.Millisecond)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "5s", "10s", "1m", "1h30m", integer milliseconds, and
// "disabled" (or any negative value) for timeouts that never fire.
// "0" means use the built-in default.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))

	switch strings.ToLower(s) {
	case "disabled", "never", "off":
		*d = DisabledDuration
		return nil
	}

	// Integer milliseconds; -1 is the disabled sentinel
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m', 'disabled' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	if d.Disabled() {
		return []byte("disabled"), nil
	}
	return []byte(time.Duration(d).String()), nil
}

// Disabled reports whether the duration means "never".
func (d Duration) Disabled() bool {
	return d < 0
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for presentd.
// Loaded from ~/.config/presentd/presentd.toml
type DaemonConfig struct {
	ClientID string                 `toml:"client_id" yaml:"client_id"` // Empty = generated per run
	Timeouts TimeoutConfig          `toml:"timeouts" yaml:"timeouts"`
	Windows  []model.WindowInstance `toml:"windows" yaml:"windows"`
	Journal  JournalConfig          `toml:"journal" yaml:"journal"`
	Metrics  MetricsConfig          `toml:"metrics" yaml:"metrics"`
	DBus     DBusConfig             `toml:"dbus" yaml:"dbus"`
}

// TimeoutConfig contains the default timeout per lifespan.
// PERMANENT presentations never time out and are not configurable.
type TimeoutConfig struct {
	Transient Duration `toml:"transient" yaml:"transient"` // e.g. "10s"
	Short     Duration `toml:"short" yaml:"short"`         // e.g. "30s"
	Long      Duration `toml:"long" yaml:"long"`           // e.g. "disabled"
}

// JournalConfig contains presentation journal settings.
type JournalConfig struct {
	Enabled    bool   `toml:"enabled" yaml:"enabled"`
	Path       string `toml:"path" yaml:"path"`               // Empty = $XDG_DATA_HOME/presentd/journal.jsonl
	MaxEntries int    `toml:"max_entries" yaml:"max_entries"` // 0 = unlimited
}

// MetricsConfig contains Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Address string `toml:"address" yaml:"address"`
	Path    string `toml:"path" yaml:"path"`
}

// DBusConfig contains session bus settings.
type DBusConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// Default daemon values.
const (
	DefaultJournalEntries = 5000
	DefaultMetricsAddress = "127.0.0.1:9464"
	DefaultMetricsPath    = "/metrics"
	DefaultWindowID       = "main"
)

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Timeouts: TimeoutConfig{
			Transient: Duration(timeout.DefaultTransient),
			Short:     Duration(timeout.DefaultShort),
			Long:      DisabledDuration,
		},
		Windows: []model.WindowInstance{
			{
				ID:                  DefaultWindowID,
				ZOrderIndex:         1,
				SupportedInterfaces: []string{"Alexa.Presentation.APL", "TemplateRuntime"},
			},
		},
		Journal: JournalConfig{
			Enabled:    true,
			MaxEntries: DefaultJournalEntries,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: DefaultMetricsAddress,
			Path:    DefaultMetricsPath,
		},
		DBus: DBusConfig{
			Enabled: true,
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() string {
	return filepath.Join(configHome(), "presentd", "presentd.toml")
}

// LoadDaemonConfig loads the daemon configuration from path, or from
// DaemonConfigPath when path is empty.
// If the file doesn't exist, returns the default configuration.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	if path == "" {
		path = DaemonConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseDaemonConfig(data)
}

// ParseDaemonConfig parses TOML over the defaults and validates the result.
// A file that lists windows replaces the default window set.
func ParseDaemonConfig(data []byte) (*DaemonConfig, error) {
	config := DefaultDaemonConfig()
	config.Windows = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Windows == nil {
		config.Windows = DefaultDaemonConfig().Windows
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig saves the daemon configuration to path, or to
// DaemonConfigPath when path is empty.
func SaveDaemonConfig(config *DaemonConfig, path string) error {
	if path == "" {
		path = DaemonConfigPath()
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	if len(c.Windows) == 0 {
		return errors.New("at least one window must be configured")
	}

	seen := make(map[string]bool, len(c.Windows))
	for i, w := range c.Windows {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("window %d: %w", i, err)
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate window id %q", w.ID)
		}
		seen[w.ID] = true
	}

	if c.Journal.MaxEntries < 0 {
		return fmt.Errorf("journal max_entries must be >= 0, got %d", c.Journal.MaxEntries)
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
			return fmt.Errorf("invalid metrics address %q: %w", c.Metrics.Address, err)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics path must start with '/', got %q", c.Metrics.Path)
		}
	}

	return nil
}

// MapperConfig converts the timeout settings for timeout.NewMapper.
func (c *DaemonConfig) MapperConfig() timeout.MapperConfig {
	return timeout.MapperConfig{
		Transient: c.Timeouts.Transient.Duration(),
		Short:     c.Timeouts.Short.Duration(),
		Long:      c.Timeouts.Long.Duration(),
	}
}

// JournalPath returns the configured journal path with ~ expanded, or the
// default location.
func (c *DaemonConfig) JournalPath() string {
	if c.Journal.Path == "" {
		return DefaultJournalPath()
	}
	return expandPath(c.Journal.Path)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
