package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/timeout"
)

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    Duration
		wantErr bool
	}{
		{"10s", Duration(10 * time.Second), false},
		{"1m30s", Duration(90 * time.Second), false},
		{"2500", Duration(2500 * time.Millisecond), false},
		{"0", 0, false},
		{"-1", DisabledDuration, false},
		{"disabled", DisabledDuration, false},
		{"Never", DisabledDuration, false},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestDuration_MarshalText(t *testing.T) {
	text, err := DisabledDuration.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "disabled", string(text))

	text, err = Duration(30 * time.Second).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "30s", string(text))
}

func TestDefaultDaemonConfig(t *testing.T) {
	cfg := DefaultDaemonConfig()

	require.NoError(t, cfg.Validate())
	assert.Empty(t, cfg.ClientID)
	assert.Equal(t, Duration(10*time.Second), cfg.Timeouts.Transient)
	assert.Equal(t, Duration(30*time.Second), cfg.Timeouts.Short)
	assert.True(t, cfg.Timeouts.Long.Disabled())
	require.Len(t, cfg.Windows, 1)
	assert.Equal(t, DefaultWindowID, cfg.Windows[0].ID)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, DefaultJournalEntries, cfg.Journal.MaxEntries)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.DBus.Enabled)
}

func TestParseDaemonConfig(t *testing.T) {
	content := `
client_id = "kitchen"

[timeouts]
transient = "5s"
short = "-1"
long = "5m"

[[windows]]
id = "fullscreen"
z_order = 2
interfaces = ["Alexa.Presentation.APL"]

[[windows]]
id = "banner"
z_order = 1
interfaces = ["TemplateRuntime", "Alerts"]

[journal]
enabled = false
path = "~/presentd/journal.jsonl"
max_entries = 10

[metrics]
enabled = true
address = ":9100"
path = "/prom"

[dbus]
enabled = false
`
	cfg, err := ParseDaemonConfig([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, "kitchen", cfg.ClientID)
	assert.Equal(t, []model.WindowInstance{
		{ID: "fullscreen", ZOrderIndex: 2, SupportedInterfaces: []string{"Alexa.Presentation.APL"}},
		{ID: "banner", ZOrderIndex: 1, SupportedInterfaces: []string{"TemplateRuntime", "Alerts"}},
	}, cfg.Windows)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, 10, cfg.Journal.MaxEntries)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.Address)
	assert.False(t, cfg.DBus.Enabled)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "presentd", "journal.jsonl"), cfg.JournalPath())

	mapper := timeout.NewMapper(cfg.MapperConfig())
	assert.Equal(t, model.ExplicitTimeout(5*time.Second), mapper.Timeout(model.LifespanTransient))
	assert.True(t, mapper.Timeout(model.LifespanShort).IsDisabled())
	assert.Equal(t, model.ExplicitTimeout(5*time.Minute), mapper.Timeout(model.LifespanLong))
}

func TestParseDaemonConfig_KeepsDefaultWindows(t *testing.T) {
	cfg, err := ParseDaemonConfig([]byte("[timeouts]\nshort = \"45s\"\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultDaemonConfig().Windows, cfg.Windows)
	assert.Equal(t, Duration(45*time.Second), cfg.Timeouts.Short)
	assert.Equal(t, Duration(10*time.Second), cfg.Timeouts.Transient)
}

func TestDaemonConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*DaemonConfig)
	}{
		{"no windows", func(c *DaemonConfig) { c.Windows = []model.WindowInstance{} }},
		{"empty window id", func(c *DaemonConfig) { c.Windows[0].ID = "" }},
		{"no interfaces", func(c *DaemonConfig) { c.Windows[0].SupportedInterfaces = nil }},
		{"duplicate window", func(c *DaemonConfig) { c.Windows = append(c.Windows, c.Windows[0]) }},
		{"negative journal size", func(c *DaemonConfig) { c.Journal.MaxEntries = -1 }},
		{"bad metrics address", func(c *DaemonConfig) {
			c.Metrics.Enabled = true
			c.Metrics.Address = "nope"
		}},
		{"bad metrics path", func(c *DaemonConfig) {
			c.Metrics.Enabled = true
			c.Metrics.Path = "metrics"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDaemonConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadAndSaveDaemonConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presentd", "presentd.toml")

	cfg, err := LoadDaemonConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultDaemonConfig(), cfg)

	cfg.ClientID = "saved"
	cfg.Timeouts.Short = DisabledDuration
	require.NoError(t, SaveDaemonConfig(cfg, path))

	loaded, err := LoadDaemonConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.ClientID)
	assert.True(t, loaded.Timeouts.Short.Disabled())
	assert.Equal(t, cfg.Windows, loaded.Windows)

	require.NoError(t, os.WriteFile(path, []byte("[[windows]]\nid = \"\"\n"), 0600))
	_, err = LoadDaemonConfig(path)
	assert.Error(t, err)
}
