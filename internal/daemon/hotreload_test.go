package daemon

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/presentd/internal/config"
)

const validConfig = `
[[windows]]
id = "main"
z_order = 1
interfaces = ["card"]

[[windows]]
id = "overlay"
z_order = 3
interfaces = ["alert"]
`

func TestConfigWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presentd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`client_id = "a"`), 0600))

	w := NewConfigWatcher(path, nil)
	w.SetSettleDelay(10 * time.Millisecond)

	reloaded := make(chan *config.DaemonConfig, 4)
	failed := make(chan error, 4)
	w.SetReloadCallback(func(cfg *config.DaemonConfig) { reloaded <- cfg })
	w.SetErrorCallback(func(err error) { failed <- err })

	initial := config.DefaultDaemonConfig()
	require.NoError(t, w.Start(context.Background(), initial))
	defer w.Stop()
	assert.Same(t, initial, w.GetCurrentConfig())

	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0600))

	select {
	case cfg := <-reloaded:
		require.Len(t, cfg.Windows, 2)
		assert.Equal(t, "overlay", cfg.Windows[1].ID)
		assert.Same(t, cfg, w.GetCurrentConfig())
	case <-time.After(waitFor):
		t.Fatal("config was not reloaded")
	}

	require.NoError(t, os.WriteFile(path, []byte("[[windows]]\nid = \"\"\n"), 0600))

	select {
	case err := <-failed:
		assert.Error(t, err)
		assert.Len(t, w.GetCurrentConfig().Windows, 2, "invalid config keeps the previous one")
	case <-time.After(waitFor):
		t.Fatal("invalid config was not reported")
	}
}

func TestConfigWatcher_StopIsIdempotent(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "presentd.toml"), nil)
	w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, nil))
	require.NoError(t, w.Start(ctx, nil))
	cancel()
	w.Stop()
	w.Stop()
}

func TestInternalNotifier_RateLimits(t *testing.T) {
	var buf bytes.Buffer
	n := NewInternalNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	n.SetMinInterval(time.Hour)

	assert.True(t, n.Notify("k", "first", NotificationLevelInfo))
	assert.False(t, n.Notify("k", "second", NotificationLevelInfo))
	assert.True(t, n.Notify("other", "third", NotificationLevelWarning))

	n.SetMinInterval(0)
	assert.True(t, n.Notify("k", "fourth", NotificationLevelError))

	out := buf.String()
	assert.Contains(t, out, "first")
	assert.NotContains(t, out, "second")
	assert.Contains(t, out, "level=WARN msg=third")
	assert.Contains(t, out, "suppressed=1")

	n.SetEnabled(false)
	assert.False(t, n.Notify("new", "fifth", NotificationLevelInfo))
}

func TestInternalNotifier_RequestDropped(t *testing.T) {
	var buf bytes.Buffer
	n := NewInternalNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	n.RequestDropped("missing", "card", errors.New("unknown window"))
	n.RequestDropped("missing", "card", errors.New("unknown window"))

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("window request dropped")))
	assert.Contains(t, buf.String(), "window=missing")
}
