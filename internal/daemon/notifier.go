package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/presentd/internal/model"
)

// NotificationLevel indicates the severity of an internal event.
type NotificationLevel int

const (
	NotificationLevelInfo NotificationLevel = iota
	NotificationLevelWarning
	NotificationLevelError
)

// slogLevel maps the level onto slog.
func (l NotificationLevel) slogLevel() slog.Level {
	switch l {
	case NotificationLevelWarning:
		return slog.LevelWarn
	case NotificationLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InternalNotifier reports internal presentd events such as config reloads
// and dropped requests. Repeats of the same key are rate limited so a
// misbehaving caller cannot flood the log.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	lastNotifyTime map[string]time.Time
	minInterval    time.Duration
	suppressed     map[string]int

	enabled bool
}

// NewInternalNotifier creates a new InternalNotifier.
func NewInternalNotifier(logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:         logger,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		suppressed:     make(map[string]int),
		enabled:        true,
	}
}

// SetEnabled enables or disables internal notifications.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between notifications with the
// same key.
func (n *InternalNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify reports an event unless the same key was reported within the
// minimum interval. It returns whether the event was reported.
func (n *InternalNotifier) Notify(key, summary string, level NotificationLevel, attrs ...any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.enabled {
		return false
	}

	now := time.Now()
	if lastTime, ok := n.lastNotifyTime[key]; ok && now.Sub(lastTime) < n.minInterval {
		n.suppressed[key]++
		return false
	}
	n.lastNotifyTime[key] = now

	if count := n.suppressed[key]; count > 0 {
		attrs = append(attrs, "suppressed", count)
		delete(n.suppressed, key)
	}

	n.logger.Log(context.Background(), level.slogLevel(), summary, attrs...)
	return true
}

// StateChanged is a no-op; the notifier only reports dropped requests.
func (n *InternalNotifier) StateChanged(model.StateChange) {}

// RequestDropped reports a window request that could not be routed.
func (n *InternalNotifier) RequestDropped(windowID, interfaceName string, err error) {
	n.Notify(
		"drop:"+windowID+":"+interfaceName,
		"window request dropped",
		NotificationLevelWarning,
		"window", windowID, "interface", interfaceName, "error", err,
	)
}

// NotifyConfigReloaded reports a successful config reload.
func (n *InternalNotifier) NotifyConfigReloaded(windows int) {
	n.Notify("config-reload", "configuration reloaded", NotificationLevelInfo, "windows", windows)
}

// NotifyConfigError reports a config file that failed validation.
func (n *InternalNotifier) NotifyConfigError(err error) {
	n.Notify("config-error", "configuration reload failed", NotificationLevelWarning, "error", err)
}

// NotifyRestartRequired reports a config change that only applies after a
// restart.
func (n *InternalNotifier) NotifyRestartRequired(setting string) {
	n.Notify("restart:"+setting, "configuration change requires restart", NotificationLevelWarning, "setting", setting)
}

// NotifyStartup reports that the daemon is ready.
func (n *InternalNotifier) NotifyStartup(version string) {
	n.Notify("startup", "presentd started", NotificationLevelInfo, "version", version)
}
