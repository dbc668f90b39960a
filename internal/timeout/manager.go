package timeout

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/presentd/internal/model"
)

// Manager runs presentation timeouts on time.AfterFunc timers. Callbacks
// run on the timer goroutine.
type Manager struct {
	logger *slog.Logger
	nextID atomic.Uint64

	mu      sync.Mutex
	timers  map[model.TimeoutID]*time.Timer
	stopped bool
}

// NewManager creates a new timeout manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger,
		timers: make(map[model.TimeoutID]*time.Timer),
	}
}

// RequestTimeout schedules callback after d and returns its id. Once the
// manager is stopped the request is accepted but never fires.
func (m *Manager) RequestTimeout(d time.Duration, callback func()) model.TimeoutID {
	id := model.TimeoutID(m.nextID.Add(1))

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		m.logger.Debug("timeout requested after stop", "id", id)
		return id
	}

	m.timers[id] = time.AfterFunc(d, func() {
		m.mu.Lock()
		_, pending := m.timers[id]
		delete(m.timers, id)
		m.mu.Unlock()

		if pending && callback != nil {
			callback()
		}
	})

	m.logger.Debug("timeout requested", "id", id, "duration", d)
	return id
}

// StopTimeout cancels a pending timeout. It reports whether the timeout was
// still pending.
func (m *Manager) StopTimeout(id model.TimeoutID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	timer, ok := m.timers[id]
	if !ok {
		return false
	}
	delete(m.timers, id)
	timer.Stop()
	m.logger.Debug("timeout stopped", "id", id)
	return true
}

// Pending returns the number of timeouts that have not fired or been stopped.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Stop cancels every pending timeout and rejects new ones.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}
}
