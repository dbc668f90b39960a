package dbus

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/presentd/internal/model"
)

// EventHandler is called for every presentation signal.
type EventHandler func(Event)

// Monitor listens for the presentation signals emitted by the daemon.
type Monitor struct {
	conn    *dbus.Conn
	logger  *slog.Logger
	signals chan *dbus.Signal

	onEvent EventHandler
}

// NewMonitor creates a new signal monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger: logger,
	}
}

// SetEventHandler sets the callback for received signals.
func (m *Monitor) SetEventHandler(handler EventHandler) {
	m.onEvent = handler
}

// Start subscribes to the orchestrator signals on the session bus.
func (m *Monitor) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	m.conn = conn

	err = conn.AddMatchSignal(
		dbus.WithMatchObjectPath(DBusPath),
		dbus.WithMatchInterface(DBusInterface),
	)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to add match rule: %w", err)
	}

	m.signals = make(chan *dbus.Signal, 100)
	conn.Signal(m.signals)

	m.logger.Info("started D-Bus signal monitor", "interface", DBusInterface)

	go m.processSignals()
	return nil
}

func (m *Monitor) processSignals() {
	for sig := range m.signals {
		event, ok := parseSignal(sig)
		if !ok {
			continue
		}
		m.logger.Debug("received presentation signal", "name", event.Name, "token", event.Token)
		if m.onEvent != nil {
			m.onEvent(event)
		}
	}
}

// parseSignal converts a bus signal into an Event. Signals from other
// interfaces or with unexpected bodies are rejected.
func parseSignal(sig *dbus.Signal) (Event, bool) {
	if sig == nil || sig.Path != DBusPath {
		return Event{}, false
	}

	name, ok := strings.CutPrefix(sig.Name, DBusInterface+".")
	if !ok {
		return Event{}, false
	}

	switch name {
	case SignalPresentationAvailable:
		if len(sig.Body) < 2 {
			return Event{}, false
		}
		token, ok1 := sig.Body[0].(uint64)
		windowID, ok2 := sig.Body[1].(string)
		if !ok1 || !ok2 {
			return Event{}, false
		}
		return Event{Name: name, Token: model.Token(token), WindowID: windowID, State: model.StateNone}, true

	case SignalPresentationStateChanged:
		if len(sig.Body) < 3 {
			return Event{}, false
		}
		token, ok1 := sig.Body[0].(uint64)
		windowID, ok2 := sig.Body[1].(string)
		stateName, ok3 := sig.Body[2].(string)
		if !ok1 || !ok2 || !ok3 {
			return Event{}, false
		}
		state, err := model.ParseState(stateName)
		if err != nil {
			return Event{}, false
		}
		return Event{Name: name, Token: model.Token(token), WindowID: windowID, State: state}, true

	default:
		return Event{}, false
	}
}

// Stop stops the monitor. Closing the connection also closes the signal
// channel.
func (m *Monitor) Stop() error {
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}
