package dbus

import (
	"fmt"

	"github.com/jmylchreest/presentd/internal/model"
)

// Signal names emitted by the server.
const (
	SignalPresentationAvailable    = "PresentationAvailable"
	SignalPresentationStateChanged = "PresentationStateChanged"
)

// EmitPresentationAvailable emits the PresentationAvailable signal.
func (s *Server) EmitPresentationAvailable(token model.Token, windowID string) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	err := conn.Emit(DBusPath, DBusInterface+"."+SignalPresentationAvailable, uint64(token), windowID)
	if err != nil {
		return fmt.Errorf("failed to emit PresentationAvailable signal: %w", err)
	}

	s.logger.Debug("emitted PresentationAvailable signal", "token", token, "window", windowID)
	return nil
}

// EmitPresentationStateChanged emits the PresentationStateChanged signal.
func (s *Server) EmitPresentationStateChanged(token model.Token, windowID string, state model.State) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	err := conn.Emit(DBusPath, DBusInterface+"."+SignalPresentationStateChanged, uint64(token), windowID, state.String())
	if err != nil {
		return fmt.Errorf("failed to emit PresentationStateChanged signal: %w", err)
	}

	s.logger.Debug("emitted PresentationStateChanged signal", "token", token, "state", state.String())
	return nil
}
