package dbus

import (
	"context"
	"errors"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/orchestrator"
	"github.com/jmylchreest/presentd/internal/tracker"
)

// Error names returned on the bus.
const (
	ErrorUnknownToken = DBusInterface + ".Error.UnknownToken"
	ErrorInvalidArgs  = "org.freedesktop.DBus.Error.InvalidArgs"
	ErrorFailed       = "org.freedesktop.DBus.Error.Failed"
)

// ErrJournalDisabled is returned by ClearJournal when the daemon runs
// without a journal.
var ErrJournalDisabled = errors.New("journal is disabled")

// ErrUnknownToken is returned by a Backend for tokens it did not create or
// that were dismissed.
var ErrUnknownToken = errors.New("unknown presentation token")

// Backend is what the server exposes on the bus.
type Backend interface {
	RequestWindow(windowID string, opts model.PresentationOptions) model.Token
	Dismiss(token model.Token) error
	Foreground(token model.Token) error
	SetMetadata(token model.Token, metadata string) error
	SetLifespan(token model.Token, lifespan model.Lifespan) error
	SetTimeout(token model.Token, timeout model.Timeout) error
	NavigateBack(ctx context.Context) (bool, error)
	ClearPresentations(ctx context.Context) error
	ClearJournal() (int, error)
	Status(ctx context.Context) (*Status, error)
}

// Status is the daemon status returned by GetStatus.
type Status struct {
	Version         string                `json:"version"`
	StartedAt       time.Time             `json:"started_at"`
	Client          orchestrator.Snapshot `json:"client"`
	Windows         []tracker.WindowState `json:"windows"`
	JournalEntries  int                   `json:"journal_entries"`
	DroppedRequests int                   `json:"dropped_requests"`

	// Presentations requested over the bus that have not reached NONE.
	BusPresentations []BusPresentation `json:"bus_presentations"`
	BusVisible       int               `json:"bus_visible"`
}

// BusPresentation is a live presentation owned by a bus caller.
type BusPresentation struct {
	Token     model.Token `json:"token"`
	WindowID  string      `json:"window_id"`
	State     model.State `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
}

// Uptime returns how long the daemon has been running.
func (s *Status) Uptime() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return time.Since(s.StartedAt)
}

// Event is a presentation signal received from the daemon.
type Event struct {
	Name     string      `json:"name"`
	Token    model.Token `json:"token"`
	WindowID string      `json:"window_id"`
	State    model.State `json:"state"`
}

// toDBusError converts a backend error into a bus error.
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrUnknownToken):
		return dbus.NewError(ErrorUnknownToken, []any{err.Error()})
	case errors.Is(err, model.ErrInvalidLifespan),
		errors.Is(err, model.ErrInvalidState),
		errors.Is(err, model.ErrEmptyWindowID):
		return dbus.NewError(ErrorInvalidArgs, []any{err.Error()})
	default:
		return dbus.NewError(ErrorFailed, []any{err.Error()})
	}
}

// fromDBusError converts a bus error back into the matching sentinel.
func fromDBusError(err error) error {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) && dbusErr.Name == ErrorUnknownToken {
		return ErrUnknownToken
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) && dbusErrPtr.Name == ErrorUnknownToken {
		return ErrUnknownToken
	}
	return err
}
