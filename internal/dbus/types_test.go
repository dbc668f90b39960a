package dbus

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/presentd/internal/model"
)

func TestToDBusError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"unknown token", ErrUnknownToken, ErrorUnknownToken},
		{"wrapped unknown token", fmt.Errorf("dismiss 4: %w", ErrUnknownToken), ErrorUnknownToken},
		{"invalid lifespan", model.ErrInvalidLifespan, ErrorInvalidArgs},
		{"empty window", model.ErrEmptyWindowID, ErrorInvalidArgs},
		{"other", errors.New("boom"), ErrorFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbusErr := toDBusError(tt.err)
			require.NotNil(t, dbusErr)
			assert.Equal(t, tt.expected, dbusErr.Name)
			assert.Equal(t, []any{tt.err.Error()}, dbusErr.Body)
		})
	}

	assert.Nil(t, toDBusError(nil))
}

func TestFromDBusError(t *testing.T) {
	assert.ErrorIs(t, fromDBusError(*dbus.NewError(ErrorUnknownToken, nil)), ErrUnknownToken)
	assert.ErrorIs(t, fromDBusError(dbus.NewError(ErrorUnknownToken, nil)), ErrUnknownToken)

	other := dbus.NewError(ErrorFailed, []any{"boom"})
	assert.Equal(t, error(other), fromDBusError(other))
	assert.NoError(t, fromDBusError(nil))
}

func TestStatusUptime(t *testing.T) {
	var s Status
	assert.Zero(t, s.Uptime())

	s.StartedAt = time.Now().Add(-time.Minute)
	assert.GreaterOrEqual(t, s.Uptime(), time.Minute)
}

func TestParseSignal(t *testing.T) {
	tests := []struct {
		name     string
		signal   *dbus.Signal
		expected Event
		ok       bool
	}{
		{
			name: "available",
			signal: &dbus.Signal{
				Path: DBusPath,
				Name: DBusInterface + ".PresentationAvailable",
				Body: []any{uint64(3), "main"},
			},
			expected: Event{Name: SignalPresentationAvailable, Token: 3, WindowID: "main", State: model.StateNone},
			ok:       true,
		},
		{
			name: "state changed",
			signal: &dbus.Signal{
				Path: DBusPath,
				Name: DBusInterface + ".PresentationStateChanged",
				Body: []any{uint64(7), "overlay", "background"},
			},
			expected: Event{Name: SignalPresentationStateChanged, Token: 7, WindowID: "overlay", State: model.StateBackground},
			ok:       true,
		},
		{
			name: "unknown state",
			signal: &dbus.Signal{
				Path: DBusPath,
				Name: DBusInterface + ".PresentationStateChanged",
				Body: []any{uint64(7), "overlay", "sideways"},
			},
		},
		{
			name: "wrong body types",
			signal: &dbus.Signal{
				Path: DBusPath,
				Name: DBusInterface + ".PresentationAvailable",
				Body: []any{uint32(3), "main"},
			},
		},
		{
			name: "short body",
			signal: &dbus.Signal{
				Path: DBusPath,
				Name: DBusInterface + ".PresentationStateChanged",
				Body: []any{uint64(7)},
			},
		},
		{
			name: "other interface",
			signal: &dbus.Signal{
				Path: DBusPath,
				Name: "org.freedesktop.DBus.NameAcquired",
				Body: []any{"x"},
			},
		},
		{
			name: "other path",
			signal: &dbus.Signal{
				Path: "/elsewhere",
				Name: DBusInterface + ".PresentationAvailable",
				Body: []any{uint64(3), "main"},
			},
		},
		{
			name: "nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok := parseSignal(tt.signal)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, event)
		})
	}
}
