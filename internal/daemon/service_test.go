package daemon

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/presentd/internal/config"
	"github.com/jmylchreest/presentd/internal/dbus"
	"github.com/jmylchreest/presentd/internal/model"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type emitted struct {
	token  model.Token
	window string
	state  model.State
	signal string
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *fakeEmitter) EmitPresentationAvailable(token model.Token, windowID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{token: token, window: windowID, signal: dbus.SignalPresentationAvailable})
	return nil
}

func (e *fakeEmitter) EmitPresentationStateChanged(token model.Token, windowID string, state model.State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{token: token, window: windowID, state: state, signal: dbus.SignalPresentationStateChanged})
	return nil
}

func (e *fakeEmitter) snapshot() []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]emitted(nil), e.events...)
}

func testConfig(t *testing.T) *config.DaemonConfig {
	t.Helper()
	cfg := config.DefaultDaemonConfig()
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.jsonl")
	cfg.DBus.Enabled = false
	cfg.Windows = []model.WindowInstance{
		{ID: "main", ZOrderIndex: 1, SupportedInterfaces: []string{"card"}},
	}
	return cfg
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := New(Options{Config: testConfig(t), Version: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), waitFor)
	t.Cleanup(cancel)
	return c
}

func request(t *testing.T, s *Service, lifespan model.Lifespan) model.Token {
	t.Helper()
	token := s.RequestWindow("main", model.PresentationOptions{
		InterfaceName: "card",
		Lifespan:      lifespan,
	})
	require.Eventually(t, func() bool {
		_, err := s.registry.Get(token)
		return err == nil
	}, waitFor, tick)
	return token
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Windows = nil

	_, err := New(Options{Config: cfg})
	assert.Error(t, err)
}

func TestService_RequestAndDismiss(t *testing.T) {
	s := newTestService(t)
	emitter := &fakeEmitter{}
	s.SetEmitter(emitter)

	token := request(t, s, model.LifespanShort)
	assert.Equal(t, model.Token(0), token)
	assert.Equal(t, "main", s.registry.WindowID(token))
	assert.Equal(t, "main", s.tracker.FocusedWindowID())

	require.NoError(t, s.SetMetadata(token, "page=2"))
	require.NoError(t, s.Dismiss(token))

	require.Eventually(t, func() bool { return s.registry.Count() == 0 }, waitFor, tick)

	_, err := s.registry.Get(token)
	assert.ErrorIs(t, err, dbus.ErrUnknownToken)
	assert.ErrorIs(t, s.Dismiss(token), dbus.ErrUnknownToken)
	require.Eventually(t, func() bool { return s.tracker.FocusedWindowID() == "" }, waitFor, tick)

	require.Eventually(t, func() bool {
		events := emitter.snapshot()
		return len(events) > 1 && events[len(events)-1].state == model.StateNone
	}, waitFor, tick)
	events := emitter.snapshot()
	assert.Equal(t, dbus.SignalPresentationAvailable, events[0].signal)
	assert.Equal(t, "main", events[0].window)
	assert.Equal(t, dbus.SignalPresentationStateChanged, events[len(events)-1].signal)

	require.Eventually(t, func() bool {
		entries := s.journal.Entries()
		return len(entries) > 1 && entries[len(entries)-1].To == model.StateNone
	}, waitFor, tick)
	assert.Equal(t, model.StateNone, s.journal.Entries()[0].From)
}

func TestService_TokenOperations(t *testing.T) {
	s := newTestService(t)

	permanent := request(t, s, model.LifespanPermanent)
	long := request(t, s, model.LifespanLong)

	require.Eventually(t, func() bool {
		p, err := s.registry.Get(permanent)
		return err == nil && p.State() == model.StateBackground
	}, waitFor, tick)

	require.NoError(t, s.Foreground(permanent))
	require.Eventually(t, func() bool {
		p, _ := s.registry.Get(permanent)
		return p.State() == model.StateForeground
	}, waitFor, tick)

	p, err := s.registry.Get(long)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.State() == model.StateBackground }, waitFor, tick)

	require.NoError(t, s.SetTimeout(long, model.ExplicitTimeout(time.Minute)))
	assert.Equal(t, time.Minute, p.Timeout().Duration())

	require.NoError(t, s.SetLifespan(long, model.LifespanPermanent))
	assert.Equal(t, model.LifespanPermanent, p.Lifespan())
	assert.True(t, p.Timeout().IsDisabled())

	assert.ErrorIs(t, s.SetLifespan(long, model.Lifespan(42)), model.ErrInvalidLifespan)
	assert.ErrorIs(t, s.Foreground(99), dbus.ErrUnknownToken)
	assert.ErrorIs(t, s.SetMetadata(99, ""), dbus.ErrUnknownToken)
	assert.ErrorIs(t, s.SetTimeout(99, model.DefaultTimeout()), dbus.ErrUnknownToken)
}

func TestService_Status(t *testing.T) {
	s := newTestService(t)

	token := request(t, s, model.LifespanLong)
	s.RequestWindow("missing", model.PresentationOptions{InterfaceName: "card"})

	var status *dbus.Status
	require.Eventually(t, func() bool {
		var err error
		status, err = s.Status(ctx(t))
		return err == nil && status.DroppedRequests == 1
	}, waitFor, tick)

	assert.Equal(t, "test", status.Version)
	assert.Equal(t, "main", status.Client.FocusedWindow)
	require.Len(t, status.Windows, 1)
	assert.True(t, status.Windows[0].Focused)
	assert.Positive(t, status.JournalEntries)

	p, ok := status.Client.Presentation(token)
	require.True(t, ok)
	assert.Equal(t, model.LifespanLong, p.Lifespan)

	require.Len(t, status.BusPresentations, 1)
	assert.Equal(t, token, status.BusPresentations[0].Token)
	assert.Equal(t, "main", status.BusPresentations[0].WindowID)
	assert.Equal(t, model.StateForeground, status.BusPresentations[0].State)
	assert.False(t, status.BusPresentations[0].CreatedAt.IsZero())
	assert.Equal(t, 1, status.BusVisible)
}

func TestService_StatusTracksBusStates(t *testing.T) {
	s := newTestService(t)

	long := request(t, s, model.LifespanLong)
	short := request(t, s, model.LifespanShort)

	// SHORT over LONG backgrounds the LONG presentation.
	require.Eventually(t, func() bool {
		status, err := s.Status(ctx(t))
		return err == nil && status.BusVisible == 1 && len(status.BusPresentations) == 2 &&
			status.BusPresentations[0].State == model.StateBackground
	}, waitFor, tick)

	require.NoError(t, s.Dismiss(short))
	require.Eventually(t, func() bool {
		status, err := s.Status(ctx(t))
		return err == nil && len(status.BusPresentations) == 1 &&
			status.BusPresentations[0].Token == long &&
			status.BusPresentations[0].State == model.StateForeground
	}, waitFor, tick)
}

func TestService_NavigateBackAndClear(t *testing.T) {
	s := newTestService(t)

	dismissed, err := s.NavigateBack(ctx(t))
	require.NoError(t, err)
	assert.False(t, dismissed)

	request(t, s, model.LifespanPermanent)
	request(t, s, model.LifespanLong)
	require.Equal(t, 2, s.registry.Count())

	require.NoError(t, s.ClearPresentations(ctx(t)))
	require.Eventually(t, func() bool { return s.registry.Count() == 0 }, waitFor, tick)
	require.Eventually(t, func() bool { return s.tracker.FocusedWindowID() == "" }, waitFor, tick)
}

func TestService_ClearJournal(t *testing.T) {
	s := newTestService(t)
	token := request(t, s, model.LifespanShort)
	require.NoError(t, s.Dismiss(token))
	require.Eventually(t, func() bool { return s.journal.Len() == 2 }, waitFor, tick)

	removed, err := s.ClearJournal()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Zero(t, s.journal.Len())

	cfg := testConfig(t)
	cfg.Journal.Enabled = false
	disabled, err := New(Options{Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = disabled.Shutdown(context.Background()) })

	_, err = disabled.ClearJournal()
	assert.ErrorIs(t, err, dbus.ErrJournalDisabled)
}

func TestService_ApplyConfig(t *testing.T) {
	s := newTestService(t)

	cfg := testConfig(t)
	cfg.Windows = append(cfg.Windows, model.WindowInstance{
		ID: "overlay", ZOrderIndex: 5, SupportedInterfaces: []string{"alert"},
	})
	cfg.Timeouts.Short = config.Duration(time.Minute)

	require.NoError(t, s.ApplyConfig(cfg))

	_, ok := s.tracker.Window("overlay")
	assert.True(t, ok)
	require.Eventually(t, func() bool {
		windows, err := s.client.Windows(ctx(t))
		return err == nil && len(windows) == 2
	}, waitFor, tick)

	token := s.RequestWindow("overlay", model.PresentationOptions{InterfaceName: "alert"})
	require.Eventually(t, func() bool {
		return s.registry.WindowID(token) == "overlay"
	}, waitFor, tick)
}

func TestService_ShutdownIsIdempotent(t *testing.T) {
	s := newTestService(t)
	request(t, s, model.LifespanShort)

	require.NoError(t, s.Shutdown(ctx(t)))
	require.NoError(t, s.Shutdown(ctx(t)))
	assert.Zero(t, s.timeouts.Pending())
}
