package orchestrator

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/timeout"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// ID identifies the client to the state tracker. A ULID is generated
	// when empty.
	ID       string
	Tracker  StateTracker
	Timeouts TimeoutManager
	// Mapper defaults to timeout.DefaultMapper().
	Mapper   LifespanMapper
	Recorder Recorder
	Logger   *slog.Logger
}

// Client is the entry point of the orchestrator. It owns one WindowManager
// per window reported by the state tracker and arbitrates which window may
// hold the foreground.
type Client struct {
	id       string
	tracker  StateTracker
	timeouts TimeoutManager
	mapper   LifespanMapper
	recorder Recorder
	logger   *slog.Logger

	exec      *executor
	nextToken atomic.Uint64

	// ctx bounds blocking calls made from the client queue into window
	// managers. It is cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	// Queue confined.
	windows map[string]*windowEntry
}

type windowEntry struct {
	window model.WindowInstance
	wm     *WindowManager
}

// NewClient creates a client and registers it as a window observer of the
// tracker.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Tracker == nil {
		return nil, ErrNoStateTracker
	}
	if cfg.Timeouts == nil {
		return nil, ErrNoTimeoutManager
	}

	id := cfg.ID
	if id == "" {
		id = model.NewID(time.Now())
	}
	mapper := cfg.Mapper
	if mapper == nil {
		mapper = timeout.DefaultMapper()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		id:       id,
		tracker:  cfg.Tracker,
		timeouts: cfg.Timeouts,
		mapper:   mapper,
		recorder: recorder,
		logger:   logger.With("client", id),
		exec:     newExecutor(),
		ctx:      ctx,
		cancel:   cancel,
		windows:  make(map[string]*windowEntry),
	}

	c.tracker.AddWindowObserver(c)
	c.logger.Info("orchestrator client started")
	return c, nil
}

// ID returns the client id used with the state tracker.
func (c *Client) ID() string { return c.id }

func (c *Client) post(task string, fn func()) {
	if !c.exec.submit(fn) {
		c.logger.Warn("client shut down, task dropped", "task", task)
	}
}

// RequestWindow asks for a presentation in windowID. The token is returned
// immediately and routing happens asynchronously. Requests for unknown
// windows or unsupported interfaces are logged and dropped; the observer is
// never called for them.
func (c *Client) RequestWindow(windowID string, opts model.PresentationOptions, observer PresentationObserver) model.Token {
	token := model.Token(c.nextToken.Add(1) - 1)

	opts = opts.Clone()
	opts.WindowID = windowID
	opts.RequestToken = token
	if opts.ReceivedAt.IsZero() {
		opts.ReceivedAt = time.Now()
	}

	if observer == nil {
		c.dropRequest(token, opts, ErrNoObserver)
		return token
	}

	c.post("request window", func() { c.executeRequestWindow(token, opts, observer) })
	return token
}

func (c *Client) executeRequestWindow(token model.Token, opts model.PresentationOptions, observer PresentationObserver) {
	entry, ok := c.windows[opts.WindowID]
	if !ok {
		c.dropRequest(token, opts, ErrUnknownWindow)
		return
	}
	if !entry.window.Supports(opts.InterfaceName) {
		c.dropRequest(token, opts, ErrUnsupportedInterface)
		return
	}
	entry.wm.Acquire(token, opts, observer)
}

func (c *Client) dropRequest(token model.Token, opts model.PresentationOptions, err error) {
	c.logger.Warn("window request dropped",
		"token", token,
		"window", opts.WindowID,
		"interface", opts.InterfaceName,
		"error", err,
	)
	c.recorder.RequestDropped(opts.WindowID, opts.InterfaceName, err)
}

// OnWindowAdded creates a window manager for the window.
func (c *Client) OnWindowAdded(window model.WindowInstance) {
	window = window.Clone()
	c.post("window added", func() { c.executeWindowAdded(window) })
}

// OnWindowModified updates the window and re-foregrounds it when it is the
// focused window.
func (c *Client) OnWindowModified(window model.WindowInstance) {
	window = window.Clone()
	c.post("window modified", func() { c.executeWindowModified(window) })
}

// OnWindowRemoved clears and shuts down the window's manager.
func (c *Client) OnWindowRemoved(windowID string) {
	c.post("window removed", func() { c.executeWindowRemoved(windowID) })
}

func (c *Client) executeWindowAdded(window model.WindowInstance) {
	if err := window.Validate(); err != nil {
		c.logger.Warn("invalid window ignored", "window", window.ID, "error", err)
		return
	}
	if _, ok := c.windows[window.ID]; ok {
		c.logger.Warn("window already exists", "window", window.ID)
		return
	}

	wm := newWindowManager(windowManagerConfig{
		clientID:    c.id,
		window:      window,
		tracker:     c.tracker,
		timeouts:    c.timeouts,
		mapper:      c.mapper,
		coordinator: c,
		resolver:    c,
		recorder:    c.recorder,
		logger:      c.logger,
	})
	c.windows[window.ID] = &windowEntry{window: window, wm: wm}
	c.logger.Info("window added", "window", window.ID, "z_order", window.ZOrderIndex, "interfaces", window.SupportedInterfaces)
}

func (c *Client) executeWindowModified(window model.WindowInstance) {
	entry, ok := c.windows[window.ID]
	if !ok {
		c.logger.Warn("modified window not found", "window", window.ID)
		return
	}
	entry.window = window
	entry.wm.SetWindowInstance(window)
	c.logger.Info("window modified", "window", window.ID, "z_order", window.ZOrderIndex)

	if c.tracker.FocusedWindowID() != window.ID {
		return
	}
	focused, err := entry.wm.IsForegroundFocused(c.ctx)
	if err != nil {
		c.logger.Warn("failed to query window focus", "window", window.ID, "error", err)
		return
	}
	if !focused {
		entry.wm.ForegroundWindow()
	}
}

func (c *Client) executeWindowRemoved(windowID string) {
	entry, ok := c.windows[windowID]
	if !ok {
		c.logger.Warn("removed window not found", "window", windowID)
		return
	}
	delete(c.windows, windowID)

	if err := entry.wm.Shutdown(c.ctx); err != nil {
		c.logger.Warn("window manager shutdown failed", "window", windowID, "error", err)
	}
	c.logger.Info("window removed", "window", windowID)
	c.executeUpdateForegroundWindow()
}

// PrepareToForegroundWindow clears every window with a higher zOrder than
// windowID and unfocuses the others, then runs continuation. Both steps are
// complete before continuation runs.
func (c *Client) PrepareToForegroundWindow(windowID string, continuation func()) {
	c.post("prepare foreground", func() { c.executePrepareToForegroundWindow(windowID, continuation) })
}

func (c *Client) executePrepareToForegroundWindow(windowID string, continuation func()) {
	target, ok := c.windows[windowID]
	if !ok {
		c.logger.Warn("foreground requested for unknown window", "window", windowID)
		return
	}

	for _, entry := range c.sortedEntries() {
		if entry == target {
			continue
		}
		if entry.window.ZOrderIndex > target.window.ZOrderIndex {
			if err := entry.wm.ClearPresentations(c.ctx); err != nil && !errors.Is(err, ErrShutdown) {
				c.logger.Warn("failed to clear window", "window", entry.window.ID, "error", err)
			}
			continue
		}

		focused, err := entry.wm.IsForegroundFocused(c.ctx)
		if err != nil {
			if !errors.Is(err, ErrShutdown) {
				c.logger.Warn("failed to query window focus", "window", entry.window.ID, "error", err)
			}
			continue
		}
		if !focused {
			continue
		}
		if err := entry.wm.Unfocus(c.ctx); err != nil && !errors.Is(err, ErrShutdown) {
			c.logger.Warn("failed to unfocus window", "window", entry.window.ID, "error", err)
		}
	}

	continuation()
}

// UpdateForegroundWindow re-foregrounds the top presentation of the window
// the tracker reports as focused.
func (c *Client) UpdateForegroundWindow() {
	c.post("update foreground", c.executeUpdateForegroundWindow)
}

func (c *Client) executeUpdateForegroundWindow() {
	focused := c.tracker.FocusedWindowID()
	if focused == "" {
		return
	}
	entry, ok := c.windows[focused]
	if !ok {
		c.logger.Debug("focused window not managed", "window", focused)
		return
	}
	entry.wm.ForegroundWindow()
}

func (c *Client) withWindowManager(windowID string, fn func(wm *WindowManager)) {
	c.post("route to window", func() {
		entry, ok := c.windows[windowID]
		if !ok {
			c.logger.Warn("window no longer exists", "window", windowID)
			return
		}
		fn(entry.wm)
	})
}

// NavigateBack sends a back event to the focused window. It reports whether
// a presentation was dismissed.
func (c *Client) NavigateBack(ctx context.Context) (bool, error) {
	wm, err := await(ctx, c.exec, func() *WindowManager {
		entry, ok := c.windows[c.tracker.FocusedWindowID()]
		if !ok {
			return nil
		}
		return entry.wm
	})
	if err != nil || wm == nil {
		return false, err
	}

	ok, err := wm.NavigateBack(ctx)
	if errors.Is(err, ErrShutdown) {
		return false, nil
	}
	return ok, err
}

// ClearPresentations removes every presentation from every window, highest
// zOrder first.
func (c *Client) ClearPresentations(ctx context.Context) error {
	entries, err := await(ctx, c.exec, c.sortedEntries)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := entry.wm.ClearPresentations(ctx); err != nil && !errors.Is(err, ErrShutdown) {
			return err
		}
	}
	c.logger.Debug("all presentations cleared")
	return nil
}

// Windows returns the managed windows, highest zOrder first.
func (c *Client) Windows(ctx context.Context) ([]model.WindowInstance, error) {
	return await(ctx, c.exec, func() []model.WindowInstance {
		entries := c.sortedEntries()
		windows := make([]model.WindowInstance, 0, len(entries))
		for _, entry := range entries {
			windows = append(windows, entry.window.Clone())
		}
		return windows
	})
}

// Snapshot returns every window with its presentations.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	entries, err := await(ctx, c.exec, c.sortedEntries)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		ClientID:      c.id,
		FocusedWindow: c.tracker.FocusedWindowID(),
		Windows:       make([]WindowSnapshot, 0, len(entries)),
	}
	for _, entry := range entries {
		ws, err := entry.wm.Snapshot(ctx)
		if errors.Is(err, ErrShutdown) {
			continue
		}
		if err != nil {
			return Snapshot{}, err
		}
		snap.Windows = append(snap.Windows, ws)
	}
	return snap, nil
}

// Shutdown clears and stops every window manager, then stops the client.
func (c *Client) Shutdown(ctx context.Context) error {
	if remover, ok := c.tracker.(windowObserverRemover); ok {
		remover.RemoveWindowObserver(c)
	}

	entries, err := await(ctx, c.exec, func() []*windowEntry {
		entries := c.sortedEntries()
		clear(c.windows)
		return entries
	})
	if err != nil {
		if errors.Is(err, ErrShutdown) {
			return nil
		}
		return err
	}

	var errs []error
	for _, entry := range entries {
		if err := entry.wm.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	c.cancel()
	c.exec.shutdown()
	c.logger.Info("orchestrator client stopped")
	return errors.Join(errs...)
}

// sortedEntries returns the windows by descending zOrder, ties by id.
func (c *Client) sortedEntries() []*windowEntry {
	entries := make([]*windowEntry, 0, len(c.windows))
	for _, entry := range c.windows {
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b *windowEntry) int {
		if n := cmp.Compare(b.window.ZOrderIndex, a.window.ZOrderIndex); n != 0 {
			return n
		}
		return cmp.Compare(a.window.ID, b.window.ID)
	})
	return entries
}
