// Package tracker provides an in-memory device state tracker: the set of
// windows, which clients hold them, and which window is focused.
package tracker

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"

	"github.com/jmylchreest/presentd/internal/model"
)

// StateObserver is told when the focused window or its metadata changes.
// windowID is empty when nothing is focused.
type StateObserver interface {
	OnStateChanged(windowID, metadata string)
}

// StateObserverFunc adapts a function to StateObserver.
type StateObserverFunc func(windowID, metadata string)

// OnStateChanged calls f.
func (f StateObserverFunc) OnStateChanged(windowID, metadata string) { f(windowID, metadata) }

// Holder is a client holding a window.
type Holder struct {
	ClientID string `json:"client_id"`
	Metadata string `json:"metadata,omitempty"`
	seq      uint64
}

// WindowState describes one window and its holders.
type WindowState struct {
	Window  model.WindowInstance `json:"window"`
	Holders []Holder             `json:"holders,omitempty"`
	Focused bool                 `json:"focused"`
}

type windowRecord struct {
	window  model.WindowInstance
	holders map[string]*Holder
}

// Tracker tracks windows and their holders. It is safe for concurrent use.
// Observers are always called without the lock held.
type Tracker struct {
	logger *slog.Logger

	mu            sync.RWMutex
	windows       map[string]*windowRecord
	seq           uint64
	windowObs     []model.WindowObserver
	stateObs      []StateObserver
	lastFocused   string
	lastFocusedMD string
}

// New creates an empty tracker.
func New(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger:  logger,
		windows: make(map[string]*windowRecord),
	}
}

// AddWindowObserver registers observer. It is told about every existing
// window before this returns.
func (t *Tracker) AddWindowObserver(observer model.WindowObserver) {
	t.mu.Lock()
	t.windowObs = append(t.windowObs, observer)
	existing := t.sortedWindowsLocked()
	t.mu.Unlock()

	for _, w := range existing {
		observer.OnWindowAdded(w)
	}
}

// RemoveWindowObserver unregisters observer.
func (t *Tracker) RemoveWindowObserver(observer model.WindowObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windowObs = slices.DeleteFunc(t.windowObs, func(o model.WindowObserver) bool { return o == observer })
}

// AddStateObserver registers a focus observer.
func (t *Tracker) AddStateObserver(observer StateObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateObs = append(t.stateObs, observer)
}

// AddWindow adds a window. Adding an existing id updates it instead.
func (t *Tracker) AddWindow(window model.WindowInstance) error {
	if err := window.Validate(); err != nil {
		return err
	}
	window = window.Clone()

	t.mu.Lock()
	if rec, ok := t.windows[window.ID]; ok {
		if rec.window.Equal(window) {
			t.mu.Unlock()
			return nil
		}
		rec.window = window
		observers := slices.Clone(t.windowObs)
		t.mu.Unlock()

		t.notifyModified(observers, window)
		t.publishFocus()
		return nil
	}

	t.windows[window.ID] = &windowRecord{window: window, holders: make(map[string]*Holder)}
	observers := slices.Clone(t.windowObs)
	t.mu.Unlock()

	t.logger.Debug("window added", "window", window.ID, "z_order", window.ZOrderIndex)
	for _, o := range observers {
		o.OnWindowAdded(window.Clone())
	}
	return nil
}

// UpdateWindow replaces an existing window.
func (t *Tracker) UpdateWindow(window model.WindowInstance) error {
	if err := window.Validate(); err != nil {
		return err
	}

	t.mu.RLock()
	_, ok := t.windows[window.ID]
	t.mu.RUnlock()
	if !ok {
		return ErrUnknownWindow
	}
	return t.AddWindow(window)
}

// RemoveWindow removes a window and drops its holders.
func (t *Tracker) RemoveWindow(windowID string) bool {
	t.mu.Lock()
	if _, ok := t.windows[windowID]; !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.windows, windowID)
	observers := slices.Clone(t.windowObs)
	t.mu.Unlock()

	t.logger.Debug("window removed", "window", windowID)
	for _, o := range observers {
		o.OnWindowRemoved(windowID)
	}
	t.publishFocus()
	return true
}

// SetWindows replaces the window set, notifying observers of the
// differences. Windows are removed first, then added, then modified.
func (t *Tracker) SetWindows(windows []model.WindowInstance) error {
	next := make(map[string]model.WindowInstance, len(windows))
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return err
		}
		if _, dup := next[w.ID]; dup {
			return ErrDuplicateWindow
		}
		next[w.ID] = w.Clone()
	}

	t.mu.Lock()
	var removed []string
	var added, modified []model.WindowInstance
	for id := range t.windows {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
			delete(t.windows, id)
		}
	}
	for id, w := range next {
		rec, ok := t.windows[id]
		switch {
		case !ok:
			t.windows[id] = &windowRecord{window: w, holders: make(map[string]*Holder)}
			added = append(added, w)
		case !rec.window.Equal(w):
			rec.window = w
			modified = append(modified, w)
		}
	}
	observers := slices.Clone(t.windowObs)
	t.mu.Unlock()

	slices.Sort(removed)
	sortWindows(added)
	sortWindows(modified)

	for _, id := range removed {
		for _, o := range observers {
			o.OnWindowRemoved(id)
		}
	}
	for _, w := range added {
		for _, o := range observers {
			o.OnWindowAdded(w.Clone())
		}
	}
	t.notifyModified(observers, modified...)

	t.logger.Info("windows updated", "added", len(added), "modified", len(modified), "removed", len(removed))
	t.publishFocus()
	return nil
}

func (t *Tracker) notifyModified(observers []model.WindowObserver, windows ...model.WindowInstance) {
	for _, w := range windows {
		for _, o := range observers {
			o.OnWindowModified(w.Clone())
		}
	}
}

// Window returns a window by id.
func (t *Tracker) Window(windowID string) (model.WindowInstance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.windows[windowID]
	if !ok {
		return model.WindowInstance{}, false
	}
	return rec.window.Clone(), true
}

// Windows returns all windows, highest zOrder first.
func (t *Tracker) Windows() []model.WindowInstance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sortedWindowsLocked()
}

// States returns every window with its holders, highest zOrder first.
func (t *Tracker) States() []WindowState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	focused, _ := t.focusedLocked()
	windows := t.sortedWindowsLocked()
	states := make([]WindowState, 0, len(windows))
	for _, w := range windows {
		rec := t.windows[w.ID]
		holders := make([]Holder, 0, len(rec.holders))
		for _, h := range rec.holders {
			holders = append(holders, *h)
		}
		slices.SortFunc(holders, func(a, b Holder) int { return cmp.Compare(b.seq, a.seq) })
		states = append(states, WindowState{Window: w, Holders: holders, Focused: w.ID == focused})
	}
	return states
}

// AcquireWindow records clientID as holding windowID.
func (t *Tracker) AcquireWindow(clientID, windowID, metadata string) {
	t.mu.Lock()
	rec, ok := t.windows[windowID]
	if !ok {
		t.mu.Unlock()
		t.logger.Warn("acquire of unknown window", "window", windowID, "client", clientID)
		return
	}
	t.seq++
	rec.holders[clientID] = &Holder{ClientID: clientID, Metadata: metadata, seq: t.seq}
	t.mu.Unlock()

	t.logger.Debug("window acquired", "window", windowID, "client", clientID)
	t.publishFocus()
}

// ReleaseWindow drops clientID's hold on windowID.
func (t *Tracker) ReleaseWindow(clientID, windowID string) {
	t.mu.Lock()
	rec, ok := t.windows[windowID]
	if !ok {
		t.mu.Unlock()
		t.logger.Warn("release of unknown window", "window", windowID, "client", clientID)
		return
	}
	if _, held := rec.holders[clientID]; !held {
		t.mu.Unlock()
		t.logger.Debug("release of window not held", "window", windowID, "client", clientID)
		return
	}
	delete(rec.holders, clientID)
	t.mu.Unlock()

	t.logger.Debug("window released", "window", windowID, "client", clientID)
	t.publishFocus()
}

// UpdatePresentationMetadata replaces the metadata of clientID's hold.
func (t *Tracker) UpdatePresentationMetadata(clientID, windowID, metadata string) {
	t.mu.Lock()
	rec, ok := t.windows[windowID]
	if !ok {
		t.mu.Unlock()
		t.logger.Warn("metadata update for unknown window", "window", windowID, "client", clientID)
		return
	}
	holder, held := rec.holders[clientID]
	if !held {
		t.mu.Unlock()
		t.logger.Debug("metadata update for window not held", "window", windowID, "client", clientID)
		return
	}
	holder.Metadata = metadata
	t.mu.Unlock()

	t.publishFocus()
}

// FocusedWindowID returns the held window with the highest zOrder, or "".
// Ties go to the most recently acquired window.
func (t *Tracker) FocusedWindowID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, _ := t.focusedLocked()
	return id
}

func (t *Tracker) focusedLocked() (string, string) {
	var (
		best     *windowRecord
		bestHold *Holder
	)
	for _, rec := range t.windows {
		top := latestHolder(rec)
		if top == nil {
			continue
		}
		if best == nil ||
			rec.window.ZOrderIndex > best.window.ZOrderIndex ||
			(rec.window.ZOrderIndex == best.window.ZOrderIndex && top.seq > bestHold.seq) {
			best, bestHold = rec, top
		}
	}
	if best == nil {
		return "", ""
	}
	return best.window.ID, bestHold.Metadata
}

func latestHolder(rec *windowRecord) *Holder {
	var latest *Holder
	for _, h := range rec.holders {
		if latest == nil || h.seq > latest.seq {
			latest = h
		}
	}
	return latest
}

// publishFocus tells state observers when the focused window or its
// metadata changed since the last call.
func (t *Tracker) publishFocus() {
	t.mu.Lock()
	id, metadata := t.focusedLocked()
	if id == t.lastFocused && metadata == t.lastFocusedMD {
		t.mu.Unlock()
		return
	}
	t.lastFocused, t.lastFocusedMD = id, metadata
	observers := slices.Clone(t.stateObs)
	t.mu.Unlock()

	t.logger.Debug("focus changed", "window", id)
	for _, o := range observers {
		o.OnStateChanged(id, metadata)
	}
}

func (t *Tracker) sortedWindowsLocked() []model.WindowInstance {
	windows := make([]model.WindowInstance, 0, len(t.windows))
	for _, rec := range t.windows {
		windows = append(windows, rec.window.Clone())
	}
	sortWindows(windows)
	return windows
}

// sortWindows orders by descending zOrder, ties by id.
func sortWindows(windows []model.WindowInstance) {
	slices.SortFunc(windows, func(a, b model.WindowInstance) int {
		if n := cmp.Compare(b.ZOrderIndex, a.ZOrderIndex); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
