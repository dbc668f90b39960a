package orchestrator

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/presentd/internal/model"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

type trackerCall struct {
	Op       string
	WindowID string
	Metadata string
}

// fakeTracker records calls and reports the highest zOrder window holding a
// presentation as focused.
type fakeTracker struct {
	mu        sync.Mutex
	windows   map[string]model.WindowInstance
	held      map[string]int
	seq       int
	calls     []trackerCall
	observers []model.WindowObserver
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		windows: make(map[string]model.WindowInstance),
		held:    make(map[string]int),
	}
}

func (f *fakeTracker) AcquireWindow(_, windowID, metadata string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.held[windowID] = f.seq
	f.calls = append(f.calls, trackerCall{"acquire", windowID, metadata})
}

func (f *fakeTracker) ReleaseWindow(_, windowID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, windowID)
	f.calls = append(f.calls, trackerCall{"release", windowID, ""})
}

func (f *fakeTracker) UpdatePresentationMetadata(_, windowID, metadata string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, trackerCall{"update", windowID, metadata})
}

func (f *fakeTracker) FocusedWindowID() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	focused, bestZ, bestSeq := "", 0, 0
	for id, seq := range f.held {
		z := f.windows[id].ZOrderIndex
		if focused == "" || z > bestZ || (z == bestZ && seq > bestSeq) {
			focused, bestZ, bestSeq = id, z, seq
		}
	}
	return focused
}

func (f *fakeTracker) AddWindowObserver(observer model.WindowObserver) {
	f.mu.Lock()
	f.observers = append(f.observers, observer)
	existing := make([]model.WindowInstance, 0, len(f.windows))
	for _, w := range f.windows {
		existing = append(existing, w)
	}
	f.mu.Unlock()

	for _, w := range existing {
		observer.OnWindowAdded(w)
	}
}

func (f *fakeTracker) RemoveWindowObserver(observer model.WindowObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = slices.DeleteFunc(f.observers, func(o model.WindowObserver) bool { return o == observer })
}

func (f *fakeTracker) addWindow(w model.WindowInstance) {
	f.mu.Lock()
	f.windows[w.ID] = w
	observers := slices.Clone(f.observers)
	f.mu.Unlock()

	for _, o := range observers {
		o.OnWindowAdded(w)
	}
}

func (f *fakeTracker) modifyWindow(w model.WindowInstance) {
	f.mu.Lock()
	f.windows[w.ID] = w
	observers := slices.Clone(f.observers)
	f.mu.Unlock()

	for _, o := range observers {
		o.OnWindowModified(w)
	}
}

func (f *fakeTracker) removeWindow(id string) {
	f.mu.Lock()
	delete(f.windows, id)
	observers := slices.Clone(f.observers)
	f.mu.Unlock()

	for _, o := range observers {
		o.OnWindowRemoved(id)
	}
}

func (f *fakeTracker) callsOf(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, c := range f.calls {
		if c.Op == op {
			ids = append(ids, c.WindowID)
		}
	}
	return ids
}

func (f *fakeTracker) lastCall() trackerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return trackerCall{}
	}
	return f.calls[len(f.calls)-1]
}

type fakeTimer struct {
	d        time.Duration
	callback func()
	stopped  bool
}

// fakeTimeouts records requests and fires only when told to.
type fakeTimeouts struct {
	mu       sync.Mutex
	nextID   model.TimeoutID
	timers   map[model.TimeoutID]*fakeTimer
	requests []time.Duration
}

func newFakeTimeouts() *fakeTimeouts {
	return &fakeTimeouts{timers: make(map[model.TimeoutID]*fakeTimer)}
}

func (f *fakeTimeouts) RequestTimeout(d time.Duration, callback func()) model.TimeoutID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.timers[f.nextID] = &fakeTimer{d: d, callback: callback}
	f.requests = append(f.requests, d)
	return f.nextID
}

func (f *fakeTimeouts) StopTimeout(id model.TimeoutID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	timer, ok := f.timers[id]
	if !ok || timer.stopped {
		return false
	}
	timer.stopped = true
	return true
}

func (f *fakeTimeouts) requested() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

func (f *fakeTimeouts) isStopped(id model.TimeoutID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	timer, ok := f.timers[id]
	return ok && timer.stopped
}

func (f *fakeTimeouts) pending() []model.TimeoutID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []model.TimeoutID
	for id, timer := range f.timers {
		if !timer.stopped {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// fire runs the callback of id, even when it was stopped.
func (f *fakeTimeouts) fire(id model.TimeoutID) {
	f.mu.Lock()
	timer, ok := f.timers[id]
	f.mu.Unlock()
	if ok {
		timer.callback()
	}
}

type fakeObserver struct {
	mu          sync.Mutex
	available   map[model.Token]*Presentation
	states      map[model.Token][]model.State
	backHandled bool
	backCalls   []model.Token
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{
		available: make(map[model.Token]*Presentation),
		states:    make(map[model.Token][]model.State),
	}
}

func (o *fakeObserver) OnPresentationAvailable(token model.Token, p *Presentation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.available[token] = p
}

func (o *fakeObserver) OnPresentationStateChanged(token model.Token, state model.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states[token] = append(o.states[token], state)
}

func (o *fakeObserver) OnNavigateBack(token model.Token) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.backCalls = append(o.backCalls, token)
	return o.backHandled
}

func (o *fakeObserver) setBackHandled(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.backHandled = v
}

func (o *fakeObserver) presentation(token model.Token) *Presentation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.available[token]
}

func (o *fakeObserver) stateHistory(token model.Token) []model.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.states[token])
}

type droppedRequest struct {
	WindowID      string
	InterfaceName string
	Err           error
}

type fakeRecorder struct {
	mu      sync.Mutex
	changes []model.StateChange
	dropped []droppedRequest
}

func (r *fakeRecorder) StateChanged(change model.StateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *fakeRecorder) RequestDropped(windowID, interfaceName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, droppedRequest{windowID, interfaceName, err})
}

func (r *fakeRecorder) droppedRequests() []droppedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.dropped)
}

func (r *fakeRecorder) stateChanges() []model.StateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.changes)
}

type harness struct {
	t        *testing.T
	client   *Client
	tracker  *fakeTracker
	timeouts *fakeTimeouts
	observer *fakeObserver
	recorder *fakeRecorder
}

func newHarness(t *testing.T, windows ...model.WindowInstance) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		tracker:  newFakeTracker(),
		timeouts: newFakeTimeouts(),
		observer: newFakeObserver(),
		recorder: &fakeRecorder{},
	}
	for _, w := range windows {
		h.tracker.windows[w.ID] = w
	}

	client, err := NewClient(ClientConfig{
		ID:       "test-client",
		Tracker:  h.tracker,
		Timeouts: h.timeouts,
		Recorder: h.recorder,
	})
	require.NoError(t, err)
	h.client = client
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = client.Shutdown(ctx)
	})

	h.waitWindows(len(windows))
	return h
}

func (h *harness) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	h.t.Cleanup(cancel)
	return ctx
}

func (h *harness) waitWindows(n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		windows, err := h.client.Windows(h.ctx())
		return err == nil && len(windows) == n
	}, waitFor, tick)
}

// request issues a request and waits for the presentation to become
// available.
func (h *harness) request(windowID, iface string, lifespan model.Lifespan) *Presentation {
	h.t.Helper()
	return h.requestWith(windowID, model.PresentationOptions{InterfaceName: iface, Lifespan: lifespan})
}

func (h *harness) requestWith(windowID string, opts model.PresentationOptions) *Presentation {
	h.t.Helper()
	token := h.client.RequestWindow(windowID, opts, h.observer)
	var p *Presentation
	require.Eventually(h.t, func() bool {
		p = h.observer.presentation(token)
		return p != nil
	}, waitFor, tick, "presentation %d never became available", token)
	return p
}

func (h *harness) waitState(p *Presentation, state model.State) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return p.State() == state }, waitFor, tick,
		"presentation %d: want %s, have %s", p.Token(), state, p.State())
}

// flush waits until the client queue and every window queue have drained
// the work posted before it.
func (h *harness) flush() {
	h.t.Helper()
	_, err := h.client.Snapshot(h.ctx())
	require.NoError(h.t, err)
}

func (h *harness) foregroundCount() int {
	h.t.Helper()
	snap, err := h.client.Snapshot(h.ctx())
	require.NoError(h.t, err)
	n := 0
	for _, w := range snap.Windows {
		for _, p := range w.Presentations {
			if p.State == model.StateForeground {
				n++
			}
		}
	}
	return n
}

func window(id string, z int, interfaces ...string) model.WindowInstance {
	return model.WindowInstance{ID: id, ZOrderIndex: z, SupportedInterfaces: interfaces}
}
