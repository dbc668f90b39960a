package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/stack"
)

// WindowManager owns the presentation stack of one window. All stack and
// window state is confined to the manager's task queue.
//
// Exported methods are safe to call from any goroutine. Methods that return
// a result block until the queue has run them and must never be called from
// the manager's own queue, nor from a presentation observer callback.
// Unexported execute* methods run on the queue.
type WindowManager struct {
	id       string
	clientID string

	exec        *executor
	tracker     StateTracker
	timeouts    TimeoutManager
	mapper      LifespanMapper
	coordinator foregroundCoordinator
	resolver    windowResolver
	recorder    Recorder
	logger      *slog.Logger

	// Queue confined.
	window model.WindowInstance
	stack  *stack.Unique[*Presentation]
}

type windowManagerConfig struct {
	clientID    string
	window      model.WindowInstance
	tracker     StateTracker
	timeouts    TimeoutManager
	mapper      LifespanMapper
	coordinator foregroundCoordinator
	resolver    windowResolver
	recorder    Recorder
	logger      *slog.Logger
}

func newWindowManager(cfg windowManagerConfig) *WindowManager {
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("window", cfg.window.ID)

	recorder := cfg.recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &WindowManager{
		id:          cfg.window.ID,
		clientID:    cfg.clientID,
		exec:        newExecutor(),
		tracker:     cfg.tracker,
		timeouts:    cfg.timeouts,
		mapper:      cfg.mapper,
		coordinator: cfg.coordinator,
		resolver:    cfg.resolver,
		recorder:    recorder,
		logger:      logger,
		window:      cfg.window.Clone(),
		stack:       stack.NewUnique[*Presentation](logger),
	}
}

// ID returns the window id.
func (wm *WindowManager) ID() string { return wm.id }

func (wm *WindowManager) post(task string, fn func()) {
	if !wm.exec.submit(fn) {
		wm.logger.Warn("window manager shut down, task dropped", "task", task)
	}
}

// Acquire places a new presentation on top of the window, preempting other
// windows first when this one is not foreground.
func (wm *WindowManager) Acquire(token model.Token, opts model.PresentationOptions, observer PresentationObserver) {
	wm.post("acquire", func() { wm.executeAcquire(token, opts, observer) })
}

// DismissPresentation removes p from the window. PERMANENT presentations are
// only removed when isSelfDismiss is set.
func (wm *WindowManager) DismissPresentation(p *Presentation, isSelfDismiss bool) {
	wm.post("dismiss", func() { wm.executeDismissPresentation(p, isSelfDismiss) })
}

// ForegroundPresentation brings an existing member to the top.
func (wm *WindowManager) ForegroundPresentation(p *Presentation) {
	wm.post("foreground presentation", func() { wm.executeForegroundPresentation(p) })
}

// OnPresentationLifespanUpdate re-evaluates whether p may stay in the
// background under its new lifespan.
func (wm *WindowManager) OnPresentationLifespanUpdate(p *Presentation) {
	wm.post("lifespan update", func() { wm.executeOnPresentationLifespanUpdate(p) })
}

// OnPresentationMetadataUpdate forwards p's metadata to the state tracker
// when p is visible.
func (wm *WindowManager) OnPresentationMetadataUpdate(p *Presentation) {
	wm.post("metadata update", func() { wm.executeOnPresentationMetadataUpdate(p) })
}

// SetWindowInstance replaces the window description.
func (wm *WindowManager) SetWindowInstance(window model.WindowInstance) {
	window = window.Clone()
	wm.post("set window", func() { wm.window = window })
}

// ForegroundWindow makes the top presentation FOREGROUND.
func (wm *WindowManager) ForegroundWindow() {
	wm.post("foreground window", wm.executeForegroundWindow)
}

// Unfocus moves a FOREGROUND top presentation to FOREGROUND_UNFOCUSED and
// waits for it to happen.
func (wm *WindowManager) Unfocus(ctx context.Context) error {
	_, err := await(ctx, wm.exec, func() struct{} {
		wm.executeUnfocus()
		return struct{}{}
	})
	return err
}

// NavigateBack offers a back event to the top presentation and dismisses it
// unless the content handled it. It reports whether a presentation was
// dismissed.
func (wm *WindowManager) NavigateBack(ctx context.Context) (bool, error) {
	return await(ctx, wm.exec, wm.executeNavigateBack)
}

// ClearPresentations removes every presentation, PERMANENT ones included,
// and releases the window.
func (wm *WindowManager) ClearPresentations(ctx context.Context) error {
	_, err := await(ctx, wm.exec, func() struct{} {
		wm.executeClearPresentations()
		return struct{}{}
	})
	return err
}

// IsForegroundFocused reports whether the top presentation is FOREGROUND.
func (wm *WindowManager) IsForegroundFocused(ctx context.Context) (bool, error) {
	return await(ctx, wm.exec, wm.executeIsForegroundFocused)
}

// WindowInstance returns the current window description.
func (wm *WindowManager) WindowInstance(ctx context.Context) (model.WindowInstance, error) {
	return await(ctx, wm.exec, func() model.WindowInstance { return wm.window.Clone() })
}

// Snapshot returns the window with its presentations, top first.
func (wm *WindowManager) Snapshot(ctx context.Context) (WindowSnapshot, error) {
	return await(ctx, wm.exec, wm.executeSnapshot)
}

// Shutdown clears the window and stops the queue.
func (wm *WindowManager) Shutdown(ctx context.Context) error {
	err := wm.ClearPresentations(ctx)
	if errors.Is(err, ErrShutdown) {
		return nil
	}
	wm.exec.shutdown()
	wm.logger.Debug("window manager stopped")
	return err
}

func (wm *WindowManager) executeIsForegroundFocused() bool {
	top, ok := wm.stack.Top()
	return ok && top.State() == model.StateForeground
}

func (wm *WindowManager) executeAcquire(token model.Token, opts model.PresentationOptions, observer PresentationObserver) {
	if wm.executeIsForegroundFocused() {
		wm.executeShowNewPresentation(token, opts, observer)
		return
	}
	wm.coordinator.PrepareToForegroundWindow(wm.id, func() {
		wm.post("acquire continuation", func() {
			wm.executeShowNewPresentation(token, opts, observer)
		})
	})
}

func (wm *WindowManager) executeShowNewPresentation(token model.Token, opts model.PresentationOptions, observer PresentationObserver) {
	focused := wm.executeIsForegroundFocused()

	if top, ok := wm.stack.Top(); ok {
		wm.applyIncomingLifespan(top, opts.Lifespan)
	}

	p := newPresentation(presentationConfig{
		clientID: wm.clientID,
		options:  opts,
		state:    model.StateForeground,
		resolver: wm.resolver,
		observer: observer,
		timeouts: wm.timeouts,
		mapper:   wm.mapper,
		recorder: wm.recorder,
		logger:   wm.logger,
	})
	wm.stack.Push(p)
	p.StartTimeout()
	p.recordCreated()

	if focused {
		wm.tracker.UpdatePresentationMetadata(wm.clientID, wm.id, p.Metadata())
	} else {
		wm.tracker.AcquireWindow(wm.clientID, wm.id, p.Metadata())
	}

	wm.logger.Debug("presentation available",
		"token", token,
		"lifespan", opts.Lifespan,
		"interface", opts.InterfaceName,
		"timeout", p.Timeout(),
	)
	observer.OnPresentationAvailable(token, p)
}

// applyIncomingLifespan updates the current top before a presentation with
// the incoming lifespan is placed above it.
func (wm *WindowManager) applyIncomingLifespan(top *Presentation, incoming model.Lifespan) {
	switch top.Lifespan() {
	case model.LifespanTransient:
		wm.removePresentation(top)
	case model.LifespanShort:
		if incoming == model.LifespanTransient {
			top.setState(model.StateBackground)
		} else {
			wm.removePresentation(top)
		}
	default:
		top.setState(model.StateBackground)
	}
}

func (wm *WindowManager) removePresentation(p *Presentation) {
	wm.stack.Erase(p)
	p.setState(model.StateNone)
}

func (wm *WindowManager) executeDismissPresentation(p *Presentation, isSelfDismiss bool) {
	prev := p.State()
	switch {
	case prev == model.StateNone:
		wm.logger.Debug("dismiss of presentation already dismissed", "token", p.Token())
		return
	case !wm.stack.Contains(p):
		wm.logger.Warn("dismiss of presentation not in window", "token", p.Token())
		return
	case p.Lifespan() == model.LifespanPermanent && !isSelfDismiss:
		wm.logger.Warn("permanent presentation can only dismiss itself", "token", p.Token())
		return
	}

	wm.removePresentation(p)
	if wm.stack.Size() == 0 {
		wm.tracker.ReleaseWindow(wm.clientID, wm.id)
		wm.coordinator.UpdateForegroundWindow()
		return
	}

	if prev.IsVisible() {
		wm.promoteTop(prev)
	}
}

// promoteTop gives the new top the visibility level of the presentation
// that left.
func (wm *WindowManager) promoteTop(state model.State) {
	top, ok := wm.stack.Top()
	if !ok {
		return
	}
	top.setState(state)
	wm.tracker.UpdatePresentationMetadata(wm.clientID, wm.id, top.Metadata())
}

func (wm *WindowManager) executeForegroundPresentation(p *Presentation) {
	switch {
	case p.State() == model.StateForeground:
		wm.logger.Warn("presentation already foreground", "token", p.Token())
		return
	case wm.stack.Size() == 0:
		wm.logger.Warn("foreground requested on empty window", "token", p.Token())
		return
	case !wm.stack.Contains(p):
		wm.logger.Warn("foreground of presentation not in window", "token", p.Token())
		return
	}

	if wm.executeIsForegroundFocused() {
		wm.executeBringToFront(p)
		return
	}
	wm.coordinator.PrepareToForegroundWindow(wm.id, func() {
		wm.post("foreground continuation", func() { wm.executeBringToFront(p) })
	})
}

func (wm *WindowManager) executeBringToFront(p *Presentation) {
	if p.State() == model.StateNone || !wm.stack.Contains(p) {
		wm.logger.Debug("presentation dismissed before it could be foregrounded", "token", p.Token())
		return
	}

	focused := wm.executeIsForegroundFocused()
	if top, ok := wm.stack.Top(); ok && top != p {
		wm.applyIncomingLifespan(top, p.Lifespan())
	}
	wm.stack.MoveToTop(p)

	if focused {
		wm.tracker.UpdatePresentationMetadata(wm.clientID, wm.id, p.Metadata())
	} else {
		wm.tracker.AcquireWindow(wm.clientID, wm.id, p.Metadata())
	}
	p.setState(model.StateForeground)
}

func (wm *WindowManager) executeNavigateBack() bool {
	top, ok := wm.stack.Top()
	if !ok || top.State() != model.StateForeground {
		return false
	}
	if top.navigateBack() {
		wm.logger.Debug("back handled by content", "token", top.Token())
		return false
	}
	if top.Lifespan() == model.LifespanPermanent {
		wm.logger.Debug("back ignored for permanent presentation", "token", top.Token())
		return false
	}

	prev := top.State()
	wm.stack.Pop()
	top.setState(model.StateNone)

	if wm.stack.Size() == 0 {
		wm.tracker.ReleaseWindow(wm.clientID, wm.id)
		wm.coordinator.UpdateForegroundWindow()
	} else {
		wm.promoteTop(prev)
	}
	return true
}

func (wm *WindowManager) executeClearPresentations() {
	if wm.stack.Size() == 0 {
		return
	}
	for {
		p, ok := wm.stack.Pop()
		if !ok {
			break
		}
		p.setState(model.StateNone)
	}
	wm.tracker.ReleaseWindow(wm.clientID, wm.id)
	wm.logger.Debug("presentations cleared")
}

func (wm *WindowManager) executeUnfocus() {
	if top, ok := wm.stack.Top(); ok && top.State() == model.StateForeground {
		top.setState(model.StateForegroundUnfocused)
	}
}

func (wm *WindowManager) executeForegroundWindow() {
	top, ok := wm.stack.Top()
	if !ok {
		wm.logger.Debug("foreground requested on empty window")
		return
	}
	top.setState(model.StateForeground)
}

func (wm *WindowManager) executeOnPresentationLifespanUpdate(p *Presentation) {
	if !wm.stack.Contains(p) {
		wm.logger.Debug("lifespan update for presentation not in window", "token", p.Token())
		return
	}

	state := p.State()
	switch {
	case state.IsVisible():
		return
	case state == model.StateNone:
		wm.logger.Warn("lifespan update for dismissed presentation", "token", p.Token())
		return
	}

	switch p.Lifespan() {
	case model.LifespanTransient:
		wm.removePresentation(p)
	case model.LifespanShort:
		above, ok := wm.stack.Above(p)
		if !ok {
			wm.logger.Warn("background presentation has nothing above it", "token", p.Token())
			return
		}
		if above.Lifespan() != model.LifespanTransient {
			wm.removePresentation(p)
		}
	}
}

func (wm *WindowManager) executeOnPresentationMetadataUpdate(p *Presentation) {
	if !wm.stack.Contains(p) || !p.State().IsVisible() {
		return
	}
	wm.tracker.UpdatePresentationMetadata(wm.clientID, wm.id, p.Metadata())
}

func (wm *WindowManager) executeSnapshot() WindowSnapshot {
	items := wm.stack.Items()
	snap := WindowSnapshot{
		Window:        wm.window.Clone(),
		Presentations: make([]PresentationSnapshot, 0, len(items)),
	}
	for i := len(items) - 1; i >= 0; i-- {
		snap.Presentations = append(snap.Presentations, snapshotOf(items[i]))
	}
	return snap
}
