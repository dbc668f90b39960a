package orchestrator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/presentd/internal/model"
)

// Presentation is one request's content occupying a window. Its options may
// be read and written from any goroutine. Its state is only changed by the
// owning WindowManager's queue.
type Presentation struct {
	token     model.Token
	windowID  string
	clientID  string
	createdAt time.Time

	resolver windowResolver
	observer PresentationObserver
	timeouts TimeoutManager
	mapper   LifespanMapper
	recorder Recorder
	logger   *slog.Logger

	mu            sync.Mutex
	options       model.PresentationOptions
	customTimeout model.Timeout // requested value, Default when none
	state         model.State
	timeoutID     model.TimeoutID
	timeoutSeq    uint64
	timeoutActive bool
}

type presentationConfig struct {
	clientID string
	options  model.PresentationOptions
	state    model.State
	resolver windowResolver
	observer PresentationObserver
	timeouts TimeoutManager
	mapper   LifespanMapper
	recorder Recorder
	logger   *slog.Logger
}

func newPresentation(cfg presentationConfig) *Presentation {
	opts := cfg.options.Clone()
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Presentation{
		token:     opts.RequestToken,
		windowID:  opts.WindowID,
		clientID:  cfg.clientID,
		createdAt: time.Now(),
		resolver:  cfg.resolver,
		observer:  cfg.observer,
		timeouts:  cfg.timeouts,
		mapper:    cfg.mapper,
		recorder:  cfg.recorder,
		logger:    logger.With("token", opts.RequestToken, "window", opts.WindowID),
		options:   opts,
		state:     cfg.state,
	}
	if p.recorder == nil {
		p.recorder = nopRecorder{}
	}

	p.mu.Lock()
	p.applyTimeoutLocked(opts.Timeout)
	p.mu.Unlock()
	return p
}

// Token returns the request token that created the presentation.
func (p *Presentation) Token() model.Token { return p.token }

// WindowID returns the window the presentation lives in.
func (p *Presentation) WindowID() string { return p.windowID }

// CreatedAt returns when the presentation was created.
func (p *Presentation) CreatedAt() time.Time { return p.createdAt }

// State returns the current visibility state.
func (p *Presentation) State() model.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Options returns a copy of the current options.
func (p *Presentation) Options() model.PresentationOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.options.Clone()
}

// Lifespan returns the current lifespan.
func (p *Presentation) Lifespan() model.Lifespan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.options.Lifespan
}

// Metadata returns the current metadata.
func (p *Presentation) Metadata() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.options.Metadata
}

// Timeout returns the effective timeout. It is never the Default variant.
func (p *Presentation) Timeout() model.Timeout {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.options.Timeout
}

// Dismiss asks the owning window to remove the presentation. Unlike a
// timeout or back navigation this also dismisses PERMANENT presentations.
func (p *Presentation) Dismiss() {
	p.resolver.withWindowManager(p.windowID, func(wm *WindowManager) {
		wm.DismissPresentation(p, true)
	})
}

// Foreground asks the owning window to bring the presentation to the top.
func (p *Presentation) Foreground() {
	p.resolver.withWindowManager(p.windowID, func(wm *WindowManager) {
		wm.ForegroundPresentation(p)
	})
}

// SetMetadata replaces the metadata reported to the state tracker.
func (p *Presentation) SetMetadata(metadata string) {
	p.mu.Lock()
	p.options.Metadata = metadata
	p.mu.Unlock()

	p.resolver.withWindowManager(p.windowID, func(wm *WindowManager) {
		wm.OnPresentationMetadataUpdate(p)
	})
}

// SetLifespan changes the lifespan. The timeout is recomputed from the last
// requested value and the window re-evaluates whether the presentation may
// stay in the background.
func (p *Presentation) SetLifespan(lifespan model.Lifespan) {
	p.mu.Lock()
	if p.options.Lifespan == lifespan {
		p.mu.Unlock()
		return
	}
	before := p.options.Timeout
	p.options.Lifespan = lifespan
	p.applyTimeoutLocked(p.customTimeout)
	changed := before != p.options.Timeout
	p.mu.Unlock()

	if changed {
		p.StartTimeout()
	}

	p.resolver.withWindowManager(p.windowID, func(wm *WindowManager) {
		wm.OnPresentationLifespanUpdate(p)
	})
}

// SetTimeout changes the timeout. A running timeout is restarted with the
// new value.
func (p *Presentation) SetTimeout(t model.Timeout) {
	p.mu.Lock()
	before := p.options.Timeout
	p.applyTimeoutLocked(t)
	changed := before != p.options.Timeout
	p.mu.Unlock()

	if changed {
		p.StartTimeout()
	}
}

// StartTimeout (re)starts the timeout. Nothing is scheduled unless the
// presentation is FOREGROUND and its timeout is enabled.
func (p *Presentation) StartTimeout() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopTimeoutLocked()
	if p.state != model.StateForeground || p.options.Timeout.IsDisabled() {
		return
	}

	p.timeoutSeq++
	seq := p.timeoutSeq
	d := p.options.Timeout.Duration()
	p.timeoutID = p.timeouts.RequestTimeout(d, func() { p.onTimeout(seq) })
	p.timeoutActive = true
	p.logger.Debug("timeout started", "duration", d)
}

// StopTimeout cancels the running timeout, if any.
func (p *Presentation) StopTimeout() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimeoutLocked()
}

func (p *Presentation) stopTimeoutLocked() {
	if !p.timeoutActive {
		return
	}
	p.timeouts.StopTimeout(p.timeoutID)
	p.timeoutActive = false
}

func (p *Presentation) onTimeout(seq uint64) {
	p.mu.Lock()
	if !p.timeoutActive || seq != p.timeoutSeq {
		p.mu.Unlock()
		return
	}
	p.timeoutActive = false
	p.mu.Unlock()

	p.logger.Debug("timeout expired")
	p.resolver.withWindowManager(p.windowID, func(wm *WindowManager) {
		wm.DismissPresentation(p, false)
	})
}

// applyTimeoutLocked normalizes requested against the current lifespan and
// stores the effective timeout in the options.
func (p *Presentation) applyTimeoutLocked(requested model.Timeout) {
	if !requested.Valid() {
		p.logger.Warn("invalid timeout, using lifespan default", "timeout", requested)
	}
	if requested.IsDefault() || !requested.Valid() {
		p.customTimeout = model.DefaultTimeout()
		p.options.Timeout = p.mapper.Timeout(p.options.Lifespan)
		return
	}

	p.customTimeout = requested
	if p.options.Lifespan == model.LifespanPermanent {
		p.logger.Warn("custom timeout ignored for permanent presentation", "timeout", requested)
		p.options.Timeout = p.mapper.Timeout(model.LifespanPermanent)
		return
	}
	p.options.Timeout = requested
}

// setState must only be called from the owning WindowManager's queue.
func (p *Presentation) setState(state model.State) {
	p.mu.Lock()
	prev := p.state
	if prev == state {
		p.mu.Unlock()
		return
	}
	if prev == model.StateNone {
		p.mu.Unlock()
		p.logger.Warn("state change on dismissed presentation ignored", "state", state)
		return
	}
	p.state = state
	p.mu.Unlock()

	if state == model.StateForeground {
		p.StartTimeout()
	} else {
		p.StopTimeout()
	}

	p.logger.Debug("presentation state changed", "from", prev, "to", state)
	p.observer.OnPresentationStateChanged(p.token, state)
	p.record(prev, state)
}

// recordCreated reports the initial state to the recorder.
func (p *Presentation) recordCreated() {
	p.record(model.StateNone, p.State())
}

func (p *Presentation) record(from, to model.State) {
	opts := p.Options()
	change := model.NewStateChange()
	change.ClientID = p.clientID
	change.WindowID = p.windowID
	change.Token = p.token
	change.InterfaceName = opts.InterfaceName
	change.Lifespan = opts.Lifespan
	change.From = from
	change.To = to
	change.CreatedAt = p.createdAt
	p.recorder.StateChanged(change)
}

// navigateBack offers the back event to the content first.
func (p *Presentation) navigateBack() bool {
	return p.observer.OnNavigateBack(p.token)
}
