package daemon

import (
	"log/slog"

	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/orchestrator"
)

// SignalEmitter publishes presentation events to remote callers.
type SignalEmitter interface {
	EmitPresentationAvailable(token model.Token, windowID string) error
	EmitPresentationStateChanged(token model.Token, windowID string, state model.State) error
}

// busObserver is the observer of one presentation requested over the bus.
// It runs on the owning window manager's queue and never blocks on it.
type busObserver struct {
	windowID string
	registry *Registry
	emitter  func() SignalEmitter
	logger   *slog.Logger
}

func (o *busObserver) OnPresentationAvailable(token model.Token, p *orchestrator.Presentation) {
	o.registry.Register(p)

	if emitter := o.emitter(); emitter != nil {
		if err := emitter.EmitPresentationAvailable(token, o.windowID); err != nil {
			o.logger.Debug("failed to emit presentation available", "token", token, "error", err)
		}
	}
}

func (o *busObserver) OnPresentationStateChanged(token model.Token, state model.State) {
	o.registry.SetState(token, state)

	if emitter := o.emitter(); emitter != nil {
		if err := emitter.EmitPresentationStateChanged(token, o.windowID, state); err != nil {
			o.logger.Debug("failed to emit presentation state", "token", token, "error", err)
		}
	}
}

// OnNavigateBack always reports unhandled: remote content cannot consume a
// back event synchronously.
func (o *busObserver) OnNavigateBack(model.Token) bool {
	return false
}
