package orchestrator

import (
	"time"

	"github.com/jmylchreest/presentd/internal/model"
)

// StateTracker owns device level window and focus tracking. The Client is
// registered as its window observer.
type StateTracker interface {
	AcquireWindow(clientID, windowID, metadata string)
	ReleaseWindow(clientID, windowID string)
	UpdatePresentationMetadata(clientID, windowID, metadata string)
	FocusedWindowID() string
	AddWindowObserver(observer model.WindowObserver)
}

// windowObserverRemover is implemented by trackers that support
// unregistering observers.
type windowObserverRemover interface {
	RemoveWindowObserver(observer model.WindowObserver)
}

// TimeoutManager schedules presentation timeouts. Callbacks must be invoked
// asynchronously, never from inside RequestTimeout.
type TimeoutManager interface {
	RequestTimeout(d time.Duration, callback func()) model.TimeoutID
	StopTimeout(id model.TimeoutID) bool
}

// LifespanMapper resolves the default timeout of a lifespan.
type LifespanMapper interface {
	Timeout(lifespan model.Lifespan) model.Timeout
}

// PresentationObserver is supplied with every window request and receives
// the lifecycle of the resulting presentation.
type PresentationObserver interface {
	OnPresentationAvailable(token model.Token, presentation *Presentation)
	OnPresentationStateChanged(token model.Token, state model.State)
	// OnNavigateBack reports whether the content handled the back event
	// itself.
	OnNavigateBack(token model.Token) bool
}

// Recorder receives orchestrator events for journaling and metrics. It is
// optional.
type Recorder interface {
	StateChanged(change model.StateChange)
	RequestDropped(windowID, interfaceName string, err error)
}

// foregroundCoordinator is the narrow view of the Client a WindowManager
// uses. Both methods only post work and never block.
type foregroundCoordinator interface {
	PrepareToForegroundWindow(windowID string, continuation func())
	UpdateForegroundWindow()
}

// windowResolver routes a presentation back to its window manager by id.
type windowResolver interface {
	withWindowManager(windowID string, fn func(wm *WindowManager))
}

type nopRecorder struct{}

func (nopRecorder) StateChanged(model.StateChange)        {}
func (nopRecorder) RequestDropped(string, string, error) {}
