package orchestrator

import (
	"time"

	"github.com/jmylchreest/presentd/internal/model"
)

// WindowSnapshot is a point in time view of one window.
type WindowSnapshot struct {
	Window model.WindowInstance `json:"window"`
	// Presentations are ordered top first.
	Presentations []PresentationSnapshot `json:"presentations"`
}

// PresentationSnapshot is a point in time view of one presentation.
type PresentationSnapshot struct {
	Token         model.Token    `json:"token"`
	WindowID      string         `json:"window_id"`
	InterfaceName string         `json:"interface"`
	Lifespan      model.Lifespan `json:"lifespan"`
	State         model.State    `json:"state"`
	Timeout       string         `json:"timeout"`
	Metadata      string         `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Snapshot is a point in time view of a client.
type Snapshot struct {
	ClientID      string           `json:"client_id"`
	FocusedWindow string           `json:"focused_window,omitempty"`
	Windows       []WindowSnapshot `json:"windows"`
}

// Top returns the top presentation of the window.
func (w WindowSnapshot) Top() (PresentationSnapshot, bool) {
	if len(w.Presentations) == 0 {
		return PresentationSnapshot{}, false
	}
	return w.Presentations[0], true
}

// Presentation finds a presentation by token across all windows.
func (s Snapshot) Presentation(token model.Token) (PresentationSnapshot, bool) {
	for _, w := range s.Windows {
		for _, p := range w.Presentations {
			if p.Token == token {
				return p, true
			}
		}
	}
	return PresentationSnapshot{}, false
}

// Count returns the number of presentations across all windows.
func (s Snapshot) Count() int {
	n := 0
	for _, w := range s.Windows {
		n += len(w.Presentations)
	}
	return n
}

func snapshotOf(p *Presentation) PresentationSnapshot {
	opts := p.Options()
	return PresentationSnapshot{
		Token:         p.Token(),
		WindowID:      p.WindowID(),
		InterfaceName: opts.InterfaceName,
		Lifespan:      opts.Lifespan,
		State:         p.State(),
		Timeout:       opts.Timeout.String(),
		Metadata:      opts.Metadata,
		CreatedAt:     p.CreatedAt(),
	}
}
