package daemon

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/presentd/internal/dbus"
	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/orchestrator"
)

// PresentationEntry tracks a presentation created through the bus.
type PresentationEntry struct {
	Token        model.Token
	WindowID     string
	State        model.State
	CreatedAt    time.Time
	Presentation *orchestrator.Presentation
}

// Registry maps bus tokens to live presentations. Entries appear when the
// orchestrator reports a presentation available and disappear when it
// reaches NONE, so requests that were dropped during routing never show up.
type Registry struct {
	mu      sync.RWMutex
	byToken map[model.Token]*PresentationEntry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byToken: make(map[model.Token]*PresentationEntry),
	}
}

// Register records a newly available presentation.
func (r *Registry) Register(p *orchestrator.Presentation) *PresentationEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &PresentationEntry{
		Token:        p.Token(),
		WindowID:     p.WindowID(),
		State:        p.State(),
		CreatedAt:    p.CreatedAt(),
		Presentation: p,
	}
	r.byToken[entry.Token] = entry
	return entry
}

// Get returns the presentation behind token.
func (r *Registry) Get(token model.Token) (*orchestrator.Presentation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.byToken[token]
	if !exists {
		return nil, fmt.Errorf("token %d: %w", token, dbus.ErrUnknownToken)
	}
	return entry.Presentation, nil
}

// WindowID returns the window of token, or "" when unknown.
func (r *Registry) WindowID(token model.Token) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, exists := r.byToken[token]; exists {
		return entry.WindowID
	}
	return ""
}

// SetState updates the state of token. NONE removes the entry.
func (r *Registry) SetState(token model.Token, state model.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.byToken[token]
	if !exists {
		return
	}

	if state == model.StateNone {
		delete(r.byToken, token)
		return
	}
	entry.State = state
}

// Entries returns the live entries in ascending token order.
func (r *Registry) Entries() []dbus.BusPresentation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]dbus.BusPresentation, 0, len(r.byToken))
	for _, entry := range r.byToken {
		entries = append(entries, dbus.BusPresentation{
			Token:     entry.Token,
			WindowID:  entry.WindowID,
			State:     entry.State,
			CreatedAt: entry.CreatedAt,
		})
	}
	slices.SortFunc(entries, func(a, b dbus.BusPresentation) int {
		return cmp.Compare(a.Token, b.Token)
	})
	return entries
}

// Count returns the number of tracked presentations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

// VisibleCount returns the number of presentations on top of a window.
func (r *Registry) VisibleCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, entry := range r.byToken {
		if entry.State.IsVisible() {
			count++
		}
	}
	return count
}
