package core

import (
	"slices"
	"strings"
	"time"

	"github.com/jmylchreest/presentd/internal/model"
)

// LookupByID finds an entry by its journal id.
// Returns nil if not found.
func LookupByID(changes []model.StateChange, id string) *model.StateChange {
	for i := range changes {
		if changes[i].ID == id {
			return &changes[i]
		}
	}
	return nil
}

// LookupByIndex finds an entry by its index (1-based for user-friendliness).
// Returns nil if index is out of bounds.
func LookupByIndex(changes []model.StateChange, index int) *model.StateChange {
	idx := index - 1
	if idx < 0 || idx >= len(changes) {
		return nil
	}
	return &changes[idx]
}

// Search finds entries whose window, interface or client contains term.
// Case-insensitive substring match.
func Search(changes []model.StateChange, term string) []model.StateChange {
	if term == "" {
		return changes
	}

	term = strings.ToLower(term)
	var result []model.StateChange

	for _, c := range changes {
		if strings.Contains(strings.ToLower(c.WindowID), term) ||
			strings.Contains(strings.ToLower(c.InterfaceName), term) ||
			strings.Contains(strings.ToLower(c.ClientID), term) {
			result = append(result, c)
		}
	}

	return result
}

// UniqueWindows returns a sorted list of window ids seen in the entries.
func UniqueWindows(changes []model.StateChange) []string {
	seen := make(map[string]bool)
	var windows []string

	for _, c := range changes {
		if c.WindowID != "" && !seen[c.WindowID] {
			seen[c.WindowID] = true
			windows = append(windows, c.WindowID)
		}
	}

	slices.Sort(windows)
	return windows
}

// Lifecycle summarises the journal entries of one presentation.
type Lifecycle struct {
	ClientID      string
	Token         model.Token
	WindowID      string
	InterfaceName string
	Lifespan      model.Lifespan
	CreatedAt     time.Time
	State         model.State
	Transitions   int
	// EndedAt is set once the presentation reached NONE.
	EndedAt time.Time
}

// Duration returns how long the presentation lived, or how long it has
// been alive when it has not ended.
func (l Lifecycle) Duration(now time.Time) time.Duration {
	if !l.EndedAt.IsZero() {
		return l.EndedAt.Sub(l.CreatedAt)
	}
	return now.Sub(l.CreatedAt)
}

// Lifecycles groups entries by client and token, in order of first
// appearance. Tokens restart when the daemon restarts with a new client id,
// so the pair identifies a presentation.
func Lifecycles(changes []model.StateChange) []Lifecycle {
	type key struct {
		client string
		token  model.Token
	}
	index := make(map[key]int)
	var result []Lifecycle

	for _, c := range changes {
		k := key{c.ClientID, c.Token}
		i, ok := index[k]
		if !ok {
			i = len(result)
			index[k] = i
			result = append(result, Lifecycle{
				ClientID:      c.ClientID,
				Token:         c.Token,
				WindowID:      c.WindowID,
				InterfaceName: c.InterfaceName,
				CreatedAt:     c.CreatedAt,
			})
		}
		l := &result[i]
		l.Lifespan = c.Lifespan
		l.State = c.To
		l.Transitions++
		if c.To == model.StateNone {
			l.EndedAt = c.At
		}
	}

	return result
}
