package model

import (
	"errors"
	"slices"
)

// Validation errors.
var (
	ErrEmptyWindowID      = errors.New("window id cannot be empty")
	ErrNoInterfaces       = errors.New("window must support at least one interface")
	ErrEmptyInterfaceName = errors.New("interface name cannot be empty")
	ErrInvalidLifespan    = errors.New("invalid lifespan")
	ErrInvalidState       = errors.New("invalid state")
)

// WindowInstance describes one logical display window. A window with a
// higher ZOrderIndex preempts windows with a lower one.
type WindowInstance struct {
	ID                  string   `json:"id" toml:"id" yaml:"id"`
	ZOrderIndex         int      `json:"z_order" toml:"z_order" yaml:"z_order"`
	SupportedInterfaces []string `json:"interfaces" toml:"interfaces" yaml:"interfaces"`
}

// Supports reports whether the window can host content for iface.
func (w WindowInstance) Supports(iface string) bool {
	return slices.Contains(w.SupportedInterfaces, iface)
}

// Clone returns a deep copy of w.
func (w WindowInstance) Clone() WindowInstance {
	c := w
	c.SupportedInterfaces = slices.Clone(w.SupportedInterfaces)
	return c
}

// Equal reports whether two window descriptions are identical.
func (w WindowInstance) Equal(other WindowInstance) bool {
	return w.ID == other.ID &&
		w.ZOrderIndex == other.ZOrderIndex &&
		slices.Equal(w.SupportedInterfaces, other.SupportedInterfaces)
}

// Validate checks that the window has all required fields.
func (w WindowInstance) Validate() error {
	if w.ID == "" {
		return ErrEmptyWindowID
	}
	if len(w.SupportedInterfaces) == 0 {
		return ErrNoInterfaces
	}
	for _, iface := range w.SupportedInterfaces {
		if iface == "" {
			return ErrEmptyInterfaceName
		}
	}
	return nil
}

// WindowObserver receives window lifecycle notifications from a state
// tracker.
type WindowObserver interface {
	OnWindowAdded(window WindowInstance)
	OnWindowModified(window WindowInstance)
	OnWindowRemoved(windowID string)
}
