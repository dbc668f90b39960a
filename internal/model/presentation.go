// Package model defines the core data structures for presentd.
package model

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Token identifies a single window request. Tokens are allocated per client
// starting at 0 and are never reused.
type Token uint64

// Lifespan classifies how long content is expected to stay relevant. It
// drives the default timeout and the background eviction policy.
type Lifespan int

const (
	LifespanTransient Lifespan = iota
	LifespanShort
	LifespanLong
	LifespanPermanent
)

// LifespanNames maps lifespans to their configuration names.
var LifespanNames = map[Lifespan]string{
	LifespanTransient: "transient",
	LifespanShort:     "short",
	LifespanLong:      "long",
	LifespanPermanent: "permanent",
}

// String returns the string representation of Lifespan.
func (l Lifespan) String() string {
	if name, ok := LifespanNames[l]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifespan) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifespan) UnmarshalText(text []byte) error {
	parsed, err := ParseLifespan(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLifespan parses a lifespan name. Matching is case-insensitive.
func ParseLifespan(s string) (Lifespan, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, name := range LifespanNames {
		if name == s {
			return l, nil
		}
	}
	return LifespanShort, fmt.Errorf("%w: %q", ErrInvalidLifespan, s)
}

// State is the visibility state of a presentation.
type State int

const (
	// StateNone is terminal: the presentation has been dismissed.
	StateNone State = iota
	// StateBackground means the presentation is stacked below another one.
	StateBackground
	// StateForeground means the presentation is on top of the focused window.
	StateForeground
	// StateForegroundUnfocused means the presentation is on top of a window
	// that is not focused.
	StateForegroundUnfocused
)

// StateNames maps states to their wire names.
var StateNames = map[State]string{
	StateNone:                "none",
	StateBackground:          "background",
	StateForeground:          "foreground",
	StateForegroundUnfocused: "foreground_unfocused",
}

// String returns the string representation of State.
func (s State) String() string {
	if name, ok := StateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState parses a state name. Both "foreground_unfocused" and
// "foreground-unfocused" are accepted.
func ParseState(s string) (State, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for st, name := range StateNames {
		if name == s {
			return st, nil
		}
	}
	return StateNone, fmt.Errorf("%w: %q", ErrInvalidState, s)
}

// IsVisible reports whether the state occupies the top of a window.
func (s State) IsVisible() bool {
	return s == StateForeground || s == StateForegroundUnfocused
}

// Viewport describes a viewport the content can be rendered on. The
// orchestrator carries it without interpreting it.
type Viewport struct {
	Mode      string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Shape     string `json:"shape,omitempty" yaml:"shape,omitempty"`
	MinWidth  int    `json:"min_width,omitempty" yaml:"min_width,omitempty"`
	MaxWidth  int    `json:"max_width,omitempty" yaml:"max_width,omitempty"`
	MinHeight int    `json:"min_height,omitempty" yaml:"min_height,omitempty"`
	MaxHeight int    `json:"max_height,omitempty" yaml:"max_height,omitempty"`
}

// PresentationOptions holds the request parameters of a presentation.
// WindowID and RequestToken are fixed once the presentation exists.
type PresentationOptions struct {
	WindowID           string
	Timeout            Timeout
	RequestToken       Token
	Lifespan           Lifespan
	SupportedViewports []Viewport
	ReceivedAt         time.Time
	InterfaceName      string
	Metadata           string
}

// Clone returns a copy that shares no slices with o.
func (o PresentationOptions) Clone() PresentationOptions {
	c := o
	if o.SupportedViewports != nil {
		c.SupportedViewports = append([]Viewport(nil), o.SupportedViewports...)
	}
	return c
}

// StateChange records one presentation state transition. Creation is
// reported with From set to StateNone.
type StateChange struct {
	ID            string    `json:"id"`
	At            time.Time `json:"at"`
	ClientID      string    `json:"client_id"`
	WindowID      string    `json:"window_id"`
	Token         Token     `json:"token"`
	InterfaceName string    `json:"interface,omitempty"`
	Lifespan      Lifespan  `json:"lifespan"`
	From          State     `json:"from"`
	To            State     `json:"to"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewStateChange returns a StateChange stamped with a fresh ULID and the
// current time.
func NewStateChange() StateChange {
	now := time.Now()
	return StateChange{
		ID: NewID(now),
		At: now,
	}
}

// Age returns how long the presentation had existed when the change happened.
func (c StateChange) Age() time.Duration {
	if c.CreatedAt.IsZero() {
		return 0
	}
	return c.At.Sub(c.CreatedAt)
}

// NewID generates a ULID string for the given time.
func NewID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}
