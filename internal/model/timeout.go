package model

import "time"

// TimeoutID identifies a timeout requested from a timeout manager.
type TimeoutID uint64

// TimeoutKind discriminates the Timeout variants.
type TimeoutKind int

const (
	// TimeoutDefault means "use the lifespan's configured timeout".
	TimeoutDefault TimeoutKind = iota
	// TimeoutDisabled means the presentation never times out.
	TimeoutDisabled
	// TimeoutExplicit carries a caller supplied duration.
	TimeoutExplicit
)

// Timeout is a tagged timeout value. The zero value is DefaultTimeout.
type Timeout struct {
	kind TimeoutKind
	d    time.Duration
}

// DefaultTimeout returns the Default variant.
func DefaultTimeout() Timeout { return Timeout{kind: TimeoutDefault} }

// DisabledTimeout returns the Disabled variant.
func DisabledTimeout() Timeout { return Timeout{kind: TimeoutDisabled} }

// ExplicitTimeout returns an explicit timeout of d. Values <= 0 are kept as
// given and reported invalid by Valid.
func ExplicitTimeout(d time.Duration) Timeout {
	return Timeout{kind: TimeoutExplicit, d: d}
}

// TimeoutFromMillis converts the integer form used on the bus and in
// scenario files: 0 is Default, -1 is Disabled, anything else is Explicit.
func TimeoutFromMillis(ms int64) Timeout {
	switch ms {
	case 0:
		return DefaultTimeout()
	case -1:
		return DisabledTimeout()
	default:
		return ExplicitTimeout(time.Duration(ms) * time.Millisecond)
	}
}

// Kind returns the variant.
func (t Timeout) Kind() TimeoutKind { return t.kind }

// IsDefault reports whether t is the Default variant.
func (t Timeout) IsDefault() bool { return t.kind == TimeoutDefault }

// IsDisabled reports whether t is the Disabled variant.
func (t Timeout) IsDisabled() bool { return t.kind == TimeoutDisabled }

// Duration returns the explicit duration, or 0 for the other variants.
func (t Timeout) Duration() time.Duration {
	if t.kind != TimeoutExplicit {
		return 0
	}
	return t.d
}

// Valid reports whether t can be used as is. Explicit durations must be
// positive.
func (t Timeout) Valid() bool {
	return t.kind != TimeoutExplicit || t.d > 0
}

// Millis is the inverse of TimeoutFromMillis.
func (t Timeout) Millis() int64 {
	switch t.kind {
	case TimeoutDisabled:
		return -1
	case TimeoutExplicit:
		return t.d.Milliseconds()
	default:
		return 0
	}
}

// String returns the string representation of Timeout.
func (t Timeout) String() string {
	switch t.kind {
	case TimeoutDefault:
		return "default"
	case TimeoutDisabled:
		return "disabled"
	default:
		return t.d.String()
	}
}
