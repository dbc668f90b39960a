package tracker

import "errors"

var (
	// ErrUnknownWindow is returned when updating a window that was never added.
	ErrUnknownWindow = errors.New("unknown window")
	// ErrDuplicateWindow is returned when a window set repeats an id.
	ErrDuplicateWindow = errors.New("duplicate window id")
)
