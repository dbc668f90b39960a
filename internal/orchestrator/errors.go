package orchestrator

import "errors"

// Errors returned by the orchestrator.
var (
	ErrShutdown             = errors.New("orchestrator component is shut down")
	ErrNoStateTracker       = errors.New("state tracker is required")
	ErrNoTimeoutManager     = errors.New("timeout manager is required")
	ErrUnknownWindow        = errors.New("unknown window")
	ErrUnsupportedInterface = errors.New("interface not supported by window")
	ErrNoObserver           = errors.New("presentation observer is required")
)
