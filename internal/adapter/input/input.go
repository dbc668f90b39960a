// Package input provides input adapters that read batches of window
// requests for presentctl.
package input

import (
	"context"
	"os"

	"github.com/jmylchreest/presentd/internal/dbus"
)

// InputAdapter reads window requests from a source.
type InputAdapter interface {
	// Name returns the adapter identifier (e.g., "stdin", "file").
	Name() string

	// Import reads the requests from the source.
	Import(ctx context.Context) ([]dbus.Request, error)
}

// NewAdapter creates an InputAdapter for the specified source: "-" or
// "stdin" reads standard input, anything else is a file path.
func NewAdapter(source string) (InputAdapter, error) {
	switch source {
	case "", "-", "stdin":
		return NewStdinAdapter(), nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, &AdapterError{
			Source:  source,
			Message: "failed to open request file",
			Err:     err,
		}
	}
	return &fileAdapter{StdinAdapter: NewStdinAdapterWithReader(f), file: f}, nil
}

// fileAdapter reads requests from a file and closes it after the import.
type fileAdapter struct {
	*StdinAdapter
	file *os.File
}

func (a *fileAdapter) Name() string {
	return "file"
}

func (a *fileAdapter) Import(ctx context.Context) ([]dbus.Request, error) {
	defer a.file.Close()
	return a.StdinAdapter.Import(ctx)
}

// AdapterError represents an adapter-related error.
type AdapterError struct {
	Source  string
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
