package input

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmylchreest/presentd/internal/dbus"
	"github.com/jmylchreest/presentd/internal/model"
)

// StdinAdapter reads window requests from standard input.
type StdinAdapter struct {
	reader io.Reader
}

// NewStdinAdapter creates a new StdinAdapter reading from os.Stdin.
func NewStdinAdapter() *StdinAdapter {
	return &StdinAdapter{reader: os.Stdin}
}

// NewStdinAdapterWithReader creates a new StdinAdapter with a custom reader.
func NewStdinAdapterWithReader(r io.Reader) *StdinAdapter {
	return &StdinAdapter{reader: r}
}

// Name returns the adapter identifier.
func (a *StdinAdapter) Name() string {
	return "stdin"
}

// Import reads requests from the reader.
// Supports two formats:
// 1. JSON array of requests
// 2. one JSON request per line (blank lines and # comments skipped)
func (a *StdinAdapter) Import(ctx context.Context) ([]dbus.Request, error) {
	scanner := bufio.NewScanner(a.reader)
	const maxSize = 10 * 1024 * 1024 // 10MB max
	scanner.Buffer(make([]byte, 64*1024), maxSize)

	var data []byte
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data = append(data, scanner.Bytes()...)
		data = append(data, '\n')
	}

	if err := scanner.Err(); err != nil {
		return nil, &AdapterError{
			Source:  a.Name(),
			Message: "failed to read input",
			Err:     err,
		}
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var entries []requestEntry
	if data[0] == '[' {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, &AdapterError{
				Source:  a.Name(),
				Message: "failed to parse JSON input",
				Err:     err,
			}
		}
	} else {
		var err error
		if entries, err = parseJSONLines(data); err != nil {
			return nil, &AdapterError{
				Source:  a.Name(),
				Message: "failed to parse JSON lines input",
				Err:     err,
			}
		}
	}

	requests := make([]dbus.Request, 0, len(entries))
	for i, entry := range entries {
		req, err := entry.request()
		if err != nil {
			return nil, &AdapterError{
				Source:  a.Name(),
				Message: fmt.Sprintf("request %d", i+1),
				Err:     err,
			}
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func parseJSONLines(data []byte) ([]requestEntry, error) {
	var entries []requestEntry
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var entry requestEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// requestEntry is the JSON form of a window request.
type requestEntry struct {
	Window    string `json:"window"`
	Interface string `json:"interface"`
	Lifespan  string `json:"lifespan,omitempty"`
	TimeoutMS int64  `json:"timeout_ms,omitempty"`
	Metadata  string `json:"metadata,omitempty"`
}

func (e requestEntry) request() (dbus.Request, error) {
	if e.Window == "" {
		return dbus.Request{}, model.ErrEmptyWindowID
	}

	lifespan := model.LifespanShort
	if e.Lifespan != "" {
		var err error
		if lifespan, err = model.ParseLifespan(e.Lifespan); err != nil {
			return dbus.Request{}, err
		}
	}

	return dbus.Request{
		WindowID:      sanitizeString(e.Window),
		InterfaceName: sanitizeString(e.Interface),
		Lifespan:      lifespan,
		Timeout:       model.TimeoutFromMillis(e.TimeoutMS),
		Metadata:      e.Metadata,
	}, nil
}

// sanitizeString replaces control characters with spaces.
func sanitizeString(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r < 32 {
			result.WriteRune(' ')
		} else {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
