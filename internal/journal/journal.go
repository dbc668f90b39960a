// Package journal records presentation state changes to a JSONL file and
// keeps the most recent entries in memory for status queries.
package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jmylchreest/presentd/internal/model"
)

// Journal records state changes. It implements the orchestrator recorder.
type Journal struct {
	persistence Persistence
	maxEntries  int
	logger      *slog.Logger

	mu      sync.RWMutex
	entries []model.StateChange
	dropped int
}

// Options configures a Journal.
type Options struct {
	// MaxEntries bounds the journal; 0 is unlimited. The file is compacted
	// once it grows a tenth past the bound.
	MaxEntries int
	Logger     *slog.Logger
}

// Open creates or loads the journal at path. An unreadable file is moved
// aside and replaced by the entries that still parse.
func Open(path string, opts Options) (*Journal, error) {
	j, err := open(path, opts)
	if !errors.Is(err, ErrUnreadable) {
		return j, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("journal unreadable, recovering", "path", path, "error", err)

	if err := RecoverFromCorruption(path); err != nil {
		return nil, fmt.Errorf("recover journal %s: %w", path, err)
	}
	return open(path, opts)
}

func open(path string, opts Options) (*Journal, error) {
	p, err := NewJSONLPersistence(path)
	if err != nil {
		return nil, err
	}
	j, err := New(p, opts)
	if err != nil {
		p.Close()
		return nil, err
	}
	return j, nil
}

// New creates a journal over p and loads its entries.
func New(p Persistence, opts Options) (*Journal, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxEntries < 0 {
		return nil, errors.New("max entries must be >= 0")
	}

	entries, err := p.Load()
	if err != nil {
		return nil, err
	}

	j := &Journal{
		persistence: p,
		maxEntries:  opts.MaxEntries,
		logger:      logger,
		entries:     entries,
	}
	if j.overLimit() {
		j.mu.Lock()
		err := j.compactLocked()
		j.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("journal loaded", "entries", len(j.entries))
	return j, nil
}

// StateChanged appends a state change. An entry that cannot be written is
// logged and kept out of memory so Entries always matches the file.
func (j *Journal) StateChanged(change model.StateChange) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.persistence.Append(change); err != nil {
		j.logger.Warn("failed to append journal entry", "token", change.Token, "error", err)
		return
	}
	j.entries = append(j.entries, change)

	if j.overLimit() {
		if err := j.compactLocked(); err != nil {
			j.logger.Warn("failed to compact journal", "error", err)
		}
	}
}

// RequestDropped counts dropped requests.
func (j *Journal) RequestDropped(windowID, interfaceName string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.dropped++
	j.logger.Debug("dropped request noted", "window", windowID, "interface", interfaceName, "error", err)
}

// Entries returns all entries in insertion order.
func (j *Journal) Entries() []model.StateChange {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return slices.Clone(j.entries)
}

// Len returns the number of entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Dropped returns the number of dropped requests seen since start.
func (j *Journal) Dropped() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.dropped
}

// Clear removes every entry and returns how many were removed.
func (j *Journal) Clear() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.persistence.Clear(); err != nil {
		return 0, err
	}
	removed := len(j.entries)
	j.entries = nil
	j.logger.Info("journal cleared", "removed", removed)
	return removed, nil
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	return j.persistence.Close()
}

func (j *Journal) overLimit() bool {
	return j.maxEntries > 0 && len(j.entries) > j.maxEntries+j.maxEntries/10
}

func (j *Journal) compactLocked() error {
	if len(j.entries) > j.maxEntries {
		j.entries = slices.Clone(j.entries[len(j.entries)-j.maxEntries:])
	}
	if err := j.persistence.Rewrite(j.entries); err != nil {
		return err
	}
	j.logger.Debug("journal compacted", "entries", len(j.entries))
	return nil
}
