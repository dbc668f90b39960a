package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/presentd/internal/model"
)

// SchemaVersion is the current journal schema version.
const SchemaVersion = 1

const maxLineSize = 1024 * 1024 // 1MB

var (
	// ErrPersistenceClosed is returned when operations are attempted on a closed persistence.
	ErrPersistenceClosed = errors.New("persistence is closed")

	// ErrUnreadable wraps decode failures that stop a journal from loading:
	// a newer schema header or an oversized line.
	ErrUnreadable = errors.New("journal is unreadable")
)

// Persistence defines the interface for journal storage.
type Persistence interface {
	// Load reads all entries from storage.
	Load() ([]model.StateChange, error)

	// Append adds an entry to storage.
	Append(c model.StateChange) error

	// AppendBatch adds multiple entries efficiently.
	AppendBatch(cs []model.StateChange) error

	// Rewrite replaces the entire storage file (used after prune).
	Rewrite(cs []model.StateChange) error

	// Clear removes all stored entries.
	Clear() error

	// Close releases file handles and resources.
	Close() error
}

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	SchemaVersion int   `json:"presentd_schema_version"`
	CreatedAt     int64 `json:"created_at"`
}

// JSONLPersistence implements Persistence using JSONL files.
type JSONLPersistence struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// NewJSONLPersistence creates a new JSONLPersistence.
// Creates the file if it doesn't exist.
func NewJSONLPersistence(path string) (*JSONLPersistence, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	p := &JSONLPersistence{
		path: path,
		file: file,
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if info.Size() == 0 {
		if err := p.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return p, nil
}

// Path returns the journal file path.
func (p *JSONLPersistence) Path() string { return p.path }

func (p *JSONLPersistence) writeHeader() error {
	header := schemaHeader{
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().Unix(),
	}

	data, err := json.Marshal(header)
	if err != nil {
		return err
	}

	_, err = p.file.Write(append(data, '\n'))
	return err
}

// Load reads all entries from storage.
func (p *JSONLPersistence) Load() ([]model.StateChange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return nil, ErrPersistenceClosed
	}

	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", p.path, err)
	}

	changes, err := decode(p.file)
	if err != nil {
		return changes, err
	}

	// Seek back to end for appending
	if _, err := p.file.Seek(0, io.SeekEnd); err != nil {
		return changes, err
	}
	return changes, nil
}

// ReadFile reads a journal without opening it for writing. A missing file
// is an empty journal.
func ReadFile(path string) ([]model.StateChange, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	return decode(file)
}

// decode parses a journal stream. Malformed lines are skipped.
func decode(r io.Reader) ([]model.StateChange, error) {
	var changes []model.StateChange
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.SchemaVersion > 0 {
				if header.SchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("%w: unsupported schema version %d (max: %d)",
						ErrUnreadable, header.SchemaVersion, SchemaVersion)
				}
				continue
			}
		}

		var c model.StateChange
		if err := json.Unmarshal(line, &c); err != nil {
			continue
		}
		if c.ID != "" {
			changes = append(changes, c)
		}
	}

	if err := scanner.Err(); err != nil {
		return changes, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return changes, nil
}

// Append adds an entry to storage.
func (p *JSONLPersistence) Append(c model.StateChange) error {
	return p.AppendBatch([]model.StateChange{c})
}

// AppendBatch adds multiple entries efficiently.
func (p *JSONLPersistence) AppendBatch(cs []model.StateChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return ErrPersistenceClosed
	}

	if err := p.writeEntries(cs); err != nil {
		return err
	}
	return p.file.Sync()
}

func (p *JSONLPersistence) writeEntries(cs []model.StateChange) error {
	for _, c := range cs {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if _, err := p.file.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// Rewrite replaces the entire storage file (used after prune).
func (p *JSONLPersistence) Rewrite(cs []model.StateChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}
	return p.replaceLocked(cs)
}

// Clear removes all stored entries.
func (p *JSONLPersistence) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}
	return p.replaceLocked(nil)
}

// replaceLocked swaps the file for a fresh one holding cs. The old file is
// kept as a backup until the new one is synced.
func (p *JSONLPersistence) replaceLocked(cs []model.StateChange) error {
	if p.file != nil {
		if err := p.file.Close(); err != nil {
			return err
		}
		p.file = nil
	}

	backupPath := p.path + ".bak"
	if err := os.Rename(p.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0600)
	if err != nil {
		os.Rename(backupPath, p.path)
		return fmt.Errorf("failed to create new file: %w", err)
	}
	p.file = file

	if err := p.writeHeader(); err != nil {
		return err
	}
	if err := p.writeEntries(cs); err != nil {
		return err
	}
	if err := p.file.Sync(); err != nil {
		return err
	}

	os.Remove(backupPath)
	return nil
}

// Close releases file handles and resources.
func (p *JSONLPersistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		return err
	}
	return nil
}

// RecoverFromCorruption moves a damaged journal aside and rewrites only the
// entries that still parse.
func RecoverFromCorruption(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	valid, _ := decode(file)
	file.Close()

	backupPath := path + ".corrupted." + time.Now().Format("20060102-150405")
	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("failed to backup corrupted file: %w", err)
	}

	p, err := NewJSONLPersistence(path)
	if err != nil {
		return err
	}
	defer p.Close()

	return p.AppendBatch(valid)
}
