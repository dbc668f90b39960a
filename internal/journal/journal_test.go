package journal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/presentd/internal/model"
)

func testChange(token model.Token, to model.State) model.StateChange {
	c := model.NewStateChange()
	c.ClientID = "client"
	c.WindowID = "main"
	c.Token = token
	c.Lifespan = model.LifespanShort
	c.From = model.StateNone
	c.To = to
	c.CreatedAt = c.At.Add(-time.Second)
	return c
}

func TestNewJSONLPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer p.Close()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "presentd_schema_version")
	assert.Equal(t, path, p.Path())
}

func TestJSONLPersistence_AppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)

	require.NoError(t, p.Append(testChange(0, model.StateForeground)))
	require.NoError(t, p.AppendBatch([]model.StateChange{
		testChange(0, model.StateBackground),
		testChange(1, model.StateForeground),
	}))

	changes, err := p.Load()
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, model.StateBackground, changes[1].To)
	assert.Equal(t, model.Token(1), changes[2].Token)

	// Appending after a load still goes to the end.
	require.NoError(t, p.Append(testChange(2, model.StateForeground)))
	require.NoError(t, p.Close())

	changes, err = ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, changes, 4)

	assert.ErrorIs(t, p.Append(testChange(3, model.StateForeground)), ErrPersistenceClosed)
}

func TestJSONLPersistence_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	require.NoError(t, p.Append(testChange(0, model.StateForeground)))
	require.NoError(t, p.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n{\"token\":5}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	changes, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, changes, 1)
}

func TestReadFile_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"presentd_schema_version":99,"created_at":0}`+"\n"), 0600))

	_, err := ReadFile(path)
	assert.Error(t, err)

	changes, err := ReadFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestJSONLPersistence_RewriteAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer p.Close()

	for i := range 5 {
		require.NoError(t, p.Append(testChange(model.Token(i), model.StateForeground)))
	}

	require.NoError(t, p.Rewrite([]model.StateChange{testChange(9, model.StateNone)}))
	changes, err := p.Load()
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, model.Token(9), changes[0].Token)

	_, err = os.Stat(path + ".bak")
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, p.Clear())
	changes, err = p.Load()
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestRecoverFromCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.jsonl")

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	require.NoError(t, p.Append(testChange(0, model.StateForeground)))
	require.NoError(t, p.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("\x00\x00garbage\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, RecoverFromCorruption(path))

	changes, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, changes, 1)

	backups, err := filepath.Glob(filepath.Join(dir, "journal.jsonl.corrupted.*"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestJournal_RecordsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	j, err := Open(path, Options{})
	require.NoError(t, err)

	j.StateChanged(testChange(0, model.StateForeground))
	j.StateChanged(testChange(0, model.StateNone))
	j.RequestDropped("missing", "I", errors.New("unknown window"))

	assert.Equal(t, 2, j.Len())
	assert.Equal(t, 1, j.Dropped())
	require.NoError(t, j.Close())

	reopened, err := Open(path, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	entries := reopened.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, model.StateNone, entries[1].To)
	assert.Equal(t, time.Second, entries[0].Age().Round(time.Second))
}

func TestJournal_Compacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	j, err := Open(path, Options{MaxEntries: 10})
	require.NoError(t, err)
	defer j.Close()

	for i := range 11 {
		j.StateChanged(testChange(model.Token(i), model.StateForeground))
	}
	assert.Equal(t, 11, j.Len(), "within the slack")

	j.StateChanged(testChange(11, model.StateForeground))
	require.Equal(t, 10, j.Len())
	assert.Equal(t, model.Token(2), j.Entries()[0].Token)

	onDisk, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, onDisk, 10)
}

func TestJournal_CompactsOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	j, err := Open(path, Options{})
	require.NoError(t, err)
	for i := range 30 {
		j.StateChanged(testChange(model.Token(i), model.StateForeground))
	}
	require.NoError(t, j.Close())

	j, err = Open(path, Options{MaxEntries: 5})
	require.NoError(t, err)
	defer j.Close()
	assert.Equal(t, 5, j.Len())

	_, err = Open(filepath.Join(t.TempDir(), "other.jsonl"), Options{MaxEntries: -1})
	assert.Error(t, err)
}

func TestJournal_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	j, err := Open(path, Options{})
	require.NoError(t, err)
	defer j.Close()

	j.StateChanged(testChange(0, model.StateForeground))
	j.StateChanged(testChange(0, model.StateNone))
	removed, err := j.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Zero(t, j.Len())

	onDisk, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, onDisk)
}

func TestOpen_RecoversUnreadableJournal(t *testing.T) {
	tests := []struct {
		name    string
		write   func(t *testing.T, path string)
		entries int
	}{
		{
			name: "newer schema",
			write: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte(`{"presentd_schema_version":99,"created_at":0}`+"\n"), 0600))
			},
			entries: 0,
		},
		{
			name: "oversized line",
			write: func(t *testing.T, path string) {
				p, err := NewJSONLPersistence(path)
				require.NoError(t, err)
				require.NoError(t, p.Append(testChange(0, model.StateForeground)))
				require.NoError(t, p.Close())

				f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
				require.NoError(t, err)
				_, err = f.WriteString(strings.Repeat("x", maxLineSize+1) + "\n")
				require.NoError(t, err)
				require.NoError(t, f.Close())
			},
			entries: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "journal.jsonl")
			tt.write(t, path)

			_, err := ReadFile(path)
			require.ErrorIs(t, err, ErrUnreadable)

			j, err := Open(path, Options{})
			require.NoError(t, err)
			defer j.Close()
			assert.Equal(t, tt.entries, j.Len())

			j.StateChanged(testChange(5, model.StateForeground))
			onDisk, err := ReadFile(path)
			require.NoError(t, err)
			assert.Len(t, onDisk, tt.entries+1)

			backups, err := filepath.Glob(filepath.Join(dir, "journal.jsonl.corrupted.*"))
			require.NoError(t, err)
			assert.Len(t, backups, 1)
		})
	}
}

type failingPersistence struct {
	appendErr error
	appended  int
}

func (f *failingPersistence) Load() ([]model.StateChange, error) { return nil, nil }

func (f *failingPersistence) Append(model.StateChange) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended++
	return nil
}

func (f *failingPersistence) AppendBatch(cs []model.StateChange) error { return nil }
func (f *failingPersistence) Rewrite(cs []model.StateChange) error     { return nil }
func (f *failingPersistence) Clear() error                             { return nil }
func (f *failingPersistence) Close() error                             { return nil }

func TestJournal_FailedWriteStaysOutOfMemory(t *testing.T) {
	p := &failingPersistence{}
	j, err := New(p, Options{})
	require.NoError(t, err)

	j.StateChanged(testChange(0, model.StateForeground))
	require.Equal(t, 1, j.Len())

	p.appendErr = errors.New("disk full")
	j.StateChanged(testChange(1, model.StateForeground))
	assert.Equal(t, 1, j.Len())
	assert.Equal(t, model.Token(0), j.Entries()[0].Token)

	p.appendErr = nil
	j.StateChanged(testChange(2, model.StateForeground))
	assert.Equal(t, 2, j.Len())
	assert.Equal(t, 2, p.appended)
}

func TestFileWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	j, err := Open(path, Options{})
	require.NoError(t, err)
	defer j.Close()

	updates := make(chan int, 16)
	fw, err := NewFileWatcher(path, func(cs []model.StateChange) { updates <- len(cs) }, nil)
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	defer fw.Stop()

	j.StateChanged(testChange(0, model.StateForeground))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-updates:
			if n == 1 {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not report the new entry")
		}
	}
}
