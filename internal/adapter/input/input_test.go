package input

import (
	"context"
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

func TestStdinAdapter_Name(t *testing.T) {
	assert.Equal(t, "stdin", NewStdinAdapter().Name())
}

func TestStdinAdapter_JSONArray(t *testing.T) {
	adapter := NewStdinAdapterWithReader(strings.NewReader(`[
		{"window": "main", "interface": "card", "lifespan": "long", "metadata": "page=1"},
		{"window": "overlay", "interface": "alert", "timeout_ms": 2500}
	]`))

	requests, err := adapter.Import(context.Background())
	require.NoError(t, err)
	require.Len(t, requests, 2)

	assert.Equal(t, "main", requests[0].WindowID)
	assert.Equal(t, model.LifespanLong, requests[0].Lifespan)
	assert.True(t, requests[0].Timeout.IsDefault())
	assert.Equal(t, "page=1", requests[0].Metadata)

	assert.Equal(t, model.LifespanShort, requests[1].Lifespan, "short when omitted")
	assert.Equal(t, 2500*time.Millisecond, requests[1].Timeout.Duration())
}

func TestStdinAdapter_JSONLines(t *testing.T) {
	adapter := NewStdinAdapterWithReader(strings.NewReader(`
# warm up
{"window": "main", "interface": "card", "lifespan": "transient"}

{"window": "main", "interface": "card", "timeout_ms": -1}
`))

	requests, err := adapter.Import(context.Background())
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, model.LifespanTransient, requests[0].Lifespan)
	assert.True(t, requests[1].Timeout.IsDisabled())
}

func TestStdinAdapter_Empty(t *testing.T) {
	requests, err := NewStdinAdapterWithReader(strings.NewReader("  \n")).Import(context.Background())
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestStdinAdapter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"bad array", `[{"window": }]`, nil},
		{"bad line", "{\"window\": \"main\"}\nnot json", nil},
		{"missing window", `[{"interface": "card"}]`, model.ErrEmptyWindowID},
		{"bad lifespan", `{"window": "main", "lifespan": "forever"}`, model.ErrInvalidLifespan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStdinAdapterWithReader(strings.NewReader(tt.input)).Import(context.Background())
			require.Error(t, err)

			var adapterErr *AdapterError
			require.True(t, errors.As(err, &adapterErr))
			assert.Equal(t, "stdin", adapterErr.Source)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewAdapter(t *testing.T) {
	for _, source := range []string{"", "-", "stdin"} {
		a, err := NewAdapter(source)
		require.NoError(t, err)
		assert.Equal(t, "stdin", a.Name())
	}

	_, err := NewAdapter(filepath.Join(t.TempDir(), "missing.jsonl"))
	var adapterErr *AdapterError
	require.True(t, errors.As(err, &adapterErr))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewAdapter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"window": "main", "interface": "card\u0007"}`), 0600))

	a, err := NewAdapter(path)
	require.NoError(t, err)
	assert.Equal(t, "file", a.Name())

	requests, err := a.Import(context.Background())
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "card", requests[0].InterfaceName, "control characters are stripped")
}

func TestAdapterError(t *testing.T) {
	inner := errors.New("boom")
	err := &AdapterError{Source: "stdin", Message: "failed", Err: inner}
	assert.Equal(t, "failed: boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "plain", (&AdapterError{Message: "plain"}).Error())
}
