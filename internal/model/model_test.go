package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifespanString(t *testing.T) {
	tests := []struct {
		lifespan Lifespan
		expected string
	}{
		{LifespanTransient, "transient"},
		{LifespanShort, "short"},
		{LifespanLong, "long"},
		{LifespanPermanent, "permanent"},
		{Lifespan(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.lifespan.String())
		})
	}
}

func TestParseLifespan(t *testing.T) {
	l, err := ParseLifespan(" PERMANENT ")
	require.NoError(t, err)
	assert.Equal(t, LifespanPermanent, l)

	_, err = ParseLifespan("forever")
	assert.ErrorIs(t, err, ErrInvalidLifespan)
}

func TestParseState(t *testing.T) {
	tests := []struct {
		input    string
		expected State
	}{
		{"none", StateNone},
		{"background", StateBackground},
		{"Foreground", StateForeground},
		{"foreground_unfocused", StateForegroundUnfocused},
		{"foreground-unfocused", StateForegroundUnfocused},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, err := ParseState(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s)
		})
	}

	_, err := ParseState("hidden")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateIsVisible(t *testing.T) {
	assert.False(t, StateNone.IsVisible())
	assert.False(t, StateBackground.IsVisible())
	assert.True(t, StateForeground.IsVisible())
	assert.True(t, StateForegroundUnfocused.IsVisible())
}

func TestTimeoutVariants(t *testing.T) {
	var zero Timeout
	assert.True(t, zero.IsDefault())
	assert.True(t, zero.Valid())

	assert.True(t, DisabledTimeout().IsDisabled())
	assert.Equal(t, time.Duration(0), DisabledTimeout().Duration())

	explicit := ExplicitTimeout(500 * time.Millisecond)
	assert.Equal(t, TimeoutExplicit, explicit.Kind())
	assert.Equal(t, 500*time.Millisecond, explicit.Duration())
	assert.True(t, explicit.Valid())

	assert.False(t, ExplicitTimeout(0).Valid())
	assert.False(t, ExplicitTimeout(-5*time.Second).Valid())
}

func TestTimeoutFromMillis(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		want Timeout
	}{
		{"default", 0, DefaultTimeout()},
		{"disabled", -1, DisabledTimeout()},
		{"explicit", 1500, ExplicitTimeout(1500 * time.Millisecond)},
		{"invalid negative", -20, ExplicitTimeout(-20 * time.Millisecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeoutFromMillis(tt.ms)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ms, got.Millis())
		})
	}
}

func TestWindowInstance_Validate(t *testing.T) {
	tests := []struct {
		name    string
		window  WindowInstance
		wantErr error
	}{
		{"valid", WindowInstance{ID: "main", SupportedInterfaces: []string{"APL"}}, nil},
		{"empty id", WindowInstance{SupportedInterfaces: []string{"APL"}}, ErrEmptyWindowID},
		{"no interfaces", WindowInstance{ID: "main"}, ErrNoInterfaces},
		{"empty interface", WindowInstance{ID: "main", SupportedInterfaces: []string{""}}, ErrEmptyInterfaceName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestWindowInstance_CloneAndEqual(t *testing.T) {
	w := WindowInstance{ID: "main", ZOrderIndex: 2, SupportedInterfaces: []string{"APL", "Template"}}
	c := w.Clone()
	assert.True(t, w.Equal(c))
	assert.True(t, c.Supports("Template"))
	assert.False(t, c.Supports("Video"))

	c.SupportedInterfaces[0] = "Other"
	assert.Equal(t, "APL", w.SupportedInterfaces[0])
	assert.False(t, w.Equal(c))
}

func TestStateChangeJSON(t *testing.T) {
	ev := NewStateChange()
	ev.WindowID = "main"
	ev.Token = 3
	ev.Lifespan = LifespanShort
	ev.From = StateForeground
	ev.To = StateBackground

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"from":"foreground"`)
	assert.Contains(t, string(data), `"to":"background"`)
	assert.Contains(t, string(data), `"lifespan":"short"`)
	assert.Len(t, ev.ID, 26)
}

func TestStateChangeAge(t *testing.T) {
	created := time.Now().Add(-3 * time.Second)
	ev := StateChange{CreatedAt: created, At: created.Add(3 * time.Second)}
	assert.Equal(t, 3*time.Second, ev.Age())
	assert.Equal(t, time.Duration(0), StateChange{}.Age())
}
