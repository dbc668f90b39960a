package timeout

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/presentd/internal/model"
)

func TestDefaultMapper(t *testing.T) {
	m := DefaultMapper()

	assert.Equal(t, model.ExplicitTimeout(10*time.Second), m.Timeout(model.LifespanTransient))
	assert.Equal(t, model.ExplicitTimeout(30*time.Second), m.Timeout(model.LifespanShort))
	assert.True(t, m.Timeout(model.LifespanLong).IsDisabled())
	assert.True(t, m.Timeout(model.LifespanPermanent).IsDisabled())
}

func TestMapper_Overrides(t *testing.T) {
	tests := []struct {
		name     string
		cfg      MapperConfig
		lifespan model.Lifespan
		want     model.Timeout
	}{
		{"transient override", MapperConfig{Transient: 5 * time.Second}, model.LifespanTransient, model.ExplicitTimeout(5 * time.Second)},
		{"short disabled", MapperConfig{Short: -time.Millisecond}, model.LifespanShort, model.DisabledTimeout()},
		{"long enabled", MapperConfig{Long: time.Minute}, model.LifespanLong, model.ExplicitTimeout(time.Minute)},
		{"zero keeps default", MapperConfig{}, model.LifespanShort, model.ExplicitTimeout(DefaultShort)},
		{"permanent not configurable", MapperConfig{Transient: time.Second, Short: time.Second, Long: time.Second}, model.LifespanPermanent, model.DisabledTimeout()},
		{"unknown lifespan", MapperConfig{}, model.Lifespan(42), model.DisabledTimeout()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewMapper(tt.cfg).Timeout(tt.lifespan)
			assert.Equal(t, tt.want, got)
			assert.False(t, got.IsDefault())
		})
	}
}

func TestManager_Fires(t *testing.T) {
	m := NewManager(nil)
	defer m.Stop()

	fired := make(chan struct{})
	m.RequestTimeout(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout did not fire")
	}
	assert.Eventually(t, func() bool { return m.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestManager_StopPreventsCallback(t *testing.T) {
	m := NewManager(nil)
	defer m.Stop()

	var fired atomic.Bool
	id := m.RequestTimeout(50*time.Millisecond, func() { fired.Store(true) })
	assert.Equal(t, 1, m.Pending())

	require.True(t, m.StopTimeout(id))
	assert.False(t, m.StopTimeout(id))
	assert.Equal(t, 0, m.Pending())

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestManager_UniqueIDs(t *testing.T) {
	m := NewManager(nil)
	defer m.Stop()

	a := m.RequestTimeout(time.Hour, nil)
	b := m.RequestTimeout(time.Hour, nil)
	assert.NotEqual(t, a, b)
	assert.False(t, m.StopTimeout(model.TimeoutID(999)))
}

func TestManager_StopCancelsAll(t *testing.T) {
	m := NewManager(nil)

	var fired atomic.Int32
	m.RequestTimeout(20*time.Millisecond, func() { fired.Add(1) })
	m.RequestTimeout(20*time.Millisecond, func() { fired.Add(1) })
	m.Stop()

	m.RequestTimeout(time.Millisecond, func() { fired.Add(1) })
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, 0, m.Pending())
}
