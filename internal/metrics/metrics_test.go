package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/orchestrator"
)

func change(from, to model.State) model.StateChange {
	c := model.NewStateChange()
	c.WindowID = "main"
	c.Lifespan = model.LifespanShort
	c.From = from
	c.To = to
	c.CreatedAt = c.At.Add(-3 * time.Second)
	return c
}

func TestMetrics_StateChanged(t *testing.T) {
	m := New()

	m.StateChanged(change(model.StateNone, model.StateForeground))
	m.StateChanged(change(model.StateForeground, model.StateForegroundUnfocused))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.visible.WithLabelValues("main")))

	m.StateChanged(change(model.StateForegroundUnfocused, model.StateBackground))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.visible.WithLabelValues("main")))

	m.StateChanged(change(model.StateBackground, model.StateNone))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.created.WithLabelValues("main", "short")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("none", "foreground")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("background", "none")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lifetime))

	expected := `
# HELP presentd_presentation_lifetime_seconds Time from creation to dismissal
# TYPE presentd_presentation_lifetime_seconds histogram
presentd_presentation_lifetime_seconds_bucket{lifespan="short",le="1"} 0
presentd_presentation_lifetime_seconds_bucket{lifespan="short",le="5"} 1
presentd_presentation_lifetime_seconds_bucket{lifespan="short",le="10"} 1
presentd_presentation_lifetime_seconds_bucket{lifespan="short",le="30"} 1
presentd_presentation_lifetime_seconds_bucket{lifespan="short",le="60"} 1
presentd_presentation_lifetime_seconds_bucket{lifespan="short",le="300"} 1
presentd_presentation_lifetime_seconds_bucket{lifespan="short",le="900"} 1
presentd_presentation_lifetime_seconds_bucket{lifespan="short",le="3600"} 1
presentd_presentation_lifetime_seconds_bucket{lifespan="short",le="+Inf"} 1
presentd_presentation_lifetime_seconds_sum{lifespan="short"} 3
presentd_presentation_lifetime_seconds_count{lifespan="short"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(m.lifetime, strings.NewReader(expected)))
}

func TestMetrics_RequestDropped(t *testing.T) {
	m := New()

	m.RequestDropped("main", "I", orchestrator.ErrUnknownWindow)
	m.RequestDropped("main", "I", fmt.Errorf("routing: %w", orchestrator.ErrUnsupportedInterface))
	m.RequestDropped("main", "I", orchestrator.ErrNoObserver)
	m.RequestDropped("main", "I", errors.New("boom"))

	for _, reason := range []string{"unknown_window", "unsupported_interface", "no_observer", "other"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("main", reason)), reason)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.StateChanged(change(model.StateNone, model.StateForeground))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "presentd_state_transitions_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
