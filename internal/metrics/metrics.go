// Package metrics exposes orchestrator activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/orchestrator"
)

const namespace = "presentd"

// lifetimeBuckets cover presentations from a transient flash to a long
// running permanent card.
var lifetimeBuckets = []float64{1, 5, 10, 30, 60, 300, 900, 3600}

// Metrics collects orchestrator metrics. It implements the orchestrator
// recorder.
type Metrics struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	created     *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	visible     *prometheus.GaugeVec
	lifetime    *prometheus.HistogramVec
}

// New creates a collector on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "Presentation state transitions",
			},
			[]string{"from", "to"},
		),
		created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "presentations_created_total",
				Help:      "Presentations created per window and lifespan",
			},
			[]string{"window", "lifespan"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_requests_total",
				Help:      "Window requests dropped during routing",
			},
			[]string{"window", "reason"},
		),
		visible: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "presentations_visible",
				Help:      "Presentations currently foreground or foreground unfocused",
			},
			[]string{"window"},
		),
		lifetime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "presentation_lifetime_seconds",
				Help:      "Time from creation to dismissal",
				Buckets:   lifetimeBuckets,
			},
			[]string{"lifespan"},
		),
	}

	registry.MustRegister(
		m.transitions,
		m.created,
		m.dropped,
		m.visible,
		m.lifetime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// StateChanged records a presentation state change.
func (m *Metrics) StateChanged(change model.StateChange) {
	m.transitions.WithLabelValues(change.From.String(), change.To.String()).Inc()

	if change.From == model.StateNone {
		m.created.WithLabelValues(change.WindowID, change.Lifespan.String()).Inc()
	}

	switch wasVisible, isVisible := change.From.IsVisible(), change.To.IsVisible(); {
	case isVisible && !wasVisible:
		m.visible.WithLabelValues(change.WindowID).Inc()
	case wasVisible && !isVisible:
		m.visible.WithLabelValues(change.WindowID).Dec()
	}

	if change.To == model.StateNone {
		m.lifetime.WithLabelValues(change.Lifespan.String()).Observe(change.Age().Seconds())
	}
}

// RequestDropped records a dropped window request.
func (m *Metrics) RequestDropped(windowID, _ string, err error) {
	m.dropped.WithLabelValues(windowID, dropReason(err)).Inc()
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, orchestrator.ErrUnknownWindow):
		return "unknown_window"
	case errors.Is(err, orchestrator.ErrUnsupportedInterface):
		return "unsupported_interface"
	case errors.Is(err, orchestrator.ErrNoObserver):
		return "no_observer"
	default:
		return "other"
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics on address at path until ctx is done.
func (m *Metrics) Serve(ctx context.Context, address, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "address", address, "path", path)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
