package core

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zoobzio/capitan"
)

// Metrics holds the observability surface (§6): counters for cycle and
// memory lifecycle events, gauges for current state, and histograms for
// stage latency. Registered against a private registry so embedding
// applications choose how (or whether) to expose /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal              prometheus.Counter
	ThoughtsProducedTotal    prometheus.Counter
	ThoughtsSuppressedTotal  prometheus.Counter
	WinnersForgottenTotal    prometheus.Counter
	ConsolidatedTotal        prometheus.Counter
	ArchivedTotal            prometheus.Counter
	InvariantViolationsTotal *prometheus.CounterVec

	ActiveWindows    prometheus.Gauge
	ConnectionWeight prometheus.Gauge
	StreamLength     *prometheus.GaugeVec
	Degraded         prometheus.Gauge

	StageDurationMs    *prometheus.HistogramVec
	SelectionCandidates prometheus.Histogram
	ForgetThresholdDelta prometheus.Histogram
}

// NewMetrics builds and registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "daneelcore_cycles_total",
			Help: "Total cognitive cycles run.",
		}),
		ThoughtsProducedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "daneelcore_thoughts_produced_total",
			Help: "Total Thoughts assembled and approved by the Law gate.",
		}),
		ThoughtsSuppressedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "daneelcore_thoughts_suppressed_total",
			Help: "Total Thoughts rejected by the Law gate.",
		}),
		WinnersForgottenTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "daneelcore_winners_forgotten_total",
			Help: "Total losing candidates archived to unconscious memory.",
		}),
		ConsolidatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "daneelcore_consolidated_total",
			Help: "Total entries promoted to conscious memory.",
		}),
		ArchivedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "daneelcore_archived_total",
			Help: "Total entries archived to unconscious memory.",
		}),
		InvariantViolationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "daneelcore_invariant_violations_total",
			Help: "Total invariant check failures, labeled by invariant id.",
		}, []string{"invariant"}),

		ActiveWindows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "daneelcore_active_windows",
			Help: "Current count of open working-memory entries across streams.",
		}),
		ConnectionWeight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "daneelcore_connection_weight",
			Help: "Current connection_weight value (I2 floor: MIN_CONNECTION).",
		}),
		StreamLength: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "daneelcore_stream_length",
			Help: "Current entry count per working stream.",
		}, []string{"name"}),
		Degraded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "daneelcore_consolidation_degraded",
			Help: "1 when the Consolidator is in degraded mode, 0 otherwise.",
		}),

		StageDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "daneelcore_stage_duration_ms",
			Help:    "Per-stage execution time in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		SelectionCandidates: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "daneelcore_selection_candidates",
			Help:    "Number of candidates scored per Selection stage.",
			Buckets: prometheus.LinearBuckets(0, 1, 20),
		}),
		ForgetThresholdDelta: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "daneelcore_forget_threshold_delta",
			Help:    "Distance between a losing candidate's score and forget_threshold.",
			Buckets: prometheus.LinearBuckets(-1, 0.1, 21),
		}),
	}
}

// WireMetrics subscribes m's event-driven counters and histograms to the
// signal bus, the same capitan.Hook pattern cmd/daneelcore's crash-log
// listener uses. The ActiveWindows, ConnectionWeight, StreamLength and
// Degraded gauges and the SelectionCandidates histogram describe current
// state rather than a
// discrete event and are polled once per cycle by the cycle driver instead
// (see CycleDriver.SetMetrics). It returns a single closer that stops every
// hook it registered.
func WireMetrics(m *Metrics) func() {
	archived := capitan.Hook(CandidateArchived, func(_ context.Context, e *capitan.Event) {
		m.WinnersForgottenTotal.Inc()
		score, scoreOK := FieldTotalScore.From(e)
		threshold, threshOK := FieldForgetThreshold.From(e)
		if scoreOK && threshOK {
			m.ForgetThresholdDelta.Observe(score - threshold)
		}
	})
	consolidated := capitan.Hook(MemoryConsolidated, func(_ context.Context, _ *capitan.Event) {
		m.ConsolidatedTotal.Inc()
	})
	forgotten := capitan.Hook(MemoryForgotten, func(_ context.Context, _ *capitan.Event) {
		m.ArchivedTotal.Inc()
	})
	invariant := capitan.Hook(InvariantViolated, func(_ context.Context, e *capitan.Event) {
		name, _ := FieldInvariant.From(e)
		m.InvariantViolationsTotal.WithLabelValues(name).Inc()
	})
	stages := capitan.Hook(StageCompleted, func(_ context.Context, e *capitan.Event) {
		name, _ := FieldStageName.From(e)
		dur, ok := FieldStageDuration.From(e)
		if ok {
			m.StageDurationMs.WithLabelValues(name).Observe(float64(dur.Milliseconds()))
		}
	})
	assembled := capitan.Hook(ThoughtAssembled, func(_ context.Context, _ *capitan.Event) {
		m.ThoughtsProducedTotal.Inc()
	})
	suppressed := capitan.Hook(ThoughtSuppressed, func(_ context.Context, _ *capitan.Event) {
		m.ThoughtsSuppressedTotal.Inc()
	})

	return func() {
		archived.Close()
		consolidated.Close()
		forgotten.Close()
		invariant.Close()
		stages.Close()
		assembled.Close()
		suppressed.Close()
	}
}
