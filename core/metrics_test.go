package core

import "testing"

func TestNewMetricsRegistersCollectors(t *testing.T) {
	m := NewMetrics()

	m.CyclesTotal.Inc()
	m.ThoughtsProducedTotal.Inc()
	m.ActiveWindows.Set(3)
	m.StreamLength.WithLabelValues("sensory").Set(2)
	m.StageDurationMs.WithLabelValues("selection").Observe(1.5)
	m.InvariantViolationsTotal.WithLabelValues("I1").Inc()

	mfs, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}

func TestNewMetricsUsesIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	if a.Registry == b.Registry {
		t.Fatal("expected each Metrics instance to own a private registry")
	}
}
