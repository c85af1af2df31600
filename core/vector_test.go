package core

import "testing"

func TestVectorScanAndValueRoundTrip(t *testing.T) {
	var v Vector
	if err := v.Scan("[0.1,0.2,0.3]"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v) != 3 {
		t.Fatalf("expected 3 components, got %d", len(v))
	}

	val, err := v.Value()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "[0.1,0.2,0.3]" {
		t.Fatalf("expected round-tripped pgvector literal, got %v", val)
	}
}

func TestVectorScanNil(t *testing.T) {
	v := Vector{1, 2, 3}
	if err := v.Scan(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil vector after scanning nil, got %v", v)
	}
}

func TestVectorScanRejectsUnsupportedType(t *testing.T) {
	var v Vector
	if err := v.Scan(42); err == nil {
		t.Fatal("expected error scanning an unsupported source type")
	}
}

func TestVectorValueNil(t *testing.T) {
	var v Vector
	val, err := v.Value()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != nil {
		t.Fatalf("expected nil driver value for a nil vector, got %v", val)
	}
}

func TestVectorIsDegenerate(t *testing.T) {
	zero := Vector{0, 0, 0}
	if !zero.IsDegenerate() {
		t.Fatal("expected the zero vector to be degenerate")
	}

	unit := Vector{1, 0, 0}
	if unit.IsDegenerate() {
		t.Fatal("expected a unit vector to not be degenerate")
	}
}

func TestVectorMagnitude(t *testing.T) {
	v := Vector{3, 4}
	if got := v.Magnitude(); got != 5 {
		t.Fatalf("expected magnitude 5, got %f", got)
	}
}
