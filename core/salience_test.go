package core

import "testing"

func TestSalienceScoreValidateRejectsConnectionBelowFloor(t *testing.T) {
	s := SalienceScore{ConnectionRelevance: MinConnection / 2}
	err := s.Validate()
	if err == nil {
		t.Fatal("expected validation error for connection_relevance below MinConnection")
	}
	iv, ok := err.(*InvariantViolation)
	if !ok || iv.Invariant != "I2" {
		t.Fatalf("expected an I2 InvariantViolation, got %v", err)
	}
}

func TestSalienceScoreValidateRejectsOutOfRangeDimension(t *testing.T) {
	s := SalienceScore{Importance: 1.5, ConnectionRelevance: MinConnection}
	if err := s.Validate(); err == nil {
		t.Fatal("expected validation error for importance out of [0,1]")
	}
}

func TestSalienceScoreValidateRejectsOutOfRangeValence(t *testing.T) {
	s := SalienceScore{Valence: -2, ConnectionRelevance: MinConnection}
	if err := s.Validate(); err == nil {
		t.Fatal("expected validation error for valence out of [-1,1]")
	}
}

func TestSalienceScoreValidateAcceptsInRangeScore(t *testing.T) {
	s := SalienceScore{Importance: 0.5, Novelty: 0.5, Relevance: 0.5, Valence: -0.5, Arousal: 0.5, ConnectionRelevance: MinConnection}
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompositeWeightsDimensions(t *testing.T) {
	w := Weights{Importance: 1, Novelty: 0, Relevance: 0, Valence: 0}
	s := SalienceScore{Importance: 0.8}
	if got := composite(s, w); got != 0.8 {
		t.Fatalf("expected composite to equal importance alone, got %f", got)
	}
}

func TestCompositeUsesEmotionalIntensityForValenceTerm(t *testing.T) {
	w := Weights{Valence: 1}
	s := SalienceScore{Valence: -0.5, Arousal: 0.4}
	want := 0.5 * 0.4
	if got := composite(s, w); got != want {
		t.Fatalf("expected composite %f, got %f", want, got)
	}
}

func TestConnectionBoostScalesByConnectionWeight(t *testing.T) {
	s := SalienceScore{ConnectionRelevance: 0.5}
	if got := connectionBoost(s, 0.2); got != 0.1 {
		t.Fatalf("expected connection boost 0.1, got %f", got)
	}
}

func TestTotalSumsCompositeAndConnectionBoost(t *testing.T) {
	w := Weights{Importance: 1}
	s := SalienceScore{Importance: 0.4, ConnectionRelevance: 0.5}
	want := composite(s, w) + connectionBoost(s, 0.2)
	if got := total(s, w, 0.2); got != want {
		t.Fatalf("expected total %f, got %f", want, got)
	}
}

func TestAbs(t *testing.T) {
	if abs(-3.5) != 3.5 {
		t.Fatal("expected abs to negate negative input")
	}
	if abs(3.5) != 3.5 {
		t.Fatal("expected abs to leave positive input unchanged")
	}
}
