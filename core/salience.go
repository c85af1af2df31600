package core

import "fmt"

// SalienceScore is the six-dimension weighting that controls a candidate's
// chance of winning selection and being consolidated. Every dimension is
// in [0,1] except Valence, which is in [-1,1]. ConnectionRelevance must be
// >= MinConnection (I2).
type SalienceScore struct {
	Importance         float64
	Novelty            float64
	Relevance          float64
	Valence            float64
	Arousal            float64
	ConnectionRelevance float64
}

// Validate enforces I2 and the per-dimension ranges.
func (s SalienceScore) Validate() error {
	if s.ConnectionRelevance < MinConnection {
		return &InvariantViolation{Invariant: "I2", Detail: fmt.Sprintf("connection_relevance %.4f < %.4f", s.ConnectionRelevance, MinConnection)}
	}
	for name, v := range map[string]float64{
		"importance": s.Importance, "novelty": s.Novelty, "relevance": s.Relevance,
		"arousal": s.Arousal, "connection_relevance": s.ConnectionRelevance,
	} {
		if v < 0 || v > 1 {
			return &InvariantViolation{Invariant: "salience-range", Detail: fmt.Sprintf("%s=%.4f out of [0,1]", name, v)}
		}
	}
	if s.Valence < -1 || s.Valence > 1 {
		return &InvariantViolation{Invariant: "salience-range", Detail: fmt.Sprintf("valence=%.4f out of [-1,1]", s.Valence)}
	}
	return nil
}

// composite computes the weighted sum used by the Selector's comparator
// (§4.3). Weights must sum to 1; emotional intensity is |valence|*arousal
// per the spec's adopted variant (§9).
func composite(s SalienceScore, w Weights) float64 {
	emotionalIntensity := abs(s.Valence) * s.Arousal
	return w.Importance*s.Importance +
		w.Novelty*s.Novelty +
		w.Relevance*s.Relevance +
		w.Valence*emotionalIntensity
}

// connectionBoost is the separate, additive connection term. cw must be
// >= MinConnection (enforced at config construction, I2).
func connectionBoost(s SalienceScore, cw float64) float64 {
	return s.ConnectionRelevance * cw
}

// total is the Selector's scoring function: composite + connectionBoost.
func total(s SalienceScore, w Weights, cw float64) float64 {
	return composite(s, w) + connectionBoost(s, cw)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
