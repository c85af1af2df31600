package core

import (
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// salienceProfile names the bimodal sampling mode (§4.4).
type salienceProfile int

const (
	neutralProfile salienceProfile = iota
	elevatedProfile
)

// salienceRange is the sub-range a dimension is drawn from under a given
// profile.
type salienceRange struct {
	min, max float64
}

var neutralRanges = map[string]salienceRange{
	"importance": {0, 0.35},
	"novelty":    {0, 0.35},
	"relevance":  {0, 0.35},
	"arousal":    {0, 0.35},
}

var elevatedRanges = map[string]salienceRange{
	"importance": {0.65, 1.0},
	"novelty":    {0.65, 1.0},
	"relevance":  {0.65, 1.0},
	"arousal":    {0.65, 1.0},
}

// SalienceSampler generates salience scores for endogenous (stimulus-free)
// candidates, respecting the theory's 90/10 bimodal distribution (§4.4).
type SalienceSampler struct {
	src *rand.Rand
}

// NewSalienceSampler creates a sampler seeded for reproducible runs
// (scenario 1: "seed=42").
func NewSalienceSampler(seed uint64) *SalienceSampler {
	return &SalienceSampler{src: rand.New(rand.NewSource(int64(seed)))}
}

// Sample draws one SalienceScore. With probability 0.90 it draws a
// "neutral" profile (low sub-range per dimension); with probability 0.10 an
// "elevated" profile (high sub-range). ConnectionRelevance is always >=
// MinConnection regardless of mode (I2); within the 90% mode it is drawn
// uniformly from [MinConnection, 0.35] since the spec leaves the exact
// distribution open (§9) and only fixes the floor.
func (s *SalienceSampler) Sample() SalienceScore {
	mode := neutralProfile
	if s.src.Float64() < 0.10 {
		mode = elevatedProfile
	}

	ranges := neutralRanges
	connMax := 0.35
	if mode == elevatedProfile {
		ranges = elevatedRanges
		connMax = 1.0
	}

	draw := func(r salienceRange) float64 {
		u := distuv.Uniform{Min: r.min, Max: r.max, Src: s.src}
		return u.Rand()
	}

	valenceRange := salienceRange{-0.35, 0.35}
	if mode == elevatedProfile {
		// Emotional intensity matters more than sign for elevated candidates;
		// sample magnitude high, sign uniform.
		valenceRange = salienceRange{0.65, 1.0}
		if s.src.Float64() < 0.5 {
			valenceRange = salienceRange{-1.0, -0.65}
		}
	}

	connRange := salienceRange{MinConnection, connMax}
	if connRange.max < connRange.min {
		connRange.max = connRange.min
	}

	return SalienceScore{
		Importance:          draw(ranges["importance"]),
		Novelty:             draw(ranges["novelty"]),
		Relevance:           draw(ranges["relevance"]),
		Valence:             draw(valenceRange),
		Arousal:             draw(ranges["arousal"]),
		ConnectionRelevance: draw(connRange),
	}
}
