package core

import "testing"

func TestSalienceSamplerRespectsConnectionFloor(t *testing.T) {
	sampler := NewSalienceSampler(42)
	for i := 0; i < 200; i++ {
		s := sampler.Sample()
		if err := s.Validate(); err != nil {
			t.Fatalf("sample %d failed validation: %v (%+v)", i, err, s)
		}
	}
}

func TestSalienceSamplerIsReproducible(t *testing.T) {
	a := NewSalienceSampler(42).Sample()
	b := NewSalienceSampler(42).Sample()
	if a != b {
		t.Fatalf("expected identical seed to reproduce the same sample, got %+v vs %+v", a, b)
	}
}

func TestSalienceSamplerProducesBothProfiles(t *testing.T) {
	sampler := NewSalienceSampler(7)
	sawLow, sawHigh := false, false
	for i := 0; i < 500; i++ {
		s := sampler.Sample()
		if s.Importance > 0.6 {
			sawHigh = true
		} else if s.Importance < 0.4 {
			sawLow = true
		}
		if sawHigh && sawLow {
			break
		}
	}
	if !sawLow || !sawHigh {
		t.Fatalf("expected to observe both neutral and elevated profiles over 500 draws, sawLow=%v sawHigh=%v", sawLow, sawHigh)
	}
}
