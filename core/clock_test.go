package core

import (
	"context"
	"testing"
	"time"
)

// fixedTestTime is the shared deterministic timestamp used by package-level
// tests that need a Clock but not real wall-clock behavior.
var fixedTestTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockAdvance(t *testing.T) {
	clock := NewFakeClock(fixedTestTime)
	if !clock.Now().Equal(fixedTestTime) {
		t.Fatalf("expected start time %v, got %v", fixedTestTime, clock.Now())
	}

	clock.Advance(time.Hour)
	want := fixedTestTime.Add(time.Hour)
	if !clock.Now().Equal(want) {
		t.Fatalf("expected %v after advance, got %v", want, clock.Now())
	}
}

func TestFakeClockSleepAdvances(t *testing.T) {
	clock := NewFakeClock(fixedTestTime)
	clock.Sleep(time.Minute)
	if !clock.Now().Equal(fixedTestTime.Add(time.Minute)) {
		t.Fatalf("expected Sleep to advance the fake clock, got %v", clock.Now())
	}
}

func TestFakeClockAfterFiresImmediately(t *testing.T) {
	clock := NewFakeClock(fixedTestTime)
	select {
	case got := <-clock.After(time.Second):
		if !got.Equal(fixedTestTime.Add(time.Second)) {
			t.Fatalf("expected channel value %v, got %v", fixedTestTime.Add(time.Second), got)
		}
	default:
		t.Fatal("expected FakeClock.After to deliver without blocking")
	}
}

func TestResolveClockPrefersExplicit(t *testing.T) {
	explicit := NewFakeClock(fixedTestTime)
	got := ResolveClock(context.Background(), explicit)
	if got != explicit {
		t.Fatal("expected explicit clock to win")
	}
}

func TestResolveClockFallsBackToContext(t *testing.T) {
	ctxClock := NewFakeClock(fixedTestTime)
	ctx := WithClock(context.Background(), ctxClock)

	got := ResolveClock(ctx, nil)
	if got != ctxClock {
		t.Fatal("expected context clock when no explicit clock is given")
	}
}

func TestResolveClockFallsBackToGlobal(t *testing.T) {
	globalClockFake := NewFakeClock(fixedTestTime)
	SetClock(globalClockFake)
	defer SetClock(RealClock)

	got := ResolveClock(context.Background(), nil)
	if got != globalClockFake {
		t.Fatal("expected global clock when no explicit or context clock is given")
	}
}
