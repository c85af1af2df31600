package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestCycleDriver(t *testing.T) (*CycleDriver, StreamService) {
	t.Helper()
	ctx := context.Background()
	clock := NewFakeClock(fixedTestTime)

	streams := NewInMemoryStreamService(clock)
	for _, s := range WorkingStreams {
		if err := streams.CreateConsumerGroup(ctx, s, "core"); err != nil {
			t.Fatalf("unexpected error creating consumer group: %v", err)
		}
	}

	store := &fakeArchiveStore{}
	forgetter := NewForgetter(store, streams, clock)
	weights := defaultWeights()
	graph := NewAssociationGraph(store, clock)
	selector, err := NewSelector(streams, forgetter, graph, weights, 0.2, 0.2, 0.1, "core", "core-consumer")
	if err != nil {
		t.Fatalf("unexpected error constructing selector: %v", err)
	}

	gate := NewLawGate()
	assembler := NewAssembler(gate, clock)

	cfg := defaultConsolidatorConfig(defaultThresholds())
	consolidator := NewConsolidator(streams, store, graph, forgetter, weights, cfg, clock, zerolog.Nop())

	continuity, err := NewContinuityManager(ctx, store, defaultContinuity(), clock)
	if err != nil {
		t.Fatalf("unexpected error constructing continuity manager: %v", err)
	}

	driver := NewCycleDriver(DefaultConfig(), selector, assembler, consolidator, continuity, gate, clock, zerolog.Nop())
	return driver, streams
}

func TestCycleDriverRunWithNoCandidatesProducesNoThought(t *testing.T) {
	driver, _ := newTestCycleDriver(t)
	result, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ThoughtProduced != nil {
		t.Fatal("expected no thought produced with an empty stream set")
	}
	if result.CycleNumber != 1 {
		t.Fatalf("expected cycle number 1 on first run, got %d", result.CycleNumber)
	}
}

func TestCycleDriverRunProducesThoughtFromHighSalienceEntry(t *testing.T) {
	driver, streams := newTestCycleDriver(t)
	ctx := context.Background()

	entry := StreamEntry{
		Stream:  StreamSensory,
		Content: Raw{Data: []byte("hello")},
		Salience: SalienceScore{
			Importance: 0.9, Novelty: 0.9, Relevance: 0.9, Valence: 0.1, Arousal: 0.1, ConnectionRelevance: MinConnection,
		},
	}
	if _, err := streams.Append(ctx, StreamSensory, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := driver.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ThoughtProduced == nil {
		t.Fatal("expected a thought to be produced")
	}
	if result.CandidatesEvaluated != 1 {
		t.Fatalf("expected 1 candidate evaluated, got %d", result.CandidatesEvaluated)
	}
}

func TestCycleDriverRunIncrementsCycleNumberAcrossRuns(t *testing.T) {
	driver, _ := newTestCycleDriver(t)
	ctx := context.Background()

	first, err := driver.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := driver.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.CycleNumber != first.CycleNumber+1 {
		t.Fatalf("expected cycle numbers to increment, got %d then %d", first.CycleNumber, second.CycleNumber)
	}
}

func TestCycleDriverStageBudgetDividesBySpeedMultiplier(t *testing.T) {
	driver, _ := newTestCycleDriver(t)
	driver.cfg.Speed.Multiplier = 2

	base := driver.stageBudget(10)
	if base.Milliseconds() != 5 {
		t.Fatalf("expected stage budget halved by a 2x multiplier, got %s", base)
	}
}

func TestCycleDriverShutdownFlushesContinuity(t *testing.T) {
	driver, _ := newTestCycleDriver(t)
	if err := driver.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error on shutdown: %v", err)
	}
}

func TestStageProcessRecordsDuration(t *testing.T) {
	ctx := context.Background()
	stage := NewStage("noop", func(_ context.Context, c *Cycle) (*Cycle, error) {
		return c, nil
	})

	cycle := &Cycle{StageDurations: make(map[string]time.Duration)}
	result, err := stage.Process(ctx, cycle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := result.StageDurations["noop"]; !ok {
		t.Fatal("expected the stage to record its own duration")
	}
}

func TestCycleClonePreservesIndependentState(t *testing.T) {
	original := &Cycle{
		StageDurations:   map[string]time.Duration{"trigger": time.Millisecond},
		RetrievedContext: []Content{Raw{Data: []byte("a")}},
	}
	clone := original.Clone()
	clone.StageDurations["trigger"] = 2 * time.Millisecond
	clone.RetrievedContext[0] = Raw{Data: []byte("b")}

	if original.StageDurations["trigger"] != time.Millisecond {
		t.Fatal("expected clone mutation to not affect original stage durations")
	}
	if string(original.RetrievedContext[0].(Raw).Data) != "a" {
		t.Fatal("expected clone mutation to not affect original retrieved context")
	}
}
