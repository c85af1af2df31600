package core

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestConsolidator(t *testing.T, store *fakeArchiveStore, streams StreamService) *Consolidator {
	t.Helper()
	graph := NewAssociationGraph(store, NewFakeClock(fixedTestTime))
	forgetter := NewForgetter(store, streams, NewFakeClock(fixedTestTime))
	weights := Weights{Importance: 0.3, Novelty: 0.25, Relevance: 0.25, Valence: 0.2}
	cfg := defaultConsolidatorConfig(Thresholds{Forget: 0.3, Consolidate: 0.7, Permanent: 0.9})
	return NewConsolidator(streams, store, graph, forgetter, weights, cfg, NewFakeClock(fixedTestTime), zerolog.Nop())
}

func TestConsolidatorPromotesHighSalience(t *testing.T) {
	ctx := context.Background()
	streams := NewInMemoryStreamService(NewFakeClock(fixedTestTime))
	store := &fakeArchiveStore{}
	consolidator := newTestConsolidator(t, store, streams)

	entry := StreamEntry{
		Stream:   StreamAssembled,
		Salience: SalienceScore{Importance: 0.95, Novelty: 0.9, Relevance: 0.9, Valence: 0.2, Arousal: 0.2, ConnectionRelevance: MinConnection},
	}
	id, _ := streams.Append(ctx, StreamAssembled, entry)
	entry.ID = id

	if err := consolidator.ProcessEntry(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("expected entry promoted to conscious memory, got %d upserts", len(store.upserts))
	}
}

func TestConsolidatorForgetsLowSalience(t *testing.T) {
	ctx := context.Background()
	streams := NewInMemoryStreamService(NewFakeClock(fixedTestTime))
	store := &fakeArchiveStore{}
	consolidator := newTestConsolidator(t, store, streams)

	entry := StreamEntry{
		Stream:   StreamAssembled,
		Salience: SalienceScore{Importance: 0.01, Novelty: 0.01, Relevance: 0.01, Valence: 0, Arousal: 0, ConnectionRelevance: MinConnection},
	}
	id, _ := streams.Append(ctx, StreamAssembled, entry)
	entry.ID = id

	if err := consolidator.ProcessEntry(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.upserts) != 1 || store.upserts[0].ArchiveReason != "low_salience" {
		t.Fatalf("expected entry archived with low_salience reason, got %+v", store.upserts)
	}
}

func TestConsolidatorLeavesMidRangeInStream(t *testing.T) {
	ctx := context.Background()
	streams := NewInMemoryStreamService(NewFakeClock(fixedTestTime))
	store := &fakeArchiveStore{}
	consolidator := newTestConsolidator(t, store, streams)

	entry := StreamEntry{
		Stream:   StreamAssembled,
		Salience: SalienceScore{Importance: 0.5, Novelty: 0.5, Relevance: 0.5, Valence: 0, Arousal: 0, ConnectionRelevance: MinConnection},
	}
	id, _ := streams.Append(ctx, StreamAssembled, entry)
	entry.ID = id

	if err := consolidator.ProcessEntry(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.upserts) != 0 {
		t.Fatalf("expected mid-range entry left untouched, got %d upserts", len(store.upserts))
	}
	length, _ := streams.Length(ctx, StreamAssembled)
	if length != 1 {
		t.Fatalf("expected entry to remain in stream, got length %d", length)
	}
}

func TestConsolidatorDegradedModeDropsMidRange(t *testing.T) {
	ctx := context.Background()
	streams := NewInMemoryStreamService(NewFakeClock(fixedTestTime))
	store := &fakeArchiveStore{}
	consolidator := newTestConsolidator(t, store, streams)

	for i := 0; i < consolidator.cfg.HighWaterMark; i++ {
		_, _ = streams.Append(ctx, StreamAssembled, StreamEntry{Stream: StreamAssembled})
	}
	if err := consolidator.CheckBackpressure(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !consolidator.Degraded() {
		t.Fatal("expected degraded mode once high water mark is reached")
	}

	entry := StreamEntry{
		Stream:   StreamAssembled,
		Salience: SalienceScore{Importance: 0.5, Novelty: 0.5, Relevance: 0.5, ConnectionRelevance: MinConnection},
	}
	id, _ := streams.Append(ctx, StreamAssembled, entry)
	entry.ID = id

	before, _ := streams.Length(ctx, StreamAssembled)
	if err := consolidator.ProcessEntry(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, _ := streams.Length(ctx, StreamAssembled)
	if after != before-1 {
		t.Fatalf("expected mid-range entry dropped under degraded mode, before=%d after=%d", before, after)
	}
	if len(store.upserts) != 0 {
		t.Fatalf("expected no persistence for dropped mid-range entry, got %d upserts", len(store.upserts))
	}
}

func TestConsolidatorRunReplayPassStrengthensPairs(t *testing.T) {
	ctx := context.Background()
	streams := NewInMemoryStreamService(NewFakeClock(fixedTestTime))
	store := &fakeArchiveStore{}
	consolidator := newTestConsolidator(t, store, streams)

	_ = store.Upsert(ctx, CollectionConscious, Memory{ID: uuid.New()})
	_ = store.Upsert(ctx, CollectionConscious, Memory{ID: uuid.New()})

	if err := consolidator.RunReplayPass(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
