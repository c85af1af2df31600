package core

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryStreamServiceAppendAssignsMonotoneIDs(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStreamService(NewFakeClock(fixedTestTime))

	id1, err := svc.Append(ctx, StreamSensory, StreamEntry{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := svc.Append(ctx, StreamSensory, StreamEntry{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id2 != id1+1 {
		t.Fatalf("expected monotone ids, got %d then %d", id1, id2)
	}
}

func TestInMemoryStreamServiceReadGroupSkipsAcked(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStreamService(NewFakeClock(fixedTestTime))

	id, _ := svc.Append(ctx, StreamSensory, StreamEntry{})
	if err := svc.Ack(ctx, StreamSensory, "group", id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := svc.ReadGroup(ctx, []StreamName{StreamSensory}, "group", "consumer", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected acked entry to be excluded, got %d entries", len(entries))
	}
}

func TestInMemoryStreamServiceAckUnknownEntry(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStreamService(NewFakeClock(fixedTestTime))
	if err := svc.Ack(ctx, StreamSensory, "group", 999); err == nil {
		t.Fatal("expected error acking a nonexistent entry")
	}
}

func TestInMemoryStreamServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStreamService(NewFakeClock(fixedTestTime))
	id, _ := svc.Append(ctx, StreamSensory, StreamEntry{})

	if err := svc.Delete(ctx, StreamSensory, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(ctx, StreamSensory, id); err == nil {
		t.Fatal("expected error deleting an already-deleted entry")
	}
}

func TestInMemoryStreamServiceTrim(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStreamService(NewFakeClock(fixedTestTime))
	for i := 0; i < 5; i++ {
		_, _ = svc.Append(ctx, StreamSensory, StreamEntry{})
	}

	if err := svc.Trim(ctx, StreamSensory, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	length, err := svc.Length(ctx, StreamSensory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if length != 2 {
		t.Fatalf("expected length 2 after trim, got %d", length)
	}
}

func TestInMemoryStreamServiceStreamExists(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStreamService(NewFakeClock(fixedTestTime))

	exists, err := svc.StreamExists(ctx, StreamSensory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatal("expected stream to not exist before first use")
	}

	_, _ = svc.Append(ctx, StreamSensory, StreamEntry{})
	exists, err = svc.StreamExists(ctx, StreamSensory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("expected stream to exist after an append")
	}
}

func TestInMemoryStreamServiceExpireTTL(t *testing.T) {
	ctx := context.Background()
	clock := NewFakeClock(fixedTestTime)
	svc := NewInMemoryStreamService(clock)

	_, _ = svc.Append(ctx, StreamSensory, StreamEntry{})
	clock.Advance(10 * time.Second)

	expired, err := svc.ExpireTTL(ctx, StreamSensory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired entry, got %d", len(expired))
	}

	length, _ := svc.Length(ctx, StreamSensory)
	if length != 0 {
		t.Fatalf("expected stream to be empty after TTL expiry, got length %d", length)
	}
}

func TestInMemoryStreamServiceCreateConsumerGroupIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStreamService(NewFakeClock(fixedTestTime))
	if err := svc.CreateConsumerGroup(ctx, StreamSensory, "group"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateConsumerGroup(ctx, StreamSensory, "group"); err != nil {
		t.Fatalf("unexpected error on repeat create: %v", err)
	}
}
