package core

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

// fakeArchiveStore is a minimal LongTermStore double local to this package's
// tests, used where the full coretest mock would create an import cycle.
type fakeArchiveStore struct {
	upserts []Memory
}

func (f *fakeArchiveStore) Upsert(_ context.Context, _ Collection, m Memory) error {
	f.upserts = append(f.upserts, m)
	return nil
}
func (f *fakeArchiveStore) Search(context.Context, Vector, int, Collection) ([]SearchResult, error) {
	return nil, nil
}
func (f *fakeArchiveStore) SearchByCluster(context.Context, Vector, int) ([]ClusterResult, error) {
	return nil, nil
}
func (f *fakeArchiveStore) Get(context.Context, uuid.UUID, Collection) (Memory, error) {
	return Memory{}, ErrNotFound
}
func (f *fakeArchiveStore) UpdatePayload(context.Context, uuid.UUID, Collection, func(*Memory)) error {
	return nil
}
func (f *fakeArchiveStore) Count(context.Context, Collection) (int64, error) { return 0, nil }
func (f *fakeArchiveStore) Scroll(context.Context, Collection, int, uuid.UUID) ([]Memory, uuid.UUID, error) {
	return nil, uuid.Nil, nil
}
func (f *fakeArchiveStore) Delete(context.Context, uuid.UUID, Collection) error { return nil }
func (f *fakeArchiveStore) UpsertAssociation(context.Context, uuid.UUID, Association) error {
	return nil
}
func (f *fakeArchiveStore) LoadIdentity(context.Context) (Identity, error) {
	return Identity{}, ErrNotFound
}
func (f *fakeArchiveStore) SaveIdentity(context.Context, Identity) error { return nil }

var _ LongTermStore = (*fakeArchiveStore)(nil)

func TestForgetterArchivesBeforeDeleting(t *testing.T) {
	ctx := context.Background()
	streams := NewInMemoryStreamService(NewFakeClock(fixedTestTime))
	store := &fakeArchiveStore{}
	forgetter := NewForgetter(store, streams, NewFakeClock(fixedTestTime))

	entry := StreamEntry{Stream: StreamSensory, Content: Raw{Data: []byte("x")}, Salience: SalienceScore{ConnectionRelevance: MinConnection}}
	id, err := streams.Append(ctx, StreamSensory, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry.ID = id

	if err := forgetter.Forget(ctx, entry, "low-salience"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.upserts) != 1 {
		t.Fatalf("expected 1 archived memory, got %d", len(store.upserts))
	}
	if store.upserts[0].ArchiveReason != "low-salience" {
		t.Fatalf("expected archive reason %q, got %q", "low-salience", store.upserts[0].ArchiveReason)
	}
	if store.upserts[0].ArchivedAt == nil {
		t.Fatal("expected ArchivedAt to be set")
	}

	length, err := streams.Length(ctx, StreamSensory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if length != 0 {
		t.Fatalf("expected entry removed from stream after forget, got length %d", length)
	}
}
