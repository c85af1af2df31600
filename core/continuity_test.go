package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

// identityStore is a minimal LongTermStore double for continuity tests,
// tracking only the identity record plus a save counter.
type identityStore struct {
	identity   *Identity
	saveCount  int
	loadErrSet bool
}

func (s *identityStore) Upsert(context.Context, Collection, Memory) error { return nil }
func (s *identityStore) Search(context.Context, Vector, int, Collection) ([]SearchResult, error) {
	return nil, nil
}
func (s *identityStore) SearchByCluster(context.Context, Vector, int) ([]ClusterResult, error) {
	return nil, nil
}
func (s *identityStore) Get(context.Context, uuid.UUID, Collection) (Memory, error) {
	return Memory{}, ErrNotFound
}
func (s *identityStore) UpdatePayload(context.Context, uuid.UUID, Collection, func(*Memory)) error {
	return nil
}
func (s *identityStore) Count(context.Context, Collection) (int64, error) { return 0, nil }
func (s *identityStore) Scroll(context.Context, Collection, int, uuid.UUID) ([]Memory, uuid.UUID, error) {
	return nil, uuid.Nil, nil
}
func (s *identityStore) Delete(context.Context, uuid.UUID, Collection) error { return nil }
func (s *identityStore) UpsertAssociation(context.Context, uuid.UUID, Association) error {
	return nil
}
func (s *identityStore) LoadIdentity(context.Context) (Identity, error) {
	if s.identity == nil {
		return Identity{}, ErrNotFound
	}
	return *s.identity, nil
}
func (s *identityStore) SaveIdentity(_ context.Context, id Identity) error {
	s.saveCount++
	idCopy := id
	s.identity = &idCopy
	return nil
}

var _ LongTermStore = (*identityStore)(nil)

func TestNewContinuityManagerCreatesIdentityOnFirstRun(t *testing.T) {
	ctx := context.Background()
	store := &identityStore{}
	cfg := Continuity{FlushN: 5, FlushSeconds: 60}

	mgr, err := NewContinuityManager(ctx, store, cfg, NewFakeClock(fixedTestTime))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mgr.Identity().RestartCount != 0 {
		t.Fatalf("expected restart_count 0 on first run, got %d", mgr.Identity().RestartCount)
	}
	if store.saveCount != 1 {
		t.Fatalf("expected identity saved once on first run, got %d", store.saveCount)
	}
}

func TestNewContinuityManagerRecordsRestart(t *testing.T) {
	ctx := context.Background()
	existing := Identity{UUID: uuid.New(), LifetimeThoughtCount: 12}
	store := &identityStore{identity: &existing}
	cfg := Continuity{FlushN: 5, FlushSeconds: 60}

	mgr, err := NewContinuityManager(ctx, store, cfg, NewFakeClock(fixedTestTime))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mgr.Identity().RestartCount != 1 {
		t.Fatalf("expected restart_count 1 after a restart, got %d", mgr.Identity().RestartCount)
	}
	if mgr.Identity().LifetimeThoughtCount != 12 {
		t.Fatalf("expected lifetime_thought_count preserved across restart, got %d", mgr.Identity().LifetimeThoughtCount)
	}
}

func TestContinuityManagerRecordThoughtFlushesAtFlushN(t *testing.T) {
	ctx := context.Background()
	store := &identityStore{}
	cfg := Continuity{FlushN: 2, FlushSeconds: 3600}

	mgr, err := NewContinuityManager(ctx, store, cfg, NewFakeClock(fixedTestTime))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	savesAfterInit := store.saveCount

	if err := mgr.RecordThought(ctx, fixedTestTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.saveCount != savesAfterInit {
		t.Fatalf("expected no flush before reaching flush_n, got save count %d", store.saveCount)
	}

	if err := mgr.RecordThought(ctx, fixedTestTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.saveCount != savesAfterInit+1 {
		t.Fatalf("expected a flush once flush_n is reached, got save count %d", store.saveCount)
	}
	if mgr.Identity().LifetimeThoughtCount != 2 {
		t.Fatalf("expected lifetime_thought_count 2, got %d", mgr.Identity().LifetimeThoughtCount)
	}
}

func TestContinuityManagerFlushForces(t *testing.T) {
	ctx := context.Background()
	store := &identityStore{}
	cfg := Continuity{FlushN: 1000, FlushSeconds: 3600}

	mgr, err := NewContinuityManager(ctx, store, cfg, NewFakeClock(fixedTestTime))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	savesAfterInit := store.saveCount

	if err := mgr.Flush(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.saveCount != savesAfterInit+1 {
		t.Fatalf("expected Flush to force a save, got save count %d", store.saveCount)
	}
}

func TestContinuityManagerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &identityStore{}
	cfg := Continuity{FlushN: 1000, FlushSeconds: 1}

	mgr, err := NewContinuityManager(ctx, store, cfg, NewFakeClock(fixedTestTime))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		mgr.Start(ctx)
		close(done)
	}()

	mgr.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Start to return promptly after Stop")
	}
	cancel()
}
