//go:build integration

package integration_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/royalbit/daneel-sub001/core"
)

func getTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	return db
}

func TestSoyStore_UpsertAndGet(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := core.NewSoyStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	mem := core.Memory{
		ID:               uuid.New(),
		OriginalSalience: core.SalienceScore{Importance: 0.9, Novelty: 0.4},
	}
	if err := store.Upsert(ctx, core.CollectionConscious, mem); err != nil {
		t.Fatalf("failed to upsert memory: %v", err)
	}
	defer func() { _ = store.Delete(ctx, mem.ID, core.CollectionConscious) }()

	got, err := store.Get(ctx, mem.ID, core.CollectionConscious)
	if err != nil {
		t.Fatalf("failed to get memory: %v", err)
	}
	if got.OriginalSalience.Importance != 0.9 {
		t.Errorf("expected importance 0.9, got %f", got.OriginalSalience.Importance)
	}
}

func TestSoyStore_Search_ExcludesDegenerateQuery(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := core.NewSoyStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	results, err := store.Search(ctx, core.Vector{}, 10, core.CollectionConscious)
	if err != nil {
		t.Fatalf("search with degenerate query vector should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for degenerate query vector, got %d", len(results))
	}
}

func TestSoyStore_UpdatePayload(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := core.NewSoyStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	mem := core.Memory{ID: uuid.New()}
	if err := store.Upsert(ctx, core.CollectionConscious, mem); err != nil {
		t.Fatalf("failed to upsert memory: %v", err)
	}
	defer func() { _ = store.Delete(ctx, mem.ID, core.CollectionConscious) }()

	err = store.UpdatePayload(ctx, mem.ID, core.CollectionConscious, func(m *core.Memory) {
		m.ReplayCount = 3
	})
	if err != nil {
		t.Fatalf("failed to update payload: %v", err)
	}

	got, err := store.Get(ctx, mem.ID, core.CollectionConscious)
	if err != nil {
		t.Fatalf("failed to get memory: %v", err)
	}
	if got.ReplayCount != 3 {
		t.Errorf("expected replay_count 3, got %d", got.ReplayCount)
	}
}

func TestSoyStore_IdentityRoundTrip(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := core.NewSoyStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	id := core.Identity{UUID: uuid.New(), LifetimeThoughtCount: 1}
	if err := store.SaveIdentity(ctx, id); err != nil {
		t.Fatalf("failed to save identity: %v", err)
	}

	loaded, err := store.LoadIdentity(ctx)
	if err != nil {
		t.Fatalf("failed to load identity: %v", err)
	}
	if loaded.UUID != id.UUID {
		t.Errorf("expected identity %s, got %s", id.UUID, loaded.UUID)
	}
}

func TestSoyStore_Delete(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := core.NewSoyStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	mem := core.Memory{ID: uuid.New()}
	if err := store.Upsert(ctx, core.CollectionUnconscious, mem); err != nil {
		t.Fatalf("failed to upsert memory: %v", err)
	}

	if err := store.Delete(ctx, mem.ID, core.CollectionUnconscious); err != nil {
		t.Fatalf("failed to delete memory: %v", err)
	}

	if _, err := store.Get(ctx, mem.ID, core.CollectionUnconscious); err == nil {
		t.Error("expected error when getting deleted memory")
	}
}
