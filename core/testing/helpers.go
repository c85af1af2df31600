// Package coretest provides test doubles and assertion helpers for core.
package coretest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/royalbit/daneel-sub001/core"
)

// MockLongTermStore implements core.LongTermStore entirely in memory, for
// tests that exercise the Consolidator, Forgetter, AssociationGraph, and
// ContinuityManager without a database.
type MockLongTermStore struct {
	mu           sync.RWMutex
	conscious    map[uuid.UUID]core.Memory
	unconscious  map[uuid.UUID]core.Memory
	associations []core.Association
	identity     *core.Identity
}

// NewMockLongTermStore creates an empty MockLongTermStore.
func NewMockLongTermStore() *MockLongTermStore {
	return &MockLongTermStore{
		conscious:   make(map[uuid.UUID]core.Memory),
		unconscious: make(map[uuid.UUID]core.Memory),
	}
}

func (m *MockLongTermStore) collectionMap(c core.Collection) map[uuid.UUID]core.Memory {
	if c == core.CollectionUnconscious {
		return m.unconscious
	}
	return m.conscious
}

// Upsert stores (or replaces) a memory record in the given collection.
func (m *MockLongTermStore) Upsert(_ context.Context, collection core.Collection, mem core.Memory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mem.ID == uuid.Nil {
		mem.ID = uuid.New()
	}
	m.collectionMap(collection)[mem.ID] = mem
	return nil
}

// Search returns up to k memories from the collection, ignoring the query
// vector (no real similarity ranking in the mock).
func (m *MockLongTermStore) Search(_ context.Context, _ core.Vector, k int, collection core.Collection) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]core.SearchResult, 0, k)
	for _, mem := range m.collectionMap(collection) {
		if len(results) >= k {
			break
		}
		results = append(results, core.SearchResult{ID: mem.ID, Payload: mem, Similarity: 1.0})
	}
	return results, nil
}

// SearchByCluster groups every memory across both collections by its
// cluster_id (ignoring the query vector, like Search), keeping first-seen
// cluster order so tests can assert on deterministic cluster composition.
func (m *MockLongTermStore) SearchByCluster(_ context.Context, _ core.Vector, k int) ([]core.ClusterResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order := make([]string, 0)
	byID := make(map[string]*core.ClusterResult)
	for _, coll := range []map[uuid.UUID]core.Memory{m.conscious, m.unconscious} {
		for _, mem := range coll {
			if mem.ClusterID == nil || *mem.ClusterID == "" {
				continue
			}
			id := *mem.ClusterID
			cluster, ok := byID[id]
			if !ok {
				cluster = &core.ClusterResult{ClusterID: id, Representative: mem}
				byID[id] = cluster
				order = append(order, id)
			}
			cluster.Members = append(cluster.Members, mem)
		}
	}

	out := make([]core.ClusterResult, 0, k)
	for _, id := range order {
		if len(out) >= k {
			break
		}
		out = append(out, *byID[id])
	}
	return out, nil
}

// Get loads one memory by id from the given collection.
func (m *MockLongTermStore) Get(_ context.Context, id uuid.UUID, collection core.Collection) (core.Memory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mem, ok := m.collectionMap(collection)[id]
	if !ok {
		return core.Memory{}, core.ErrNotFound
	}
	return mem, nil
}

// UpdatePayload applies patch to the stored memory in place.
func (m *MockLongTermStore) UpdatePayload(_ context.Context, id uuid.UUID, collection core.Collection, patch func(*core.Memory)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.collectionMap(collection)
	mem, ok := coll[id]
	if !ok {
		return core.ErrNotFound
	}
	patch(&mem)
	coll[id] = mem
	return nil
}

// Count returns the number of memories in the collection.
func (m *MockLongTermStore) Count(_ context.Context, collection core.Collection) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.collectionMap(collection))), nil
}

// Scroll returns up to batchSize memories after cursor, in arbitrary mock
// order; the mock has no stable ordering so cursor is advisory only.
func (m *MockLongTermStore) Scroll(_ context.Context, collection core.Collection, batchSize int, _ uuid.UUID) ([]core.Memory, uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.Memory, 0, batchSize)
	next := uuid.Nil
	for _, mem := range m.collectionMap(collection) {
		if len(out) >= batchSize {
			break
		}
		out = append(out, mem)
		next = mem.ID
	}
	return out, next, nil
}

// Delete removes a memory by id.
func (m *MockLongTermStore) Delete(_ context.Context, id uuid.UUID, collection core.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collectionMap(collection), id)
	return nil
}

// UpsertAssociation records an association edge for later inspection by tests.
func (m *MockLongTermStore) UpsertAssociation(_ context.Context, _ uuid.UUID, assoc core.Association) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.associations = append(m.associations, assoc)
	return nil
}

// LoadIdentity returns the stored identity, or core.ErrNotFound before the
// first SaveIdentity call.
func (m *MockLongTermStore) LoadIdentity(_ context.Context) (core.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return core.Identity{}, core.ErrNotFound
	}
	return *m.identity, nil
}

// SaveIdentity persists the identity record.
func (m *MockLongTermStore) SaveIdentity(_ context.Context, identity core.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := identity
	m.identity = &id
	return nil
}

// Associations returns a snapshot of every recorded association, for test
// assertions.
func (m *MockLongTermStore) Associations() []core.Association {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.Association(nil), m.associations...)
}

var _ core.LongTermStore = (*MockLongTermStore)(nil)

// NewTestClock returns a core.FakeClock pinned to a fixed, deterministic
// start time, so stage-timing assertions don't depend on wall-clock drift.
func NewTestClock() *core.FakeClock {
	return core.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

// RequireNoError fails the test immediately if err is non-nil.
func RequireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// RequireThoughtApproved fails the test if the thought was suppressed by
// the Law gate.
func RequireThoughtApproved(t *testing.T, thought core.Thought) {
	t.Helper()
	if thought.Suppressed {
		t.Fatalf("expected thought to be approved, but it was suppressed: %s", thought.Rejection)
	}
}
