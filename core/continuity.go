package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
)

// ContinuityManager makes lifetime identity survive restarts, bounded by
// at most one flush window of loss (§4.10, I6).
type ContinuityManager struct {
	store LongTermStore
	cfg   Continuity
	clock Clock

	mu          sync.Mutex
	identity    Identity
	sinceFlush  int
	lastFlush   time.Time
	stopCh      chan struct{}
	checkpoints map[uuid.UUID]Identity
}

// NewContinuityManager loads the persisted identity (or creates one with a
// fresh UUID) and returns a ready ContinuityManager.
func NewContinuityManager(ctx context.Context, store LongTermStore, cfg Continuity, clock Clock) (*ContinuityManager, error) {
	if clock == nil {
		clock = RealClock
	}

	identity, err := store.LoadIdentity(ctx)
	restarted := true
	if err == ErrNotFound {
		identity = Identity{
			UUID:             uuid.New(),
			BornAt:           clock.Now(),
			SessionStartedAt: clock.Now(),
		}
		restarted = false
		if err := store.SaveIdentity(ctx, identity); err != nil {
			return nil, &StoreError{Op: "save_identity", Collection: string(CollectionIdentity), Err: err}
		}
	} else if err != nil {
		return nil, &StoreError{Op: "load_identity", Collection: string(CollectionIdentity), Err: err}
	}

	if restarted {
		identity.RestartCount++
		identity.SessionStartedAt = clock.Now()
		if err := store.SaveIdentity(ctx, identity); err != nil {
			return nil, &StoreError{Op: "save_identity", Collection: string(CollectionIdentity), Err: err}
		}
		capitan.Emit(ctx, RestartRecorded,
			FieldIdentityUUID.Field(identity.UUID.String()),
			FieldRestartCount.Field(int(identity.RestartCount)),
		)
	}

	capitan.Emit(ctx, IdentityLoaded,
		FieldIdentityUUID.Field(identity.UUID.String()),
		FieldLifetimeThoughts.Field(int(identity.LifetimeThoughtCount)),
	)

	return &ContinuityManager{
		store:       store,
		cfg:         cfg,
		clock:       clock,
		identity:    identity,
		lastFlush:   clock.Now(),
		stopCh:      make(chan struct{}),
		checkpoints: make(map[uuid.UUID]Identity),
	}, nil
}

// RecordThought increments the lifetime thought counter (I6: monotone
// non-decreasing across restarts) and flushes if FLUSH_N or FLUSH_SECONDS
// has elapsed, whichever comes first.
func (c *ContinuityManager) RecordThought(ctx context.Context, at time.Time) error {
	c.mu.Lock()
	c.identity.LifetimeThoughtCount++
	c.identity.LastThoughtAt = &at
	c.sinceFlush++
	shouldFlush := c.sinceFlush >= c.cfg.FlushN || c.clock.Now().Sub(c.lastFlush) >= time.Duration(c.cfg.FlushSeconds)*time.Second
	identity := c.identity
	c.mu.Unlock()

	if !shouldFlush {
		return nil
	}
	return c.flush(ctx, identity)
}

// Flush forces an immediate atomic write of the current counters,
// e.g. on graceful shutdown.
func (c *ContinuityManager) Flush(ctx context.Context) error {
	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()
	return c.flush(ctx, identity)
}

func (c *ContinuityManager) flush(ctx context.Context, identity Identity) error {
	if err := c.store.SaveIdentity(ctx, identity); err != nil {
		return &StoreError{Op: "save_identity", Collection: string(CollectionIdentity), Err: err}
	}

	c.mu.Lock()
	c.sinceFlush = 0
	c.lastFlush = c.clock.Now()
	c.mu.Unlock()

	capitan.Emit(ctx, IdentityFlushed,
		FieldIdentityUUID.Field(identity.UUID.String()),
		FieldLifetimeThoughts.Field(int(identity.LifetimeThoughtCount)),
	)
	return nil
}

// Identity returns a snapshot of the current identity record.
func (c *ContinuityManager) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Checkpoint flushes the current identity and snapshots it under a new
// checkpoint id, so a caller can later read this exact snapshot back via
// CheckpointIdentity without waiting on the next FLUSH_N/FLUSH_SECONDS
// cadence. Nothing restores the live identity from a checkpoint.
// Checkpoints are held in memory only; they do not themselves persist
// beyond process lifetime.
func (c *ContinuityManager) Checkpoint(ctx context.Context) (uuid.UUID, error) {
	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()

	if err := c.flush(ctx, identity); err != nil {
		return uuid.Nil, err
	}

	snapshotID := uuid.New()
	c.mu.Lock()
	c.checkpoints[snapshotID] = identity
	c.mu.Unlock()

	capitan.Emit(ctx, CheckpointCreated,
		FieldCheckpointID.Field(snapshotID.String()),
		FieldIdentityUUID.Field(identity.UUID.String()),
	)
	return snapshotID, nil
}

// CheckpointIdentity returns the identity snapshot recorded under id, or
// ErrNotFound if no such checkpoint exists.
func (c *ContinuityManager) CheckpointIdentity(id uuid.UUID) (Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	identity, ok := c.checkpoints[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return identity, nil
}

// Start runs a periodic flush loop at FlushSeconds granularity, for
// deployments that want a background safety net in addition to the
// FLUSH_N-triggered flush in RecordThought.
func (c *ContinuityManager) Start(ctx context.Context) {
	interval := time.Duration(c.cfg.FlushSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			_ = c.Flush(ctx)
		}
	}
}

// Stop signals the background flush loop to exit.
func (c *ContinuityManager) Stop() {
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
}
