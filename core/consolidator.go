package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zoobzio/capitan"
)

// ConsolidatorConfig holds the tuning knobs for both the per-entry rule
// evaluation and the periodic sleep/replay pass (§4.8).
type ConsolidatorConfig struct {
	Thresholds      Thresholds
	ReplayInterval  time.Duration
	StrengthenDelta float64 // +0.05 per spec
	CoactivationDelta float64 // +0.1 per spec
	DecayPerDay     float64 // -0.01/day
	PruneBelow      float64 // 0.1
	MaxEdgeUpdatesPerPass int
	HighWaterMark   int
}

func defaultConsolidatorConfig(thresholds Thresholds) ConsolidatorConfig {
	return ConsolidatorConfig{
		Thresholds:            thresholds,
		ReplayInterval:        10 * time.Minute,
		StrengthenDelta:       0.05,
		CoactivationDelta:     0.1,
		DecayPerDay:           0.01,
		PruneBelow:            0.1,
		MaxEdgeUpdatesPerPass: 500,
		HighWaterMark:         800,
	}
}

// DefaultConsolidatorConfig exposes defaultConsolidatorConfig to callers
// outside the package (e.g. cmd/daneelcore) wiring a Consolidator from a
// loaded Config's Thresholds.
func DefaultConsolidatorConfig(thresholds Thresholds) ConsolidatorConfig {
	return defaultConsolidatorConfig(thresholds)
}

// Consolidator decides the fate of entries on the assembled stream and
// runs the periodic sleep/replay pass over conscious memories (§4.8).
type Consolidator struct {
	streams StreamService
	store   LongTermStore
	graph   *AssociationGraph
	forgetter *Forgetter
	weights Weights
	cfg     ConsolidatorConfig
	clock   Clock
	logger  zerolog.Logger
	degraded bool
	stopCh  chan struct{}
}

// NewConsolidator builds a Consolidator.
func NewConsolidator(streams StreamService, store LongTermStore, graph *AssociationGraph, forgetter *Forgetter, weights Weights, cfg ConsolidatorConfig, clock Clock, logger zerolog.Logger) *Consolidator {
	if clock == nil {
		clock = RealClock
	}
	return &Consolidator{
		streams:   streams,
		store:     store,
		graph:     graph,
		forgetter: forgetter,
		weights:   weights,
		cfg:       cfg,
		clock:     clock,
		logger:    logger.With().Str("component", "consolidator").Logger(),
		stopCh:    make(chan struct{}),
	}
}

// ProcessEntry evaluates the consolidation rules, in order, for one
// assembled-stream entry (§4.8 rules 1-3).
func (c *Consolidator) ProcessEntry(ctx context.Context, entry StreamEntry) error {
	score := composite(entry.Salience, c.weights)

	// Backpressure: under degraded mode only entries above consolidate
	// threshold are persisted as conscious; below-forget entries are still
	// archived (I5 mandatory); entries in between are dropped with a
	// logged warning instead of being left pending.
	if c.degraded {
		switch {
		case score >= c.cfg.Thresholds.Consolidate:
			return c.promote(ctx, entry)
		case score < c.cfg.Thresholds.Forget:
			return c.forgetter.Forget(ctx, entry, "low_salience")
		default:
			c.logger.Warn().
				Str("stream", string(entry.Stream)).
				Int64("entry_id", entry.ID).
				Msg("degraded mode: dropping mid-range entry without persistence")
			return c.streams.Delete(ctx, entry.Stream, entry.ID)
		}
	}

	switch {
	case score >= c.cfg.Thresholds.Consolidate:
		return c.promote(ctx, entry)
	case score < c.cfg.Thresholds.Forget:
		return c.forgetter.Forget(ctx, entry, "low_salience")
	default:
		// Leave in stream; TTL will eventually expire it.
		return nil
	}
}

func (c *Consolidator) promote(ctx context.Context, entry StreamEntry) error {
	memory := Memory{
		OriginalSalience: entry.Salience,
		CreatedAt:        entry.Timestamp,
	}
	if err := c.store.Upsert(ctx, CollectionConscious, memory); err != nil {
		return &StoreError{Op: "promote", Collection: string(CollectionConscious), Err: err}
	}
	if err := c.streams.Delete(ctx, entry.Stream, entry.ID); err != nil {
		return &StreamError{Op: "delete", Stream: string(entry.Stream), Err: err}
	}
	capitan.Emit(ctx, MemoryConsolidated,
		FieldStreamName.Field(string(entry.Stream)),
		FieldSalience.Field(composite(entry.Salience, c.weights)),
	)
	return nil
}

// CheckBackpressure inspects the assembled stream's depth against the
// high-water mark and flips degraded mode accordingly (§5).
func (c *Consolidator) CheckBackpressure(ctx context.Context) error {
	length, err := c.streams.Length(ctx, StreamAssembled)
	if err != nil {
		return &StreamError{Op: "length", Stream: string(StreamAssembled), Err: err}
	}
	wasOn := c.degraded
	c.degraded = int(length) >= c.cfg.HighWaterMark
	if c.degraded && !wasOn {
		capitan.Emit(ctx, ConsolidationDegraded,
			FieldStreamName.Field(string(StreamAssembled)),
		)
	}
	return nil
}

// Degraded reports whether the Consolidator is currently in degraded mode.
func (c *Consolidator) Degraded() bool {
	return c.degraded
}

// Streams exposes the stream service the Consolidator was built with, for
// the cycle driver's Autoflow stage to reuse rather than holding a second
// handle to the same collaborator.
func (c *Consolidator) Streams() StreamService { return c.streams }

// Forgetter exposes the shared archive-then-delete primitive, for Autoflow's
// TTL sweep to reuse.
func (c *Consolidator) Forgetter() *Forgetter { return c.forgetter }

// Store exposes the long-term store, for the cycle driver's Trigger stage
// to run retrieval searches against.
func (c *Consolidator) Store() LongTermStore { return c.store }

// Graph exposes the association graph, for Trigger's spreading-activation
// retrieval fallback.
func (c *Consolidator) Graph() *AssociationGraph { return c.graph }

// RunReplayPass strengthens associations between co-replayed conscious
// memories, decays unactivated edges, and prunes weak ones (§4.8). Both
// phases share MaxEdgeUpdatesPerPass to preserve cycle latency targets:
// strengthening runs first and whatever budget remains goes to decay, so a
// pass never strengthens and decays the same edge.
func (c *Consolidator) RunReplayPass(ctx context.Context) error {
	start := c.clock.Now()

	memories, _, err := c.store.Scroll(ctx, CollectionConscious, 100, uuid.Nil)
	if err != nil {
		return &StoreError{Op: "scroll", Collection: string(CollectionConscious), Err: err}
	}

	touched := make(map[[2]uuid.UUID]struct{})
	updates := 0
	for i := 0; i < len(memories) && updates < c.cfg.MaxEdgeUpdatesPerPass; i++ {
		for j := i + 1; j < len(memories) && updates < c.cfg.MaxEdgeUpdatesPerPass; j++ {
			if _, err := c.graph.Strengthen(ctx, memories[i].ID, memories[j].ID, c.cfg.StrengthenDelta, AssocSemantic); err != nil {
				return err
			}
			touched[[2]uuid.UUID{memories[i].ID, memories[j].ID}] = struct{}{}
			updates++
		}
	}

	decayBudget := c.cfg.MaxEdgeUpdatesPerPass - updates
	pruned := 0
	if decayBudget > 0 {
		pruned, err = c.graph.Decay(ctx, c.cfg.DecayPerDay, c.cfg.PruneBelow, touched, start, decayBudget)
		if err != nil {
			return err
		}
	}

	capitan.Emit(ctx, ReplayPassCompleted,
		FieldCandidateCount.Field(len(memories)),
	)
	c.logger.Debug().Int("strengthened", updates).Int("pruned", pruned).Msg("replay pass completed")
	return nil
}

// ForgetByType archives every conscious memory whose dominant outgoing
// association is one of types, moving it straight to unconscious memory
// without waiting for its salience to decay below FORGET_THRESHOLD. It
// scrolls the conscious collection to completion (bounded by maxForgetPages
// pages, to keep a single call from running unbounded against a pathological
// store) and returns the number of memories forgotten.
func (c *Consolidator) ForgetByType(ctx context.Context, types []AssociationType) (int, error) {
	want := make(map[AssociationType]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}

	const pageSize = 100
	const maxForgetPages = 100

	forgotten := 0
	cursor := uuid.Nil
	for page := 0; page < maxForgetPages; page++ {
		memories, next, err := c.store.Scroll(ctx, CollectionConscious, pageSize, cursor)
		if err != nil {
			return forgotten, &StoreError{Op: "scroll", Collection: string(CollectionConscious), Err: err}
		}
		if len(memories) == 0 {
			break
		}

		for _, mem := range memories {
			typ, ok := c.graph.Dominant(mem.ID)
			if !ok {
				continue
			}
			if _, match := want[typ]; !match {
				continue
			}

			mem.ArchivedAt = ptrTime(c.clock.Now())
			mem.ArchiveReason = "association_type:" + string(typ)
			if err := c.store.Upsert(ctx, CollectionUnconscious, mem); err != nil {
				return forgotten, &StoreError{Op: "forget_by_type", Collection: string(CollectionUnconscious), Err: err}
			}
			if err := c.store.Delete(ctx, mem.ID, CollectionConscious); err != nil {
				return forgotten, &StoreError{Op: "forget_by_type", Collection: string(CollectionConscious), Err: err}
			}
			capitan.Emit(ctx, MemoryForgotten,
				FieldCollection.Field(string(CollectionConscious)),
				FieldMemoryID.Field(mem.ID.String()),
				FieldReason.Field(string(typ)),
			)
			forgotten++
		}

		if next == cursor {
			break
		}
		cursor = next
	}
	return forgotten, nil
}

// Start runs the periodic sleep/replay pass on a ticker, grounded on the
// same ticker+select+stop-channel shape used elsewhere in the pack for
// background maintenance loops.
func (c *Consolidator) Start(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ReplayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			if err := c.RunReplayPass(ctx); err != nil {
				c.logger.Error().Err(err).Msg("replay pass failed")
			}
		}
	}
}

// Stop signals the background replay loop to exit.
func (c *Consolidator) Stop() {
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
}
