package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/zoobzio/capitan"
)

// Forgetter is the shared archive-then-delete primitive used by both the
// Selector (losers scoring below FORGET_THRESHOLD) and the Consolidator
// (rule 2 and TTL expiry). It guarantees I5: no payload disappears from a
// working stream without first landing in unconscious memory.
type Forgetter struct {
	store   LongTermStore
	streams StreamService
	clock   Clock
}

// NewForgetter creates a Forgetter bound to the long-term store and stream
// service it archives into and removes from.
func NewForgetter(store LongTermStore, streams StreamService, clock Clock) *Forgetter {
	if clock == nil {
		clock = RealClock
	}
	return &Forgetter{store: store, streams: streams, clock: clock}
}

// Forget archives entry's payload to unconscious memory with the given
// reason, then deletes it from its source stream. The archive write always
// happens before the delete call, so a crash between the two leaves the
// entry merely duplicated (still in the stream, already archived) rather
// than lost.
func (f *Forgetter) Forget(ctx context.Context, entry StreamEntry, reason string) error {
	if err := f.Archive(ctx, entry, reason); err != nil {
		return err
	}

	if err := f.streams.Delete(ctx, entry.Stream, entry.ID); err != nil {
		return fmt.Errorf("forget: delete failed after archive: %w", err)
	}
	return nil
}

// Archive persists entry's payload to unconscious memory with the given
// reason, without removing it from its source stream. Used by callers that
// have already removed the entry themselves (a TTL sweep's ExpireTTL
// dequeues expired entries as part of detecting them), where a second
// Delete call would fail against an entry that is already gone.
func (f *Forgetter) Archive(ctx context.Context, entry StreamEntry, reason string) error {
	memory := Memory{
		OriginalSalience: entry.Salience,
		ArchivedAt:       ptrTime(f.clock.Now()),
		ArchiveReason:    reason,
		CreatedAt:        entry.Timestamp,
	}

	if err := f.store.Upsert(ctx, CollectionUnconscious, memory); err != nil {
		return fmt.Errorf("forget: archive failed: %w", err)
	}

	capitan.Emit(ctx, MemoryForgotten,
		FieldStreamName.Field(string(entry.Stream)),
		FieldEntryID.Field(strconv.FormatInt(entry.ID, 10)),
		FieldReason.Field(reason),
		FieldSalience.Field(total(entry.Salience, defaultWeightsFallback, MinConnection)),
	)
	return nil
}

// defaultWeightsFallback is used only for the logged salience value when no
// Weights are otherwise in scope; callers that have a real Weights should
// prefer computing total() themselves before emitting signals.
var defaultWeightsFallback = defaultWeights()

func ptrTime(t time.Time) *time.Time {
	return &t
}
