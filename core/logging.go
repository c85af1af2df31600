package core

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/zoobzio/capitan"
)

// NewLogger builds the process logger. Console-pretty in development,
// JSON lines otherwise, matching the level/field idiom zerolog users
// expect (component-scoped sub-loggers via .With().Str("component", ...)).
func NewLogger(pretty bool, level zerolog.Level) zerolog.Logger {
	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// NewCrashLogger opens (creating if needed) a dedicated crash log file for
// panic records recovered by the cycle driver's stage supervision boundary
// (§4.1 failure semantics).
func NewCrashLogger(path string) (zerolog.Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	logger := zerolog.New(f).With().Timestamp().Logger()
	return logger, f.Close, nil
}

// LogBridge subscribes capitan signals to the structured process logger, so
// every signal emitted across the core (cycle, selector, law gate,
// consolidator, association graph, continuity) also lands in the ordinary
// log stream distinct from the signal bus itself.
type LogBridge struct {
	logger    zerolog.Logger
	listeners []*capitan.Listener
}

// NewLogBridge hooks every core signal. Call Close to unhook.
func NewLogBridge(logger zerolog.Logger) *LogBridge {
	b := &LogBridge{logger: logger.With().Str("component", "signal_bridge").Logger()}

	b.hook(CycleStarted, "cycle started")
	b.hook(CycleCompleted, "cycle completed")
	b.hook(CycleOverBudget, "stage over budget")
	b.hook(CyclePanicRecovered, "stage panic recovered")
	b.hook(StageStarted, "stage started")
	b.hook(StageCompleted, "stage completed")
	b.hook(StageFailed, "stage failed")
	b.hook(CandidateScored, "candidate scored")
	b.hook(WinnerSelected, "winner selected")
	b.hook(CandidateArchived, "candidate archived")
	b.hook(CandidateRetained, "candidate retained")
	b.hook(ThoughtAssembled, "thought assembled")
	b.hook(ThoughtSuppressed, "thought suppressed")
	b.hook(InvariantViolated, "invariant violated")
	b.hook(MemoryConsolidated, "memory consolidated")
	b.hook(MemoryForgotten, "memory forgotten")
	b.hook(ConsolidationDegraded, "consolidation degraded")
	b.hook(ReplayPassCompleted, "replay pass completed")
	b.hook(AssociationStrengthened, "association strengthened")
	b.hook(AssociationPruned, "association pruned")
	b.hook(IdentityLoaded, "identity loaded")
	b.hook(IdentityFlushed, "identity flushed")
	b.hook(RestartRecorded, "restart recorded")
	b.hook(CheckpointCreated, "checkpoint created")

	return b
}

func (b *LogBridge) hook(signal capitan.Signal, msg string) {
	listener := capitan.Hook(signal, func(_ context.Context, e *capitan.Event) {
		evt := b.logger.Info()
		if e.Severity() == capitan.SeverityError {
			evt = b.logger.Error()
		}
		attachKnownFields(evt, e)
		evt.Msg(msg)
	})
	b.listeners = append(b.listeners, listener)
}

// attachKnownFields copies whichever of the package's field keys are
// present on the event; a signal only carries a subset of these, and
// From() reports ok=false for the rest.
func attachKnownFields(evt *zerolog.Event, e *capitan.Event) {
	if v, ok := FieldCycleNumber.From(e); ok {
		evt.Int("cycle_number", v)
	}
	if v, ok := FieldStageName.From(e); ok {
		evt.Str("stage_name", v)
	}
	if v, ok := FieldStageDuration.From(e); ok {
		evt.Dur("stage_duration", v)
	}
	if v, ok := FieldOnTime.From(e); ok {
		evt.Bool("on_time", v)
	}
	if v, ok := FieldStreamName.From(e); ok {
		evt.Str("stream_name", v)
	}
	if v, ok := FieldEntryID.From(e); ok {
		evt.Str("entry_id", v)
	}
	if v, ok := FieldCandidateCount.From(e); ok {
		evt.Int("candidate_count", v)
	}
	if v, ok := FieldTotalScore.From(e); ok {
		evt.Float64("total_score", v)
	}
	if v, ok := FieldForgetThreshold.From(e); ok {
		evt.Float64("forget_threshold", v)
	}
	if v, ok := FieldCollection.From(e); ok {
		evt.Str("collection", v)
	}
	if v, ok := FieldMemoryID.From(e); ok {
		evt.Str("memory_id", v)
	}
	if v, ok := FieldThoughtID.From(e); ok {
		evt.Str("thought_id", v)
	}
	if v, ok := FieldReason.From(e); ok {
		evt.Str("reason", v)
	}
	if v, ok := FieldSalience.From(e); ok {
		evt.Float64("salience", v)
	}
	if v, ok := FieldAssociationSource.From(e); ok {
		evt.Str("association_source", v)
	}
	if v, ok := FieldAssociationTarget.From(e); ok {
		evt.Str("association_target", v)
	}
	if v, ok := FieldAssociationWeight.From(e); ok {
		evt.Float64("association_weight", v)
	}
	if v, ok := FieldIdentityUUID.From(e); ok {
		evt.Str("identity_uuid", v)
	}
	if v, ok := FieldRestartCount.From(e); ok {
		evt.Int("restart_count", v)
	}
	if v, ok := FieldLifetimeThoughts.From(e); ok {
		evt.Int("lifetime_thought_count", v)
	}
	if v, ok := FieldCheckpointID.From(e); ok {
		evt.Str("checkpoint_id", v)
	}
	if v, ok := FieldInvariant.From(e); ok {
		evt.Str("invariant", v)
	}
	if v, ok := FieldError.From(e); ok && v != nil {
		evt.Err(v)
	}
}

// Close unhooks every listener.
func (b *LogBridge) Close() {
	for _, l := range b.listeners {
		l.Close()
	}
	b.listeners = nil
}
