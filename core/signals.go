package core

import "github.com/zoobzio/capitan"

// Signal definitions for cognitive-core events. Signals follow the pattern
// core.<entity>.<event> and are the observability bus distinct from the
// structured process logger (see logging.go).
var (
	// Cycle lifecycle.
	CycleStarted = capitan.NewSignal(
		"core.cycle.started",
		"Cognitive cycle began",
	)
	CycleCompleted = capitan.NewSignal(
		"core.cycle.completed",
		"Cognitive cycle finished",
	)
	CycleOverBudget = capitan.NewSignal(
		"core.cycle.over_budget",
		"A stage exceeded its timing budget by 2x or more",
	)
	CyclePanicRecovered = capitan.NewSignal(
		"core.cycle.panic_recovered",
		"A stage panicked and was recovered by the supervision boundary",
	)

	// Stage execution.
	StageStarted = capitan.NewSignal(
		"core.stage.started",
		"A cycle stage began execution",
	)
	StageCompleted = capitan.NewSignal(
		"core.stage.completed",
		"A cycle stage finished successfully",
	)
	StageFailed = capitan.NewSignal(
		"core.stage.failed",
		"A cycle stage encountered an error",
	)

	// Selection ("the I").
	CandidateScored = capitan.NewSignal(
		"core.selector.candidate_scored",
		"A candidate was scored for this cycle's selection",
	)
	WinnerSelected = capitan.NewSignal(
		"core.selector.winner_selected",
		"A winning candidate was chosen",
	)
	CandidateArchived = capitan.NewSignal(
		"core.selector.candidate_archived",
		"A losing candidate was archived to unconscious memory",
	)
	CandidateRetained = capitan.NewSignal(
		"core.selector.candidate_retained",
		"A losing candidate was left in its stream",
	)

	// Assembly / Law gate.
	ThoughtAssembled = capitan.NewSignal(
		"core.assembly.thought_assembled",
		"A Thought was assembled from the winning candidate",
	)
	ThoughtSuppressed = capitan.NewSignal(
		"core.assembly.thought_suppressed",
		"The Law gate rejected a proposed Thought",
	)
	InvariantViolated = capitan.NewSignal(
		"core.lawgate.invariant_violated",
		"An invariant check failed",
	)

	// Consolidation.
	MemoryConsolidated = capitan.NewSignal(
		"core.consolidator.consolidated",
		"An entry was promoted to conscious memory",
	)
	MemoryForgotten = capitan.NewSignal(
		"core.consolidator.forgotten",
		"An entry was archived to unconscious memory",
	)
	ConsolidationDegraded = capitan.NewSignal(
		"core.consolidator.degraded",
		"Consolidation entered degraded mode under backpressure",
	)
	ReplayPassCompleted = capitan.NewSignal(
		"core.consolidator.replay_completed",
		"A sleep/replay pass finished",
	)

	// Association graph.
	AssociationStrengthened = capitan.NewSignal(
		"core.association.strengthened",
		"An association edge was strengthened or created",
	)
	AssociationPruned = capitan.NewSignal(
		"core.association.pruned",
		"An association edge was pruned below min weight",
	)

	// Continuity.
	IdentityLoaded = capitan.NewSignal(
		"core.continuity.identity_loaded",
		"Identity was loaded or created on startup",
	)
	IdentityFlushed = capitan.NewSignal(
		"core.continuity.identity_flushed",
		"Identity counters were flushed to persistence",
	)
	RestartRecorded = capitan.NewSignal(
		"core.continuity.restart_recorded",
		"A restart was recorded after crash recovery",
	)
	CheckpointCreated = capitan.NewSignal(
		"core.continuity.checkpoint_created",
		"An identity checkpoint was snapshotted for later restore",
	)
)

// Field keys for core event data.
var (
	FieldCycleNumber  = capitan.NewIntKey("cycle_number")
	FieldStageName    = capitan.NewStringKey("stage_name")
	FieldStageDuration = capitan.NewDurationKey("stage_duration")
	FieldOnTime       = capitan.NewBoolKey("on_time")

	FieldStreamName  = capitan.NewStringKey("stream_name")
	FieldEntryID     = capitan.NewStringKey("entry_id")
	FieldCandidateCount = capitan.NewIntKey("candidate_count")
	FieldTotalScore  = capitan.NewFloat64Key("total_score")
	FieldForgetThreshold = capitan.NewFloat64Key("forget_threshold")

	FieldThoughtID  = capitan.NewStringKey("thought_id")
	FieldReason     = capitan.NewStringKey("reason")

	FieldCollection = capitan.NewStringKey("collection")
	FieldMemoryID   = capitan.NewStringKey("memory_id")
	FieldSalience   = capitan.NewFloat64Key("salience")

	FieldAssociationSource = capitan.NewStringKey("association_source")
	FieldAssociationTarget = capitan.NewStringKey("association_target")
	FieldAssociationWeight = capitan.NewFloat64Key("association_weight")

	FieldIdentityUUID    = capitan.NewStringKey("identity_uuid")
	FieldRestartCount    = capitan.NewIntKey("restart_count")
	FieldLifetimeThoughts = capitan.NewIntKey("lifetime_thought_count")
	FieldCheckpointID    = capitan.NewStringKey("checkpoint_id")

	FieldInvariant = capitan.NewStringKey("invariant")
	FieldError     = capitan.NewErrorKey("error")
)
