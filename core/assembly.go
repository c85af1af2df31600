package core

import (
	"context"

	"github.com/zoobzio/capitan"
)

// EmotionalState is the current valence/arousal pair Assembly blends into
// the winner's salience before building a Thought (§4.5).
type EmotionalState struct {
	Valence float64
	Arousal float64
}

// modulate nudges the winner's salience toward the current emotional
// state: a small blend (10%) keeps Assembly's influence bounded relative
// to the winner's own scored salience.
func (e EmotionalState) modulate(s SalienceScore) SalienceScore {
	const blend = 0.1
	s.Valence = s.Valence*(1-blend) + e.Valence*blend
	s.Arousal = s.Arousal*(1-blend) + e.Arousal*blend
	return s
}

// Assembler builds the immutable Thought for a winning cycle and consults
// the Law gate before returning it (§4.5).
type Assembler struct {
	gate  *LawGate
	clock Clock
}

// NewAssembler constructs an Assembler bound to a LawGate.
func NewAssembler(gate *LawGate, clock Clock) *Assembler {
	if clock == nil {
		clock = RealClock
	}
	return &Assembler{gate: gate, clock: clock}
}

// Assemble builds a Thought from the winner, current emotional state, and
// any retrieved context, then consults the Law gate. If the gate rejects,
// the returned Thought is marked Suppressed and carries no external
// effect; it is still returned (not dropped) so callers can log/audit it.
func (a *Assembler) Assemble(ctx context.Context, winner StreamEntry, emotion EmotionalState, retrievedContext []Content, cycleNumber int64, state SystemState) Thought {
	start := a.clock.Now()

	salience := emotion.modulate(winner.Salience)
	inputs := append([]Content{winner.Content}, retrievedContext...)

	thought := NewThought(inputs, winner.Content, salience, cycleNumber, a.clock.Now())
	thought.AssemblyTime = a.clock.Now().Sub(start)

	verdict, reason := a.gate.CheckAction(ProposedAction{Kind: "assemble_thought", Thought: &thought}, state)
	if verdict == Rejected {
		thought.Suppressed = true
		thought.Rejection = reason
		capitan.Emit(ctx, ThoughtSuppressed,
			FieldThoughtID.Field(thought.ID.String()),
			FieldReason.Field(reason),
		)
		return thought
	}

	capitan.Emit(ctx, ThoughtAssembled,
		FieldThoughtID.Field(thought.ID.String()),
		FieldCycleNumber.Field(int(cycleNumber)),
	)
	return thought
}
