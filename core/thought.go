package core

import (
	"time"

	"github.com/google/uuid"
)

// Thought is the core's immutable output entity: one per winning cycle,
// built by Assembly from the Selector's winner. Once assembled it is never
// mutated (§3).
type Thought struct {
	ID           uuid.UUID
	Inputs       []Content
	Output       Content
	Salience     SalienceScore
	CreatedAt    time.Time
	AssemblyTime time.Duration
	ParentID     *uuid.UUID
	CycleNumber  int64

	// Suppressed is set when the Law gate rejected the proposed action;
	// the record is kept for audit but carries no external effect.
	Suppressed bool
	Rejection  string
}

// NewThought constructs a Thought with a fresh id.
func NewThought(inputs []Content, output Content, salience SalienceScore, cycleNumber int64, createdAt time.Time) Thought {
	return Thought{
		ID:          uuid.New(),
		Inputs:      inputs,
		Output:      output,
		Salience:    salience,
		CreatedAt:   createdAt,
		CycleNumber: cycleNumber,
	}
}

// WithParent returns a copy of the Thought with ParentID set, used when a
// thought is derived from (e.g. a prior suppressed) predecessor.
func (t Thought) WithParent(parent uuid.UUID) Thought {
	t.ParentID = &parent
	return t
}
