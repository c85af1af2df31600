package core

import "fmt"

// LawVerdict is the Law gate's binary decision shape (§4.6), reused from
// the decide-primitive's Approved/Rejected contract.
type LawVerdict int

const (
	Approved LawVerdict = iota
	Rejected
)

func (v LawVerdict) String() string {
	if v == Approved {
		return "approved"
	}
	return "rejected"
}

// ProposedAction is what Assembly submits for review before an externally
// visible effect (producing a Thought, or any future self-modification
// proposal).
type ProposedAction struct {
	Kind     string
	Thought  *Thought
}

// SystemState is the subset of runtime state the law set inspects (§3).
type SystemState struct {
	ActiveWindows      int
	MaxWindows         int
	ConnectionWeight   float64
	MinConnection      float64
	TestCoverage       float64
	IdentityPersisted  bool
}

// InvariantCheckResult reports one invariant's pass/fail state.
type InvariantCheckResult struct {
	Invariant string
	Pass      bool
	Detail    string
}

// law is one immutable rule in the fixed law set. It inspects a
// ProposedAction and the current SystemState and may reject.
type law func(ProposedAction, SystemState) (LawVerdict, string)

// LawGate is "THE BOX": an immutable invariant checker with no mutation
// API (I3). The law set is fixed at construction and never altered at
// runtime; there is no AddLaw or RemoveLaw method anywhere in this type.
type LawGate struct {
	laws []law
}

// NewLawGate builds the gate with the fixed law set. It takes no options:
// every gate carries the same laws, and once built a LawGate cannot gain or
// lose laws.
func NewLawGate() *LawGate {
	return &LawGate{
		laws: []law{
			lawBoundedWindows,
			lawConnectionFloor,
		},
	}
}

// CheckAction consults every law in order; the first rejection wins.
func (g *LawGate) CheckAction(action ProposedAction, state SystemState) (LawVerdict, string) {
	for _, l := range g.laws {
		if verdict, reason := l(action, state); verdict == Rejected {
			return Rejected, reason
		}
	}
	return Approved, ""
}

// CheckInvariants runs every invariant check against the given state,
// independent of any specific proposed action.
func (g *LawGate) CheckInvariants(state SystemState) []InvariantCheckResult {
	return []InvariantCheckResult{
		checkBoundedWindows(state),
		checkConnectionFloor(state),
	}
}

func lawBoundedWindows(_ ProposedAction, state SystemState) (LawVerdict, string) {
	if state.MaxWindows > 0 && state.ActiveWindows > state.MaxWindows {
		return Rejected, fmt.Sprintf("active_windows %d exceeds MAX_WINDOWS %d", state.ActiveWindows, state.MaxWindows)
	}
	return Approved, ""
}

func lawConnectionFloor(_ ProposedAction, state SystemState) (LawVerdict, string) {
	if state.ConnectionWeight < state.MinConnection {
		return Rejected, fmt.Sprintf("connection_weight %.4f below MIN_CONNECTION %.4f", state.ConnectionWeight, state.MinConnection)
	}
	return Approved, ""
}

func checkBoundedWindows(state SystemState) InvariantCheckResult {
	r := InvariantCheckResult{Invariant: "I1"}
	if state.MaxWindows > 0 && state.ActiveWindows > state.MaxWindows {
		r.Detail = fmt.Sprintf("active_windows %d exceeds MAX_WINDOWS %d", state.ActiveWindows, state.MaxWindows)
		return r
	}
	r.Pass = true
	return r
}

func checkConnectionFloor(state SystemState) InvariantCheckResult {
	r := InvariantCheckResult{Invariant: "I2"}
	if state.ConnectionWeight < state.MinConnection {
		r.Detail = fmt.Sprintf("connection_weight %.4f below MIN_CONNECTION %.4f", state.ConnectionWeight, state.MinConnection)
		return r
	}
	r.Pass = true
	return r
}
