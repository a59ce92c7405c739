package orchestrator

import (
	"log/slog"
	"slices"
)

// State is a phase of one generation attempt.
type State int

const (
	StateIdle State = iota
	StateDrafting
	StateValidating
	StateQualityCheck
	StateMerging
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrafting:
		return "drafting"
	case StateValidating:
		return "validating"
	case StateQualityCheck:
		return "quality_check"
	case StateMerging:
		return "merging"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// transitions lists the allowed next states. Validation and QA are optional,
// so Drafting may skip straight to either or to Merging.
var transitions = map[State][]State{
	StateIdle:         {StateDrafting},
	StateDrafting:     {StateValidating, StateQualityCheck, StateMerging, StateFailed},
	StateValidating:   {StateQualityCheck, StateMerging, StateFailed},
	StateQualityCheck: {StateMerging, StateFailed},
	StateMerging:      {StateDone},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// machine tracks one attempt's state. It is owned by a single goroutine.
type machine struct {
	state  State
	trail  []State
	logger *slog.Logger
}

func newMachine(logger *slog.Logger) *machine {
	return &machine{state: StateIdle, trail: []State{StateIdle}, logger: logger}
}

// to moves to next, refusing and logging an invalid transition.
func (m *machine) to(next State) bool {
	if !CanTransition(m.state, next) {
		m.logger.Error("invalid orchestrator transition",
			slog.String("from", m.state.String()),
			slog.String("to", next.String()),
		)
		return false
	}
	m.state = next
	m.trail = append(m.trail, next)
	return true
}

func (m *machine) path() []State {
	return append([]State(nil), m.trail...)
}
