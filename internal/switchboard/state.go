package switchboard

import "fmt"

// State is a session's lifecycle state.
type State string

const (
	// Pending is set at creation, before the backend connection succeeds.
	Pending State = "pending"
	// Active means the backend conversation is live.
	Active State = "active"
	// Suspended is paused-but-retained: the conversation keeps its backend
	// connection but is not the current focus.
	Suspended State = "suspended"
	// Completed is the clean terminal state.
	Completed State = "completed"
	// Failed is the terminal state for backend or transport errors.
	Failed State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// legalTransitions maps each state to the states it may move to.
var legalTransitions = map[State][]State{
	Pending:   {Active, Completed, Failed},
	Active:    {Suspended, Completed, Failed},
	Suspended: {Active, Completed, Failed},
	Completed: {},
	Failed:    {},
}

// validTransition reports whether from -> to is legal.
func validTransition(from, to State) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns ErrInvalidTransition (wrapped with detail) if
// from -> to is not legal.
func checkTransition(sessionID string, from, to State) error {
	if !validTransition(from, to) {
		return fmt.Errorf("%w: session %s cannot move %s -> %s", ErrInvalidTransition, sessionID, from, to)
	}
	return nil
}
