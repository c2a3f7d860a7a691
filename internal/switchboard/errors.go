package switchboard

import "errors"

var (
	// ErrCapacity is returned when session creation would exceed the
	// configured concurrent-call cap. The transport layer must decline the
	// new contact; creations are never queued.
	ErrCapacity = errors.New("switchboard: line capacity exceeded")

	// ErrInvalidTransition is returned for illegal lifecycle transitions,
	// including any attempt to leave a terminal state.
	ErrInvalidTransition = errors.New("switchboard: invalid transition")

	// ErrNotFound is returned when no session matches a lookup.
	ErrNotFound = errors.New("switchboard: session not found")

	// ErrUnknownParent is returned when a creation request references a
	// parent session that was never registered.
	ErrUnknownParent = errors.New("switchboard: unknown parent session")

	// ErrNotActive is returned when an injection targets a session that is
	// not currently active.
	ErrNotActive = errors.New("switchboard: session not active")
)
