// Package switchboard owns the in-memory table of live phone conversations:
// capacity enforcement, naming, the per-session lifecycle state machine, and
// the single-primary designation for the operator's main call.
package switchboard

import (
	"context"
	"time"

	"github.com/MateDort/switchboard/internal/identity"
)

// Conn is the opaque handle to a session's live backend conversation. The
// registry uses it to inject framed inter-agent text and to observe the end
// of the conversation.
type Conn interface {
	// Inject inserts text into the live conversation's turn sequence. The
	// text is already framed as an inter-agent message.
	Inject(ctx context.Context, text string) error
	// Done returns a channel that delivers the conversation's end: nil for
	// a clean end, non-nil for a backend or transport error. The channel is
	// closed after the single send.
	Done() <-chan error
	// Close tears down the backend connection.
	Close() error
}

// session is the registry-owned mutable record for one conversation. Never
// exposed outside the package; callers receive Snapshot copies.
type session struct {
	id           string
	name         string
	phoneNumber  string
	permission   identity.Permission
	display      string
	state        State
	parentID     string
	purpose      string
	createdAt    time.Time
	lastActivity time.Time
	conn         Conn
}

// Snapshot is an immutable copy of a session's observable state. A snapshot
// is valid only for the moment it was taken; the live session may move on.
type Snapshot struct {
	ID           string
	Name         string
	PhoneNumber  string
	Permission   identity.Permission
	Display      string
	State        State
	Primary      bool
	ParentID     string
	Purpose      string
	CreatedAt    time.Time
	LastActivity time.Time
}

// snapshot copies the session's observable state. Callers must hold the
// registry lock.
func (s *session) snapshot(primaryID string) Snapshot {
	return Snapshot{
		ID:           s.id,
		Name:         s.name,
		PhoneNumber:  s.phoneNumber,
		Permission:   s.permission,
		Display:      s.display,
		State:        s.state,
		Primary:      s.id == primaryID,
		ParentID:     s.parentID,
		Purpose:      s.purpose,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
	}
}
