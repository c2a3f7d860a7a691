// Package courier routes messages between sessions, the operator, and the
// fallback channels. It is the single entry point for every cross-session
// communication.
package courier

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OperatorTarget is the literal routing token for "tell the operator".
const OperatorTarget = "operator"

// Kind is the closed set of routed message kinds.
type Kind string

const (
	// KindPlain is an ordinary inter-session message.
	KindPlain Kind = "plain"
	// KindConfirm is a confirmation/approval request with a timeout.
	KindConfirm Kind = "confirm"
	// KindBroadcast targets every other active session.
	KindBroadcast Kind = "broadcast"
	// KindCallback is a scheduled callback or reminder firing.
	KindCallback Kind = "callback"
	// KindReport is a completion report from a goal-initiated session.
	KindReport Kind = "report"
)

// Status is a routed message's delivery status.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDelivered    Status = "delivered"
	StatusFallbackSent Status = "fallback_sent"
	StatusTimedOut     Status = "timed_out"
	StatusFailed       Status = "failed"
)

// Message is one routing request. FromSessionID is empty for
// system-originated messages (timers, reminders).
type Message struct {
	ID            string
	FromSessionID string
	ToTarget      string // session id, OperatorTarget, or a session-name pattern
	Body          string
	Kind          Kind
	CreatedAt     time.Time
}

// NewMessage builds a Message with a fresh id and timestamp.
func NewMessage(from, to, body string, kind Kind) Message {
	return Message{
		ID:            uuid.NewString(),
		FromSessionID: from,
		ToTarget:      to,
		Body:          body,
		Kind:          kind,
		CreatedAt:     time.Now(),
	}
}

// Outcome is the per-recipient result of a routing decision.
type Outcome struct {
	MessageID string
	Target    string // resolved recipient: session id or fallback channel name
	Status    Status
	Detail    string
}

// frameFrom wraps body so the backend recognizes it as an inter-agent
// message rather than human speech.
func frameFrom(fromName, body string) string {
	if fromName == "" {
		return fmt.Sprintf("[system] %s", body)
	}
	return fmt.Sprintf("[message from %s] %s", fromName, body)
}

// frameAnnouncement wraps body as an in-call announcement for the operator.
func frameAnnouncement(fromName, body string) string {
	if fromName == "" {
		return fmt.Sprintf("[announce to the caller] %s", body)
	}
	return fmt.Sprintf("[announce to the caller, from %s] %s", fromName, body)
}

// frameReminder wraps a scheduled callback body.
func frameReminder(body string) string {
	return fmt.Sprintf("[reminder, relay to the caller] %s", body)
}
