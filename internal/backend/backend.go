// Package backend connects sessions to their speech/LLM conversation
// backend. The streaming audio protocol is the backend's business; this
// package only opens the connection, injects framed inter-agent text, and
// reports the end of the conversation.
package backend

import (
	"context"

	"github.com/MateDort/switchboard/internal/switchboard"
)

// Params describe the conversation to open for one session.
type Params struct {
	SystemPrompt string
	Voice        string
	CallerName   string
}

// Connector opens one backend conversation per session.
type Connector interface {
	// Connect establishes a conversation and returns its handle. The
	// returned Conn satisfies switchboard.Conn.
	Connect(ctx context.Context, params Params) (switchboard.Conn, error)
}
