// Package callchan delivers fallback messages as spoken announcement calls
// through the telephony provider.
package callchan

import (
	"context"
	"fmt"

	"github.com/MateDort/switchboard/internal/notify"
	"github.com/MateDort/switchboard/internal/telephony"
)

// Gateway implements notify.Gateway over outbound announcement calls.
type Gateway struct {
	provider telephony.Provider
	to       string
}

// New creates a voice-callback gateway that calls the given number.
func New(provider telephony.Provider, to string) (*Gateway, error) {
	if provider == nil {
		return nil, fmt.Errorf("callchan: provider is required")
	}
	if to == "" {
		return nil, fmt.Errorf("callchan: destination number is required")
	}
	return &Gateway{provider: provider, to: to}, nil
}

// Name implements notify.Gateway.
func (g *Gateway) Name() string { return "call" }

// Deliver implements notify.Gateway.
func (g *Gateway) Deliver(ctx context.Context, d notify.Delivery) error {
	message := d.Body
	if d.Subject != "" {
		message = d.Subject + ". " + message
	}
	if err := g.provider.Announce(ctx, g.to, message); err != nil {
		return fmt.Errorf("callchan: %w", err)
	}
	return nil
}
