// Package smschan delivers fallback messages as text messages through the
// telephony provider.
package smschan

import (
	"context"
	"fmt"

	"github.com/MateDort/switchboard/internal/notify"
	"github.com/MateDort/switchboard/internal/telephony"
)

// Gateway implements notify.Gateway over provider SMS.
type Gateway struct {
	provider telephony.Provider
	to       string
}

// New creates an SMS gateway that texts the given number.
func New(provider telephony.Provider, to string) (*Gateway, error) {
	if provider == nil {
		return nil, fmt.Errorf("smschan: provider is required")
	}
	if to == "" {
		return nil, fmt.Errorf("smschan: destination number is required")
	}
	return &Gateway{provider: provider, to: to}, nil
}

// Name implements notify.Gateway.
func (g *Gateway) Name() string { return "sms" }

// Deliver implements notify.Gateway.
func (g *Gateway) Deliver(ctx context.Context, d notify.Delivery) error {
	body := d.Body
	if d.Subject != "" {
		body = d.Subject + "\n" + body
	}
	if err := g.provider.SendSMS(ctx, g.to, body); err != nil {
		return fmt.Errorf("smschan: %w", err)
	}
	return nil
}
