// Package telephony is the call-control collaborator boundary: placing and
// ending calls, sending SMS, and turning provider webhooks into registry
// events.
package telephony

import "context"

// Provider is the narrow surface Switchboard needs from a call-control
// provider. The streaming media path is the provider's business; this core
// only starts, ends and messages calls.
type Provider interface {
	// Dial places an outbound call and returns the provider's call id. The
	// audio leg is attached to the backend conversation out of band.
	Dial(ctx context.Context, to string) (string, error)
	// Announce places a short outbound call that speaks the message and
	// hangs up. Used for voice-channel fallback delivery.
	Announce(ctx context.Context, to, message string) error
	// SendSMS sends a text message.
	SendSMS(ctx context.Context, to, body string) error
	// Hangup ends a call by provider call id.
	Hangup(ctx context.Context, callID string) error
}
