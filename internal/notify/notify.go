// Package notify abstracts asynchronous, out-of-band delivery channels used
// when no live call can receive a message.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Delivery is one out-of-band message for a recipient.
type Delivery struct {
	Recipient string // display identity of the target (used in channel copy)
	Subject   string // short headline, e.g. "Report from Call with Dentist"
	Body      string
}

// Gateway delivers a message over one asynchronous channel. Implementations
// must be safe for concurrent use. The router treats any non-nil error as a
// delivery failure to log; retry policy, if any, lives inside the gateway.
type Gateway interface {
	// Name identifies the channel ("sms", "call", "email", "slack", "discord").
	Name() string
	// Deliver sends the message. It may block on network I/O; callers run
	// it off the routing hot path.
	Deliver(ctx context.Context, d Delivery) error
}

// Multi fans a delivery out to several channels. Delivery succeeds when at
// least one channel accepts the message; it fails only when every channel
// fails.
type Multi struct {
	gateways []Gateway
}

// NewMulti creates a Multi over the given gateways.
func NewMulti(gateways ...Gateway) (*Multi, error) {
	if len(gateways) == 0 {
		return nil, fmt.Errorf("notify: at least one gateway is required")
	}
	return &Multi{gateways: gateways}, nil
}

// Name implements Gateway.
func (m *Multi) Name() string {
	names := make([]string, len(m.gateways))
	for i, g := range m.gateways {
		names[i] = g.Name()
	}
	return strings.Join(names, "+")
}

// Deliver implements Gateway.
func (m *Multi) Deliver(ctx context.Context, d Delivery) error {
	var errs []string
	for _, g := range m.gateways {
		if err := g.Deliver(ctx, d); err != nil {
			log.Printf("notify: %s delivery failed: %v", g.Name(), err)
			errs = append(errs, fmt.Sprintf("%s: %v", g.Name(), err))
			continue
		}
	}
	if len(errs) == len(m.gateways) {
		return fmt.Errorf("notify: all channels failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
