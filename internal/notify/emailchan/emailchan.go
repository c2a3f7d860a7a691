// Package emailchan delivers fallback messages over SMTP.
package emailchan

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/MateDort/switchboard/internal/notify"
)

// sendFunc matches smtp.SendMail, injectable for tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Gateway implements notify.Gateway over plain SMTP.
type Gateway struct {
	addr string
	from string
	to   string
	send sendFunc
}

// Opts holds parameters for creating an email Gateway.
type Opts struct {
	Addr string // SMTP host:port
	From string
	To   string
	Send sendFunc // defaults to smtp.SendMail
}

// New creates an email gateway.
func New(opts Opts) (*Gateway, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("emailchan: smtp address is required")
	}
	if opts.From == "" || opts.To == "" {
		return nil, fmt.Errorf("emailchan: from and to addresses are required")
	}
	send := opts.Send
	if send == nil {
		send = smtp.SendMail
	}
	return &Gateway{addr: opts.Addr, from: opts.From, to: opts.To, send: send}, nil
}

// Name implements notify.Gateway.
func (g *Gateway) Name() string { return "email" }

// Deliver implements notify.Gateway.
func (g *Gateway) Deliver(ctx context.Context, d notify.Delivery) error {
	subject := d.Subject
	if subject == "" {
		subject = "Switchboard message"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", g.from)
	fmt.Fprintf(&b, "To: %s\r\n", g.to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("\r\n")
	b.WriteString(d.Body)
	b.WriteString("\r\n")

	if err := g.send(g.addr, nil, g.from, []string{g.to}, []byte(b.String())); err != nil {
		return fmt.Errorf("emailchan: %w", err)
	}
	return nil
}
