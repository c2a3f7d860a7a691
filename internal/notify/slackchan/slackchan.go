// Package slackchan delivers fallback messages to a Slack channel via the
// Web API.
package slackchan

import (
	"context"
	"fmt"

	"github.com/MateDort/switchboard/internal/notify"
	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Gateway implements notify.Gateway over the Slack Web API.
type Gateway struct {
	client    slackClient
	channelID string
}

// Opts holds parameters for creating a Slack Gateway.
type Opts struct {
	Token     string // xoxb-... bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack gateway.
func New(opts Opts) (*Gateway, error) {
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slackchan: channel id is required")
	}
	client := opts.Client
	if client == nil {
		if opts.Token == "" {
			return nil, fmt.Errorf("slackchan: bot token is required")
		}
		client = slackapi.New(opts.Token)
	}
	return &Gateway{client: client, channelID: opts.ChannelID}, nil
}

// Name implements notify.Gateway.
func (g *Gateway) Name() string { return "slack" }

// Deliver implements notify.Gateway.
func (g *Gateway) Deliver(ctx context.Context, d notify.Delivery) error {
	text := d.Body
	if d.Subject != "" {
		text = fmt.Sprintf("*%s*\n%s", d.Subject, d.Body)
	}
	_, _, err := g.client.PostMessageContext(ctx, g.channelID,
		slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slackchan: post message: %w", err)
	}
	return nil
}
