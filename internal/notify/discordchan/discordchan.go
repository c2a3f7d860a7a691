// Package discordchan delivers fallback messages to a Discord channel.
package discordchan

import (
	"context"
	"fmt"

	"github.com/MateDort/switchboard/internal/notify"
	"github.com/bwmarrin/discordgo"
)

// maxMessageLen is Discord's per-message character limit.
const maxMessageLen = 2000

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Gateway implements notify.Gateway over the Discord REST API. No gateway
// websocket is opened; sending messages only needs the HTTP surface.
type Gateway struct {
	session   session
	channelID string
}

// Opts holds parameters for creating a Discord Gateway.
type Opts struct {
	Token     string // bot token
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord gateway.
func New(opts Opts) (*Gateway, error) {
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discordchan: channel id is required")
	}
	sess := opts.Session
	if sess == nil {
		if opts.Token == "" {
			return nil, fmt.Errorf("discordchan: bot token is required")
		}
		s, err := discordgo.New("Bot " + opts.Token)
		if err != nil {
			return nil, fmt.Errorf("discordchan: create session: %w", err)
		}
		sess = s
	}
	return &Gateway{session: sess, channelID: opts.ChannelID}, nil
}

// Name implements notify.Gateway.
func (g *Gateway) Name() string { return "discord" }

// Deliver implements notify.Gateway.
func (g *Gateway) Deliver(ctx context.Context, d notify.Delivery) error {
	text := d.Body
	if d.Subject != "" {
		text = fmt.Sprintf("**%s**\n%s", d.Subject, d.Body)
	}
	for _, chunk := range chunkMessage(text, maxMessageLen) {
		if _, err := g.session.ChannelMessageSend(g.channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discordchan: send message: %w", err)
		}
	}
	return nil
}

// chunkMessage splits text into chunks of at most maxLen characters,
// preferring newline breaks.
func chunkMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		chunk := text[:maxLen]
		breakAt := -1
		for i := maxLen - 1; i >= maxLen/2; i-- {
			if chunk[i] == '\n' {
				breakAt = i
				break
			}
		}
		if breakAt >= 0 {
			chunks = append(chunks, text[:breakAt])
			text = text[breakAt+1:]
		} else {
			chunks = append(chunks, chunk)
			text = text[maxLen:]
		}
	}
	return chunks
}
