package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MateDort/switchboard/internal/switchboard"
	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single control-frame write.
const writeTimeout = 5 * time.Second

// WSConnector dials a realtime backend over websocket. Each session gets its
// own connection; text injections travel as JSON control frames alongside
// the audio stream the backend manages.
type WSConnector struct {
	url    string
	apiKey string
	dialer *websocket.Dialer
}

// WSConnectorOpts holds parameters for creating a WSConnector.
type WSConnectorOpts struct {
	URL    string
	APIKey string
	Dialer *websocket.Dialer // defaults to websocket.DefaultDialer
}

// NewWSConnector creates a WSConnector.
func NewWSConnector(opts WSConnectorOpts) (*WSConnector, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("backend: url is required")
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WSConnector{url: opts.URL, apiKey: opts.APIKey, dialer: dialer}, nil
}

// Connect implements Connector.
func (c *WSConnector) Connect(ctx context.Context, params Params) (switchboard.Conn, error) {
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}
	ws, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("backend: dial %s: %w", c.url, err)
	}

	conn := &wsConn{
		ws:   ws,
		done: make(chan error, 1),
	}

	setup := controlFrame{
		Type:         "session.start",
		SystemPrompt: params.SystemPrompt,
		Voice:        params.Voice,
	}
	if err := conn.writeFrame(setup); err != nil {
		ws.Close()
		return nil, fmt.Errorf("backend: handshake: %w", err)
	}

	go conn.readLoop()
	return conn, nil
}

// controlFrame is the JSON control message shared with the backend.
type controlFrame struct {
	Type         string `json:"type"`
	Text         string `json:"text,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Voice        string `json:"voice,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// wsConn implements switchboard.Conn over a websocket.
type wsConn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	closed bool

	done     chan error
	doneOnce sync.Once
}

// Inject implements switchboard.Conn. The text arrives at the backend as an
// inter-agent control frame, distinct from transcribed speech.
func (c *wsConn) Inject(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.writeFrame(controlFrame{Type: "conversation.inject", Text: text}); err != nil {
		return fmt.Errorf("backend: inject: %w", err)
	}
	return nil
}

// Done implements switchboard.Conn.
func (c *wsConn) Done() <-chan error {
	return c.done
}

// Close implements switchboard.Conn.
func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	err := c.ws.Close()
	c.finish(nil)
	return err
}

// writeFrame sends one JSON control frame. Gorilla connections allow one
// concurrent writer, so writes serialize on the mutex.
func (c *wsConn) writeFrame(frame controlFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(frame)
}

// readLoop consumes backend frames until the conversation ends or the
// connection errors, then signals Done exactly once.
func (c *wsConn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				c.finish(nil)
				return
			}
			c.finish(fmt.Errorf("backend: read: %w", err))
			return
		}

		var frame controlFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case "session.end":
			c.finish(nil)
			return
		case "session.error":
			c.finish(fmt.Errorf("backend: session error: %s", frame.Reason))
			return
		}
	}
}

// finish delivers the conversation outcome once and closes the done channel.
func (c *wsConn) finish(err error) {
	c.doneOnce.Do(func() {
		c.done <- err
		close(c.done)
	})
}
