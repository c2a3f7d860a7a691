// Package console exposes the operator-facing control surface over HTTP:
// listing and steering sessions, dialing goal calls, answering confirmations,
// managing contacts and callbacks, and the telephony provider webhooks.
package console

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/MateDort/switchboard/internal/courier"
	"github.com/MateDort/switchboard/internal/db"
	"github.com/MateDort/switchboard/internal/schedule"
	"github.com/MateDort/switchboard/internal/switchboard"
	"github.com/MateDort/switchboard/internal/telephony"
	"github.com/gin-gonic/gin"
)

// DialFunc starts a goal-initiated outbound session. Provided by the daemon,
// which owns telephony and backend wiring.
type DialFunc func(ctx context.Context, to, purpose, parentID string) (switchboard.Snapshot, error)

// Opts holds configuration for the console server.
type Opts struct {
	Registry  *switchboard.Registry
	Router    *courier.Router
	Scheduler *schedule.Scheduler
	Directory *db.Directory
	Dial      DialFunc

	Telephony    telephony.Events
	WebhookToken string

	Port int
	Out  io.Writer
}

// Start launches the console HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts Opts) error {
	engine, err := newEngine(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8090
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Console listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

// newEngine builds the gin engine with all routes registered.
func newEngine(opts Opts) (*gin.Engine, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("console: registry is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("console: router is required")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	registerRoutes(engine, opts)

	if opts.Telephony.OnInbound != nil {
		telephony.RegisterWebhooks(engine.Group("/hooks/telephony"), opts.WebhookToken, opts.Telephony)
	}
	return engine, nil
}
