// Package daemon wires the registry, router, scheduler, telephony and
// backend collaborators into the running Switchboard process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/MateDort/switchboard/internal/backend"
	"github.com/MateDort/switchboard/internal/config"
	"github.com/MateDort/switchboard/internal/console"
	"github.com/MateDort/switchboard/internal/courier"
	"github.com/MateDort/switchboard/internal/db"
	"github.com/MateDort/switchboard/internal/identity"
	"github.com/MateDort/switchboard/internal/schedule"
	"github.com/MateDort/switchboard/internal/switchboard"
	"github.com/MateDort/switchboard/internal/telephony"
)

// Daemon is the long-running Switchboard process.
type Daemon struct {
	cfg       *config.Config
	registry  *switchboard.Registry
	router    *courier.Router
	scheduler *schedule.Scheduler
	connector backend.Connector
	provider  telephony.Provider
	directory *db.Directory
	out       io.Writer

	mu      sync.Mutex
	callIDs map[string]string // session id -> provider call id
}

// Opts holds parameters for creating a Daemon.
type Opts struct {
	Config    *config.Config
	Registry  *switchboard.Registry
	Router    *courier.Router
	Scheduler *schedule.Scheduler // optional
	Connector backend.Connector
	Provider  telephony.Provider // optional; disables outbound dialing
	Directory *db.Directory      // optional
	Out       io.Writer          // defaults to os.Stdout
}

// New creates a Daemon.
func New(opts Opts) (*Daemon, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("daemon: config is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("daemon: registry is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("daemon: router is required")
	}
	if opts.Connector == nil {
		return nil, fmt.Errorf("daemon: backend connector is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	d := &Daemon{
		cfg:       opts.Config,
		registry:  opts.Registry,
		router:    opts.Router,
		scheduler: opts.Scheduler,
		connector: opts.Connector,
		provider:  opts.Provider,
		directory: opts.Directory,
		out:       out,
		callIDs:   make(map[string]string),
	}

	// Goal-call outcomes flow back through the router when their session
	// terminates.
	opts.Registry.SetReporter(d.report)
	return d, nil
}

// Run starts the scheduler and the console server and blocks until ctx is
// cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if d.scheduler != nil {
		if err := d.scheduler.Start(); err != nil {
			return fmt.Errorf("daemon: %w", err)
		}
		defer d.scheduler.Stop()
	}

	fmt.Fprintf(d.out, "Switchboard up: %d lines, operator %s\n",
		d.registry.MaxActive(), d.cfg.Operator.Name)

	var dial console.DialFunc
	if d.provider != nil {
		dial = d.Dial
	}
	return console.Start(ctx, console.Opts{
		Registry:  d.registry,
		Router:    d.router,
		Scheduler: d.scheduler,
		Directory: d.directory,
		Dial:      dial,
		Telephony: telephony.Events{
			OnInbound: d.HandleInbound,
			OnEnded:   d.HandleEnded,
		},
		WebhookToken: d.cfg.Telephony.WebhookToken,
		Port:         d.cfg.Console.Port,
		Out:          d.out,
	})
}

// HandleInbound answers a ringing inbound call: create the session, connect
// its backend conversation, and activate it. ErrCapacity propagates so the
// transport layer declines the call.
func (d *Daemon) HandleInbound(ctx context.Context, from string) (string, error) {
	snap, err := d.registry.Create(switchboard.CreateOpts{PhoneNumber: from})
	if err != nil {
		return "", err
	}

	prompt := backend.ComposePrompt(snap.Display, snap.Permission == identity.Full, "")
	conn, err := d.connector.Connect(ctx, backend.Params{
		SystemPrompt: prompt,
		Voice:        d.cfg.Backend.Voice,
		CallerName:   snap.Display,
	})
	if err != nil {
		if terr := d.registry.Terminate(snap.ID, switchboard.Failed, err.Error()); terr != nil {
			log.Printf("daemon: cleanup %s: %v", snap.ID, terr)
		}
		return "", fmt.Errorf("daemon: connect backend for %s: %w", snap.ID, err)
	}
	if err := d.registry.Activate(snap.ID, conn); err != nil {
		conn.Close()
		return "", err
	}
	return snap.ID, nil
}

// HandleEnded processes the provider's call-ended webhook. A session already
// closed by its backend is a no-op, not an error.
func (d *Daemon) HandleEnded(ctx context.Context, sessionID string, failed bool, reason string) error {
	to := switchboard.Completed
	if failed {
		to = switchboard.Failed
	}
	// Drop the provider call-ID mapping whichever side hung up first.
	d.forgetCall(sessionID)
	err := d.registry.Terminate(sessionID, to, reason)
	if errors.Is(err, switchboard.ErrInvalidTransition) {
		// Backend saw the hangup first.
		return nil
	}
	return err
}

// Dial starts a goal-initiated outbound session: register it (named after
// the target), place the call, connect the backend with a goal prompt, and
// activate.
func (d *Daemon) Dial(ctx context.Context, to, purpose, parentID string) (switchboard.Snapshot, error) {
	if d.provider == nil {
		return switchboard.Snapshot{}, fmt.Errorf("daemon: no telephony provider configured")
	}

	targetName := to
	if d.directory != nil {
		if name, ok := d.directory.NameByNumber(identity.Normalize(to)); ok {
			targetName = name
		}
	}

	snap, err := d.registry.Create(switchboard.CreateOpts{
		PhoneNumber: to,
		Purpose:     purpose,
		TargetName:  targetName,
		ParentID:    parentID,
	})
	if err != nil {
		return switchboard.Snapshot{}, err
	}

	callID, err := d.provider.Dial(ctx, to)
	if err != nil {
		d.failSession(snap.ID, err)
		return switchboard.Snapshot{}, fmt.Errorf("daemon: dial %s: %w", to, err)
	}
	d.rememberCall(snap.ID, callID)

	prompt := backend.ComposePrompt(targetName, false, purpose)
	conn, err := d.connector.Connect(ctx, backend.Params{
		SystemPrompt: prompt,
		Voice:        d.cfg.Backend.Voice,
		CallerName:   targetName,
	})
	if err != nil {
		d.failSession(snap.ID, err)
		return switchboard.Snapshot{}, fmt.Errorf("daemon: connect backend for %s: %w", snap.ID, err)
	}
	if err := d.registry.Activate(snap.ID, conn); err != nil {
		conn.Close()
		return switchboard.Snapshot{}, err
	}

	updated, _ := d.registry.ByID(snap.ID)
	return updated, nil
}

// report routes a completion report for an ended goal session back to its
// requester, falling through to the operator when the requester is gone.
func (d *Daemon) report(parentID string, ended switchboard.Snapshot) {
	outcome := "completed"
	if ended.State == switchboard.Failed {
		outcome = "failed"
	}
	body := fmt.Sprintf("%s ended (%s).", ended.Name, outcome)
	if ended.Purpose != "" {
		body = fmt.Sprintf("%s Goal: %s", body, ended.Purpose)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	msg := courier.NewMessage(ended.ID, parentID, body, courier.KindReport)
	d.router.Route(ctx, msg)
	d.forgetCall(ended.ID)
}

// failSession terminates a session after a setup error.
func (d *Daemon) failSession(id string, cause error) {
	if err := d.registry.Terminate(id, switchboard.Failed, cause.Error()); err != nil {
		log.Printf("daemon: cleanup %s: %v", id, err)
	}
}

func (d *Daemon) rememberCall(sessionID, callID string) {
	d.mu.Lock()
	d.callIDs[sessionID] = callID
	d.mu.Unlock()
}

func (d *Daemon) forgetCall(sessionID string) {
	d.mu.Lock()
	delete(d.callIDs, sessionID)
	d.mu.Unlock()
}

// CallID returns the provider call id for a session, when one is known.
func (d *Daemon) CallID(sessionID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.callIDs[sessionID]
	return id, ok
}
