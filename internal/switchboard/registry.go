package switchboard

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/MateDort/switchboard/internal/audit"
	"github.com/MateDort/switchboard/internal/identity"
	"github.com/MateDort/switchboard/internal/models"
	"github.com/google/uuid"
)

// DefaultMaxActive is the default cap on simultaneous non-terminal sessions.
const DefaultMaxActive = 10

// Reporter is invoked after a goal-initiated session terminates, so its
// outcome can be routed back to the requester. Called outside the registry
// lock.
type Reporter func(parentID string, ended Snapshot)

// Registry is the authoritative table of all sessions. All capacity checks,
// name assignment and state transitions happen atomically under one mutex;
// nothing slow runs while it is held.
type Registry struct {
	resolver  *identity.Resolver
	maxActive int
	audit     *audit.Writer

	mu        sync.Mutex
	sessions  map[string]*session
	primaryID string
	reporter  Reporter
}

// RegistryOpts holds parameters for creating a Registry.
type RegistryOpts struct {
	Resolver  *identity.Resolver
	MaxActive int           // defaults to DefaultMaxActive
	Audit     *audit.Writer // optional
}

// NewRegistry creates a Registry.
func NewRegistry(opts RegistryOpts) (*Registry, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("switchboard: registry: resolver is required")
	}
	maxActive := opts.MaxActive
	if maxActive <= 0 {
		maxActive = DefaultMaxActive
	}
	return &Registry{
		resolver:  opts.Resolver,
		maxActive: maxActive,
		audit:     opts.Audit,
		sessions:  make(map[string]*session),
	}, nil
}

// SetReporter installs the completion-report hook. Must be called before the
// first Terminate that should produce a report.
func (r *Registry) SetReporter(rep Reporter) {
	r.mu.Lock()
	r.reporter = rep
	r.mu.Unlock()
}

// CreateOpts holds parameters for creating a session.
type CreateOpts struct {
	PhoneNumber string
	Purpose     string // optional free-text goal
	TargetName  string // optional outbound target name; overrides display naming
	ParentID    string // optional requesting session (goal-initiated calls)
}

// Create registers a new session in Pending state. It fails fast with
// ErrCapacity when the cap is reached: a ringing caller cannot be queued.
// Permission is decided strictly by phone-number authentication; TargetName
// only affects the display name.
func (r *Registry) Create(opts CreateOpts) (Snapshot, error) {
	number := identity.Normalize(opts.PhoneNumber)
	if number == "" {
		return Snapshot{}, fmt.Errorf("switchboard: create: phone number is required")
	}
	permission, display := r.resolver.Resolve(number)

	r.mu.Lock()

	if r.countLive() >= r.maxActive {
		r.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %d lines in use", ErrCapacity, r.maxActive)
	}

	if opts.ParentID != "" {
		if _, ok := r.sessions[opts.ParentID]; !ok {
			r.mu.Unlock()
			return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownParent, opts.ParentID)
		}
	}

	now := time.Now()
	s := &session{
		id:           uuid.NewString(),
		phoneNumber:  number,
		permission:   permission,
		display:      display,
		state:        Pending,
		parentID:     opts.ParentID,
		purpose:      opts.Purpose,
		createdAt:    now,
		lastActivity: now,
	}

	becomesPrimary := false
	switch {
	case opts.TargetName != "":
		// Goal-initiated outbound call: named after its target, never after
		// the caller's identity. Permission stays as authenticated above.
		s.name = fmt.Sprintf("Call with %s", opts.TargetName)
	case permission == identity.Full && r.primaryID == "":
		s.name = fmt.Sprintf("Call with %s (main)", display)
		becomesPrimary = true
	case permission == identity.Full:
		s.name = fmt.Sprintf("Call with %s (%s)", display, r.freshSuffix(display))
	default:
		s.name = fmt.Sprintf("Call with %s", display)
	}

	r.sessions[s.id] = s
	if becomesPrimary {
		r.primaryID = s.id
	}

	snap := s.snapshot(r.primaryID)
	r.mu.Unlock()

	log.Printf("switchboard: session %s created [%s, %s, %s]", s.id, s.name, number, permission)

	// Audit append happens off the lock: a slow insert must not stall
	// concurrent capacity checks and transitions.
	r.audit.SessionCreated(models.CallRecord{
		SessionID:   snap.ID,
		Name:        snap.Name,
		PhoneNumber: snap.PhoneNumber,
		Permission:  string(snap.Permission),
		State:       string(snap.State),
		Primary:     becomesPrimary,
		Purpose:     snap.Purpose,
		ParentID:    snap.ParentID,
		CreatedAt:   snap.CreatedAt,
	})

	return snap, nil
}

// freshSuffix draws short random disambiguators until the resulting session
// name collides with no existing one. Callers must hold the lock.
func (r *Registry) freshSuffix(display string) string {
	for {
		suffix := randomSuffix()
		name := fmt.Sprintf("Call with %s (%s)", display, suffix)
		if !r.nameExists(name) {
			return suffix
		}
	}
}

// nameExists reports whether any session (terminal included) has the name.
// Callers must hold the lock.
func (r *Registry) nameExists(name string) bool {
	for _, s := range r.sessions {
		if s.name == name {
			return true
		}
	}
	return false
}

// countLive returns the number of non-terminal sessions. Callers must hold
// the lock.
func (r *Registry) countLive() int {
	n := 0
	for _, s := range r.sessions {
		if !s.state.Terminal() {
			n++
		}
	}
	return n
}

// Activate attaches the backend connection and moves the session from
// Pending to Active. A monitor goroutine terminates the session when the
// backend signals the end of the conversation.
func (r *Registry) Activate(id string, conn Conn) error {
	if conn == nil {
		return fmt.Errorf("switchboard: activate %s: conn is required", id)
	}

	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := checkTransition(id, s.state, Active); err != nil {
		r.mu.Unlock()
		return err
	}
	from := s.state
	s.state = Active
	s.conn = conn
	s.lastActivity = time.Now()
	r.mu.Unlock()

	log.Printf("switchboard: session %s active", id)
	r.audit.SessionTransition(id, string(from), string(Active), "backend connected")

	go r.monitorConn(id, conn)
	return nil
}

// monitorConn waits for the backend to end and terminates the session. One
// session's backend error resolves only that session.
func (r *Registry) monitorConn(id string, conn Conn) {
	err := <-conn.Done()
	if err != nil {
		if terr := r.Terminate(id, Failed, err.Error()); terr != nil {
			log.Printf("switchboard: session %s backend error cleanup: %v", id, terr)
		}
		return
	}
	if terr := r.Terminate(id, Completed, "conversation ended"); terr != nil {
		log.Printf("switchboard: session %s cleanup: %v", id, terr)
	}
}

// Transition validates and applies a lifecycle transition. Illegal
// transitions are rejected with ErrInvalidTransition, never coerced.
func (r *Registry) Transition(id string, to State) error {
	if to.Terminal() {
		return r.Terminate(id, to, "")
	}

	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := checkTransition(id, s.state, to); err != nil {
		r.mu.Unlock()
		return err
	}
	from := s.state
	s.state = to
	s.lastActivity = time.Now()
	r.mu.Unlock()

	log.Printf("switchboard: session %s %s -> %s", id, from, to)
	r.audit.SessionTransition(id, string(from), string(to), "")
	return nil
}

// Suspend pauses an active session. The backend connection is retained so
// Resume is cheap.
func (r *Registry) Suspend(id string) error {
	return r.Transition(id, Suspended)
}

// Resume reactivates a suspended session.
func (r *Registry) Resume(id string) error {
	return r.Transition(id, Active)
}

// Terminate moves the session to a terminal state, releases its capacity
// slot, closes its backend connection and triggers the completion report for
// its parent, if any. Already-terminal sessions are rejected.
func (r *Registry) Terminate(id string, to State, reason string) error {
	if !to.Terminal() {
		return fmt.Errorf("%w: terminate to non-terminal state %s", ErrInvalidTransition, to)
	}

	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := checkTransition(id, s.state, to); err != nil {
		r.mu.Unlock()
		return err
	}
	from := s.state
	s.state = to
	conn := s.conn
	s.conn = nil
	if r.primaryID == id {
		r.primaryID = ""
	}
	reporter := r.reporter
	ended := s.snapshot(r.primaryID)
	r.mu.Unlock()

	log.Printf("switchboard: session %s %s -> %s (%s)", id, from, to, reason)
	r.audit.SessionTransition(id, string(from), string(to), reason)

	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Printf("switchboard: session %s close backend: %v", id, err)
		}
	}
	if reporter != nil && ended.ParentID != "" {
		reporter(ended.ParentID, ended)
	}
	return nil
}

// Inject delivers framed text into an active session's live conversation.
// The connection call happens outside the registry lock.
func (r *Registry) Inject(ctx context.Context, id, text string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.state != Active || s.conn == nil {
		state := s.state
		r.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrNotActive, id, state)
	}
	conn := s.conn
	s.lastActivity = time.Now()
	r.mu.Unlock()

	if err := conn.Inject(ctx, text); err != nil {
		return fmt.Errorf("switchboard: inject into %s: %w", id, err)
	}
	return nil
}

// Touch refreshes a session's last-activity timestamp.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		s.lastActivity = time.Now()
	}
	r.mu.Unlock()
}

// ByID returns a snapshot of the session with the given id.
func (r *Registry) ByID(id string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(r.primaryID), true
}

// ByPhone returns the most recently created non-terminal session for a
// phone number.
func (r *Registry) ByPhone(phoneNumber string) (Snapshot, bool) {
	number := identity.Normalize(phoneNumber)
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *session
	for _, s := range r.sessions {
		if s.phoneNumber != number || s.state.Terminal() {
			continue
		}
		if best == nil || s.createdAt.After(best.createdAt) {
			best = s
		}
	}
	if best == nil {
		return Snapshot{}, false
	}
	return best.snapshot(r.primaryID), true
}

// ByName returns the non-terminal session with the given display name.
func (r *Registry) ByName(name string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.name == name && !s.state.Terminal() {
			return s.snapshot(r.primaryID), true
		}
	}
	return Snapshot{}, false
}

// Primary returns the operator's primary session, if one is designated.
func (r *Registry) Primary() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.primaryID == "" {
		return Snapshot{}, false
	}
	s, ok := r.sessions[r.primaryID]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(r.primaryID), true
}

// List returns snapshots of all sessions ordered by creation time. Terminal
// sessions are included only when includeEnded is set.
func (r *Registry) List(includeEnded bool) []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.state.Terminal() && !includeEnded {
			continue
		}
		out = append(out, s.snapshot(r.primaryID))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// LiveCount returns the number of non-terminal sessions.
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLive()
}

// MaxActive returns the configured session cap.
func (r *Registry) MaxActive() int {
	return r.maxActive
}
