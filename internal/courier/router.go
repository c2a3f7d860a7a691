package courier

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/MateDort/switchboard/internal/audit"
	"github.com/MateDort/switchboard/internal/models"
	"github.com/MateDort/switchboard/internal/notify"
	"github.com/MateDort/switchboard/internal/switchboard"
)

// DefaultConfirmationTimeout bounds how long a confirmation request waits
// for an answer.
const DefaultConfirmationTimeout = 5 * time.Minute

// injectTimeout bounds a single in-call injection. Injections sit on the
// latency-sensitive path of a live conversation.
const injectTimeout = 5 * time.Second

// Router consumes routing requests and decides delivery per message, per
// recipient: inject into a live conversation, announce inside the operator's
// call, or hand off to the fallback gateway. Routing decisions are
// synchronous and fast; fallback delivery runs as an asynchronous job whose
// outcome is fed back into the audit log.
type Router struct {
	registry       *switchboard.Registry
	gateway        notify.Gateway
	audit          *audit.Writer
	confirmTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingConfirm
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Registry            *switchboard.Registry
	Gateway             notify.Gateway // optional; without it fallback delivery fails
	Audit               *audit.Writer  // optional
	ConfirmationTimeout time.Duration  // defaults to DefaultConfirmationTimeout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("courier: router: registry is required")
	}
	timeout := opts.ConfirmationTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmationTimeout
	}
	return &Router{
		registry:       opts.Registry,
		gateway:        opts.Gateway,
		audit:          opts.Audit,
		confirmTimeout: timeout,
		pending:        make(map[string]*pendingConfirm),
	}, nil
}

// Route is the single entry point for every cross-session communication.
// It returns one outcome per recipient: a single element for targeted kinds,
// one per active session for broadcasts. Every outcome is appended to the
// audit trail regardless of delivery result.
func (r *Router) Route(ctx context.Context, msg Message) []Outcome {
	if msg.ID == "" {
		msg = NewMessage(msg.FromSessionID, msg.ToTarget, msg.Body, msg.Kind)
	}

	var outcomes []Outcome
	switch msg.Kind {
	case KindPlain, KindCallback:
		outcomes = []Outcome{r.deliverOne(ctx, msg)}
	case KindReport:
		outcomes = []Outcome{r.deliverReport(ctx, msg)}
	case KindBroadcast:
		outcomes = r.deliverBroadcast(ctx, msg)
	case KindConfirm:
		outcomes = []Outcome{r.deliverConfirm(ctx, msg)}
	default:
		outcomes = []Outcome{{
			MessageID: msg.ID,
			Target:    msg.ToTarget,
			Status:    StatusFailed,
			Detail:    fmt.Sprintf("unknown message kind %q", msg.Kind),
		}}
	}

	for _, o := range outcomes {
		r.auditOutcome(msg, o)
	}
	return outcomes
}

// deliverOne applies the single-target decision algorithm.
func (r *Router) deliverOne(ctx context.Context, msg Message) Outcome {
	body := msg.Body
	if msg.Kind == KindCallback {
		body = frameReminder(msg.Body)
	}

	if msg.ToTarget == OperatorTarget {
		return r.deliverToOperator(ctx, msg, body)
	}

	target, ok := r.resolveTarget(msg.ToTarget)
	if !ok {
		log.Printf("courier: message %s to %q: %v", msg.ID, msg.ToTarget, ErrUndeliverable)
		return Outcome{MessageID: msg.ID, Target: msg.ToTarget, Status: StatusFailed, Detail: ErrUndeliverable.Error()}
	}

	framed := body
	if msg.Kind != KindCallback {
		framed = frameFrom(r.senderName(msg.FromSessionID), msg.Body)
	}
	if err := r.registry.Inject(ctx, target.ID, framed); err != nil {
		log.Printf("courier: message %s to %s: %v", msg.ID, target.ID, err)
		return Outcome{MessageID: msg.ID, Target: target.ID, Status: StatusFailed, Detail: err.Error()}
	}
	return Outcome{MessageID: msg.ID, Target: target.ID, Status: StatusDelivered, Detail: "in-call injection"}
}

// deliverToOperator implements smart callback routing: spoken into the
// operator's primary call when one is live, pushed out-of-band otherwise.
func (r *Router) deliverToOperator(ctx context.Context, msg Message, body string) Outcome {
	primary, ok := r.registry.Primary()
	if ok && primary.State == switchboard.Active {
		framed := frameAnnouncement(r.senderName(msg.FromSessionID), body)
		if err := r.registry.Inject(ctx, primary.ID, framed); err != nil {
			log.Printf("courier: announce %s to primary %s: %v", msg.ID, primary.ID, err)
			return r.dispatchFallback(msg, body)
		}
		return Outcome{MessageID: msg.ID, Target: primary.ID, Status: StatusDelivered, Detail: "in-call announcement"}
	}
	return r.dispatchFallback(msg, body)
}

// dispatchFallback spawns the asynchronous fallback job and returns
// immediately. The job's outcome lands in the audit log.
func (r *Router) dispatchFallback(msg Message, body string) Outcome {
	if r.gateway == nil {
		return Outcome{MessageID: msg.ID, Target: OperatorTarget, Status: StatusFailed, Detail: "no fallback gateway configured"}
	}

	subject := "Switchboard"
	if name := r.senderName(msg.FromSessionID); name != "" {
		subject = fmt.Sprintf("Switchboard: from %s", name)
	}
	delivery := notify.Delivery{Recipient: OperatorTarget, Subject: subject, Body: body}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.gateway.Deliver(ctx, delivery); err != nil {
			log.Printf("courier: fallback for message %s: %v", msg.ID, err)
			r.audit.MessageResolved(msg.ID, string(StatusFailed), err.Error())
		}
	}()

	return Outcome{
		MessageID: msg.ID,
		Target:    r.gateway.Name(),
		Status:    StatusFallbackSent,
		Detail:    "fallback dispatched",
	}
}

// deliverReport routes a completion report to the requesting session, and
// reroutes to the operator when the requester is gone.
func (r *Router) deliverReport(ctx context.Context, msg Message) Outcome {
	if msg.ToTarget != OperatorTarget {
		if target, ok := r.resolveTarget(msg.ToTarget); ok {
			framed := frameFrom(r.senderName(msg.FromSessionID), msg.Body)
			if err := r.registry.Inject(ctx, target.ID, framed); err == nil {
				return Outcome{MessageID: msg.ID, Target: target.ID, Status: StatusDelivered, Detail: "in-call injection"}
			}
		}
		// Requester unreachable: the report still matters, so it goes to
		// the operator instead.
	}
	return r.deliverToOperator(ctx, msg, msg.Body)
}

// deliverBroadcast delivers to every other active session. Partial failure
// is reported per recipient, never aggregated into one boolean.
func (r *Router) deliverBroadcast(ctx context.Context, msg Message) []Outcome {
	sessions := r.registry.List(false)
	framed := frameFrom(r.senderName(msg.FromSessionID), msg.Body)

	var outcomes []Outcome
	for _, s := range sessions {
		if s.ID == msg.FromSessionID {
			continue
		}
		if s.State != switchboard.Active {
			continue
		}
		if err := r.registry.Inject(ctx, s.ID, framed); err != nil {
			outcomes = append(outcomes, Outcome{MessageID: msg.ID, Target: s.ID, Status: StatusFailed, Detail: err.Error()})
			continue
		}
		outcomes = append(outcomes, Outcome{MessageID: msg.ID, Target: s.ID, Status: StatusDelivered, Detail: "in-call injection"})
	}
	if len(outcomes) == 0 {
		outcomes = append(outcomes, Outcome{MessageID: msg.ID, Target: msg.ToTarget, Status: StatusFailed, Detail: "no active recipients"})
	}
	return outcomes
}

// resolveTarget finds a session by id, exact name, or case-insensitive name
// fragment. Terminal sessions never match.
func (r *Router) resolveTarget(target string) (switchboard.Snapshot, bool) {
	if s, ok := r.registry.ByID(target); ok {
		if s.State.Terminal() {
			return switchboard.Snapshot{}, false
		}
		return s, true
	}
	if s, ok := r.registry.ByName(target); ok {
		return s, true
	}
	needle := strings.ToLower(target)
	for _, s := range r.registry.List(false) {
		if strings.Contains(strings.ToLower(s.Name), needle) {
			return s, true
		}
	}
	return switchboard.Snapshot{}, false
}

// senderName returns the display name of the sending session, or "" for
// system-originated messages.
func (r *Router) senderName(fromSessionID string) string {
	if fromSessionID == "" {
		return ""
	}
	if s, ok := r.registry.ByID(fromSessionID); ok {
		return s.Name
	}
	return fromSessionID
}

// auditOutcome appends one audit row per recipient outcome.
func (r *Router) auditOutcome(msg Message, o Outcome) {
	recordID := o.MessageID
	if o.Target != "" && msg.Kind == KindBroadcast {
		// Broadcasts get one row per recipient.
		recordID = fmt.Sprintf("%s:%s", o.MessageID, o.Target)
	}
	r.audit.MessageRouted(models.MessageRecord{
		MessageID:     recordID,
		FromSessionID: msg.FromSessionID,
		ToTarget:      o.Target,
		Kind:          string(msg.Kind),
		Body:          msg.Body,
		Status:        string(o.Status),
		Detail:        o.Detail,
		CreatedAt:     msg.CreatedAt,
	})
}

// notifyRequester tells the requesting session how its confirmation
// resolved. Falls back to the operator channels if the requester is not on a
// live call.
func (r *Router) notifyRequester(fromSessionID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), injectTimeout)
	defer cancel()
	if fromSessionID != "" {
		if err := r.registry.Inject(ctx, fromSessionID, frameFrom("", text)); err == nil {
			return
		}
	}
	msg := NewMessage("", OperatorTarget, text, KindPlain)
	out := r.dispatchFallback(msg, text)
	r.auditOutcome(msg, out)
}
