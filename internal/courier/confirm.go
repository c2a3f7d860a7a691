package courier

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"
)

// answerCodeLen is the length of the numeric code included with out-of-band
// confirmation requests.
const answerCodeLen = 6

// resolution names how a confirmation was resolved. Carried separately from
// the answer text so a literal answer like "timeout" is just an answer.
type resolution int

const (
	resolutionAnswered resolution = iota
	resolutionTimeout
	resolutionCanceled
)

// pendingConfirm is one outstanding confirmation request. Owned by the
// router's pending table; resolved exactly once.
type pendingConfirm struct {
	id            string
	code          string
	fromSessionID string
	prompt        string
	createdAt     time.Time
	timer         *time.Timer
	resolved      bool
	cause         resolution
	answer        string
}

func (c resolution) String() string {
	switch c {
	case resolutionTimeout:
		return "timed_out"
	case resolutionCanceled:
		return "canceled"
	default:
		return "answered"
	}
}

// Confirmation is an immutable view of a confirmation request. Resolution is
// empty while the request is pending.
type Confirmation struct {
	ID            string
	Code          string
	FromSessionID string
	Prompt        string
	CreatedAt     time.Time
	Resolved      bool
	Resolution    string
	Answer        string
}

func (p *pendingConfirm) view() Confirmation {
	v := Confirmation{
		ID:            p.id,
		Code:          p.code,
		FromSessionID: p.fromSessionID,
		Prompt:        p.prompt,
		CreatedAt:     p.createdAt,
		Resolved:      p.resolved,
		Answer:        p.answer,
	}
	if p.resolved {
		v.Resolution = p.cause.String()
	}
	return v
}

// RequestConfirmation registers a pending confirmation and delivers the
// request to target. It returns control immediately; the answer, whenever it
// arrives, resolves the record exactly once. With no answer before timeout
// the record resolves to a timeout and the requester is notified once.
func (r *Router) RequestConfirmation(ctx context.Context, from, target, prompt string, timeout time.Duration) (Confirmation, []Outcome) {
	if timeout <= 0 {
		timeout = r.confirmTimeout
	}
	msg := NewMessage(from, target, prompt, KindConfirm)
	outcome := r.deliverConfirmWith(ctx, msg, timeout)
	r.auditOutcome(msg, outcome)

	conf, _ := r.ConfirmationByID(msg.ID)
	return conf, []Outcome{outcome}
}

// deliverConfirm handles KindConfirm messages routed through Route, using
// the router's default timeout.
func (r *Router) deliverConfirm(ctx context.Context, msg Message) Outcome {
	return r.deliverConfirmWith(ctx, msg, r.confirmTimeout)
}

func (r *Router) deliverConfirmWith(ctx context.Context, msg Message, timeout time.Duration) Outcome {
	p := &pendingConfirm{
		id:            msg.ID,
		code:          answerCode(),
		fromSessionID: msg.FromSessionID,
		prompt:        msg.Body,
		createdAt:     time.Now(),
	}

	// Register before arming the timer so a firing timer always finds the
	// record.
	r.mu.Lock()
	r.pending[p.id] = p
	p.timer = time.AfterFunc(timeout, func() {
		r.resolveConfirm(p.id, resolutionTimeout, "")
	})
	r.mu.Unlock()

	body := fmt.Sprintf("Confirmation needed (code %s): %s", p.code, msg.Body)

	// Delivery failure does not cancel the request: an answer can still
	// arrive on another channel, and otherwise the timeout notifies the
	// requester.
	if msg.ToTarget == OperatorTarget {
		return r.deliverToOperator(ctx, msg, body)
	}
	target, ok := r.resolveTarget(msg.ToTarget)
	if !ok {
		log.Printf("courier: confirmation %s to %q: %v", msg.ID, msg.ToTarget, ErrUndeliverable)
		return Outcome{MessageID: msg.ID, Target: msg.ToTarget, Status: StatusFailed, Detail: "undeliverable, request will time out"}
	}
	framed := frameFrom(r.senderName(msg.FromSessionID), body)
	if err := r.registry.Inject(ctx, target.ID, framed); err != nil {
		return Outcome{MessageID: msg.ID, Target: target.ID, Status: StatusFailed, Detail: err.Error()}
	}
	return Outcome{MessageID: msg.ID, Target: target.ID, Status: StatusDelivered, Detail: "in-call injection"}
}

// Answer resolves a pending confirmation by id or by answer code. A second
// answer to an already-resolved request is a no-op, not an error.
func (r *Router) Answer(key, answer string) error {
	r.mu.Lock()
	p, ok := r.pending[key]
	if !ok {
		for _, candidate := range r.pending {
			if candidate.code == key {
				p = candidate
				ok = true
				break
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConfirmation, key)
	}
	r.resolveConfirm(p.id, resolutionAnswered, answer)
	return nil
}

// Cancel withdraws a pending confirmation. Cancelling an already-resolved
// request is a safe no-op: whichever of answer and cancel lands first wins.
func (r *Router) Cancel(id string) {
	r.resolveConfirm(id, resolutionCanceled, "")
}

// resolveConfirm applies the first resolution and ignores every later one.
func (r *Router) resolveConfirm(id string, cause resolution, answer string) {
	r.mu.Lock()
	p, ok := r.pending[id]
	if !ok || p.resolved {
		r.mu.Unlock()
		return
	}
	p.resolved = true
	p.cause = cause
	p.answer = answer
	if p.timer != nil {
		p.timer.Stop()
	}
	from := p.fromSessionID
	prompt := p.prompt
	r.mu.Unlock()

	switch cause {
	case resolutionTimeout:
		log.Printf("courier: confirmation %s timed out", id)
		r.audit.MessageResolved(id, string(StatusTimedOut), ErrConfirmationTimeout.Error())
		r.notifyRequester(from, fmt.Sprintf("Confirmation request %q timed out with no answer.", prompt))
	case resolutionCanceled:
		log.Printf("courier: confirmation %s canceled", id)
		r.audit.MessageResolved(id, string(StatusFailed), "canceled")
	default:
		log.Printf("courier: confirmation %s answered", id)
		r.audit.MessageResolved(id, string(StatusDelivered), "answered")
		r.notifyRequester(from, fmt.Sprintf("Confirmation request %q was answered: %s", prompt, answer))
	}
}

// ConfirmationByID returns a view of a confirmation, resolved or not.
func (r *Router) ConfirmationByID(id string) (Confirmation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if !ok {
		return Confirmation{}, false
	}
	return p.view(), true
}

// PendingConfirmations returns views of all unresolved confirmations.
func (r *Router) PendingConfirmations() []Confirmation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Confirmation
	for _, p := range r.pending {
		if !p.resolved {
			out = append(out, p.view())
		}
	}
	return out
}

// answerCode returns a short numeric code for out-of-band answers.
func answerCode() string {
	buf := make([]byte, answerCodeLen)
	ten := big.NewInt(10)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			buf[i] = '0'
			continue
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf)
}
