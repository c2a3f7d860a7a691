// Package audit appends durable trail rows for sessions and routed messages.
// Writes are best-effort for the caller's control flow: an audit failure is
// logged and never fails the operation being audited.
package audit

import (
	"log"
	"time"

	"github.com/MateDort/switchboard/internal/models"
	"gorm.io/gorm"
)

// Writer appends audit rows. A nil *Writer is valid and discards everything,
// which keeps test wiring small.
type Writer struct {
	db *gorm.DB
}

// NewWriter creates a Writer backed by the given database.
func NewWriter(db *gorm.DB) *Writer {
	return &Writer{db: db}
}

// SessionCreated records the initial CallRecord row for a new session.
func (w *Writer) SessionCreated(rec models.CallRecord) {
	if w == nil || w.db == nil {
		return
	}
	if err := w.db.Create(&rec).Error; err != nil {
		log.Printf("audit: session created %s: %v", rec.SessionID, err)
	}
}

// SessionTransition records a lifecycle transition and updates the session's
// CallRecord state. Terminal transitions also stamp EndedAt.
func (w *Writer) SessionTransition(sessionID, from, to, reason string) {
	if w == nil || w.db == nil {
		return
	}
	ev := models.SessionEvent{
		SessionID: sessionID,
		FromState: from,
		ToState:   to,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := w.db.Create(&ev).Error; err != nil {
		log.Printf("audit: session transition %s %s->%s: %v", sessionID, from, to, err)
	}

	updates := map[string]interface{}{"state": to}
	if to == "completed" || to == "failed" {
		updates["ended_at"] = time.Now()
	}
	if err := w.db.Model(&models.CallRecord{}).
		Where("session_id = ?", sessionID).
		Updates(updates).Error; err != nil {
		log.Printf("audit: update call record %s: %v", sessionID, err)
	}
}

// MessageRouted records a routed message with its initial status.
func (w *Writer) MessageRouted(rec models.MessageRecord) {
	if w == nil || w.db == nil {
		return
	}
	if err := w.db.Create(&rec).Error; err != nil {
		log.Printf("audit: message routed %s: %v", rec.MessageID, err)
	}
}

// MessageResolved updates a message's final status once delivery resolves.
func (w *Writer) MessageResolved(messageID, status, detail string) {
	if w == nil || w.db == nil {
		return
	}
	now := time.Now()
	if err := w.db.Model(&models.MessageRecord{}).
		Where("message_id = ?", messageID).
		Updates(map[string]interface{}{
			"status":      status,
			"detail":      detail,
			"resolved_at": &now,
		}).Error; err != nil {
		log.Printf("audit: message resolved %s: %v", messageID, err)
	}
}
