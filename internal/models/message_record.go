package models

import "time"

// MessageRecord is the audit row for one routed message. Every message is
// recorded regardless of delivery outcome; Status is updated once delivery
// resolves.
type MessageRecord struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	MessageID     string `gorm:"size:64;not null;uniqueIndex"`
	FromSessionID string `gorm:"size:64;index"` // empty for system-originated
	ToTarget      string `gorm:"size:160;not null;index"`
	Kind          string `gorm:"size:16;not null"` // plain, confirm, broadcast, callback, report
	Body          string `gorm:"type:text"`
	Status        string `gorm:"size:16;not null;index"` // pending, delivered, fallback_sent, timed_out, failed
	Detail        string `gorm:"size:256"`
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}
