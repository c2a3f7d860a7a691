package models

import "time"

// CallRecord is the durable audit row for one session. The in-memory
// registry owns the live session; this row trails it for diagnostics and
// survives termination.
type CallRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	SessionID   string `gorm:"size:64;not null;uniqueIndex"`
	Name        string `gorm:"size:160;not null"`
	PhoneNumber string `gorm:"size:32;not null;index"`
	Permission  string `gorm:"size:16;not null"` // "full", "limited"
	State       string `gorm:"size:16;not null;index"`
	Primary     bool   `gorm:"default:false"`
	Purpose     string `gorm:"type:text"`
	ParentID    string `gorm:"size:64;index"`
	CreatedAt   time.Time
	EndedAt     *time.Time

	Events []SessionEvent `gorm:"foreignKey:SessionID;references:SessionID"`
}

// SessionEvent records one lifecycle transition for a session.
type SessionEvent struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"size:64;not null;index"`
	FromState string `gorm:"size:16;not null"`
	ToState   string `gorm:"size:16;not null"`
	Reason    string `gorm:"size:256"`
	CreatedAt time.Time
}
