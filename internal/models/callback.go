package models

import "time"

// Callback is a scheduled delivery: either a one-shot timer (FireAt set) or
// a recurring reminder (CronExpr set). Rows are re-armed on daemon start so
// reminders survive restarts.
type Callback struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Target    string `gorm:"size:160;not null"` // session id or "operator"
	Body      string `gorm:"type:text;not null"`
	CronExpr  string `gorm:"size:64"`
	FireAt    *time.Time
	Fired     bool `gorm:"default:false;index"`
	CreatedAt time.Time
}
