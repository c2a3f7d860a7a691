package models

import "time"

// Contact maps a phone number to a display name for the identity resolver.
type Contact struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	PhoneNumber string `gorm:"size:32;not null;uniqueIndex"`
	Name        string `gorm:"size:128;not null"`
	Notes       string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
