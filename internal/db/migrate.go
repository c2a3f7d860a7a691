package db

import (
	"fmt"

	"github.com/MateDort/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Contact{},
		&models.CallRecord{},
		&models.SessionEvent{},
		&models.MessageRecord{},
		&models.Callback{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedContacts upserts Contact rows, keyed by phone number.
func SeedContacts(db *gorm.DB, contacts []models.Contact) error {
	for _, c := range contacts {
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "notes"}),
		}).Create(&c)
		if result.Error != nil {
			return fmt.Errorf("db: seed contact %q: %w", c.PhoneNumber, result.Error)
		}
	}
	return nil
}
