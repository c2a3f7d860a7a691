package db

import (
	"fmt"

	"github.com/MateDort/switchboard/internal/models"
	"gorm.io/gorm"
)

// Directory answers contact-name lookups from the Contact table. It satisfies
// identity.Directory.
type Directory struct {
	db *gorm.DB
}

// NewDirectory creates a Directory backed by the given database.
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// NameByNumber returns the contact name for a phone number, or false if no
// contact matches.
func (d *Directory) NameByNumber(phoneNumber string) (string, bool) {
	var c models.Contact
	err := d.db.Where("phone_number = ?", phoneNumber).First(&c).Error
	if err != nil {
		return "", false
	}
	return c.Name, true
}

// NumberByName returns the phone number for an exact contact name, or an
// error if no contact matches. Used to resolve dial targets given by name.
func (d *Directory) NumberByName(name string) (string, error) {
	var c models.Contact
	err := d.db.Where("name = ?", name).First(&c).Error
	if err == gorm.ErrRecordNotFound {
		return "", fmt.Errorf("db: no contact named %q", name)
	}
	if err != nil {
		return "", fmt.Errorf("db: lookup contact %q: %w", name, err)
	}
	return c.PhoneNumber, nil
}

// ListContacts returns all contacts ordered by name.
func (d *Directory) ListContacts() ([]models.Contact, error) {
	var contacts []models.Contact
	if err := d.db.Order("name ASC").Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("db: list contacts: %w", err)
	}
	return contacts, nil
}

// AddContact creates or updates a contact by phone number.
func (d *Directory) AddContact(phoneNumber, name, notes string) error {
	return SeedContacts(d.db, []models.Contact{{PhoneNumber: phoneNumber, Name: name, Notes: notes}})
}

// RemoveContact deletes the contact with the given phone number.
func (d *Directory) RemoveContact(phoneNumber string) error {
	result := d.db.Where("phone_number = ?", phoneNumber).Delete(&models.Contact{})
	if result.Error != nil {
		return fmt.Errorf("db: remove contact %q: %w", phoneNumber, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("db: no contact with number %q", phoneNumber)
	}
	return nil
}
