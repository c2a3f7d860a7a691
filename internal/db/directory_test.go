package db

import (
	"testing"

	"github.com/MateDort/switchboard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := AutoMigrate(conn); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return conn
}

func seedTestContacts(t *testing.T, conn *gorm.DB) {
	t.Helper()
	err := SeedContacts(conn, []models.Contact{
		{PhoneNumber: "+15553334444", Name: "Dr. Smith", Notes: "dentist"},
		{PhoneNumber: "+15556667777", Name: "City Garage"},
	})
	if err != nil {
		t.Fatalf("seed contacts: %v", err)
	}
}

// --- NameByNumber tests ---

func TestNameByNumber(t *testing.T) {
	conn := openTestDB(t)
	seedTestContacts(t, conn)
	dir := NewDirectory(conn)

	name, ok := dir.NameByNumber("+15553334444")
	if !ok || name != "Dr. Smith" {
		t.Errorf("got %q, %v", name, ok)
	}
	if _, ok := dir.NameByNumber("+15550000000"); ok {
		t.Error("unknown number should not resolve")
	}
}

// --- NumberByName tests ---

func TestNumberByName(t *testing.T) {
	conn := openTestDB(t)
	seedTestContacts(t, conn)
	dir := NewDirectory(conn)

	number, err := dir.NumberByName("City Garage")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if number != "+15556667777" {
		t.Errorf("number = %q", number)
	}
	if _, err := dir.NumberByName("Nobody"); err == nil {
		t.Error("unknown name should error")
	}
}

// --- Seeding and mutation tests ---

func TestSeedContacts_UpsertsByNumber(t *testing.T) {
	conn := openTestDB(t)
	seedTestContacts(t, conn)
	dir := NewDirectory(conn)

	// Same number, new name: the row is updated, not duplicated.
	err := SeedContacts(conn, []models.Contact{
		{PhoneNumber: "+15553334444", Name: "Dr. Jones"},
	})
	if err != nil {
		t.Fatalf("re-seed: %v", err)
	}

	name, _ := dir.NameByNumber("+15553334444")
	if name != "Dr. Jones" {
		t.Errorf("name = %q, want Dr. Jones", name)
	}
	contacts, err := dir.ListContacts()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(contacts) != 2 {
		t.Errorf("got %d contacts, want 2", len(contacts))
	}
}

func TestListContacts_OrderedByName(t *testing.T) {
	conn := openTestDB(t)
	seedTestContacts(t, conn)
	dir := NewDirectory(conn)

	contacts, err := dir.ListContacts()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(contacts) != 2 || contacts[0].Name != "City Garage" || contacts[1].Name != "Dr. Smith" {
		t.Errorf("contacts = %v", contacts)
	}
}

func TestAddRemoveContact(t *testing.T) {
	conn := openTestDB(t)
	dir := NewDirectory(conn)

	if err := dir.AddContact("+15551112222", "Plumber", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if name, ok := dir.NameByNumber("+15551112222"); !ok || name != "Plumber" {
		t.Errorf("got %q, %v", name, ok)
	}

	if err := dir.RemoveContact("+15551112222"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := dir.NameByNumber("+15551112222"); ok {
		t.Error("removed contact should not resolve")
	}
	if err := dir.RemoveContact("+15551112222"); err == nil {
		t.Error("removing a missing contact should error")
	}
}
