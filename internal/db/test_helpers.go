package db

import (
	"testing"
	"time"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database
func CleanupTestDB(t *testing.T, db *DB) {
	t.Helper()

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close test database: %v", err)
	}
}

// CreateTestEmail creates an email record with default values
func CreateTestEmail(subject, sender, category string) *EmailRecord {
	return &EmailRecord{
		Timestamp: time.Now().Format(time.RFC3339),
		Sender:    sender,
		Subject:   subject,
		Date:      "Mon, 02 Jan 2006 15:04:05 -0700",
		Category:  category,
		Body:      "test body",
	}
}
