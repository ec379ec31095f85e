// Package testing provides shared database helpers for tests.
package testing

import (
	"database/sql"
	_ "embed"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed tracker_schema.sql
var trackerSchema string

// CreateTestDB creates an in-memory SQLite test database.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// CreateTrackerDB creates an in-memory SQLite database carrying a trimmed
// copy of the target tracker schema, for behavioural DAO tests that sqlmock
// cannot express (sequences, multi-statement flows).
func CreateTrackerDB(t *testing.T) *sql.DB {
	t.Helper()

	db := CreateTestDB(t)
	if _, err := db.Exec(trackerSchema); err != nil {
		t.Fatalf("Failed to load tracker schema: %v", err)
	}
	return db
}

// CreateTrackerDBFile creates a file backed tracker database and returns its
// path together with an open connection. Tests that reopen the database
// through a DSN see the same data.
func CreateTrackerDBFile(t *testing.T) (string, *sql.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tracker.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to create tracker database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if _, err := db.Exec(trackerSchema); err != nil {
		t.Fatalf("Failed to load tracker schema: %v", err)
	}
	return path, db
}
