package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// NewTestDB returns a schema-initialised SQLite database in a temporary
// directory that is removed when the test ends.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "seatwatch.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(context.Background(), db, DriverSQLite); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}
