package testutil

import (
	"testing"

	"tt-go/internal/database"
	"tt-go/internal/tt"
)

// NewTestDatabase creates a new in-memory SQLite database with schema applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) tt.Database {
	t.Helper()
	return NewTestDatabaseWithClock(t, nil)
}

// NewTestDatabaseWithClock is NewTestDatabase with the store's timestamps
// taken from clock.
func NewTestDatabaseWithClock(t *testing.T, clock tt.Clock) tt.Database {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB, clock, nil)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
