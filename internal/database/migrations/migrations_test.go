package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Migrate up
	err := MigrateUp(db)
	if err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Verify tables were created
	tables := []string{"source_contents", "destinations", "actors", "contracts", "payloads", "remote_payloads", "operations", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Fresh database should need migration
	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Error("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}

	// Error should mention needing migration
	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Migrate up
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Status should be OK now
	err := CheckDBMigrationStatus(db)
	if err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestReadStatus(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	before, err := ReadStatus(db)
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if before.Current != 0 || before.Latest == 0 || before.Pending() != before.Latest {
		t.Errorf("fresh status = %+v, pending %d", before, before.Pending())
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	after, err := ReadStatus(db)
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if after.Current != after.Latest || after.Dirty || after.Pending() != 0 {
		t.Errorf("migrated status = %+v", after)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Run migration twice
	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	// Status should still be OK
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	// Migrate
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// A contract must reference an existing source and destination.
	_, err := db.Exec(`
		INSERT INTO contracts (id, source_id, destination_id, strategy, chunk_size, config, status, created_at, updated_at)
		VALUES ('contract-1', 'missing-source', 42, 'single', 100, '{}', 'pending', datetime('now'), datetime('now'))
	`)

	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_SourceChecksumUnique(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	insert := `INSERT INTO source_contents (id, kind, path, checksum, size, modified_at, created_at, updated_at)
		VALUES (?, 'file', ?, 'abc123def456', 10, datetime('now'), datetime('now'), datetime('now'))`

	if _, err := db.Exec(insert, "src-1", "/a/file.bin"); err != nil {
		t.Fatalf("Failed to insert first source: %v", err)
	}

	// The same bytes at another path are the same content.
	if _, err := db.Exec(insert, "src-2", "/b/file.bin"); err == nil {
		t.Error("Expected unique constraint violation for duplicate checksum, but insert succeeded")
	}
}

func TestSchema_ContractPairUnique(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	setup := []string{
		`INSERT INTO source_contents (id, kind, path, checksum, size, modified_at, created_at, updated_at)
			VALUES ('src-1', 'file', '/a', 'abc', 10, datetime('now'), datetime('now'), datetime('now'))`,
		`INSERT INTO destinations (id, title, updated_at) VALUES (42, 'archive', datetime('now'))`,
		`INSERT INTO contracts (id, source_id, destination_id, strategy, chunk_size, config, status, created_at, updated_at)
			VALUES ('c-1', 'src-1', 42, 'single', 100, '{}', 'pending', datetime('now'), datetime('now'))`,
	}
	for _, stmt := range setup {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	_, err := db.Exec(`INSERT INTO contracts (id, source_id, destination_id, strategy, chunk_size, config, status, created_at, updated_at)
		VALUES ('c-2', 'src-1', 42, 'chunked', 5, '{}', 'pending', datetime('now'), datetime('now'))`)
	if err == nil {
		t.Error("Expected unique constraint violation for duplicate (source, destination), but insert succeeded")
	}
}

func TestSchema_StatusCheck(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO source_contents (id, kind, path, checksum, size, modified_at, created_at, updated_at)
		VALUES ('src-1', 'symlink', '/a', 'abc', 10, datetime('now'), datetime('now'), datetime('now'))`)
	if err == nil {
		t.Error("Expected check constraint violation for unknown kind, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	return db
}
