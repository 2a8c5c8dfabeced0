package database

import (
	"strings"
	"testing"

	"tt-go/internal/database/migrations"
)

func TestDumpSchema_matchesEmbeddedSchema(t *testing.T) {
	db, err := OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("OpenConnection() error = %v", err)
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	got, err := DumpSchema(db)
	if err != nil {
		t.Fatalf("DumpSchema() error = %v", err)
	}
	if strings.Contains(got, "schema_migrations") {
		t.Error("DumpSchema() includes the migration bookkeeping table")
	}
	if got != Schema {
		t.Error("sqlc/schema.sql is out of date with the migrations, run 'go generate ./internal/database'")
	}
}
