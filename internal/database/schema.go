package database

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

// Schema is the current schema generated from the migrations. Tests apply it
// to in-memory databases instead of running migrations.
//
//go:embed sqlc/schema.sql
var Schema string

const schemaHeader = `-- This file is auto-generated from migration files.
-- DO NOT EDIT MANUALLY. Run 'go generate ./internal/database' to regenerate.
-- Source: internal/database/migrations/files/*.sql

`

// DumpSchema renders the CREATE statements of a migrated database in the
// layout of sqlc/schema.sql: tables, then indexes, then views, each sorted by
// name. SQLite internals and the migration bookkeeping table are left out.
func DumpSchema(db *sql.DB) (string, error) {
	rows, err := db.Query(`
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index', 'view')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY
		  CASE type
		    WHEN 'table' THEN 1
		    WHEN 'index' THEN 2
		    WHEN 'view' THEN 3
		  END,
		  name
	`)
	if err != nil {
		return "", fmt.Errorf("listing schema objects: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	b.WriteString(schemaHeader)
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scanning schema object: %w", err)
		}
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("listing schema objects: %w", err)
	}
	return b.String(), nil
}
