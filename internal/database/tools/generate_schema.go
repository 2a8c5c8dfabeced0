// Command generate_schema regenerates internal/database/sqlc/schema.sql from
// the embedded migrations. With -check it only reports whether the file is
// stale.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"tt-go/internal/database"
	"tt-go/internal/database/migrations"
)

func main() {
	check := flag.Bool("check", false, "fail if schema.sql is out of date instead of writing it")
	flag.Parse()

	if err := run(*check); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(check bool) error {
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		return err
	}
	schema, err := database.DumpSchema(db)
	if err != nil {
		return err
	}

	outPath := filepath.Join("internal", "database", "sqlc", "schema.sql")
	if check {
		current, err := os.ReadFile(outPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", outPath, err)
		}
		if string(current) != schema {
			return fmt.Errorf("%s is out of date, run 'go generate ./internal/database'", outPath)
		}
		return nil
	}

	if err := os.WriteFile(outPath, []byte(schema), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	fmt.Printf("Generated %s from migrations\n", outPath)
	return nil
}
