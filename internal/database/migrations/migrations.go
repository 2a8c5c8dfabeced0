package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// Status compares an identity store's schema version with the migrations
// embedded in the binary. Current is 0 for a store that was never migrated.
type Status struct {
	Current uint
	Latest  uint
	Dirty   bool
}

// Pending returns the number of migrations not yet applied.
func (s Status) Pending() uint {
	if s.Current >= s.Latest {
		return 0
	}
	return s.Latest - s.Current
}

// ReadStatus reports the schema version of db against the embedded migrations.
func ReadStatus(db *sql.DB) (Status, error) {
	var st Status

	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return st, fmt.Errorf("failed to read migration files: %w", err)
	}
	defer src.Close()
	if st.Latest, err = latestVersion(src); err != nil {
		return st, fmt.Errorf("failed to determine latest version: %w", err)
	}

	m, err := newMigrate(db)
	if err != nil {
		return st, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: that would close db, which the caller owns.

	st.Current, st.Dirty, err = m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return st, fmt.Errorf("failed to get database version: %w", err)
	}
	return st, nil
}

// CheckDBMigrationStatus returns nil when db is at the latest version and an
// error describing the mismatch otherwise.
func CheckDBMigrationStatus(db *sql.DB) error {
	st, err := ReadStatus(db)
	if err != nil {
		return err
	}

	switch {
	case st.Current == 0 && !st.Dirty:
		return fmt.Errorf("database has no schema version (needs migration)")
	case st.Dirty:
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", st.Current)
	case st.Current < st.Latest:
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			st.Current, st.Latest, st.Pending())
	case st.Current > st.Latest:
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			st.Current, st.Latest)
	}
	return nil
}

// MigrateUp runs all pending migrations to bring database to latest version.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// newMigrate binds the embedded migrations to db.
func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// latestVersion walks src to its highest migration version.
func latestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			// Next fails once there is no later migration.
			return v, nil
		}
		v = next
	}
}
