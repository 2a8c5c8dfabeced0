package database

import (
	"fmt"
	"os"
	"path/filepath"

	"tt-go/internal/config"
	"tt-go/internal/tt"
)

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, hostID string) (tt.Database, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		path = filepath.Join(cfg.DataDir, hostID+".db")
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path, nil, nil)
	if err != nil {
		return nil, err
	}
	return db, nil
}
