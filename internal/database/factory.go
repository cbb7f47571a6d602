package database

import (
	"fmt"
	"os"
	"path/filepath"

	"cdmkn-go/internal/cdmkn"
	"cdmkn-go/internal/config"
)

// DatabaseFileName is the change log file inside the data directory.
const DatabaseFileName = "cdmkn.db"

// NewChangeLogFromConfig opens the change log described by cfg. In-memory
// databases are migrated immediately since nothing else could have created
// their schema.
func NewChangeLogFromConfig(cfg config.DatabaseConfig, clock cdmkn.Clock) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, DatabaseFileName), clock)
	case "memory":
		db, err := NewSQLiteDatabase(":memory:", clock)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateUp(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
