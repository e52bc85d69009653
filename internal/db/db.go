// Package db persists laps and computed comparisons in sqlite. The
// schema is managed by embedded golang-migrate migrations; call
// MigrateUp after Open before first use.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Open opens (or creates) the sqlite database at path. The schema is
// not touched; run MigrateUp to bring it to the latest version.
func Open(path string) (*DB, error) {
	// Foreign keys are off by default in sqlite and the pragma is
	// per-connection, so it goes in the DSN to cover the whole pool.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &DB{db}, nil
}
