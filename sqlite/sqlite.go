// Package sqlite implements docsync.Searcher over a local copy of a dataset
// file using SQLite and its FTS5 full-text index.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB represents a read-only SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB creates a new DB instance with the given path.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Open opens the database file read-only.
func (db *DB) Open() error {
	dsn := (&url.URL{
		Scheme:   "file",
		OmitHost: true,
		Path:     db.path,
		RawQuery: "mode=ro",
	}).String()

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Wait 5 seconds before failing on lock contention with a writer.
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	db.db = conn
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		err := db.db.Close()
		db.db = nil
		return err
	}
	return nil
}
