package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Searches and the scheduled refresh write concurrently from one process.
const pragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// DB holds the source cache and the search run history.
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open opens the database at dbPath, creating it and its directory when
// missing, and upgrades the schema.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := upgrade(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("upgrading schema: %w", err)
	}
	return &DB{conn: conn, path: dbPath, now: time.Now}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Path is the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}
