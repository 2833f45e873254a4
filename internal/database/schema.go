package database

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// step is one schema version. Statements must be idempotent: user_version
// is written after the transaction commits, so a crash in between replays
// the step on the next open.
type step struct {
	version int
	name    string
	stmts   []string
}

var schema = []step{
	{1, "source cache", []string{
		`CREATE TABLE IF NOT EXISTS source_cache (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    stored_at TEXT DEFAULT (datetime('now')),
    expires_at TEXT NOT NULL
)`,
	}},
	{2, "search run history", []string{
		`CREATE TABLE IF NOT EXISTS search_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    region TEXT NOT NULL,
    keywords TEXT NOT NULL,
    result_count INTEGER DEFAULT 0,
    rejected_count INTEGER DEFAULT 0,
    fallback INTEGER DEFAULT 0,
    source_counts TEXT,
    duration_ms INTEGER DEFAULT 0,
    ran_at TEXT DEFAULT (datetime('now'))
)`,
		`CREATE INDEX IF NOT EXISTS idx_source_cache_expires ON source_cache(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_search_runs_ran_at ON search_runs(ran_at)`,
	}},
}

func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// upgrade applies every step newer than the stored user_version.
func upgrade(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}
	for _, s := range schema {
		if s.version <= current {
			continue
		}
		log.Info().Int("version", s.version).Str("step", s.name).Msg("upgrading schema")
		if err := apply(conn, s); err != nil {
			return fmt.Errorf("schema %d (%s): %w", s.version, s.name, err)
		}
	}
	return nil
}

func apply(conn *sql.DB, s step) error {
	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	for _, stmt := range s.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	// modernc rejects PRAGMA user_version inside a transaction.
	_, err = conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", s.version))
	return err
}
