package database

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	v, err := schemaVersion(db.conn)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if want := schema[len(schema)-1].version; v != want {
		t.Errorf("expected version %d, got %d", want, v)
	}

	for _, table := range []string{"source_cache", "search_runs"} {
		var n int
		if err := db.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("expected table %s", table)
		}
	}
}

func TestOpenUsesWAL(t *testing.T) {
	db := openTestDB(t)
	var mode string
	if err := db.conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("expected wal journal, got %s", mode)
	}
}

func TestUpgradeFromVersionOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.db")
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if err := apply(conn, schema[0]); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO source_cache (key, value, expires_at) VALUES ('src:a', x'01', '2099-01-01 00:00:00')`); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, ok, err := db.GetCache("src:a"); err != nil || !ok {
		t.Errorf("expected cached row to survive upgrade, ok=%v err=%v", ok, err)
	}
	if _, err := db.CountSearchRuns(); err != nil {
		t.Errorf("expected search_runs after upgrade: %v", err)
	}
}

func TestOpenTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := range 2 {
		db, err := Open(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		db.Close()
	}
}
