package database

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutAndGetCache(t *testing.T) {
	db := openTestDB(t)
	if err := db.PutCache("card:visitkent", []byte("<html>v1</html>"), time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := db.GetCache("card:visitkent")
	if err != nil || !ok {
		t.Fatalf("expected cache hit, got ok=%v err=%v", ok, err)
	}
	if string(got) != "<html>v1</html>" {
		t.Errorf("unexpected value %q", got)
	}
}

func TestPutCacheReplaces(t *testing.T) {
	db := openTestDB(t)
	db.PutCache("k", []byte("old"), time.Hour)
	db.PutCache("k", []byte("new"), time.Hour)

	got, ok, _ := db.GetCache("k")
	if !ok || string(got) != "new" {
		t.Errorf("expected replaced value, got %q ok=%v", got, ok)
	}
}

func TestGetCacheMiss(t *testing.T) {
	db := openTestDB(t)
	_, ok, err := db.GetCache("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return base }

	db.PutCache("short", []byte("a"), time.Minute)
	db.PutCache("long", []byte("b"), 6*time.Hour)

	db.now = func() time.Time { return base.Add(time.Hour) }

	if _, ok, _ := db.GetCache("short"); ok {
		t.Error("expected expired entry to miss")
	}
	if _, ok, _ := db.GetCache("long"); !ok {
		t.Error("expected live entry to hit")
	}

	stats, err := db.GetCacheStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Entries != 2 || stats.Expired != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	n, err := db.PurgeExpiredCache()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged, got %d", n)
	}

	n, _ = db.ClearCache()
	if n != 1 {
		t.Errorf("expected 1 cleared, got %d", n)
	}
}

func TestSearchRuns(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	db.now = func() time.Time { return base }
	if _, err := db.InsertSearchRun(SearchRun{Region: "Kent", Keywords: "craft", ResultCount: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	db.now = func() time.Time { return base.Add(time.Minute) }
	id, err := db.InsertSearchRun(SearchRun{
		Region:        "London",
		Keywords:      "food market",
		ResultCount:   5,
		RejectedCount: 2,
		Fallback:      true,
		SourceCounts:  map[string]int{"seeds": 4, "generator": 3},
		DurationMS:    120,
	})
	if err != nil || id == 0 {
		t.Fatalf("unexpected insert result id=%d err=%v", id, err)
	}

	runs, err := db.GetRecentSearchRuns(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	latest := runs[0]
	if latest.Region != "London" || !latest.Fallback || latest.RejectedCount != 2 {
		t.Errorf("unexpected latest run %+v", latest)
	}
	if latest.SourceCounts["seeds"] != 4 {
		t.Errorf("expected source counts to round-trip, got %v", latest.SourceCounts)
	}
	if latest.RanAt == nil || *latest.RanAt != "2026-06-15 12:01:00" {
		t.Errorf("unexpected ran_at %v", latest.RanAt)
	}

	n, _ := db.CountSearchRuns()
	if n != 2 {
		t.Errorf("expected 2 runs counted, got %d", n)
	}
}
