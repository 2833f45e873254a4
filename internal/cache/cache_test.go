package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
	if err := c.Set(ctx, "feed:venue", []byte("payload"), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, "feed:venue")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("unexpected value %q", got)
	}
	n, err := c.Clear(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 cleared, got %d", n)
	}
	if _, err := c.Get(ctx, "feed:venue"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected miss after clear, got %v", err)
	}
}

func TestSQLiteCache(t *testing.T) {
	exercise(t, NewSQLite(openTestDB(t)))
}

func TestRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	c := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer c.Close()
	exercise(t, c)

	ctx := context.Background()
	c.Set(ctx, "gen:kent", []byte("x"), time.Minute)
	mr.FastForward(2 * time.Minute)
	if _, err := c.Get(ctx, "gen:kent"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected entry to expire, got %v", err)
	}
	c.Set(ctx, "probe", []byte("x"), time.Minute)
	if !mr.Exists(redisPrefix + "probe") {
		t.Error("keys must be stored under the prefix")
	}
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Nop{}
	c.Set(ctx, "k", []byte("v"), time.Hour)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected nop cache to miss, got %v", err)
	}
}

func TestNew(t *testing.T) {
	db := openTestDB(t)
	if c, err := New(config.Cache{Backend: "sqlite"}, db); err != nil || c == nil {
		t.Errorf("expected sqlite cache, got %v", err)
	}
	if _, err := New(config.Cache{Backend: "sqlite"}, nil); err == nil {
		t.Error("expected error without a database")
	}
	if c, _ := New(config.Cache{Backend: "none"}, nil); c != (Nop{}) {
		t.Error("expected nop cache")
	}
	if _, err := New(config.Cache{Backend: "redis", RedisURL: "not a url"}, nil); err == nil {
		t.Error("expected error for bad redis url")
	}
	if _, err := New(config.Cache{Backend: "memcached"}, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}
