// Package cache stores raw collector and generator responses for a while
// so repeated searches do not hammer third-party sites or the model API.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/database"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is an idempotent key to value store with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Purge removes expired entries and reports how many were removed.
	Purge(ctx context.Context) (int, error)
	// Clear removes every entry.
	Clear(ctx context.Context) (int, error)
}

// New builds the cache backend named in cfg. The SQLite backend needs db.
func New(cfg config.Cache, db *database.DB) (Cache, error) {
	switch cfg.Backend {
	case "sqlite", "":
		if db == nil {
			return nil, fmt.Errorf("sqlite cache needs a database")
		}
		return NewSQLite(db), nil
	case "redis":
		return NewRedisFromURL(cfg.RedisURL)
	case "none":
		return Nop{}, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// SQLite stores entries in the application database.
type SQLite struct {
	db *database.DB
}

func NewSQLite(db *database.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Get(_ context.Context, key string) ([]byte, error) {
	v, ok, err := s.db.GetCache(key)
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (s *SQLite) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.db.PutCache(key, value, ttl); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

func (s *SQLite) Purge(_ context.Context) (int, error) {
	n, err := s.db.PurgeExpiredCache()
	return int(n), err
}

func (s *SQLite) Clear(_ context.Context) (int, error) {
	n, err := s.db.ClearCache()
	return int(n), err
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Purge(context.Context) (int, error) { return 0, nil }
func (Nop) Clear(context.Context) (int, error) { return 0, nil }
