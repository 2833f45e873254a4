package database

import (
	"database/sql"
	"errors"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// GetCache returns the cached value for key if present and unexpired.
func (db *DB) GetCache(key string) ([]byte, bool, error) {
	var value []byte
	err := db.conn.QueryRow(
		"SELECT value FROM source_cache WHERE key = ? AND expires_at > ?",
		key, db.stamp(0),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// PutCache stores value under key for ttl, replacing any previous entry.
func (db *DB) PutCache(key string, value []byte, ttl time.Duration) error {
	_, err := db.conn.Exec(
		`INSERT INTO source_cache (key, value, stored_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value,
			stored_at = excluded.stored_at, expires_at = excluded.expires_at`,
		key, value, db.stamp(0), db.stamp(ttl),
	)
	return err
}

// PurgeExpiredCache deletes expired entries and returns how many went.
func (db *DB) PurgeExpiredCache() (int64, error) {
	result, err := db.conn.Exec("DELETE FROM source_cache WHERE expires_at <= ?", db.stamp(0))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ClearCache deletes every cache entry.
func (db *DB) ClearCache() (int64, error) {
	result, err := db.conn.Exec("DELETE FROM source_cache")
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// GetCacheStats counts total and expired cache entries.
func (db *DB) GetCacheStats() (CacheStats, error) {
	var stats CacheStats
	err := db.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0)
		FROM source_cache`, db.stamp(0),
	).Scan(&stats.Entries, &stats.Expired)
	return stats, err
}

func (db *DB) stamp(offset time.Duration) string {
	return db.now().UTC().Add(offset).Format(timeLayout)
}
