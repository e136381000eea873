// Package metadata resolves user requests into content using OMDb and TVDB.
package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Cache provides SQLite-backed caching for metadata API responses.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// NewCache creates a new metadata cache.
func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db, now: time.Now}
}

// Get retrieves a cached value by key.
// Returns nil, false if not found or expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	var value string
	var expiresAt time.Time

	err := c.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM metadata_cache WHERE key = ?", key,
	).Scan(&value, &expiresAt)

	if err != nil || c.now().After(expiresAt) {
		return nil, false
	}
	return []byte(value), true
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO metadata_cache (key, value, expires_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, string(value), c.now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Prune removes all expired entries and returns how many were removed.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx,
		"DELETE FROM metadata_cache WHERE expires_at < ?", c.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	return result.RowsAffected()
}

// cached returns the value stored under key, or calls fetch and stores
// its result. Cache failures are logged, never returned. A nil cache
// always fetches.
func cached[T any](ctx context.Context, c *Cache, log *slog.Logger, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	if c != nil {
		if data, ok := c.Get(ctx, key); ok {
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				log.Debug("cache hit", "key", key)
				return v, nil
			}
			log.Warn("discarding unreadable cache entry", "key", key)
		}
	}

	v, err := fetch()
	if err != nil || c == nil {
		return v, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		log.Warn("failed to marshal for cache", "key", key, "error", err)
		return v, nil
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		log.Warn("failed to cache", "key", key, "error", err)
	}
	return v, nil
}
