// Package cache persists catalog listings and small bits of state in the
// SQLite database under the antikit config directory.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/vunamhung/antikit/pkg/db"
	"github.com/vunamhung/antikit/pkg/db/migrations"
)

// Cache stores JSON payloads keyed by source with a freshness window.
type Cache struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Open opens the cache database at path, creating and migrating it as needed.
// A ttl of zero disables catalog caching while keeping the key-value store.
func Open(ctx context.Context, path string, ttl time.Duration, opts ...Option) (*Cache, error) {
	conn, err := db.OpenMigrated(ctx, path, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open cache database")
	}

	c := &Cache{db: conn, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

type catalogRow struct {
	Payload   string    `db:"payload"`
	FetchedAt time.Time `db:"fetched_at"`
}

// GetCatalog decodes the cached listing for key into v. It reports false when
// nothing fresh is stored.
func (c *Cache) GetCatalog(ctx context.Context, key string, v any) (bool, error) {
	if c.ttl <= 0 {
		return false, nil
	}

	var row catalogRow
	err := c.db.GetContext(ctx, &row, "SELECT payload, fetched_at FROM catalog_cache WHERE source_key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to read catalog cache")
	}

	if c.now().Sub(row.FetchedAt) > c.ttl {
		return false, nil
	}

	if err := json.Unmarshal([]byte(row.Payload), v); err != nil {
		return false, errors.Wrap(err, "failed to decode cached catalog")
	}
	return true, nil
}

// PutCatalog stores v as the listing for key.
func (c *Cache) PutCatalog(ctx context.Context, key string, v any) error {
	if c.ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to encode catalog")
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO catalog_cache (source_key, payload, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(source_key) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at
	`, key, string(payload), c.now().UTC())
	return errors.Wrap(err, "failed to write catalog cache")
}

// ClearCatalog drops every cached listing.
func (c *Cache) ClearCatalog(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM catalog_cache")
	return errors.Wrap(err, "failed to clear catalog cache")
}

// Get returns the value stored under key and when it was written.
func (c *Cache) Get(ctx context.Context, key string) (string, time.Time, bool, error) {
	var row struct {
		Value     string    `db:"value"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := c.db.GetContext(ctx, &row, "SELECT value, updated_at FROM kv_store WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, errors.Wrapf(err, "failed to read %s", key)
	}
	return row.Value, row.UpdatedAt, true, nil
}

// Set stores value under key.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, c.now().UTC())
	return errors.Wrapf(err, "failed to write %s", key)
}
