// Package migrations holds the schema of antikit's cache database.
package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/vunamhung/antikit/pkg/db"
)

// All returns every migration. New migrations are appended here.
func All() []db.Migration {
	return []db.Migration{
		Migration20260301090000CreateCatalogCache(),
		Migration20260301090001CreateKVStore(),
	}
}

// Migration20260301090000CreateCatalogCache stores the skills listed per source.
func Migration20260301090000CreateCatalogCache() db.Migration {
	return db.Migration{
		Version:     20260301090000,
		Description: "Create catalog_cache table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS catalog_cache (
					source_key TEXT PRIMARY KEY,
					payload TEXT NOT NULL,
					fetched_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create catalog_cache table")
			}
			return nil
		},
	}
}

// Migration20260301090001CreateKVStore holds small pieces of state such as
// the last release check.
func Migration20260301090001CreateKVStore() db.Migration {
	return db.Migration{
		Version:     20260301090001,
		Description: "Create kv_store table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS kv_store (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create kv_store table")
			}
			return nil
		},
	}
}
