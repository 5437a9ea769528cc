package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// migrations bring the schema from version i to i+1. Each step must be
// idempotent. Append new steps at the end.
var migrations = []string{
	// 1: clothing items, outfits and the outfit/item association.
	`
CREATE TABLE IF NOT EXISTS clothing_items (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    category   TEXT NOT NULL CHECK (category IN ('TOPS', 'BOTTOMS', 'OUTERWEAR', 'SHOES', 'ACCESSORIES')),
    color      TEXT NOT NULL,
    brand      TEXT,
    season     TEXT NOT NULL DEFAULT 'ALL_SEASON' CHECK (season IN ('SPRING', 'SUMMER', 'FALL', 'WINTER', 'ALL_SEASON')),
    fit        TEXT CHECK (fit IN ('TIGHT', 'REGULAR', 'LOOSE', 'OVERSIZED')),
    material   TEXT,
    tags       TEXT NOT NULL DEFAULT '[]',
    image_url  TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outfits (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    tags       TEXT NOT NULL DEFAULT '[]',
    season     TEXT NOT NULL DEFAULT 'ALL_SEASON' CHECK (season IN ('SPRING', 'SUMMER', 'FALL', 'WINTER', 'ALL_SEASON')),
    notes      TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outfit_items (
    outfit_id TEXT NOT NULL REFERENCES outfits(id) ON DELETE CASCADE,
    position  INTEGER NOT NULL,
    item_id   TEXT NOT NULL,
    PRIMARY KEY (outfit_id, position)
);
`,
	// 2: secondary indexes.
	`
CREATE INDEX IF NOT EXISTS idx_clothing_items_category ON clothing_items(category);
CREATE INDEX IF NOT EXISTS idx_clothing_items_season ON clothing_items(season);
CREATE INDEX IF NOT EXISTS idx_clothing_items_created_at ON clothing_items(created_at);
CREATE INDEX IF NOT EXISTS idx_outfits_season ON outfits(season);
CREATE INDEX IF NOT EXISTS idx_outfits_created_at ON outfits(created_at);
CREATE INDEX IF NOT EXISTS idx_outfit_items_item ON outfit_items(item_id);
`,
	// 3: an item appears at most once per outfit.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_outfit_items_unique ON outfit_items(outfit_id, item_id)`,
}

// SchemaVersion is the version Migrate brings a database to.
var SchemaVersion = len(migrations)

const metaTable = `
CREATE TABLE IF NOT EXISTS schema_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`

// Migrate applies pending migrations in a single transaction and records the
// new version. It is safe to call on every start.
func Migrate(db *sql.DB) error {
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, metaTable); err != nil {
		return fmt.Errorf("creating schema_meta: %w", err)
	}

	current, err := readVersion(ctx, tx)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, len(migrations))
	}

	for i := current; i < len(migrations); i++ {
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_meta (key, value) VALUES ('version', ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(len(migrations)),
	); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

// Version returns the schema version recorded in the database, or 0 for a
// database that was never migrated.
func Version(ctx context.Context, db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_meta'`,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("checking schema_meta: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	return readVersion(ctx, db)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readVersion(ctx context.Context, q queryRower) (int, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = 'version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parsing schema version %q: %w", value, err)
	}
	return v, nil
}
