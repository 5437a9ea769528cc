// Package postgres is the PostgreSQL entity store. It keeps the same tables
// and semantics as the embedded SQLite store so either can back the catalog.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erazemk/omara/internal/model"
)

// ConnectTimeout bounds each connection attempt so an unreachable server
// fails instead of hanging.
const ConnectTimeout = 5 * time.Second

// migrationLock is the advisory lock key held while migrating, so several
// processes starting at once apply each step only once.
const migrationLock = 0x6f6d617261

var migrations = []string{
	// 1: tables
	`CREATE TABLE IF NOT EXISTS clothing_items (
		seq        BIGINT GENERATED ALWAYS AS IDENTITY,
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
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outfits (
		seq        BIGINT GENERATED ALWAYS AS IDENTITY,
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		tags       TEXT NOT NULL DEFAULT '[]',
		season     TEXT NOT NULL DEFAULT 'ALL_SEASON' CHECK (season IN ('SPRING', 'SUMMER', 'FALL', 'WINTER', 'ALL_SEASON')),
		notes      TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outfit_items (
		outfit_id TEXT NOT NULL REFERENCES outfits(id) ON DELETE CASCADE,
		position  INTEGER NOT NULL,
		item_id   TEXT NOT NULL,
		PRIMARY KEY (outfit_id, position)
	);`,

	// 2: secondary indexes
	`CREATE INDEX IF NOT EXISTS idx_items_category ON clothing_items(category);
	CREATE INDEX IF NOT EXISTS idx_items_season ON clothing_items(season);
	CREATE INDEX IF NOT EXISTS idx_items_created ON clothing_items(created_at DESC, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_outfits_season ON outfits(season);
	CREATE INDEX IF NOT EXISTS idx_outfits_created ON outfits(created_at DESC, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_outfit_items_item ON outfit_items(item_id);`,

	// 3: an item appears at most once per outfit
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_outfit_items_unique ON outfit_items(outfit_id, item_id);`,
}

// SchemaVersion is the version a fully migrated database reports.
var SchemaVersion = len(migrations)

// Store reads and writes the wardrobe tables on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
	now  func() time.Time
}

// Open connects to the database at url, verifies the connection and applies
// pending migrations. Connection failures wrap model.ErrStorageUnavailable.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w: %w", model.ErrStorageUnavailable, err)
	}
	config.ConnConfig.ConnectTimeout = ConnectTimeout

	connectCtx, cancel := context.WithTimeout(ctx, 2*ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w: %w", model.ErrStorageUnavailable, err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w: %w", model.ErrStorageUnavailable, err)
	}

	s := &Store{pool: pool, log: logger, now: model.Now}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies pending migrations in one transaction.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning migration: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLock); err != nil {
		return fmt.Errorf("locking migrations: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_meta: %w", err)
	}

	current, err := readVersion(ctx, tx)
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for v := current; v < SchemaVersion; v++ {
		if _, err := tx.Exec(ctx, migrations[v]); err != nil {
			return fmt.Errorf("applying migration %d: %w", v+1, err)
		}
	}

	if current < SchemaVersion {
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_meta (key, value) VALUES ('version', $1)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			strconv.Itoa(SchemaVersion)); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
		s.log.Info("database migrated", "from", current, "to", SchemaVersion)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return readVersion(ctx, s.pool)
}

func readVersion(ctx context.Context, q querier) (int, error) {
	var value string
	err := q.QueryRow(ctx, `SELECT value FROM schema_meta WHERE key = 'version'`).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
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

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w: %w", model.ErrStorageUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) decodeTags(table, id, stored string) []string {
	tags, err := model.DecodeTags(stored)
	if err != nil {
		s.log.Warn("malformed stored tags", "table", table, "id", id, "error", err)
	}
	return tags
}

// isUniqueViolation reports a primary key or unique index conflict.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
