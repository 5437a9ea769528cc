// Package store is the SQLite entity store for clothing items and outfits.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/erazemk/omara/internal/db"
	"github.com/erazemk/omara/internal/model"
)

// Store reads and writes the wardrobe tables. It owns the database handle
// passed to New for its lifetime.
type Store struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// New returns a Store over an opened and migrated database.
func New(database *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: database, log: logger, now: model.Now}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w: %w", model.ErrStorageUnavailable, err)
	}
	return nil
}

// SchemaVersion returns the applied schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return db.Version(ctx, s.db)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// decodeTags decodes stored tags, substituting an empty list for malformed
// data.
func (s *Store) decodeTags(table, id, stored string) []string {
	tags, err := model.DecodeTags(stored)
	if err != nil {
		s.log.Warn("malformed stored tags", "table", table, "id", id, "error", err)
	}
	return tags
}

func isPrimaryKeyViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func micros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
