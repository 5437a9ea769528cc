package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/omara/internal/model"
	"github.com/erazemk/omara/internal/query"
)

const itemColumns = `id, name, category, color, brand, season, fit, material, tags, image_url, created_at, updated_at`

// CreateItem inserts a new item. An empty ID is replaced with a random UUID;
// both timestamps are set to the current time.
func (s *Store) CreateItem(ctx context.Context, in model.Item) (*model.Item, error) {
	item := in
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Season == "" {
		item.Season = model.SeasonAllSeason
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	item.CreatedAt = s.now()
	item.UpdatedAt = item.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clothing_items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Category, item.Color, nullString(item.Brand), item.Season,
		nullString(string(item.Fit)), nullString(item.Material), model.EncodeTags(item.Tags),
		nullString(item.ImageURL), micros(item.CreatedAt), micros(item.UpdatedAt),
	)
	if isPrimaryKeyViolation(err) {
		return nil, fmt.Errorf("creating item %s: %w", item.ID, model.ErrDuplicateKey)
	}
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return &item, nil
}

// GetItem returns an item by ID, or nil if it does not exist.
func (s *Store) GetItem(ctx context.Context, id string) (*model.Item, error) {
	return s.getItem(ctx, s.db, id)
}

func (s *Store) getItem(ctx context.Context, q querier, id string) (*model.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM clothing_items WHERE id = ?`, id)
	item, err := s.scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns the items matching f, most recently created first.
// Category and season are answered from their indexes; the remaining
// predicates run in Go so every backend matches identically.
func (s *Store) ListItems(ctx context.Context, f query.Filter) ([]model.Item, error) {
	var where []string
	var args []any
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Season != "" {
		where = append(where, "season = ?")
		args = append(args, f.Season)
	}

	q := `SELECT ` + itemColumns + ` FROM clothing_items`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	return query.Apply(items, f), nil
}

// UpdateItem merges patch onto the stored item in one transaction and
// refreshes updatedAt. It returns model.ErrNotFound for an unknown ID.
func (s *Store) UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := s.getItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("updating item %s: %w", id, model.ErrNotFound)
	}

	patch.Apply(item)
	item.UpdatedAt = model.NextUpdate(item.UpdatedAt, s.now())

	_, err = tx.ExecContext(ctx,
		`UPDATE clothing_items
		 SET name = ?, category = ?, color = ?, brand = ?, season = ?, fit = ?,
		     material = ?, tags = ?, image_url = ?, updated_at = ?
		 WHERE id = ?`,
		item.Name, item.Category, item.Color, nullString(item.Brand), item.Season,
		nullString(string(item.Fit)), nullString(item.Material), model.EncodeTags(item.Tags),
		nullString(item.ImageURL), micros(item.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item update: %w", err)
	}
	return item, nil
}

// DeleteItem removes an item. Outfits referencing it keep their association
// rows; readers skip them. It returns model.ErrNotFound for an unknown ID.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clothing_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("deleting item %s: %w", id, model.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanItem(row scanner) (*model.Item, error) {
	item := &model.Item{}
	var brand, fit, material, imageURL sql.NullString
	var tags string
	var createdAt, updatedAt int64
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Color, &brand, &item.Season,
		&fit, &material, &tags, &imageURL, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	item.Brand = brand.String
	item.Fit = model.Fit(fit.String)
	item.Material = material.String
	item.ImageURL = imageURL.String
	item.Tags = s.decodeTags("clothing_items", item.ID, tags)
	item.CreatedAt = fromMicros(createdAt)
	item.UpdatedAt = fromMicros(updatedAt)
	return item, nil
}
