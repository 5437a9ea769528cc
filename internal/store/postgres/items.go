package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/erazemk/omara/internal/model"
	"github.com/erazemk/omara/internal/query"
)

const itemColumns = `id, name, category, color, brand, season, fit, material, tags, image_url, created_at, updated_at`

// CreateItem inserts a new item. An empty ID is replaced with a random UUID.
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO clothing_items (`+itemColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		item.ID, item.Name, string(item.Category), item.Color, nullable(item.Brand), string(item.Season),
		nullable(string(item.Fit)), nullable(item.Material), model.EncodeTags(item.Tags),
		nullable(item.ImageURL), item.CreatedAt, item.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("creating item %s: %w", item.ID, model.ErrDuplicateKey)
	}
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return &item, nil
}

// GetItem returns an item by ID, or nil if it does not exist.
func (s *Store) GetItem(ctx context.Context, id string) (*model.Item, error) {
	return s.getItem(ctx, s.pool, id, false)
}

func (s *Store) getItem(ctx context.Context, q querier, id string, lock bool) (*model.Item, error) {
	sql := `SELECT ` + itemColumns + ` FROM clothing_items WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	item, err := s.scanItem(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns the items matching f, newest first. Category and season
// use the indexes; color and search are applied by the query engine.
func (s *Store) ListItems(ctx context.Context, f query.Filter) ([]model.Item, error) {
	var where []string
	var args []any
	if f.Category != "" {
		args = append(args, string(f.Category))
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}
	if f.Season != "" {
		args = append(args, string(f.Season))
		where = append(where, "season = $"+strconv.Itoa(len(args)))
	}

	sql := `SELECT ` + itemColumns + ` FROM clothing_items`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, seq DESC`

	rows, err := s.pool.Query(ctx, sql, args...)
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

// UpdateItem merges patch onto the stored item under a row lock. It returns
// model.ErrNotFound for an unknown ID.
func (s *Store) UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	item, err := s.getItem(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("updating item %s: %w", id, model.ErrNotFound)
	}

	patch.Apply(item)
	item.UpdatedAt = model.NextUpdate(item.UpdatedAt, s.now())

	_, err = tx.Exec(ctx,
		`UPDATE clothing_items
		 SET name = $1, category = $2, color = $3, brand = $4, season = $5, fit = $6,
		     material = $7, tags = $8, image_url = $9, updated_at = $10
		 WHERE id = $11`,
		item.Name, string(item.Category), item.Color, nullable(item.Brand), string(item.Season),
		nullable(string(item.Fit)), nullable(item.Material), model.EncodeTags(item.Tags),
		nullable(item.ImageURL), item.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing item update: %w", err)
	}
	return item, nil
}

// DeleteItem removes an item. Outfits referencing it are left alone. It
// returns model.ErrNotFound for an unknown ID.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM clothing_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting item %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *Store) scanItem(row pgx.Row) (*model.Item, error) {
	var item model.Item
	var category, season, tags string
	var brand, fit, material, image *string
	var created, updated time.Time

	err := row.Scan(&item.ID, &item.Name, &category, &item.Color, &brand, &season,
		&fit, &material, &tags, &image, &created, &updated)
	if err != nil {
		return nil, err
	}

	item.Category = model.Category(category)
	item.Season = model.Season(season)
	item.Brand = deref(brand)
	item.Fit = model.Fit(deref(fit))
	item.Material = deref(material)
	item.ImageURL = deref(image)
	item.Tags = s.decodeTags("clothing_items", item.ID, tags)
	item.CreatedAt = created.UTC()
	item.UpdatedAt = updated.UTC()
	return &item, nil
}
