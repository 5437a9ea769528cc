package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/omara/internal/model"
)

// outfitJoin selects outfits with their associated items in one statement,
// so a reader sees a single consistent association set. Item columns are
// NULL for outfits without items and for dangling references.
const outfitJoin = `
SELECT o.id, o.name, o.tags, o.season, o.notes, o.created_at, o.updated_at,
       i.id, i.name, i.category, i.color, i.brand, i.season, i.fit, i.material,
       i.tags, i.image_url, i.created_at, i.updated_at
FROM outfits o
LEFT JOIN outfit_items oi ON oi.outfit_id = o.id
LEFT JOIN clothing_items i ON i.id = oi.item_id`

// CreateOutfit inserts an outfit and its item associations in one
// transaction. Item IDs that do not resolve are dropped.
func (s *Store) CreateOutfit(ctx context.Context, in model.Outfit, itemIDs []string) (*model.Outfit, error) {
	outfit := in
	if outfit.ID == "" {
		outfit.ID = uuid.NewString()
	}
	if outfit.Season == "" {
		outfit.Season = model.SeasonAllSeason
	}
	if outfit.Tags == nil {
		outfit.Tags = []string{}
	}
	outfit.CreatedAt = s.now()
	outfit.UpdatedAt = outfit.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outfits (id, name, tags, season, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		outfit.ID, outfit.Name, model.EncodeTags(outfit.Tags), outfit.Season,
		nullString(outfit.Notes), micros(outfit.CreatedAt), micros(outfit.UpdatedAt),
	)
	if isPrimaryKeyViolation(err) {
		return nil, fmt.Errorf("creating outfit %s: %w", outfit.ID, model.ErrDuplicateKey)
	}
	if err != nil {
		return nil, fmt.Errorf("creating outfit: %w", err)
	}

	if err := s.replaceOutfitItems(ctx, tx, outfit.ID, itemIDs); err != nil {
		return nil, err
	}

	created, err := s.getOutfit(ctx, tx, outfit.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing outfit: %w", err)
	}
	return created, nil
}

// GetOutfit returns an outfit with its resolved items, or nil if it does not
// exist.
func (s *Store) GetOutfit(ctx context.Context, id string) (*model.Outfit, error) {
	return s.getOutfit(ctx, s.db, id)
}

func (s *Store) getOutfit(ctx context.Context, q querier, id string) (*model.Outfit, error) {
	rows, err := q.QueryContext(ctx, outfitJoin+` WHERE o.id = ? ORDER BY oi.position`, id)
	if err != nil {
		return nil, fmt.Errorf("getting outfit: %w", err)
	}
	defer rows.Close()

	outfits, err := s.scanOutfits(rows)
	if err != nil {
		return nil, fmt.Errorf("getting outfit: %w", err)
	}
	if len(outfits) == 0 {
		return nil, nil
	}
	return &outfits[0], nil
}

// ListOutfits returns every outfit with its resolved items, most recently
// created first.
func (s *Store) ListOutfits(ctx context.Context) ([]model.Outfit, error) {
	rows, err := s.db.QueryContext(ctx,
		outfitJoin+` ORDER BY o.created_at DESC, o.rowid DESC, oi.position`)
	if err != nil {
		return nil, fmt.Errorf("listing outfits: %w", err)
	}
	defer rows.Close()

	outfits, err := s.scanOutfits(rows)
	if err != nil {
		return nil, fmt.Errorf("listing outfits: %w", err)
	}
	return outfits, nil
}

// UpdateOutfit merges patch onto the stored outfit. When patch.ItemIDs is
// set the association set is replaced in the same transaction. It returns
// model.ErrNotFound for an unknown ID.
func (s *Store) UpdateOutfit(ctx context.Context, id string, patch model.OutfitPatch) (*model.Outfit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	outfit, err := s.getOutfit(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if outfit == nil {
		return nil, fmt.Errorf("updating outfit %s: %w", id, model.ErrNotFound)
	}

	patch.Apply(outfit)
	outfit.UpdatedAt = model.NextUpdate(outfit.UpdatedAt, s.now())

	_, err = tx.ExecContext(ctx,
		`UPDATE outfits SET name = ?, tags = ?, season = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		outfit.Name, model.EncodeTags(outfit.Tags), outfit.Season, nullString(outfit.Notes),
		micros(outfit.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating outfit: %w", err)
	}

	if patch.ItemIDs != nil {
		if err := s.replaceOutfitItems(ctx, tx, id, *patch.ItemIDs); err != nil {
			return nil, err
		}
	}

	updated, err := s.getOutfit(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing outfit update: %w", err)
	}
	return updated, nil
}

// DeleteOutfit removes an outfit and its associations. Referenced items are
// untouched. It returns model.ErrNotFound for an unknown ID.
func (s *Store) DeleteOutfit(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM outfit_items WHERE outfit_id = ?`, id); err != nil {
		return fmt.Errorf("deleting outfit items: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM outfits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting outfit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting outfit: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("deleting outfit %s: %w", id, model.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing outfit delete: %w", err)
	}
	return nil
}

// scanOutfits groups joined rows into outfits, preserving row order.
func (s *Store) scanOutfits(rows *sql.Rows) ([]model.Outfit, error) {
	outfits := []model.Outfit{}
	index := map[string]int{}

	for rows.Next() {
		var o model.Outfit
		var oTags string
		var notes sql.NullString
		var oCreated, oUpdated int64

		var iID, iName, iCategory, iColor, iBrand, iSeason, iFit, iMaterial, iTags, iImage sql.NullString
		var iCreated, iUpdated sql.NullInt64

		err := rows.Scan(&o.ID, &o.Name, &oTags, &o.Season, &notes, &oCreated, &oUpdated,
			&iID, &iName, &iCategory, &iColor, &iBrand, &iSeason, &iFit, &iMaterial,
			&iTags, &iImage, &iCreated, &iUpdated)
		if err != nil {
			return nil, fmt.Errorf("scanning outfit: %w", err)
		}

		pos, ok := index[o.ID]
		if !ok {
			o.Notes = notes.String
			o.Tags = s.decodeTags("outfits", o.ID, oTags)
			o.CreatedAt = fromMicros(oCreated)
			o.UpdatedAt = fromMicros(oUpdated)
			o.Items = []model.Item{}
			outfits = append(outfits, o)
			pos = len(outfits) - 1
			index[o.ID] = pos
		}

		// No associations, or the referenced item was deleted.
		if !iID.Valid {
			continue
		}

		outfits[pos].Items = append(outfits[pos].Items, model.Item{
			ID:        iID.String,
			Name:      iName.String,
			Category:  model.Category(iCategory.String),
			Color:     iColor.String,
			Brand:     iBrand.String,
			Season:    model.Season(iSeason.String),
			Fit:       model.Fit(iFit.String),
			Material:  iMaterial.String,
			Tags:      s.decodeTags("clothing_items", iID.String, iTags.String),
			ImageURL:  iImage.String,
			CreatedAt: fromMicros(iCreated.Int64),
			UpdatedAt: fromMicros(iUpdated.Int64),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outfits, nil
}
