package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/erazemk/omara/internal/model"
)

// outfitJoin reads outfits with their resolved items in one statement.
// Associations whose item no longer exists come back with NULL item columns.
const outfitJoin = `
	SELECT o.id, o.name, o.tags, o.season, o.notes, o.created_at, o.updated_at,
	       i.id, i.name, i.category, i.color, i.brand, i.season, i.fit, i.material,
	       i.tags, i.image_url, i.created_at, i.updated_at
	FROM outfits o
	LEFT JOIN outfit_items oi ON oi.outfit_id = o.id
	LEFT JOIN clothing_items i ON i.id = oi.item_id`

// CreateOutfit inserts an outfit and its associations in one transaction.
// Item ids that do not exist are dropped.
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO outfits (id, name, tags, season, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		outfit.ID, outfit.Name, model.EncodeTags(outfit.Tags), string(outfit.Season),
		nullable(outfit.Notes), outfit.CreatedAt, outfit.UpdatedAt,
	)
	if isUniqueViolation(err) {
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
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing outfit: %w", err)
	}
	return created, nil
}

// GetOutfit returns an outfit with its resolved items, or nil if it does not
// exist.
func (s *Store) GetOutfit(ctx context.Context, id string) (*model.Outfit, error) {
	return s.getOutfit(ctx, s.pool, id)
}

func (s *Store) getOutfit(ctx context.Context, q querier, id string) (*model.Outfit, error) {
	rows, err := q.Query(ctx, outfitJoin+` WHERE o.id = $1 ORDER BY oi.position`, id)
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

// ListOutfits returns every outfit with its resolved items, newest first.
func (s *Store) ListOutfits(ctx context.Context) ([]model.Outfit, error) {
	rows, err := s.pool.Query(ctx,
		outfitJoin+` ORDER BY o.created_at DESC, o.seq DESC, oi.position`)
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

// UpdateOutfit merges patch onto the stored outfit under a row lock. A
// non-nil patch.ItemIDs replaces the associations in the same transaction.
func (s *Store) UpdateOutfit(ctx context.Context, id string, patch model.OutfitPatch) (*model.Outfit, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM outfits WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating outfit %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("locking outfit: %w", err)
	}

	outfit, err := s.getOutfit(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(outfit)
	outfit.UpdatedAt = model.NextUpdate(outfit.UpdatedAt, s.now())

	_, err = tx.Exec(ctx,
		`UPDATE outfits SET name = $1, tags = $2, season = $3, notes = $4, updated_at = $5
		 WHERE id = $6`,
		outfit.Name, model.EncodeTags(outfit.Tags), string(outfit.Season), nullable(outfit.Notes),
		outfit.UpdatedAt, id,
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
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing outfit update: %w", err)
	}
	return updated, nil
}

// DeleteOutfit removes an outfit; its associations cascade. It returns
// model.ErrNotFound for an unknown ID.
func (s *Store) DeleteOutfit(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM outfits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting outfit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting outfit %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// replaceOutfitItems discards the outfit's associations and writes itemIDs
// in order. Unknown and repeated ids are skipped.
func (s *Store) replaceOutfitItems(ctx context.Context, tx pgx.Tx, outfitID string, itemIDs []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM outfit_items WHERE outfit_id = $1`, outfitID); err != nil {
		return fmt.Errorf("clearing outfit items: %w", err)
	}

	position := 0
	for _, itemID := range model.UniqueIDs(itemIDs) {
		tag, err := tx.Exec(ctx,
			`INSERT INTO outfit_items (outfit_id, position, item_id)
			 SELECT $1::text, $2::integer, $3::text WHERE EXISTS (SELECT 1 FROM clothing_items WHERE id = $3)`,
			outfitID, position, itemID,
		)
		if err != nil {
			return fmt.Errorf("adding outfit item: %w", err)
		}
		if tag.RowsAffected() == 0 {
			s.log.Debug("dropping unknown outfit item", "outfit_id", outfitID, "item_id", itemID)
			continue
		}
		position++
	}
	return nil
}

func (s *Store) scanOutfits(rows pgx.Rows) ([]model.Outfit, error) {
	outfits := []model.Outfit{}
	index := map[string]int{}

	for rows.Next() {
		var o model.Outfit
		var oTags, oSeason string
		var notes *string
		var oCreated, oUpdated time.Time

		var iID, iName, iCategory, iColor, iBrand, iSeason, iFit, iMaterial, iTags, iImage *string
		var iCreated, iUpdated *time.Time

		err := rows.Scan(&o.ID, &o.Name, &oTags, &oSeason, &notes, &oCreated, &oUpdated,
			&iID, &iName, &iCategory, &iColor, &iBrand, &iSeason, &iFit, &iMaterial,
			&iTags, &iImage, &iCreated, &iUpdated)
		if err != nil {
			return nil, fmt.Errorf("scanning outfit: %w", err)
		}

		pos, ok := index[o.ID]
		if !ok {
			o.Season = model.Season(oSeason)
			o.Notes = deref(notes)
			o.Tags = s.decodeTags("outfits", o.ID, oTags)
			o.CreatedAt = oCreated.UTC()
			o.UpdatedAt = oUpdated.UTC()
			o.Items = []model.Item{}
			outfits = append(outfits, o)
			pos = len(outfits) - 1
			index[o.ID] = pos
		}

		if iID == nil {
			continue
		}

		outfits[pos].Items = append(outfits[pos].Items, model.Item{
			ID:        *iID,
			Name:      deref(iName),
			Category:  model.Category(deref(iCategory)),
			Color:     deref(iColor),
			Brand:     deref(iBrand),
			Season:    model.Season(deref(iSeason)),
			Fit:       model.Fit(deref(iFit)),
			Material:  deref(iMaterial),
			Tags:      s.decodeTags("clothing_items", *iID, deref(iTags)),
			ImageURL:  deref(iImage),
			CreatedAt: iCreated.UTC(),
			UpdatedAt: iUpdated.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outfits, nil
}
