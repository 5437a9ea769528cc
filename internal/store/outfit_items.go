package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/omara/internal/model"
)

// replaceOutfitItems swaps the association set of an outfit for itemIDs
// inside tx. Blank and repeated IDs are collapsed and IDs with no matching
// item are dropped; the remaining order is kept.
func (s *Store) replaceOutfitItems(ctx context.Context, tx *sql.Tx, outfitID string, itemIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM outfit_items WHERE outfit_id = ?`, outfitID); err != nil {
		return fmt.Errorf("clearing outfit items: %w", err)
	}

	position := 0
	for _, itemID := range model.UniqueIDs(itemIDs) {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM clothing_items WHERE id = ?`, itemID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking item %s: %w", itemID, err)
		}
		if exists == 0 {
			s.log.Debug("dropping unknown item from outfit", "outfit_id", outfitID, "item_id", itemID)
			continue
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO outfit_items (outfit_id, position, item_id) VALUES (?, ?, ?)`,
			outfitID, position, itemID,
		)
		if err != nil {
			return fmt.Errorf("adding item %s to outfit: %w", itemID, err)
		}
		position++
	}

	return nil
}
