package catalog

import (
	"context"
	"fmt"

	"github.com/erazemk/omara/internal/model"
	"github.com/erazemk/omara/internal/query"
	"github.com/erazemk/omara/internal/suggest"
)

// SuggestOutfits asks the configured suggester for outfits built from the
// current catalog.
func (s *Service) SuggestOutfits(ctx context.Context) ([]suggest.Suggestion, error) {
	if s.suggester == nil {
		return nil, suggest.ErrNotConfigured
	}

	items, err := s.repo.ListItems(ctx, query.Filter{})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	suggestions, err := s.suggester.Suggest(ctx, suggest.BuildCatalog(items))
	if err != nil {
		return nil, err
	}
	s.log.Info("outfits suggested", "items", len(items), "suggestions", len(suggestions))
	return suggestions, nil
}

// SaveSuggestion stores an accepted suggestion as an outfit.
func (s *Service) SaveSuggestion(ctx context.Context, sg suggest.Suggestion) (*model.Outfit, error) {
	return s.CreateOutfit(ctx, model.Outfit{Name: sg.Name, Notes: sg.Reasoning}, sg.ItemIDs)
}
