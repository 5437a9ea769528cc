// Package catalog is the entry point for reading and changing the wardrobe.
// It validates input, resolves uploaded images and delegates persistence to
// a Repository.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/erazemk/omara/internal/media"
	"github.com/erazemk/omara/internal/model"
	"github.com/erazemk/omara/internal/query"
	"github.com/erazemk/omara/internal/suggest"
)

// Repository persists items and outfits. Lookups return nil, nil for
// unknown ids; updates and deletes return model.ErrNotFound.
type Repository interface {
	CreateItem(ctx context.Context, item model.Item) (*model.Item, error)
	GetItem(ctx context.Context, id string) (*model.Item, error)
	ListItems(ctx context.Context, f query.Filter) ([]model.Item, error)
	UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error)
	DeleteItem(ctx context.Context, id string) error

	CreateOutfit(ctx context.Context, outfit model.Outfit, itemIDs []string) (*model.Outfit, error)
	GetOutfit(ctx context.Context, id string) (*model.Outfit, error)
	ListOutfits(ctx context.Context) ([]model.Outfit, error)
	UpdateOutfit(ctx context.Context, id string, patch model.OutfitPatch) (*model.Outfit, error)
	DeleteOutfit(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// Service implements the catalog operations.
type Service struct {
	repo      Repository
	images    *media.Resolver
	suggester suggest.Suggester
	log       *slog.Logger
}

// NewService wires a Service. suggester may be nil, in which case
// SuggestOutfits returns suggest.ErrNotConfigured.
func NewService(repo Repository, images *media.Resolver, suggester suggest.Suggester, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, images: images, suggester: suggester, log: logger}
}

// Images returns the resolver used for uploads.
func (s *Service) Images() *media.Resolver {
	return s.images
}

// Ping checks the storage backend.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// ListItems returns the items matching f, newest first.
func (s *Service) ListItems(ctx context.Context, f query.Filter) ([]model.Item, error) {
	return s.repo.ListItems(ctx, f)
}

// GetItem returns an item, or nil if it does not exist.
func (s *Service) GetItem(ctx context.Context, id string) (*model.Item, error) {
	return s.repo.GetItem(ctx, id)
}

// CreateItem validates and stores a new item. When image is set it is
// stored first, so a rejected image never leaves a record behind.
func (s *Service) CreateItem(ctx context.Context, in model.Item, image *media.Upload) (*model.Item, error) {
	in.ID = ""
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if image != nil {
		in.ID = uuid.NewString()
		ref, err := s.images.Resolve(ctx, in.ID, *image)
		if err != nil {
			return nil, err
		}
		in.ImageURL = ref
	}

	item, err := s.repo.CreateItem(ctx, in)
	if err != nil {
		if image != nil {
			s.removeImage(ctx, in.ID, in.ImageURL)
		}
		return nil, err
	}

	s.log.Info("item created", "id", item.ID, "category", item.Category)
	return item, nil
}

// UpdateItem merges patch onto an item and, when image is set, replaces its
// photo. The previous photo is removed once the update is committed.
func (s *Service) UpdateItem(ctx context.Context, id string, patch model.ItemPatch, image *media.Upload) (*model.Item, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var previous string
	if image != nil || patch.ImageURL != nil {
		existing, err := s.repo.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("updating item %s: %w", id, model.ErrNotFound)
		}
		previous = existing.ImageURL
	}

	if image != nil {
		ref, err := s.images.Resolve(ctx, id, *image)
		if err != nil {
			return nil, err
		}
		patch.ImageURL = &ref
	}

	item, err := s.repo.UpdateItem(ctx, id, patch)
	if err != nil {
		if image != nil {
			s.removeImage(ctx, id, *patch.ImageURL)
		}
		return nil, err
	}

	if previous != "" && previous != item.ImageURL {
		s.removeImage(ctx, id, previous)
	}
	s.log.Info("item updated", "id", id)
	return item, nil
}

// DeleteItem removes an item and its photo. Outfits that reference it keep
// their other items.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	existing, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	if existing != nil {
		s.removeImage(ctx, id, existing.ImageURL)
	}
	s.log.Info("item deleted", "id", id)
	return nil
}

// ListOutfits returns every outfit with its resolved items, newest first.
func (s *Service) ListOutfits(ctx context.Context) ([]model.Outfit, error) {
	return s.repo.ListOutfits(ctx)
}

// GetOutfit returns an outfit, or nil if it does not exist.
func (s *Service) GetOutfit(ctx context.Context, id string) (*model.Outfit, error) {
	return s.repo.GetOutfit(ctx, id)
}

// CreateOutfit stores a new outfit referencing itemIDs. Ids that do not
// resolve to an item are dropped.
func (s *Service) CreateOutfit(ctx context.Context, in model.Outfit, itemIDs []string) (*model.Outfit, error) {
	in.ID = ""
	in.Items = nil
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	outfit, err := s.repo.CreateOutfit(ctx, in, model.UniqueIDs(itemIDs))
	if err != nil {
		return nil, err
	}
	s.log.Info("outfit created", "id", outfit.ID, "items", len(outfit.Items))
	return outfit, nil
}

// UpdateOutfit merges patch onto an outfit. A non-nil patch.ItemIDs
// replaces the whole item list.
func (s *Service) UpdateOutfit(ctx context.Context, id string, patch model.OutfitPatch) (*model.Outfit, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.ItemIDs != nil {
		ids := model.UniqueIDs(*patch.ItemIDs)
		patch.ItemIDs = &ids
	}

	outfit, err := s.repo.UpdateOutfit(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.log.Info("outfit updated", "id", id)
	return outfit, nil
}

// DeleteOutfit removes an outfit. Its items are untouched.
func (s *Service) DeleteOutfit(ctx context.Context, id string) error {
	if err := s.repo.DeleteOutfit(ctx, id); err != nil {
		return err
	}
	s.log.Info("outfit deleted", "id", id)
	return nil
}

// removeImage deletes the image stored for item id, logging failures.
// References the item did not upload itself, such as another item's photo,
// are kept. Leftover files are harmless.
func (s *Service) removeImage(ctx context.Context, id, ref string) {
	if ref == "" || s.images == nil {
		return
	}
	if err := s.images.Remove(ctx, id, ref); err != nil {
		s.log.Warn("removing image failed", "ref", ref, "error", err)
	}
}
