// Package suggest talks to an external model that proposes outfits and
// validates what it returns against the catalog it was shown.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/erazemk/omara/internal/model"
)

const (
	// MinItems and MaxItems bound the ids of an accepted suggestion.
	MinItems = 2
	MaxItems = 5
	// MaxSuggestions caps the number of suggestions returned.
	MaxSuggestions = 5

	MaxNameLength      = 80
	MaxReasoningLength = 400

	// DefaultName replaces an empty suggestion name.
	DefaultName = "Outfit"
)

var (
	// ErrInvalidResponse means the model output could not be parsed into
	// the expected shape. Nothing from such a response is used.
	ErrInvalidResponse = errors.New("invalid suggestion response")
	// ErrNotConfigured means no API key is set.
	ErrNotConfigured = errors.New("suggestions are not configured")
	// ErrNotEnoughItems means fewer than MinItems items have images.
	ErrNotEnoughItems = errors.New("at least 2 clothing items with images are needed for suggestions")
)

// CatalogItem is the snapshot of an item shown to the model.
type CatalogItem struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Color    string   `json:"color"`
	Season   string   `json:"season"`
	Brand    *string  `json:"brand"`
	Material *string  `json:"material"`
	Tags     []string `json:"tags"`

	ImageURL string `json:"-"`
}

// Suggestion is a validated outfit proposal.
type Suggestion struct {
	Name      string   `json:"name"`
	ItemIDs   []string `json:"itemIds"`
	Reasoning string   `json:"reasoning"`
}

// Suggester proposes outfits from a catalog snapshot.
type Suggester interface {
	Suggest(ctx context.Context, catalog []CatalogItem) ([]Suggestion, error)
}

// BuildCatalog snapshots items for the model, preserving their order.
func BuildCatalog(items []model.Item) []CatalogItem {
	catalog := make([]CatalogItem, 0, len(items))
	for _, it := range items {
		tags := it.Tags
		if tags == nil {
			tags = []string{}
		}
		catalog = append(catalog, CatalogItem{
			ID:       it.ID,
			Name:     it.Name,
			Category: string(it.Category),
			Color:    it.Color,
			Season:   string(it.Season),
			Brand:    optional(it.Brand),
			Material: optional(it.Material),
			Tags:     tags,
			ImageURL: it.ImageURL,
		})
	}
	return catalog
}

// WithImages returns the catalog entries that have an image reference.
func WithImages(catalog []CatalogItem) []CatalogItem {
	out := make([]CatalogItem, 0, len(catalog))
	for _, c := range catalog {
		if c.ImageURL != "" {
			out = append(out, c)
		}
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type rawResponse struct {
	Outfits *[]json.RawMessage `json:"outfits"`
}

type rawSuggestion struct {
	Name      any `json:"name"`
	ItemIDs   any `json:"itemIds"`
	Reasoning any `json:"reasoning"`
}

// decodeSuggestion reads one outfit entry. An entry that is not an object
// decodes as the zero value, and a non-array itemIds as no ids.
func decodeSuggestion(entry json.RawMessage) (rawSuggestion, []any) {
	var s rawSuggestion
	if err := json.Unmarshal(entry, &s); err != nil {
		return rawSuggestion{}, nil
	}
	ids, _ := s.ItemIDs.([]any)
	return s, ids
}

// Validate parses raw model output and keeps only usable suggestions.
//
// Only output that is not JSON, or has no outfits array, is rejected as a
// whole. Within an outfit, repeated, non-string and unknown item ids are
// removed first; a suggestion left with fewer than MinItems ids is dropped.
// Names and reasoning are truncated, and at most MaxSuggestions are kept.
func Validate(raw []byte, catalog []CatalogItem) ([]Suggestion, error) {
	var resp rawResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if resp.Outfits == nil {
		return nil, fmt.Errorf("%w: missing outfits array", ErrInvalidResponse)
	}

	valid := make(map[string]struct{}, len(catalog))
	for _, c := range catalog {
		valid[c.ID] = struct{}{}
	}

	out := make([]Suggestion, 0, MaxSuggestions)
	for _, entry := range *resp.Outfits {
		if len(out) == MaxSuggestions {
			break
		}
		s, rawIDs := decodeSuggestion(entry)

		ids := make([]string, 0, len(rawIDs))
		seen := make(map[string]struct{}, len(rawIDs))
		for _, v := range rawIDs {
			id, ok := v.(string)
			if !ok {
				continue
			}
			if _, ok := valid[id]; !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		if len(ids) < MinItems {
			continue
		}
		if len(ids) > MaxItems {
			ids = ids[:MaxItems]
		}

		name := truncate(text(s.Name), MaxNameLength)
		if name == "" {
			name = DefaultName
		}
		out = append(out, Suggestion{
			Name:      name,
			ItemIDs:   ids,
			Reasoning: truncate(text(s.Reasoning), MaxReasoningLength),
		})
	}
	return out, nil
}

// text renders a loosely typed JSON value as a string. Absent values are
// empty.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
