// Package query filters clothing items.
package query

import (
	"strings"

	"github.com/erazemk/omara/internal/model"
)

// Filter selects items. Zero-valued fields match everything; set fields are
// combined with AND.
type Filter struct {
	Category model.Category `json:"category,omitempty"`
	Season   model.Season   `json:"season,omitempty"`
	Color    string         `json:"color,omitempty"`
	Search   string         `json:"search,omitempty"`
}

// IsZero reports whether the filter matches every item.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Match reports whether item satisfies every set predicate. Predicates are
// evaluated in order: category, season, color, search.
func (f Filter) Match(item model.Item) bool {
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.Season != "" && item.Season != f.Season {
		return false
	}
	if f.Color != "" && !containsFold(item.Color, f.Color) {
		return false
	}
	if f.Search != "" &&
		!containsFold(item.Name, f.Search) &&
		!containsFold(item.Brand, f.Search) &&
		!containsFold(item.Color, f.Search) {
		return false
	}
	return true
}

// Apply returns the items matching f, keeping their order. The input slice
// is not modified.
func Apply(items []model.Item, f Filter) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, item := range items {
		if f.Match(item) {
			out = append(out, item)
		}
	}
	return out
}

// containsFold reports whether substr is within s, ignoring case. An empty
// s never matches.
func containsFold(s, substr string) bool {
	if s == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
