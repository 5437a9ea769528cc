package model

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Outfit is a named combination of items. Items holds the referenced items
// that still exist, in the order they were saved.
type Outfit struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Tags      []string  `json:"tags"`
	Season    Season    `json:"season"`
	Notes     string    `json:"notes,omitempty"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ItemIDs returns the ids of the resolved items.
func (o Outfit) ItemIDs() []string {
	ids := make([]string, len(o.Items))
	for i, item := range o.Items {
		ids[i] = item.ID
	}
	return ids
}

// Normalize trims text fields, applies the season default and cleans tags.
func (o *Outfit) Normalize() {
	o.Name = strings.TrimSpace(o.Name)
	o.Notes = strings.TrimSpace(o.Notes)
	if o.Season == "" {
		o.Season = SeasonAllSeason
	}
	o.Tags = NormalizeTags(o.Tags)
}

// Validate checks the fields required to create an outfit.
func (o Outfit) Validate() error {
	return validationError(validation.ValidateStruct(&o,
		validation.Field(&o.Name, validation.Required.Error("name is required"), validation.RuneLength(1, MaxNameLength)),
		validation.Field(&o.Season, validation.In(anySlice(Seasons)...).Error("unknown season")),
		validation.Field(&o.Notes, validation.RuneLength(0, MaxNotesLength)),
		validation.Field(&o.Tags, tagsRule),
	))
}

// OutfitPatch is a partial outfit update. A non-nil ItemIDs replaces the
// whole association set.
type OutfitPatch struct {
	Name    *string   `json:"name"`
	Tags    *[]string `json:"tags"`
	Season  *Season   `json:"season"`
	Notes   *string   `json:"notes"`
	ItemIDs *[]string `json:"itemIds"`
}

// Normalize trims the provided text fields and cleans tags.
func (p *OutfitPatch) Normalize() {
	trimPtr(p.Name)
	trimPtr(p.Notes)
	if p.Tags != nil {
		tags := NormalizeTags(*p.Tags)
		p.Tags = &tags
	}
}

// Validate checks the provided fields.
func (p OutfitPatch) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty.Error("name cannot be empty"), validation.RuneLength(1, MaxNameLength)),
		validation.Field(&p.Season, validation.NilOrNotEmpty.Error("season cannot be empty"), validation.In(anySlice(Seasons)...).Error("unknown season")),
		validation.Field(&p.Notes, validation.RuneLength(0, MaxNotesLength)),
	)
	if err != nil {
		return validationError(err)
	}
	if p.Tags != nil {
		if err := validation.Validate(*p.Tags, tagsRule); err != nil {
			return &ValidationError{Field: "tags", Message: err.Error()}
		}
	}
	return nil
}

// Apply merges the scalar fields of the patch onto outfit. The item list is
// handled by the store.
func (p OutfitPatch) Apply(outfit *Outfit) {
	if p.Name != nil {
		outfit.Name = *p.Name
	}
	if p.Tags != nil {
		outfit.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Season != nil {
		outfit.Season = *p.Season
	}
	if p.Notes != nil {
		outfit.Notes = *p.Notes
	}
}

// UniqueIDs returns ids without blanks and repeats, keeping first occurrences.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
