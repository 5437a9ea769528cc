package model

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Category is the kind of garment an item is.
type Category string

// Item categories.
const (
	CategoryTops        Category = "TOPS"
	CategoryBottoms     Category = "BOTTOMS"
	CategoryOuterwear   Category = "OUTERWEAR"
	CategoryShoes       Category = "SHOES"
	CategoryAccessories Category = "ACCESSORIES"
)

// Categories lists every valid category.
var Categories = []Category{CategoryTops, CategoryBottoms, CategoryOuterwear, CategoryShoes, CategoryAccessories}

// Season is the season an item or outfit is meant for.
type Season string

// Seasons.
const (
	SeasonSpring    Season = "SPRING"
	SeasonSummer    Season = "SUMMER"
	SeasonFall      Season = "FALL"
	SeasonWinter    Season = "WINTER"
	SeasonAllSeason Season = "ALL_SEASON"
)

// Seasons lists every valid season.
var Seasons = []Season{SeasonSpring, SeasonSummer, SeasonFall, SeasonWinter, SeasonAllSeason}

// Fit describes how a garment sits on the body.
type Fit string

// Fits.
const (
	FitTight     Fit = "TIGHT"
	FitRegular   Fit = "REGULAR"
	FitLoose     Fit = "LOOSE"
	FitOversized Fit = "OVERSIZED"
)

// Fits lists every valid fit.
var Fits = []Fit{FitTight, FitRegular, FitLoose, FitOversized}

// Field length limits.
const (
	MaxNameLength  = 200
	MaxTextLength  = 100
	MaxNotesLength = 2000
)

// Item is a single piece of clothing in the wardrobe.
// Optional text fields are empty when absent.
type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Color     string    `json:"color"`
	Brand     string    `json:"brand,omitempty"`
	Season    Season    `json:"season"`
	Fit       Fit       `json:"fit,omitempty"`
	Material  string    `json:"material,omitempty"`
	Tags      []string  `json:"tags"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Normalize trims text fields, applies the season default and cleans tags.
func (i *Item) Normalize() {
	i.Name = strings.TrimSpace(i.Name)
	i.Color = strings.TrimSpace(i.Color)
	i.Brand = strings.TrimSpace(i.Brand)
	i.Material = strings.TrimSpace(i.Material)
	if i.Season == "" {
		i.Season = SeasonAllSeason
	}
	i.Tags = NormalizeTags(i.Tags)
}

// Validate checks the fields required to create an item.
func (i Item) Validate() error {
	return validationError(validation.ValidateStruct(&i,
		validation.Field(&i.Name, validation.Required.Error("name is required"), validation.RuneLength(1, MaxNameLength)),
		validation.Field(&i.Category, validation.Required.Error("category is required"), validation.In(anySlice(Categories)...).Error("unknown category")),
		validation.Field(&i.Color, validation.Required.Error("color is required"), validation.RuneLength(1, MaxTextLength)),
		validation.Field(&i.Brand, validation.RuneLength(0, MaxTextLength)),
		validation.Field(&i.Material, validation.RuneLength(0, MaxTextLength)),
		validation.Field(&i.Season, validation.In(anySlice(Seasons)...).Error("unknown season")),
		validation.Field(&i.Fit, validation.In(anySlice(Fits)...).Error("unknown fit")),
		validation.Field(&i.Tags, tagsRule),
	))
}

// ItemPatch is a partial item update. Nil fields are left untouched; an
// empty string clears an optional field.
type ItemPatch struct {
	Name     *string   `json:"name"`
	Category *Category `json:"category"`
	Color    *string   `json:"color"`
	Brand    *string   `json:"brand"`
	Season   *Season   `json:"season"`
	Fit      *Fit      `json:"fit"`
	Material *string   `json:"material"`
	Tags     *[]string `json:"tags"`
	ImageURL *string   `json:"imageUrl"`
}

// Normalize trims the provided text fields and cleans tags.
func (p *ItemPatch) Normalize() {
	trimPtr(p.Name)
	trimPtr(p.Color)
	trimPtr(p.Brand)
	trimPtr(p.Material)
	if p.Tags != nil {
		tags := NormalizeTags(*p.Tags)
		p.Tags = &tags
	}
}

// Validate checks the provided fields. Required fields may be omitted but
// never set to empty.
func (p ItemPatch) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty.Error("name cannot be empty"), validation.RuneLength(1, MaxNameLength)),
		validation.Field(&p.Category, validation.NilOrNotEmpty.Error("category cannot be empty"), validation.In(anySlice(Categories)...).Error("unknown category")),
		validation.Field(&p.Color, validation.NilOrNotEmpty.Error("color cannot be empty"), validation.RuneLength(1, MaxTextLength)),
		validation.Field(&p.Brand, validation.RuneLength(0, MaxTextLength)),
		validation.Field(&p.Material, validation.RuneLength(0, MaxTextLength)),
		validation.Field(&p.Season, validation.NilOrNotEmpty.Error("season cannot be empty"), validation.In(anySlice(Seasons)...).Error("unknown season")),
		validation.Field(&p.Fit, validation.In(anySlice(Fits)...).Error("unknown fit")),
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

// Empty reports whether the patch changes no field.
func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Color == nil && p.Brand == nil &&
		p.Season == nil && p.Fit == nil && p.Material == nil && p.Tags == nil && p.ImageURL == nil
}

// Apply merges the patch onto item. ID and timestamps are never touched.
func (p ItemPatch) Apply(item *Item) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.Color != nil {
		item.Color = *p.Color
	}
	if p.Brand != nil {
		item.Brand = *p.Brand
	}
	if p.Season != nil {
		item.Season = *p.Season
	}
	if p.Fit != nil {
		item.Fit = *p.Fit
	}
	if p.Material != nil {
		item.Material = *p.Material
	}
	if p.Tags != nil {
		item.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.ImageURL != nil {
		item.ImageURL = *p.ImageURL
	}
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func anySlice[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
