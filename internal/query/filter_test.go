package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erazemk/omara/internal/model"
)

func wardrobe() []model.Item {
	return []model.Item{
		{ID: "1", Name: "Navy Polo", Category: model.CategoryTops, Color: "Navy", Brand: "Classic Co", Season: model.SeasonAllSeason},
		{ID: "2", Name: "Red Flannel Shirt", Category: model.CategoryTops, Color: "Red", Brand: "Outdoor Co", Season: model.SeasonFall},
		{ID: "3", Name: "Chinos", Category: model.CategoryBottoms, Color: "Navy Blue", Season: model.SeasonFall},
		{ID: "4", Name: "Rain Jacket", Category: model.CategoryOuterwear, Color: "Olive", Brand: "Navyline", Season: model.SeasonSpring},
		{ID: "5", Name: "Sneakers", Category: model.CategoryShoes, Color: "white", Season: model.SeasonAllSeason},
	}
}

func ids(items []model.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestApplyNoFilter(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(Apply(wardrobe(), Filter{})))
}

func TestApplySingleFields(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"category", Filter{Category: model.CategoryTops}, []string{"1", "2"}},
		{"season", Filter{Season: model.SeasonFall}, []string{"2", "3"}},
		{"color substring ignores case", Filter{Color: "NAVY"}, []string{"1", "3"}},
		{"search matches name", Filter{Search: "shirt"}, []string{"2"}},
		{"search matches brand", Filter{Search: "navyline"}, []string{"4"}},
		{"search matches color", Filter{Search: "WHITE"}, []string{"5"}},
		{"search across fields", Filter{Search: "navy"}, []string{"1", "3", "4"}},
		{"search without match", Filter{Search: "tuxedo"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(wardrobe(), tt.filter)))
		})
	}
}

func TestApplyMissingBrandNeverMatches(t *testing.T) {
	items := []model.Item{{ID: "x", Name: "Belt", Color: "Tan"}}
	assert.Empty(t, Apply(items, Filter{Search: "co"}))
}

func TestApplyConjunctionEqualsIntersection(t *testing.T) {
	filters := []Filter{
		{Category: model.CategoryTops, Season: model.SeasonFall},
		{Category: model.CategoryTops, Search: "navy"},
		{Season: model.SeasonFall, Color: "navy", Search: "chino"},
		{Category: model.CategoryShoes, Color: "red"},
	}
	for _, f := range filters {
		parts := []Filter{
			{Category: f.Category},
			{Season: f.Season},
			{Color: f.Color},
			{Search: f.Search},
		}
		want := wardrobe()
		for _, p := range parts {
			want = Apply(want, p)
		}
		assert.Equal(t, ids(want), ids(Apply(wardrobe(), f)), "filter %+v", f)
	}
}

func TestApplyKeepsInputOrder(t *testing.T) {
	items := wardrobe()
	items[0], items[4] = items[4], items[0]
	assert.Equal(t, []string{"5", "1"}, ids(Apply(items, Filter{Season: model.SeasonAllSeason})))
}
