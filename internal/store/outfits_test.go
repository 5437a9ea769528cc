package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/omara/internal/model"
)

func createItems(t *testing.T, s *Store, names ...string) []string {
	t.Helper()
	var ids []string
	for _, name := range names {
		item, err := s.CreateItem(context.Background(), model.Item{
			Name: name, Category: model.CategoryTops, Color: "Black",
		})
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}
	return ids
}

func TestCreateOutfitResolvesItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := createItems(t, s, "Tee", "Jeans", "Sneakers")

	outfit, err := s.CreateOutfit(ctx, model.Outfit{Name: "Weekend", Tags: []string{"casual"}, Notes: "errands"}, ids)
	require.NoError(t, err)
	assert.NotEmpty(t, outfit.ID)
	assert.Equal(t, model.SeasonAllSeason, outfit.Season)
	assert.Equal(t, ids, outfit.ItemIDs())
	assert.Equal(t, "Tee", outfit.Items[0].Name)

	got, err := s.GetOutfit(ctx, outfit.ID)
	require.NoError(t, err)
	assert.Equal(t, outfit, got)
}

func TestCreateOutfitDropsUnknownAndRepeatedItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := createItems(t, s, "Tee", "Jeans")

	outfit, err := s.CreateOutfit(ctx, model.Outfit{Name: "Mixed"},
		[]string{ids[1], "ghost", ids[0], ids[1], ""})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1], ids[0]}, outfit.ItemIDs())
}

func TestCreateOutfitWithoutItems(t *testing.T) {
	s := newTestStore(t)
	outfit, err := s.CreateOutfit(context.Background(), model.Outfit{Name: "Empty"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, outfit.Items)
	assert.Empty(t, outfit.Items)
	assert.Equal(t, []string{}, outfit.Tags)
}

func TestGetMissingOutfit(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetOutfit(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateOutfitReplacesItems(t *testing.T) {
	s := newTestStore(t)
	tick(s)
	ctx := context.Background()
	ids := createItems(t, s, "A", "B", "C", "D")

	outfit, err := s.CreateOutfit(ctx, model.Outfit{Name: "Office"}, ids[:2])
	require.NoError(t, err)

	replacement := []string{ids[3], ids[2]}
	updated, err := s.UpdateOutfit(ctx, outfit.ID, model.OutfitPatch{ItemIDs: &replacement})
	require.NoError(t, err)
	assert.Equal(t, replacement, updated.ItemIDs())
	assert.Equal(t, "Office", updated.Name)
	assert.True(t, updated.UpdatedAt.After(outfit.UpdatedAt))

	got, err := s.GetOutfit(ctx, outfit.ID)
	require.NoError(t, err)
	assert.Equal(t, replacement, got.ItemIDs())
}

func TestUpdateOutfitKeepsItemsWhenNotProvided(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := createItems(t, s, "A", "B")

	outfit, err := s.CreateOutfit(ctx, model.Outfit{Name: "Office"}, ids)
	require.NoError(t, err)

	name := "Office Friday"
	notes := ""
	updated, err := s.UpdateOutfit(ctx, outfit.ID, model.OutfitPatch{Name: &name, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "Office Friday", updated.Name)
	assert.Equal(t, ids, updated.ItemIDs())
}

func TestUpdateOutfitWithEmptyListClearsItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := createItems(t, s, "A", "B")

	outfit, err := s.CreateOutfit(ctx, model.Outfit{Name: "Office"}, ids)
	require.NoError(t, err)

	none := []string{}
	updated, err := s.UpdateOutfit(ctx, outfit.ID, model.OutfitPatch{ItemIDs: &none})
	require.NoError(t, err)
	assert.Empty(t, updated.Items)
}

func TestUpdateMissingOutfit(t *testing.T) {
	s := newTestStore(t)
	name := "x"
	_, err := s.UpdateOutfit(context.Background(), "missing", model.OutfitPatch{Name: &name})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestDanglingReferenceIsFiltered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := createItems(t, s, "A", "B")

	outfit, err := s.CreateOutfit(ctx, model.Outfit{Name: "Pair"}, ids)
	require.NoError(t, err)

	require.NoError(t, s.DeleteItem(ctx, ids[1]))

	got, err := s.GetOutfit(ctx, outfit.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{ids[0]}, got.ItemIDs())

	list, err := s.ListOutfits(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{ids[0]}, list[0].ItemIDs())
}

func TestItemEditsShowThroughOutfits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := createItems(t, s, "A")

	outfit, err := s.CreateOutfit(ctx, model.Outfit{Name: "Solo"}, ids)
	require.NoError(t, err)

	renamed := "A (altered)"
	_, err = s.UpdateItem(ctx, ids[0], model.ItemPatch{Name: &renamed})
	require.NoError(t, err)

	got, err := s.GetOutfit(ctx, outfit.ID)
	require.NoError(t, err)
	assert.Equal(t, "A (altered)", got.Items[0].Name)
}

func TestDeleteOutfitLeavesItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := createItems(t, s, "A", "B")

	outfit, err := s.CreateOutfit(ctx, model.Outfit{Name: "Pair"}, ids)
	require.NoError(t, err)

	require.NoError(t, s.DeleteOutfit(ctx, outfit.ID))

	got, err := s.GetOutfit(ctx, outfit.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	var rows int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outfit_items WHERE outfit_id = ?`, outfit.ID).Scan(&rows))
	assert.Zero(t, rows)

	for _, id := range ids {
		item, err := s.GetItem(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, item)
	}

	err = s.DeleteOutfit(ctx, outfit.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestListOutfitsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	tick(s)
	ctx := context.Background()
	ids := createItems(t, s, "A", "B", "C")

	first, err := s.CreateOutfit(ctx, model.Outfit{Name: "first"}, ids[:2])
	require.NoError(t, err)
	second, err := s.CreateOutfit(ctx, model.Outfit{Name: "second"}, nil)
	require.NoError(t, err)
	third, err := s.CreateOutfit(ctx, model.Outfit{Name: "third"}, []string{ids[2], ids[0]})
	require.NoError(t, err)

	list, err := s.ListOutfits(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, first.ID, list[2].ID)
	assert.Equal(t, []string{ids[2], ids[0]}, list[0].ItemIDs())
	assert.Empty(t, list[1].Items)
	assert.Equal(t, ids[:2], list[2].ItemIDs())
}

func TestOutfitReplaceIsAtomicForReaders(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()
	ids := createItems(t, s, "A1", "A2", "B1", "B2", "B3")
	setA := ids[:2]
	setB := ids[2:]

	outfit, err := s.CreateOutfit(ctx, model.Outfit{Name: "Flip"}, setA)
	require.NoError(t, err)

	const rounds = 40
	var wg sync.WaitGroup
	done := make(chan struct{})
	failures := make(chan []string, 100)
	readErrs := make(chan error, 100)

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				got, err := s.GetOutfit(ctx, outfit.ID)
				if err == nil && got == nil {
					err = errors.New("outfit disappeared")
				}
				if err != nil {
					select {
					case readErrs <- err:
					default:
					}
					return
				}
				seen := got.ItemIDs()
				if !equal(seen, setA) && !equal(seen, setB) {
					select {
					case failures <- seen:
					default:
					}
				}
			}
		}()
	}

	for i := 0; i < rounds; i++ {
		next := setA
		if i%2 == 0 {
			next = setB
		}
		_, err := s.UpdateOutfit(ctx, outfit.ID, model.OutfitPatch{ItemIDs: &next})
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
	close(failures)
	close(readErrs)

	for seen := range failures {
		t.Errorf("reader observed a mixed association set: %v", seen)
	}
	for err := range readErrs {
		t.Errorf("reader failed during replace: %v", err)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
