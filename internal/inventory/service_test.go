package inventory

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items  map[int64]Item
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item)}
}

func (r *memoryRepo) Create(ctx context.Context, item Item) (Item, error) {
	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (r *memoryRepo) List(ctx context.Context, limit, offset int) ([]Item, int, error) {
	all := r.sorted()
	return all, len(all), nil
}

func (r *memoryRepo) Search(ctx context.Context, filter SearchFilter) ([]Item, error) {
	result := []Item{}
	for _, item := range r.sorted() {
		if filter.Name != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(filter.Name)) {
			continue
		}
		if filter.Description != "" && !strings.Contains(strings.ToLower(item.Description), strings.ToLower(filter.Description)) {
			continue
		}
		result = append(result, item)
	}
	return result, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, patch Patch) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Price != nil {
		item.Price = *patch.Price
	}
	r.items[id] = item
	return item, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.items[id]; !ok {
		return ErrItemNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memoryRepo) sorted() []Item {
	all := make([]Item, 0, len(r.items))
	for _, item := range r.items {
		all = append(all, item)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

func TestCreateTrimsName(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	item, err := svc.Create(context.Background(), 1, Item{Name: "  brake pad  ", Price: 49.99})
	require.NoError(t, err)
	require.Equal(t, "brake pad", item.Name)
	require.NotZero(t, item.ID)
}

func TestSearchMatchesSubstringCaseInsensitive(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, Item{Name: "Brake Pad", Price: 49.99})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, Item{Name: "Brake Rotor", Price: 120})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, Item{Name: "Oil Filter", Price: 12.50})
	require.NoError(t, err)

	items, err := svc.Search(ctx, SearchFilter{Name: "brake"})
	require.NoError(t, err)
	require.Len(t, items, 2)

	items, err = svc.Search(ctx, SearchFilter{Name: "  rotor "})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Brake Rotor", items[0].Name)

	items, err = svc.Search(ctx, SearchFilter{Name: "spark"})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestUpdateMissingItem(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	price := 10.0
	_, err := svc.Update(context.Background(), 1, 42, Patch{Price: &price})
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestDeleteMissingItem(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	err := svc.Delete(context.Background(), 1, 42)
	require.ErrorIs(t, err, ErrItemNotFound)
}
