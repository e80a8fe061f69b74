package testutil

import (
	"context"

	"github.com/flexprice/mealsub/internal/domain/product"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/samber/lo"
)

// InMemoryProductStore implements product.Repository
type InMemoryProductStore struct {
	*InMemoryStore[*product.Product]
}

func NewInMemoryProductStore() *InMemoryProductStore {
	return &InMemoryProductStore{
		InMemoryStore: NewInMemoryStore(cloneProduct),
	}
}

func (s *InMemoryProductStore) Create(ctx context.Context, p *product.Product) error {
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryProductStore) Get(ctx context.Context, id string) (*product.Product, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryProductStore) GetByIDs(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	products, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, p *product.Product) bool {
		return lo.Contains(ids, p.ID) && p.Status == types.StatusPublished
	}, nil)
	if err != nil {
		return nil, err
	}
	return lo.KeyBy(products, func(p *product.Product) string { return p.ID }), nil
}

func (s *InMemoryProductStore) FindActive(ctx context.Context, filter *types.ProductFilter) ([]*product.Product, error) {
	return s.InMemoryStore.List(ctx, nil,
		func(_ context.Context, p *product.Product) bool {
			if !p.IsActive || p.Status != types.StatusPublished {
				return false
			}
			if len(filter.MealTypes) > 0 && !lo.Contains(filter.MealTypes, p.MealType) {
				return false
			}
			return p.HasAllTags(filter.Preferences)
		},
		func(a, b *product.Product) bool { return a.ID < b.ID })
}
