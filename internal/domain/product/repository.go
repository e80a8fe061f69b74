package product

import (
	"context"

	"github.com/flexprice/mealsub/internal/types"
)

// Repository is the product catalog as consumed by the schedule generator
type Repository interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, id string) (*Product, error)
	// GetByIDs returns the products found, keyed by id. Missing ids are absent from the map.
	GetByIDs(ctx context.Context, ids []string) (map[string]*Product, error)
	// FindActive returns active products matching the meal types and carrying every preference tag
	FindActive(ctx context.Context, filter *types.ProductFilter) ([]*Product, error)
}
