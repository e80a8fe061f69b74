package postgres

import (
	"context"
	"strings"

	"github.com/flexprice/mealsub/internal/cache"
	"github.com/flexprice/mealsub/internal/domain/product"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/postgres"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

type productRepository struct {
	db     *postgres.DB
	logger *logger.Logger
	cache  cache.Cache
}

// NewProductRepository caches single product reads. The catalog is managed
// outside this service, so edits show up after the cache TTL.
func NewProductRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) product.Repository {
	return &productRepository{
		db:     db,
		logger: logger,
		cache:  cache,
	}
}

func (r *productRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO products (
			id, name, meal_type, tags, price, cost_price, currency, is_active,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :name, :meal_type, :tags, :price, :cost_price, :currency, :is_active,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`, p)
	if err != nil {
		return createError(err, "product", map[string]any{"product_id": p.ID})
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (*product.Product, error) {
	key := cache.GenerateKey(cache.PrefixProduct, id)
	if cached, ok := cache.Fetch[*product.Product](ctx, r.cache, key); ok {
		return cached, nil
	}

	var p product.Product
	err := r.db.NamedGetContext(ctx, &p,
		`SELECT * FROM products WHERE id = :id AND status = :status`,
		map[string]interface{}{"id": id, "status": types.StatusPublished})
	if err != nil {
		return nil, notFoundOrDatabase(err, "product", id)
	}
	if r.cache != nil {
		r.cache.Set(ctx, key, &p, 0)
	}
	return &p, nil
}

func (r *productRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	if len(ids) == 0 {
		return map[string]*product.Product{}, nil
	}

	var products []*product.Product
	err := r.db.NamedSelectContext(ctx, &products,
		`SELECT * FROM products WHERE id = ANY(:ids) AND status = :status`,
		map[string]interface{}{
			"ids":    pq.StringArray(lo.Uniq(ids)),
			"status": types.StatusPublished,
		})
	if err != nil {
		return nil, databaseError(err, "Failed to get products")
	}
	return lo.KeyBy(products, func(p *product.Product) string { return p.ID }), nil
}

func (r *productRepository) FindActive(ctx context.Context, filter *types.ProductFilter) ([]*product.Product, error) {
	conditions := []string{"status = :status", "is_active = TRUE"}
	params := map[string]interface{}{"status": types.StatusPublished}

	if len(filter.MealTypes) > 0 {
		conditions = append(conditions, "meal_type = ANY(:meal_types)")
		params["meal_types"] = pq.StringArray(lo.Map(filter.MealTypes, func(m types.MealType, _ int) string {
			return string(m)
		}))
	}
	if len(filter.Preferences) > 0 {
		conditions = append(conditions, "tags @> :preferences")
		params["preferences"] = pq.StringArray(filter.Preferences)
	}

	query := `SELECT * FROM products WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY id ASC`

	var products []*product.Product
	if err := r.db.NamedSelectContext(ctx, &products, query, params); err != nil {
		return nil, databaseError(err, "Failed to find products")
	}
	return products, nil
}
