package product

import (
	"github.com/flexprice/mealsub/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Product is a catalog meal as seen by the subscription engine.
// The catalog itself is owned elsewhere; this is the read model.
type Product struct {
	ID string `db:"id" json:"id"`

	Name string `db:"name" json:"name"`

	// MealType is the slot this product can fill
	MealType types.MealType `db:"meal_type" json:"meal_type"`

	// Tags are dietary preferences such as vegetarian or high_protein
	Tags pq.StringArray `db:"tags" json:"tags"`

	// Price is the list price of one meal
	Price decimal.Decimal `db:"price" json:"price" swaggertype:"string"`

	// CostPrice is the kitchen cost of one meal, used for profit accounting
	CostPrice decimal.Decimal `db:"cost_price" json:"cost_price" swaggertype:"string"`

	Currency string `db:"currency" json:"currency"`

	IsActive bool `db:"is_active" json:"is_active"`

	types.BaseModel
}

// HasAllTags reports whether the product carries every tag in prefs
func (p *Product) HasAllTags(prefs []string) bool {
	return lo.Every([]string(p.Tags), prefs)
}
