package service

import (
	"context"

	"github.com/flexprice/mealsub/internal/domain/product"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PriceQuote is the result of pricing one plan cycle
type PriceQuote struct {
	// RawTotal is the sum of list prices before discount
	RawTotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	// TotalPrice is RawTotal with the discount applied once, rounded to the minor unit
	TotalPrice decimal.Decimal
	// TotalCost is the undiscounted sum of cost prices
	TotalCost decimal.Decimal
}

// DiscountAmount is the money taken off the raw total
func (q *PriceQuote) DiscountAmount() decimal.Decimal {
	return q.RawTotal.Sub(q.TotalPrice)
}

// MealPrice applies the quote's discount to one list price
func (q *PriceQuote) MealPrice(listPrice decimal.Decimal) decimal.Decimal {
	return applyDiscount(listPrice, q.DiscountPercent)
}

// CalculatePrice prices a calendar given one product per scheduled meal.
// The discount is looked up by exact duration; unmatched durations get none.
func CalculatePrice(meals []*product.Product, durationDays int, slabs types.DiscountSlabsConfig) *PriceQuote {
	raw := decimal.Zero
	cost := decimal.Zero
	for _, p := range meals {
		raw = raw.Add(p.Price)
		cost = cost.Add(p.CostPrice)
	}

	pct := slabs.PercentFor(durationDays)
	return &PriceQuote{
		RawTotal:        raw,
		DiscountPercent: pct,
		TotalPrice:      applyDiscount(raw, pct),
		TotalCost:       cost,
	}
}

func applyDiscount(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(hundred.Sub(pct)).Div(hundred).Round(2)
}

// PricingService prices plans against the configured discount slabs
type PricingService interface {
	Quote(ctx context.Context, meals []*product.Product, durationDays int) (*PriceQuote, error)
}

type pricingService struct {
	ServiceParams
	settings SettingsService
}

func NewPricingService(params ServiceParams, settings SettingsService) PricingService {
	return &pricingService{
		ServiceParams: params,
		settings:      settings,
	}
}

func (s *pricingService) Quote(ctx context.Context, meals []*product.Product, durationDays int) (*PriceQuote, error) {
	slabs, err := s.settings.DiscountSlabs(ctx)
	if err != nil {
		return nil, err
	}
	return CalculatePrice(meals, durationDays, slabs), nil
}
