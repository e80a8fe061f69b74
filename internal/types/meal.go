package types

import (
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/samber/lo"
)

// MealType is a meal position within a day
type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
)

// MealTypes lists the slots of a day in serving order
var MealTypes = []MealType{MealTypeBreakfast, MealTypeLunch, MealTypeDinner}

func (m MealType) String() string {
	return string(m)
}

func (m MealType) Validate() error {
	if !lo.Contains(MealTypes, m) {
		return ierr.NewError("invalid meal type").
			WithHint("Meal type must be breakfast, lunch or dinner").
			WithReportableDetails(map[string]any{
				"meal_type": m,
				"allowed":   MealTypes,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// MealStatus is the kitchen/dispatch status of a single meal
type MealStatus string

const (
	MealStatusScheduled  MealStatus = "scheduled"
	MealStatusPrepared   MealStatus = "prepared"
	MealStatusDispatched MealStatus = "dispatched"
	MealStatusDelivered  MealStatus = "delivered"
	MealStatusDelayed    MealStatus = "delayed"
)

func (m MealStatus) String() string {
	return string(m)
}

func (m MealStatus) Validate() error {
	allowed := []MealStatus{
		MealStatusScheduled,
		MealStatusPrepared,
		MealStatusDispatched,
		MealStatusDelivered,
		MealStatusDelayed,
	}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid meal status").
			WithHint("Invalid meal status").
			WithReportableDetails(map[string]any{
				"status":  m,
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// OrderStatus is the derived status of a daily order
type OrderStatus string

const (
	OrderStatusConfirmed          OrderStatus = "confirmed"
	OrderStatusPreparing          OrderStatus = "preparing"
	OrderStatusOutForDelivery     OrderStatus = "out_for_delivery"
	OrderStatusDelivered          OrderStatus = "delivered"
	OrderStatusDelayed            OrderStatus = "delayed"
	OrderStatusPartiallyDelivered OrderStatus = "partially_delivered"
)

func (o OrderStatus) String() string {
	return string(o)
}
