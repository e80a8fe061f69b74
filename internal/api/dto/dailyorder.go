package dto

import (
	"time"

	"github.com/flexprice/mealsub/internal/domain/dailyorder"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/flexprice/mealsub/internal/validator"
)

type DailyOrderResponse struct {
	*dailyorder.DailyOrder
}

type ListDailyOrdersResponse = types.ListResponse[*DailyOrderResponse]

// SwapMealRequest asks for a random replacement of one meal
type SwapMealRequest struct {
	Date     time.Time      `json:"date" validate:"required"`
	MealType types.MealType `json:"meal_type" validate:"required"`
}

func (r *SwapMealRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.MealType.Validate()
}

type SwapMealResponse struct {
	Order         *DailyOrderResponse `json:"order"`
	FromProductID string              `json:"from_product_id"`
	ToProductID   string              `json:"to_product_id"`
}

// UpdateMealStatusRequest is sent by the dispatch system
type UpdateMealStatusRequest struct {
	MealType types.MealType   `json:"meal_type" validate:"required"`
	Status   types.MealStatus `json:"status" validate:"required"`
	Note     string           `json:"note,omitempty" validate:"omitempty,max=500"`
}

func (r *UpdateMealStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.MealType.Validate(); err != nil {
		return err
	}
	return r.Status.Validate()
}
