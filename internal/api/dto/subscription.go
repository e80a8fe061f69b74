package dto

import (
	"time"

	"github.com/flexprice/mealsub/internal/domain/subscription"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/flexprice/mealsub/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MealSelection is one explicitly chosen product for a meal slot
type MealSelection struct {
	MealType  types.MealType `json:"meal_type" validate:"required"`
	ProductID string         `json:"product_id" validate:"required"`
}

// DaySelection is the explicit choice for one calendar day
type DaySelection struct {
	Meals []MealSelection `json:"meals" validate:"required,min=1,dive"`
}

// CreateSubscriptionRequest is the single entry point for user checkout and
// admin created subscriptions
type CreateSubscriptionRequest struct {
	// UserID is only honoured on the admin route; checkout uses the caller
	UserID        string `json:"user_id,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty" validate:"omitempty,email"`

	PlanType string `json:"plan_type" validate:"required,max=100"`
	PlanName string `json:"plan_name" validate:"required,max=255"`

	// StartDate defaults to today. Checkout rejects a start before today.
	StartDate *time.Time `json:"start_date,omitempty"`

	// AllowBackdatedStart is set by the admin route only
	AllowBackdatedStart bool `json:"-"`

	// DurationDays may be omitted in explicit mode, where it is the number of days supplied
	DurationDays int `json:"duration_days,omitempty" validate:"omitempty,min=1,max=365"`

	// MealsPerDay may be omitted in auto mode, where it is the number of meal types
	MealsPerDay int `json:"meals_per_day,omitempty" validate:"omitempty,min=1,max=3"`

	SelectionMode types.SelectionMode `json:"selection_mode" validate:"required"`

	// Days carries the explicit selections, one entry per day
	Days []DaySelection `json:"days,omitempty" validate:"omitempty,dive"`

	// MealTypes and Preferences drive auto mode
	MealTypes   []types.MealType `json:"meal_types,omitempty"`
	Preferences []string         `json:"preferences,omitempty"`

	PaymentMethod types.PaymentMethod `json:"payment_method" validate:"required"`

	// PaymentMethodRef is the card handle to charge; the saved card is used when empty
	PaymentMethodRef string `json:"payment_method_ref,omitempty"`

	Currency  string `json:"currency,omitempty" validate:"omitempty,len=3"`
	AutoRenew bool   `json:"auto_renew"`

	// IdempotencyKey deduplicates retried checkouts
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"omitempty,max=255"`
}

// Validate checks the request and fills derived defaults in place
func (r *CreateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.SelectionMode.Validate(); err != nil {
		return err
	}
	if err := r.PaymentMethod.Validate(); err != nil {
		return err
	}
	if r.Currency == "" {
		r.Currency = types.DefaultCurrency
	}

	switch r.SelectionMode {
	case types.SelectionModeExplicit:
		return r.validateExplicit()
	case types.SelectionModeAuto:
		return r.validateAuto()
	}
	return nil
}

func (r *CreateSubscriptionRequest) validateExplicit() error {
	if len(r.Days) == 0 {
		return ierr.NewError("days are required in explicit mode").
			WithHint("Choose the meals for every day of the plan").
			Mark(ierr.ErrValidation)
	}
	if r.DurationDays == 0 {
		r.DurationDays = len(r.Days)
	}
	if r.DurationDays != len(r.Days) {
		return ierr.NewError("day selections do not match duration").
			WithHintf("Expected meals for %d days but got %d", r.DurationDays, len(r.Days)).
			WithReportableDetails(map[string]any{
				"duration_days": r.DurationDays,
				"days":          len(r.Days),
			}).
			Mark(ierr.ErrValidation)
	}
	if r.MealsPerDay == 0 {
		r.MealsPerDay = len(r.Days[0].Meals)
	}

	for i, day := range r.Days {
		if len(day.Meals) != r.MealsPerDay {
			return ierr.NewErrorf("day %d has %d meals, expected %d", i, len(day.Meals), r.MealsPerDay).
				WithHintf("Every day must have exactly %d meals", r.MealsPerDay).
				WithReportableDetails(map[string]any{
					"day_index":     i,
					"meals":         len(day.Meals),
					"meals_per_day": r.MealsPerDay,
				}).
				Mark(ierr.ErrValidation)
		}
		seen := make(map[types.MealType]struct{}, len(day.Meals))
		for _, meal := range day.Meals {
			if err := meal.MealType.Validate(); err != nil {
				return err
			}
			if _, dup := seen[meal.MealType]; dup {
				return ierr.NewErrorf("day %d repeats meal type %s", i, meal.MealType).
					WithHint("Each meal type can be chosen once per day").
					WithReportableDetails(map[string]any{
						"day_index": i,
						"meal_type": meal.MealType,
					}).
					Mark(ierr.ErrValidation)
			}
			seen[meal.MealType] = struct{}{}
		}
	}
	return nil
}

func (r *CreateSubscriptionRequest) validateAuto() error {
	if r.DurationDays == 0 {
		return ierr.NewError("duration_days is required in auto mode").
			WithHint("Plan duration is required").
			Mark(ierr.ErrValidation)
	}
	if len(r.MealTypes) == 0 {
		if r.MealsPerDay == 0 {
			return ierr.NewError("meal_types or meals_per_day is required in auto mode").
				WithHint("Choose which meals of the day to fill").
				Mark(ierr.ErrValidation)
		}
		r.MealTypes = types.MealTypes[:r.MealsPerDay]
	}
	r.MealTypes = lo.Uniq(r.MealTypes)
	for _, mt := range r.MealTypes {
		if err := mt.Validate(); err != nil {
			return err
		}
	}
	if r.MealsPerDay == 0 {
		r.MealsPerDay = len(r.MealTypes)
	}
	if r.MealsPerDay != len(r.MealTypes) {
		return ierr.NewError("meals_per_day does not match meal_types").
			WithHint("Meals per day must equal the number of meal types").
			WithReportableDetails(map[string]any{
				"meals_per_day": r.MealsPerDay,
				"meal_types":    r.MealTypes,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type SubscriptionResponse struct {
	*subscription.Subscription
}

// CreateSubscriptionResponse is returned from checkout
type CreateSubscriptionResponse struct {
	Subscription *SubscriptionResponse `json:"subscription"`
	DailyOrders  []*DailyOrderResponse `json:"daily_orders"`
	Payment      *PaymentResponse      `json:"payment"`
}

type ListSubscriptionsResponse = types.ListResponse[*SubscriptionResponse]

type FreezeSubscriptionRequest struct {
	Days   int    `json:"days" validate:"required,min=1,max=90"`
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

func (r *FreezeSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type CancelSubscriptionRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

func (r *CancelSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type RefundSubscriptionRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
	// Force lets an operator refund a cancelled, expired or completed subscription
	Force bool `json:"force,omitempty"`
}

func (r *RefundSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// RefundSubscriptionResponse carries the refunded subscription and the money movement
type RefundSubscriptionResponse struct {
	Subscription *SubscriptionResponse `json:"subscription"`
	RefundAmount decimal.Decimal       `json:"refund_amount" swaggertype:"string"`
	RefundID     string                `json:"refund_id,omitempty"`
	Payment      *PaymentResponse      `json:"payment,omitempty"`
}

type SettleCashPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required" swaggertype:"string"`
}

func (r *SettleCashPaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ierr.NewError("amount must be positive").
			WithHint("Settled amount must be greater than zero").
			WithReportableDetails(map[string]any{"amount": r.Amount}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type UpdateAutoRenewRequest struct {
	AutoRenew *bool `json:"auto_renew" validate:"required"`
}

func (r *UpdateAutoRenewRequest) Validate() error {
	return validator.ValidateRequest(r)
}
