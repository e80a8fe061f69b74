package subscription

import (
	"time"

	"github.com/flexprice/mealsub/internal/types"
	"github.com/shopspring/decimal"
)

// Subscription is the billing and entitlement record of one purchase cycle
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// UserID is the owner of the subscription
	UserID string `db:"user_id" json:"user_id"`

	// CustomerEmail receives lifecycle notifications when set
	CustomerEmail string `db:"customer_email" json:"customer_email,omitempty"`

	PlanType string `db:"plan_type" json:"plan_type"`
	PlanName string `db:"plan_name" json:"plan_name"`

	// SelectionMode records how the calendar was filled
	SelectionMode types.SelectionMode `db:"selection_mode" json:"selection_mode"`

	// MealTypes and Preferences drive auto-fill on renewal
	MealTypes   MealTypeList `db:"meal_types" json:"meal_types"`
	Preferences StringList   `db:"preferences" json:"preferences"`

	// StartDate is midnight UTC of the first meal day
	StartDate time.Time `db:"start_date" json:"start_date"`

	// EndDate is midnight UTC after the last meal day
	EndDate time.Time `db:"end_date" json:"end_date"`

	// DurationDays is derived from StartDate and EndDate on every save
	DurationDays int `db:"duration_days" json:"duration_days"`

	MealsPerDay int `db:"meals_per_day" json:"meals_per_day"`

	TotalMeals     int `db:"total_meals" json:"total_meals"`
	ConsumedMeals  int `db:"consumed_meals" json:"consumed_meals"`
	RemainingMeals int `db:"remaining_meals" json:"remaining_meals"`
	DeliveredMeals int `db:"delivered_meals" json:"delivered_meals"`

	// SwappableMeals counts undelivered meals still inside the change window
	SwappableMeals int `db:"swappable_meals" json:"swappable_meals"`

	// PendingDeliveries is max(RemainingMeals - SwappableMeals, 0)
	PendingDeliveries int `db:"pending_deliveries" json:"pending_deliveries"`

	PauseCount int        `db:"pause_count" json:"pause_count"`
	PausedAt   *time.Time `db:"paused_at" json:"paused_at,omitempty"`

	FrozenDays    int           `db:"frozen_days" json:"frozen_days"`
	FrozenUntil   *time.Time    `db:"frozen_until" json:"frozen_until,omitempty"`
	FreezeHistory FreezeHistory `db:"freeze_history" json:"freeze_history"`

	SwapHistory SwapHistory `db:"swap_history" json:"swap_history"`

	// Meals is the calendar, one entry per day
	Meals MealSlots `db:"meals" json:"meals"`

	Payment PaymentState `db:"payment_state" json:"payment"`

	Currency string `db:"currency" json:"currency"`

	// TotalPrice is the discounted amount charged for the cycle
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price" swaggertype:"string"`

	// TotalCost is the undiscounted kitchen cost of the cycle
	TotalCost decimal.Decimal `db:"total_cost" json:"total_cost" swaggertype:"string"`

	RefundAmount decimal.Decimal `db:"refund_amount" json:"refund_amount" swaggertype:"string"`
	RefundReason string          `db:"refund_reason" json:"refund_reason,omitempty"`
	RefundedAt   *time.Time      `db:"refunded_at" json:"refunded_at,omitempty"`

	CancelReason string     `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	AutoRenew    bool `db:"auto_renew" json:"auto_renew"`
	RenewalCount int  `db:"renewal_count" json:"renewal_count"`

	// SubscriptionStatus is the lifecycle status
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// Version is bumped on every update and guards read-modify-write races
	Version int `db:"version" json:"version"`

	types.BaseModel
}

// PaymentState is the payment summary embedded in the subscription
type PaymentState struct {
	Gateway          types.PaymentMethod `json:"gateway"`
	Status           types.PaymentStatus `json:"status"`
	AmountPaid       decimal.Decimal     `json:"amount_paid"`
	BalanceRemaining decimal.Decimal     `json:"balance_remaining"`
	DiscountPercent  decimal.Decimal     `json:"discount_percent"`
	TransactionID    string              `json:"transaction_id,omitempty"`
	PaymentID        string              `json:"payment_id,omitempty"`
}

// MealSlot is one calendar day of the subscription
type MealSlot struct {
	Date     time.Time  `json:"date"`
	DayIndex int        `json:"day_index"`
	Items    []SlotItem `json:"items"`
	Locked   bool       `json:"locked"`
}

// SlotItem is one meal inside a day, keyed by meal type
type SlotItem struct {
	MealType  types.MealType   `json:"meal_type"`
	ProductID string           `json:"product_id"`
	Status    types.MealStatus `json:"status"`
}

// Item returns the item for a meal type
func (m *MealSlot) Item(mealType types.MealType) (*SlotItem, bool) {
	for i := range m.Items {
		if m.Items[i].MealType == mealType {
			return &m.Items[i], true
		}
	}
	return nil, false
}

// FreezeEntry is one freeze period
type FreezeEntry struct {
	ID     string    `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

// SwapEntry records one product replacement
type SwapEntry struct {
	ID          string         `json:"id"`
	Date        time.Time      `json:"date"`
	MealType    types.MealType `json:"meal_type"`
	FromProduct string         `json:"from_product"`
	ToProduct   string         `json:"to_product"`
	SwappedAt   time.Time      `json:"swapped_at"`
}

// SlotForDate returns the calendar day matching date
func (s *Subscription) SlotForDate(date time.Time) (*MealSlot, bool) {
	day := types.StartOfDay(date)
	for i := range s.Meals {
		if s.Meals[i].Date.Equal(day) {
			return &s.Meals[i], true
		}
	}
	return nil, false
}

// CountMeals returns the number of meal items across the calendar
func (s *Subscription) CountMeals() int {
	total := 0
	for _, slot := range s.Meals {
		total += len(slot.Items)
	}
	return total
}
