package dailyorder

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/flexprice/mealsub/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// DailyOrder is the fulfillment record for one subscription day
type DailyOrder struct {
	ID             string    `db:"id" json:"id"`
	OrderNumber    string    `db:"order_number" json:"order_number"`
	SubscriptionID string    `db:"subscription_id" json:"subscription_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	DeliveryDate   time.Time `db:"delivery_date" json:"delivery_date"`
	DayIndex       int       `db:"day_index" json:"day_index"`

	Meals OrderMeals `db:"meals" json:"meals"`

	// Locked mirrors the subscription calendar; locked orders cannot be swapped
	Locked bool `db:"locked" json:"locked"`

	Currency string `db:"currency" json:"currency"`

	// Totals are recomputed from Meals on every write
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount" swaggertype:"string"`
	TotalCost   decimal.Decimal `db:"total_cost" json:"total_cost" swaggertype:"string"`
	Profit      decimal.Decimal `db:"profit" json:"profit" swaggertype:"string"`

	OrderStatus types.OrderStatus `db:"order_status" json:"order_status"`

	types.BaseModel
}

// OrderMeal is one meal line of a daily order
type OrderMeal struct {
	MealType      types.MealType   `json:"meal_type"`
	ProductID     string           `json:"product_id"`
	ProductName   string           `json:"product_name"`
	Quantity      int              `json:"quantity"`
	Price         decimal.Decimal  `json:"price"`
	CostPrice     decimal.Decimal  `json:"cost_price"`
	Status        types.MealStatus `json:"status"`
	StatusHistory []StatusChange   `json:"status_history"`
}

// StatusChange is one entry in a meal status trail
type StatusChange struct {
	Status    types.MealStatus `json:"status"`
	ChangedAt time.Time        `json:"changed_at"`
	ChangedBy string           `json:"changed_by,omitempty"`
	Note      string           `json:"note,omitempty"`
}

type OrderMeals []OrderMeal

func (m *OrderMeals) Scan(src interface{}) error { return types.ScanJSONB(src, m) }

func (m OrderMeals) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]OrderMeal(m))
}

// Meal returns the line for a meal type
func (o *DailyOrder) Meal(mealType types.MealType) (*OrderMeal, bool) {
	for i := range o.Meals {
		if o.Meals[i].MealType == mealType {
			return &o.Meals[i], true
		}
	}
	return nil, false
}

// SetMealStatus moves a meal to status and appends the change to its trail
func (m *OrderMeal) SetMealStatus(status types.MealStatus, at time.Time, by, note string) {
	m.Status = status
	m.StatusHistory = append(m.StatusHistory, StatusChange{
		Status:    status,
		ChangedAt: at,
		ChangedBy: by,
		Note:      note,
	})
}

// Recompute refreshes the monetary totals and the aggregate order status
func (o *DailyOrder) Recompute() {
	total := decimal.Zero
	cost := decimal.Zero
	for _, m := range o.Meals {
		qty := decimal.NewFromInt(int64(m.Quantity))
		total = total.Add(m.Price.Mul(qty))
		cost = cost.Add(m.CostPrice.Mul(qty))
	}
	o.TotalAmount = total
	o.TotalCost = cost
	o.Profit = total.Sub(cost)
	o.OrderStatus = DeriveOrderStatus(o.Meals)
}

// DeriveOrderStatus folds meal statuses into the order status
func DeriveOrderStatus(meals []OrderMeal) types.OrderStatus {
	if len(meals) == 0 {
		return types.OrderStatusConfirmed
	}

	has := func(s types.MealStatus) bool {
		return lo.SomeBy(meals, func(m OrderMeal) bool { return m.Status == s })
	}
	all := func(s types.MealStatus) bool {
		return lo.EveryBy(meals, func(m OrderMeal) bool { return m.Status == s })
	}

	settled := lo.EveryBy(meals, func(m OrderMeal) bool {
		return m.Status == types.MealStatusDelivered || m.Status == types.MealStatusDelayed
	})

	switch {
	case all(types.MealStatusDelivered):
		return types.OrderStatusDelivered
	case all(types.MealStatusDelayed):
		return types.OrderStatusDelayed
	case settled:
		return types.OrderStatusPartiallyDelivered
	case has(types.MealStatusDispatched):
		return types.OrderStatusOutForDelivery
	case has(types.MealStatusPrepared):
		return types.OrderStatusPreparing
	default:
		return types.OrderStatusConfirmed
	}
}
