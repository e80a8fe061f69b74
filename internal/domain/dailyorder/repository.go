package dailyorder

import (
	"context"
	"time"

	"github.com/flexprice/mealsub/internal/types"
)

// Repository persists daily orders. There is at most one order per
// subscription and delivery date.
type Repository interface {
	CreateMany(ctx context.Context, orders []*DailyOrder) error
	Get(ctx context.Context, id string) (*DailyOrder, error)
	GetBySubscriptionAndDate(ctx context.Context, subscriptionID string, date time.Time) (*DailyOrder, error)
	Update(ctx context.Context, order *DailyOrder) error
	List(ctx context.Context, filter *types.DailyOrderFilter) ([]*DailyOrder, error)
	Count(ctx context.Context, filter *types.DailyOrderFilter) (int, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*DailyOrder, error)

	// UpdateLockFlags sets locked on every order of the subscription whose day
	// index is at or beyond changeWindowDays or whose date is before today,
	// and clears it on the rest.
	UpdateLockFlags(ctx context.Context, subscriptionID string, changeWindowDays int, today time.Time) (int, error)

	DeleteBySubscription(ctx context.Context, subscriptionID string) error
}
