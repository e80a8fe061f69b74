package subscription

import (
	"context"
	"time"

	"github.com/flexprice/mealsub/internal/types"
)

// Repository persists subscriptions.
// Update is a compare-and-set on Version: it fails with ierr.ErrVersionConflict
// when the stored version no longer matches and bumps Version on success.
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
	Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error)
	Delete(ctx context.Context, id string) error

	// ExpireDue moves active subscriptions whose end date has passed with meals
	// left to expired and returns them. Auto-renewing subscriptions are skipped
	// unless includeAutoRenew is set.
	ExpireDue(ctx context.Context, now time.Time, includeAutoRenew bool) ([]*Subscription, error)

	// CompleteExhausted moves active subscriptions with no remaining meals to completed
	CompleteExhausted(ctx context.Context) ([]*Subscription, error)

	// UnfreezeDue moves frozen subscriptions whose freeze has ended back to active
	UnfreezeDue(ctx context.Context, now time.Time) ([]*Subscription, error)

	// ListRenewalDue returns active auto-renewing subscriptions whose end date has passed
	ListRenewalDue(ctx context.Context, now time.Time, limit int) ([]*Subscription, error)
}
