package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/flexprice/mealsub/internal/domain/subscription"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
	// casMu makes the version check and the write in Update one step
	casMu sync.Mutex

	hookMu     sync.Mutex
	nextUpdate func(ctx context.Context)
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore(cloneSubscription),
	}
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	return s.InMemoryStore.Create(ctx, sub.ID, sub)
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || sub.Status != types.StatusPublished {
		return nil, ierr.NewErrorf("subscription %s not found", id).
			WithHintf("subscription %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return sub, nil
}

// OnNextUpdate runs fn once at the start of the next Update, before the
// version check. Writes made by fn land between a caller's read and its write.
func (s *InMemorySubscriptionStore) OnNextUpdate(fn func(ctx context.Context)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.nextUpdate = fn
}

func (s *InMemorySubscriptionStore) takeUpdateHook() func(ctx context.Context) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	fn := s.nextUpdate
	s.nextUpdate = nil
	return fn
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	if hook := s.takeUpdateHook(); hook != nil {
		hook(ctx)
	}

	s.casMu.Lock()
	defer s.casMu.Unlock()

	current, err := s.Get(ctx, sub.ID)
	if err != nil {
		return err
	}
	if current.Version != sub.Version {
		return ierr.NewErrorf("subscription %s changed since version %d", sub.ID, sub.Version).
			WithHint("The subscription was modified by another request, please retry").
			Mark(ierr.ErrVersionConflict)
	}

	sub.Version++
	sub.Touch(ctx)
	if err := s.InMemoryStore.Update(ctx, sub.ID, sub); err != nil {
		sub.Version--
		return err
	}
	return nil
}

func subscriptionFilterFn(filter *types.SubscriptionFilter) FilterFunc[*subscription.Subscription] {
	return func(_ context.Context, sub *subscription.Subscription) bool {
		if sub.Status != types.StatusPublished {
			return false
		}
		if filter == nil {
			return true
		}
		if filter.UserID != "" && sub.UserID != filter.UserID {
			return false
		}
		if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, sub.SubscriptionStatus) {
			return false
		}
		return true
	}
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	var page *types.QueryFilter
	if filter != nil {
		page = filter.QueryFilter
	}
	return s.InMemoryStore.List(ctx, page, subscriptionFilterFn(filter), func(a, b *subscription.Subscription) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func (s *InMemorySubscriptionStore) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, subscriptionFilterFn(filter))
}

func (s *InMemorySubscriptionStore) Delete(ctx context.Context, id string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sub.Status = types.StatusDeleted
	return s.InMemoryStore.Update(ctx, id, sub)
}

func (s *InMemorySubscriptionStore) transition(ctx context.Context, match func(*subscription.Subscription) bool, apply func(*subscription.Subscription)) []*subscription.Subscription {
	s.casMu.Lock()
	defer s.casMu.Unlock()

	return s.Mutate(ctx,
		func(_ context.Context, sub *subscription.Subscription) bool {
			return sub.Status == types.StatusPublished && match(sub)
		},
		func(sub *subscription.Subscription) *subscription.Subscription {
			apply(sub)
			sub.Version++
			sub.Touch(ctx)
			return sub
		})
}

func (s *InMemorySubscriptionStore) ExpireDue(ctx context.Context, now time.Time, includeAutoRenew bool) ([]*subscription.Subscription, error) {
	return s.transition(ctx,
		func(sub *subscription.Subscription) bool {
			return sub.SubscriptionStatus == types.SubscriptionStatusActive &&
				!sub.EndDate.After(now) &&
				sub.RemainingMeals > 0 &&
				(!sub.AutoRenew || includeAutoRenew)
		},
		func(sub *subscription.Subscription) {
			sub.SubscriptionStatus = types.SubscriptionStatusExpired
		}), nil
}

func (s *InMemorySubscriptionStore) CompleteExhausted(ctx context.Context) ([]*subscription.Subscription, error) {
	return s.transition(ctx,
		func(sub *subscription.Subscription) bool {
			return sub.SubscriptionStatus == types.SubscriptionStatusActive &&
				sub.TotalMeals > 0 &&
				sub.RemainingMeals == 0
		},
		func(sub *subscription.Subscription) {
			sub.SubscriptionStatus = types.SubscriptionStatusCompleted
		}), nil
}

func (s *InMemorySubscriptionStore) UnfreezeDue(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	return s.transition(ctx,
		func(sub *subscription.Subscription) bool {
			return sub.SubscriptionStatus == types.SubscriptionStatusFrozen &&
				sub.FrozenUntil != nil &&
				!sub.FrozenUntil.After(now)
		},
		func(sub *subscription.Subscription) {
			sub.SubscriptionStatus = types.SubscriptionStatusActive
			sub.FrozenUntil = nil
		}), nil
}

func (s *InMemorySubscriptionStore) ListRenewalDue(ctx context.Context, now time.Time, limit int) ([]*subscription.Subscription, error) {
	subs, err := s.InMemoryStore.List(ctx, nil,
		func(_ context.Context, sub *subscription.Subscription) bool {
			return sub.Status == types.StatusPublished &&
				sub.SubscriptionStatus == types.SubscriptionStatusActive &&
				sub.AutoRenew &&
				!sub.EndDate.After(now)
		},
		func(a, b *subscription.Subscription) bool { return a.EndDate.Before(b.EndDate) })
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}
