package testutil

import (
	"context"
	"time"

	"github.com/flexprice/mealsub/internal/domain/dailyorder"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
)

// InMemoryDailyOrderStore implements dailyorder.Repository
type InMemoryDailyOrderStore struct {
	*InMemoryStore[*dailyorder.DailyOrder]
}

func NewInMemoryDailyOrderStore() *InMemoryDailyOrderStore {
	return &InMemoryDailyOrderStore{
		InMemoryStore: NewInMemoryStore(cloneDailyOrder),
	}
}

func (s *InMemoryDailyOrderStore) CreateMany(ctx context.Context, orders []*dailyorder.DailyOrder) error {
	for _, o := range orders {
		if existing, _ := s.GetBySubscriptionAndDate(ctx, o.SubscriptionID, o.DeliveryDate); existing != nil {
			return ierr.NewError("daily order already exists").
				WithHint("A daily order already exists for this day").
				WithReportableDetails(map[string]any{
					"subscription_id": o.SubscriptionID,
					"delivery_date":   o.DeliveryDate,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		if err := s.InMemoryStore.Create(ctx, o.ID, o); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryDailyOrderStore) Get(ctx context.Context, id string) (*dailyorder.DailyOrder, error) {
	o, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || o.Status != types.StatusPublished {
		return nil, ierr.NewErrorf("daily order %s not found", id).
			WithHintf("daily order %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return o, nil
}

func (s *InMemoryDailyOrderStore) GetBySubscriptionAndDate(ctx context.Context, subscriptionID string, date time.Time) (*dailyorder.DailyOrder, error) {
	day := types.StartOfDay(date)
	orders, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, o *dailyorder.DailyOrder) bool {
		return o.Status == types.StatusPublished &&
			o.SubscriptionID == subscriptionID &&
			o.DeliveryDate.Equal(day)
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ierr.NewErrorf("daily order for %s on %s not found", subscriptionID, day.Format(time.DateOnly)).
			WithHint("No daily order exists for that day").
			Mark(ierr.ErrNotFound)
	}
	return orders[0], nil
}

func (s *InMemoryDailyOrderStore) Update(ctx context.Context, order *dailyorder.DailyOrder) error {
	order.Touch(ctx)
	return s.InMemoryStore.Update(ctx, order.ID, order)
}

func dailyOrderFilterFn(filter *types.DailyOrderFilter) FilterFunc[*dailyorder.DailyOrder] {
	return func(_ context.Context, o *dailyorder.DailyOrder) bool {
		if o.Status != types.StatusPublished {
			return false
		}
		if filter == nil {
			return true
		}
		if filter.UserID != "" && o.UserID != filter.UserID {
			return false
		}
		if filter.SubscriptionID != "" && o.SubscriptionID != filter.SubscriptionID {
			return false
		}
		if filter.From != nil && o.DeliveryDate.Before(types.StartOfDay(*filter.From)) {
			return false
		}
		if filter.To != nil && o.DeliveryDate.After(types.StartOfDay(*filter.To)) {
			return false
		}
		return true
	}
}

func byDeliveryDate(a, b *dailyorder.DailyOrder) bool {
	if a.DeliveryDate.Equal(b.DeliveryDate) {
		return a.ID < b.ID
	}
	return a.DeliveryDate.Before(b.DeliveryDate)
}

func (s *InMemoryDailyOrderStore) List(ctx context.Context, filter *types.DailyOrderFilter) ([]*dailyorder.DailyOrder, error) {
	var page *types.QueryFilter
	if filter != nil {
		page = filter.QueryFilter
	}
	return s.InMemoryStore.List(ctx, page, dailyOrderFilterFn(filter), byDeliveryDate)
}

func (s *InMemoryDailyOrderStore) Count(ctx context.Context, filter *types.DailyOrderFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, dailyOrderFilterFn(filter))
}

func (s *InMemoryDailyOrderStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*dailyorder.DailyOrder, error) {
	return s.InMemoryStore.List(ctx, nil, dailyOrderFilterFn(&types.DailyOrderFilter{SubscriptionID: subscriptionID}), byDeliveryDate)
}

func (s *InMemoryDailyOrderStore) UpdateLockFlags(ctx context.Context, subscriptionID string, changeWindowDays int, today time.Time) (int, error) {
	day := types.StartOfDay(today)
	changed := s.Mutate(ctx,
		func(_ context.Context, o *dailyorder.DailyOrder) bool {
			locked := o.DayIndex >= changeWindowDays || o.DeliveryDate.Before(day)
			return o.Status == types.StatusPublished && o.SubscriptionID == subscriptionID && o.Locked != locked
		},
		func(o *dailyorder.DailyOrder) *dailyorder.DailyOrder {
			o.Locked = !o.Locked
			return o
		})
	return len(changed), nil
}

func (s *InMemoryDailyOrderStore) DeleteBySubscription(ctx context.Context, subscriptionID string) error {
	s.Mutate(ctx,
		func(_ context.Context, o *dailyorder.DailyOrder) bool {
			return o.Status == types.StatusPublished && o.SubscriptionID == subscriptionID
		},
		func(o *dailyorder.DailyOrder) *dailyorder.DailyOrder {
			o.Status = types.StatusDeleted
			return o
		})
	return nil
}
