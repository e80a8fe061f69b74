package testutil

import (
	"context"
	"time"

	"github.com/flexprice/mealsub/internal/domain/payment"
	ierr "github.com/flexprice/mealsub/internal/errors"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore(clonePayment),
	}
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if existing, _ := s.GetByIdempotencyKey(ctx, p.IdempotencyKey); existing != nil {
		return ierr.NewError("payment already recorded").
			WithHint("A payment with this idempotency key already exists").
			WithReportableDetails(map[string]any{"idempotency_key": p.IdempotencyKey}).
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPaymentStore) Update(ctx context.Context, p *payment.Payment) error {
	p.Touch(ctx)
	return s.InMemoryStore.Update(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	payments, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, p *payment.Payment) bool {
		return p.IdempotencyKey == key
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, ierr.NewErrorf("payment with key %s not found", key).
			WithHint("Payment was not found").
			Mark(ierr.ErrNotFound)
	}
	return payments[0], nil
}

func (s *InMemoryPaymentStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*payment.Payment, error) {
	return s.InMemoryStore.List(ctx, nil,
		func(_ context.Context, p *payment.Payment) bool { return p.SubscriptionID == subscriptionID },
		func(a, b *payment.Payment) bool { return a.CreatedAt.Before(b.CreatedAt) })
}

// InMemoryCustomerProfileStore implements payment.CustomerRepository
type InMemoryCustomerProfileStore struct {
	*InMemoryStore[*payment.CustomerProfile]
}

func NewInMemoryCustomerProfileStore() *InMemoryCustomerProfileStore {
	return &InMemoryCustomerProfileStore{
		InMemoryStore: NewInMemoryStore(cloneCustomerProfile),
	}
}

func (s *InMemoryCustomerProfileStore) GetByUserID(ctx context.Context, userID string) (*payment.CustomerProfile, error) {
	return s.InMemoryStore.Get(ctx, userID)
}

func (s *InMemoryCustomerProfileStore) Upsert(ctx context.Context, profile *payment.CustomerProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	if err := s.InMemoryStore.Update(ctx, profile.UserID, profile); err == nil {
		return nil
	}
	profile.CreatedAt = profile.UpdatedAt
	return s.InMemoryStore.Create(ctx, profile.UserID, profile)
}
