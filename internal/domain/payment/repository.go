package payment

import (
	"context"
)

// Repository persists payment ledger entries
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	// Update may only move the status forward; amounts are immutable
	Update(ctx context.Context, p *Payment) error
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*Payment, error)
}

// CustomerRepository stores card gateway customer handles
type CustomerRepository interface {
	GetByUserID(ctx context.Context, userID string) (*CustomerProfile, error)
	Upsert(ctx context.Context, profile *CustomerProfile) error
}
