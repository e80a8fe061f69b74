package notification

import (
	"context"
	"time"
)

// Kind identifies the lifecycle event a notification is about
type Kind string

const (
	KindSubscriptionCreated   Kind = "subscription.created"
	KindSubscriptionActivated Kind = "subscription.activated"
	KindSubscriptionExpired   Kind = "subscription.expired"
	KindSubscriptionCompleted Kind = "subscription.completed"
	KindSubscriptionRefunded  Kind = "subscription.refunded"
	KindRenewalSucceeded      Kind = "subscription.renewal_succeeded"
	KindRenewalFailed         Kind = "subscription.renewal_failed"
	KindMealDelivered         Kind = "meal.delivered"
	KindWalletTopUp           Kind = "wallet.top_up"
)

// Notification is a message for one user
type Notification struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	UserID    string         `json:"user_id"`
	Email     string         `json:"email,omitempty"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Notifier delivers notifications to users.
// Callers treat delivery as best effort and only log failures.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

type noopNotifier struct{}

// NewNoopNotifier returns a notifier that drops everything
func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) Notify(context.Context, *Notification) error { return nil }
