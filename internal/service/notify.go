package service

import (
	"context"

	"github.com/flexprice/mealsub/internal/domain/subscription"
	"github.com/flexprice/mealsub/internal/notification"
)

// notify delivers n and only logs failures. Delivery is never part of the
// state change that triggered it.
func (p ServiceParams) notify(ctx context.Context, n *notification.Notification) {
	if p.Notifier == nil {
		return
	}
	if err := p.Notifier.Notify(ctx, n); err != nil {
		p.Logger.Warnw("failed to send notification",
			"kind", n.Kind,
			"user_id", n.UserID,
			"error", err,
		)
	}
}

func subscriptionNotification(kind notification.Kind, sub *subscription.Subscription, title, message string) *notification.Notification {
	return &notification.Notification{
		Kind:    kind,
		UserID:  sub.UserID,
		Email:   sub.CustomerEmail,
		Title:   title,
		Message: message,
		Data: map[string]any{
			"subscription_id": sub.ID,
			"status":          sub.SubscriptionStatus,
			"plan_name":       sub.PlanName,
		},
	}
}
