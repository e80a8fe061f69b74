package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/mealsub/internal/domain/subscription"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/postgres"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/lib/pq"
)

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewSubscriptionRepository creates a new instance of subscription repository
func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

const subscriptionColumns = `
	id, user_id, customer_email, plan_type, plan_name, selection_mode,
	meal_types, preferences, start_date, end_date, duration_days, meals_per_day,
	total_meals, consumed_meals, remaining_meals, delivered_meals, swappable_meals, pending_deliveries,
	pause_count, paused_at, frozen_days, frozen_until, freeze_history, swap_history,
	meals, payment_state, currency, total_price, total_cost,
	refund_amount, refund_reason, refunded_at, cancel_reason, cancelled_at,
	auto_renew, renewal_count, subscription_status, version,
	status, created_at, updated_at, created_by, updated_by`

var subscriptionSortable = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"start_date": "start_date",
	"end_date":   "end_date",
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := fmt.Sprintf(`INSERT INTO subscriptions (%s) VALUES (%s)`,
		subscriptionColumns, namedValues(subscriptionColumns))

	r.logger.Debugw("creating subscription",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"status", sub.SubscriptionStatus,
	)

	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return createError(err, "subscription", map[string]any{"subscription_id": sub.ID})
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `SELECT * FROM subscriptions WHERE id = :id AND status = :status`

	var sub subscription.Subscription
	err := r.db.NamedGetContext(ctx, &sub, query, map[string]interface{}{
		"id":     id,
		"status": types.StatusPublished,
	})
	if err != nil {
		return nil, notFoundOrDatabase(err, "subscription", id)
	}
	return &sub, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions SET
			customer_email = :customer_email,
			plan_type = :plan_type,
			plan_name = :plan_name,
			selection_mode = :selection_mode,
			meal_types = :meal_types,
			preferences = :preferences,
			start_date = :start_date,
			end_date = :end_date,
			duration_days = :duration_days,
			meals_per_day = :meals_per_day,
			total_meals = :total_meals,
			consumed_meals = :consumed_meals,
			remaining_meals = :remaining_meals,
			delivered_meals = :delivered_meals,
			swappable_meals = :swappable_meals,
			pending_deliveries = :pending_deliveries,
			pause_count = :pause_count,
			paused_at = :paused_at,
			frozen_days = :frozen_days,
			frozen_until = :frozen_until,
			freeze_history = :freeze_history,
			swap_history = :swap_history,
			meals = :meals,
			payment_state = :payment_state,
			currency = :currency,
			total_price = :total_price,
			total_cost = :total_cost,
			refund_amount = :refund_amount,
			refund_reason = :refund_reason,
			refunded_at = :refunded_at,
			cancel_reason = :cancel_reason,
			cancelled_at = :cancelled_at,
			auto_renew = :auto_renew,
			renewal_count = :renewal_count,
			subscription_status = :subscription_status,
			version = version + 1,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND version = :version AND status = :status`

	r.logger.Debugw("updating subscription",
		"subscription_id", sub.ID,
		"version", sub.Version,
		"status", sub.SubscriptionStatus,
	)

	sub.Touch(ctx)

	result, err := r.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		return databaseError(err, "Failed to update subscription")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return databaseError(err, "Failed to update subscription")
	}
	if rows == 0 {
		return ierr.NewErrorf("subscription %s changed since version %d", sub.ID, sub.Version).
			WithHint("The subscription was modified by another request, please retry").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"version":         sub.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	sub.Version++
	return nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	where, params := subscriptionWhere(filter)
	query := `SELECT * FROM subscriptions` + where + pagination(filter.QueryFilter, subscriptionSortable)

	var subs []*subscription.Subscription
	if err := r.db.NamedSelectContext(ctx, &subs, query, params); err != nil {
		return nil, databaseError(err, "Failed to list subscriptions")
	}
	return subs, nil
}

func (r *subscriptionRepository) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	where, params := subscriptionWhere(filter)

	count, err := namedCount(ctx, r.db, `SELECT COUNT(*) FROM subscriptions`+where, params)
	if err != nil {
		return 0, databaseError(err, "Failed to count subscriptions")
	}
	return count, nil
}

func subscriptionWhere(filter *types.SubscriptionFilter) (string, map[string]interface{}) {
	conditions := []string{"status = :status"}
	params := map[string]interface{}{"status": types.StatusPublished}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = :user_id")
		params["user_id"] = filter.UserID
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		conditions = append(conditions, "subscription_status = ANY(:statuses)")
		params["statuses"] = pq.StringArray(statuses)
	}
	return " WHERE " + strings.Join(conditions, " AND "), params
}

func (r *subscriptionRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE subscriptions
		SET status = :deleted, updated_at = :updated_at, updated_by = :updated_by
		WHERE id = :id AND status = :status`

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":         id,
		"deleted":    types.StatusDeleted,
		"status":     types.StatusPublished,
		"updated_at": time.Now().UTC(),
		"updated_by": types.GetUserID(ctx),
	})
	if err != nil {
		return databaseError(err, "Failed to delete subscription")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ierr.NewErrorf("subscription %s not found", id).
			WithHintf("Subscription %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepository) ExpireDue(ctx context.Context, now time.Time, includeAutoRenew bool) ([]*subscription.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET subscription_status = :expired, version = version + 1, updated_at = :now
		WHERE subscription_status = :active
		AND status = :status
		AND end_date <= :now
		AND remaining_meals > 0
		AND (auto_renew = FALSE OR :include_auto_renew)
		RETURNING *`

	return r.bulkTransition(ctx, "expire", query, map[string]interface{}{
		"expired":            types.SubscriptionStatusExpired,
		"active":             types.SubscriptionStatusActive,
		"status":             types.StatusPublished,
		"now":                now,
		"include_auto_renew": includeAutoRenew,
	})
}

func (r *subscriptionRepository) CompleteExhausted(ctx context.Context) ([]*subscription.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET subscription_status = :completed, version = version + 1, updated_at = NOW()
		WHERE subscription_status = :active
		AND status = :status
		AND total_meals > 0
		AND remaining_meals = 0
		RETURNING *`

	return r.bulkTransition(ctx, "complete", query, map[string]interface{}{
		"completed": types.SubscriptionStatusCompleted,
		"active":    types.SubscriptionStatusActive,
		"status":    types.StatusPublished,
	})
}

func (r *subscriptionRepository) UnfreezeDue(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET subscription_status = :active, frozen_until = NULL, version = version + 1, updated_at = :now
		WHERE subscription_status = :frozen
		AND status = :status
		AND frozen_until <= :now
		RETURNING *`

	return r.bulkTransition(ctx, "unfreeze", query, map[string]interface{}{
		"active": types.SubscriptionStatusActive,
		"frozen": types.SubscriptionStatusFrozen,
		"status": types.StatusPublished,
		"now":    now,
	})
}

func (r *subscriptionRepository) bulkTransition(ctx context.Context, action, query string, params map[string]interface{}) ([]*subscription.Subscription, error) {
	var subs []*subscription.Subscription
	if err := r.db.NamedSelectContext(ctx, &subs, query, params); err != nil {
		return nil, databaseError(err, fmt.Sprintf("Failed to %s subscriptions", action))
	}

	r.logger.Debugw("bulk subscription transition",
		"action", action,
		"count", len(subs),
	)
	return subs, nil
}

func (r *subscriptionRepository) ListRenewalDue(ctx context.Context, now time.Time, limit int) ([]*subscription.Subscription, error) {
	query := `
		SELECT * FROM subscriptions
		WHERE subscription_status = :active
		AND status = :status
		AND auto_renew = TRUE
		AND end_date <= :now
		ORDER BY end_date ASC
		LIMIT :limit`

	var subs []*subscription.Subscription
	err := r.db.NamedSelectContext(ctx, &subs, query, map[string]interface{}{
		"active": types.SubscriptionStatusActive,
		"status": types.StatusPublished,
		"now":    now,
		"limit":  limit,
	})
	if err != nil {
		return nil, databaseError(err, "Failed to list subscriptions due for renewal")
	}
	return subs, nil
}

// namedValues turns a column list into the matching :column placeholders
func namedValues(columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = ":" + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
