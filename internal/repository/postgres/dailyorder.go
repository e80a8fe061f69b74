package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/mealsub/internal/domain/dailyorder"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/postgres"
	"github.com/flexprice/mealsub/internal/types"
)

type dailyOrderRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewDailyOrderRepository(db *postgres.DB, logger *logger.Logger) dailyorder.Repository {
	return &dailyOrderRepository{
		db:     db,
		logger: logger,
	}
}

const dailyOrderColumns = `
	id, order_number, subscription_id, user_id, delivery_date, day_index,
	meals, locked, currency, total_amount, total_cost, profit, order_status,
	status, created_at, updated_at, created_by, updated_by`

var dailyOrderSortable = map[string]string{
	"created_at":    "created_at",
	"delivery_date": "delivery_date",
}

func (r *dailyOrderRepository) CreateMany(ctx context.Context, orders []*dailyorder.DailyOrder) error {
	if len(orders) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO daily_orders (%s) VALUES (%s)`,
		dailyOrderColumns, namedValues(dailyOrderColumns))

	r.logger.Debugw("creating daily orders",
		"subscription_id", orders[0].SubscriptionID,
		"count", len(orders),
	)

	for _, order := range orders {
		if _, err := r.db.NamedExecContext(ctx, query, order); err != nil {
			return createError(err, "daily order", map[string]any{
				"subscription_id": order.SubscriptionID,
				"delivery_date":   order.DeliveryDate,
			})
		}
	}
	return nil
}

func (r *dailyOrderRepository) Get(ctx context.Context, id string) (*dailyorder.DailyOrder, error) {
	var order dailyorder.DailyOrder
	err := r.db.NamedGetContext(ctx, &order,
		`SELECT * FROM daily_orders WHERE id = :id AND status = :status`,
		map[string]interface{}{
			"id":     id,
			"status": types.StatusPublished,
		})
	if err != nil {
		return nil, notFoundOrDatabase(err, "daily order", id)
	}
	return &order, nil
}

func (r *dailyOrderRepository) GetBySubscriptionAndDate(ctx context.Context, subscriptionID string, date time.Time) (*dailyorder.DailyOrder, error) {
	day := types.StartOfDay(date)

	var order dailyorder.DailyOrder
	err := r.db.NamedGetContext(ctx, &order, `
		SELECT * FROM daily_orders
		WHERE subscription_id = :subscription_id
		AND delivery_date = :delivery_date
		AND status = :status`,
		map[string]interface{}{
			"subscription_id": subscriptionID,
			"delivery_date":   day,
			"status":          types.StatusPublished,
		})
	if err != nil {
		return nil, notFoundOrDatabase(err, "daily order", fmt.Sprintf("%s@%s", subscriptionID, day.Format(time.DateOnly)))
	}
	return &order, nil
}

func (r *dailyOrderRepository) Update(ctx context.Context, order *dailyorder.DailyOrder) error {
	query := `
		UPDATE daily_orders SET
			meals = :meals,
			locked = :locked,
			total_amount = :total_amount,
			total_cost = :total_cost,
			profit = :profit,
			order_status = :order_status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND status = :status`

	order.Touch(ctx)

	r.logger.Debugw("updating daily order",
		"daily_order_id", order.ID,
		"order_status", order.OrderStatus,
	)

	result, err := r.db.NamedExecContext(ctx, query, order)
	if err != nil {
		return databaseError(err, "Failed to update daily order")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ierr.NewErrorf("daily order %s not found", order.ID).
			WithHintf("Daily order %s was not found", order.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *dailyOrderRepository) List(ctx context.Context, filter *types.DailyOrderFilter) ([]*dailyorder.DailyOrder, error) {
	where, params := dailyOrderWhere(filter)
	query := `SELECT * FROM daily_orders` + where + pagination(filter.QueryFilter, dailyOrderSortable)

	var orders []*dailyorder.DailyOrder
	if err := r.db.NamedSelectContext(ctx, &orders, query, params); err != nil {
		return nil, databaseError(err, "Failed to list daily orders")
	}
	return orders, nil
}

func (r *dailyOrderRepository) Count(ctx context.Context, filter *types.DailyOrderFilter) (int, error) {
	where, params := dailyOrderWhere(filter)
	count, err := namedCount(ctx, r.db, `SELECT COUNT(*) FROM daily_orders`+where, params)
	if err != nil {
		return 0, databaseError(err, "Failed to count daily orders")
	}
	return count, nil
}

func dailyOrderWhere(filter *types.DailyOrderFilter) (string, map[string]interface{}) {
	conditions := []string{"status = :status"}
	params := map[string]interface{}{"status": types.StatusPublished}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = :user_id")
		params["user_id"] = filter.UserID
	}
	if filter.SubscriptionID != "" {
		conditions = append(conditions, "subscription_id = :subscription_id")
		params["subscription_id"] = filter.SubscriptionID
	}
	if filter.From != nil {
		conditions = append(conditions, "delivery_date >= :from")
		params["from"] = types.StartOfDay(*filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, "delivery_date <= :to")
		params["to"] = types.StartOfDay(*filter.To)
	}
	return " WHERE " + strings.Join(conditions, " AND "), params
}

func (r *dailyOrderRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*dailyorder.DailyOrder, error) {
	var orders []*dailyorder.DailyOrder
	err := r.db.NamedSelectContext(ctx, &orders, `
		SELECT * FROM daily_orders
		WHERE subscription_id = :subscription_id AND status = :status
		ORDER BY delivery_date ASC`,
		map[string]interface{}{
			"subscription_id": subscriptionID,
			"status":          types.StatusPublished,
		})
	if err != nil {
		return nil, databaseError(err, "Failed to list daily orders")
	}
	return orders, nil
}

func (r *dailyOrderRepository) UpdateLockFlags(ctx context.Context, subscriptionID string, changeWindowDays int, today time.Time) (int, error) {
	query := `
		UPDATE daily_orders
		SET locked = (day_index >= :window OR delivery_date < :today), updated_at = NOW()
		WHERE subscription_id = :subscription_id
		AND status = :status
		AND locked <> (day_index >= :window OR delivery_date < :today)`

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"subscription_id": subscriptionID,
		"window":          changeWindowDays,
		"today":           types.StartOfDay(today),
		"status":          types.StatusPublished,
	})
	if err != nil {
		return 0, databaseError(err, "Failed to update meal locks")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, databaseError(err, "Failed to update meal locks")
	}
	return int(rows), nil
}

func (r *dailyOrderRepository) DeleteBySubscription(ctx context.Context, subscriptionID string) error {
	_, err := r.db.NamedExecContext(ctx, `
		UPDATE daily_orders
		SET status = :deleted, updated_at = NOW(), updated_by = :updated_by
		WHERE subscription_id = :subscription_id AND status = :status`,
		map[string]interface{}{
			"subscription_id": subscriptionID,
			"deleted":         types.StatusDeleted,
			"status":          types.StatusPublished,
			"updated_by":      types.GetUserID(ctx),
		})
	if err != nil {
		return databaseError(err, "Failed to delete daily orders")
	}
	return nil
}
