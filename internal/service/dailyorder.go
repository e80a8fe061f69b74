package service

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/mealsub/internal/api/dto"
	"github.com/flexprice/mealsub/internal/domain/dailyorder"
	"github.com/flexprice/mealsub/internal/domain/subscription"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/notification"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/samber/lo"
)

// DailyOrderService owns the fulfillment projection of subscriptions.
// Every write that touches a meal keeps the subscription calendar and the
// daily order in step inside one transaction.
type DailyOrderService interface {
	GetDailyOrder(ctx context.Context, id string) (*dto.DailyOrderResponse, error)
	ListDailyOrders(ctx context.Context, filter *types.DailyOrderFilter) (*dto.ListDailyOrdersResponse, error)

	// SwapMeal replaces one meal of a subscription day with a random alternative
	SwapMeal(ctx context.Context, subscriptionID string, req *dto.SwapMealRequest) (*dto.SwapMealResponse, error)

	UpdateMealStatus(ctx context.Context, orderID string, req *dto.UpdateMealStatusRequest) (*dto.DailyOrderResponse, error)
	MarkMealDelivered(ctx context.Context, orderID string, mealType types.MealType) (*dto.DailyOrderResponse, error)
}

type dailyOrderService struct {
	ServiceParams
	settings SettingsService
	schedule ScheduleService
}

func NewDailyOrderService(params ServiceParams) DailyOrderService {
	settings := NewSettingsService(params)
	return &dailyOrderService{
		ServiceParams: params,
		settings:      settings,
		schedule:      NewScheduleService(params, settings),
	}
}

func (s *dailyOrderService) GetDailyOrder(ctx context.Context, id string) (*dto.DailyOrderResponse, error) {
	order, err := s.DailyOrderRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.DailyOrderResponse{DailyOrder: order}, nil
}

func (s *dailyOrderService) ListDailyOrders(ctx context.Context, filter *types.DailyOrderFilter) (*dto.ListDailyOrdersResponse, error) {
	if filter == nil {
		filter = types.NewDailyOrderFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	orders, err := s.DailyOrderRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.DailyOrderRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(orders, func(o *dailyorder.DailyOrder, _ int) *dto.DailyOrderResponse {
		return &dto.DailyOrderResponse{DailyOrder: o}
	})
	response := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &response, nil
}

func (s *dailyOrderService) SwapMeal(ctx context.Context, subscriptionID string, req *dto.SwapMealRequest) (*dto.SwapMealResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	date := types.StartOfDay(req.Date)

	s.Logger.Infow("swapping meal",
		"subscription_id", subscriptionID,
		"date", date.Format(time.DateOnly),
		"meal_type", req.MealType,
	)

	var response *dto.SwapMealResponse
	err := retryOnConflict(ctx, func() error {
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			sub, err := s.SubRepo.Get(ctx, subscriptionID)
			if err != nil {
				return err
			}

			order, err := s.DailyOrderRepo.GetBySubscriptionAndDate(ctx, subscriptionID, date)
			if ierr.IsNotFound(err) {
				return ierr.WithError(err).
					WithHintf("There is no %s on that day", req.MealType).
					WithReportableDetails(map[string]any{
						"subscription_id": subscriptionID,
						"date":            date.Format(time.DateOnly),
					}).
					Mark(ierr.ErrSlotNotFound)
			}
			if err != nil {
				return err
			}

			meal, ok := order.Meal(req.MealType)
			if !ok {
				return ierr.NewErrorf("order %s has no %s", order.ID, req.MealType).
					WithHintf("There is no %s on that day", req.MealType).
					WithReportableDetails(map[string]any{
						"order_id":  order.ID,
						"meal_type": req.MealType,
					}).
					Mark(ierr.ErrSlotNotFound)
			}

			current, err := sub.SwappableItem(date, req.MealType)
			if err != nil {
				return err
			}
			if order.Locked {
				return ierr.NewErrorf("order %s is locked", order.ID).
					WithHint("This meal can no longer be changed").
					WithReportableDetails(map[string]any{
						"order_id":  order.ID,
						"day_index": order.DayIndex,
					}).
					Mark(ierr.ErrMealLocked)
			}

			alt, err := s.schedule.PickAlternative(ctx, req.MealType, sub.Preferences, current.ProductID)
			if err != nil {
				return err
			}

			now := s.now()
			entry, err := sub.SwapMeal(date, req.MealType, alt.ID, now)
			if err != nil {
				return err
			}
			if err := derive(ctx, s.settings, sub, now); err != nil {
				return err
			}
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return err
			}

			// the slot is already paid for, so only the product and its kitchen cost change
			meal.ProductID = alt.ID
			meal.ProductName = alt.Name
			meal.CostPrice = alt.CostPrice
			order.Recompute()
			if err := s.DailyOrderRepo.Update(ctx, order); err != nil {
				return err
			}

			response = &dto.SwapMealResponse{
				Order:         &dto.DailyOrderResponse{DailyOrder: order},
				FromProductID: entry.FromProduct,
				ToProductID:   entry.ToProduct,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (s *dailyOrderService) MarkMealDelivered(ctx context.Context, orderID string, mealType types.MealType) (*dto.DailyOrderResponse, error) {
	return s.UpdateMealStatus(ctx, orderID, &dto.UpdateMealStatusRequest{
		MealType: mealType,
		Status:   types.MealStatusDelivered,
	})
}

func (s *dailyOrderService) UpdateMealStatus(ctx context.Context, orderID string, req *dto.UpdateMealStatusRequest) (*dto.DailyOrderResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		order     *dailyorder.DailyOrder
		sub       *subscription.Subscription
		delivered bool
	)
	err := retryOnConflict(ctx, func() error {
		sub, delivered = nil, false
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			var err error
			order, err = s.DailyOrderRepo.Get(ctx, orderID)
			if err != nil {
				return err
			}

			meal, ok := order.Meal(req.MealType)
			if !ok {
				return ierr.NewErrorf("order %s has no %s", order.ID, req.MealType).
					WithHintf("This order has no %s", req.MealType).
					WithReportableDetails(map[string]any{
						"order_id":  order.ID,
						"meal_type": req.MealType,
					}).
					Mark(ierr.ErrSlotNotFound)
			}

			if meal.Status == types.MealStatusDelivered {
				if req.Status == types.MealStatusDelivered {
					return nil
				}
				return ierr.NewErrorf("meal %s of order %s is already delivered", req.MealType, order.ID).
					WithHint("A delivered meal cannot change status").
					WithReportableDetails(map[string]any{
						"order_id":  order.ID,
						"meal_type": req.MealType,
						"status":    req.Status,
					}).
					Mark(ierr.ErrStateConflict)
			}

			if req.Status == types.MealStatusDelivered {
				sub, err = s.SubRepo.Get(ctx, order.SubscriptionID)
				if err != nil {
					return err
				}
				if err := sub.CanDeliver(); err != nil {
					return err
				}
			}

			now := s.now()
			meal.SetMealStatus(req.Status, now, types.GetUserID(ctx), req.Note)
			order.Recompute()
			if err := s.DailyOrderRepo.Update(ctx, order); err != nil {
				return err
			}

			if sub == nil {
				return nil
			}
			sub.ConsumeMeal(order.DeliveryDate, req.MealType)
			if err := derive(ctx, s.settings, sub, now); err != nil {
				return err
			}
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return err
			}
			delivered = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("meal status updated",
		"order_id", order.ID,
		"subscription_id", order.SubscriptionID,
		"meal_type", req.MealType,
		"status", req.Status,
		"order_status", order.OrderStatus,
	)

	if delivered {
		s.notify(ctx, &notification.Notification{
			Kind:    notification.KindMealDelivered,
			UserID:  order.UserID,
			Email:   sub.CustomerEmail,
			Title:   "Meal delivered",
			Message: fmt.Sprintf("Your %s for %s has been delivered.", req.MealType, order.DeliveryDate.Format(time.DateOnly)),
			Data: map[string]any{
				"order_id":        order.ID,
				"subscription_id": order.SubscriptionID,
				"meal_type":       req.MealType,
			},
		})
		if sub.SubscriptionStatus == types.SubscriptionStatusCompleted {
			s.notify(ctx, subscriptionNotification(notification.KindSubscriptionCompleted, sub,
				"Subscription completed",
				fmt.Sprintf("All meals of your %s plan have been delivered.", sub.PlanName),
			))
		}
	}

	return &dto.DailyOrderResponse{DailyOrder: order}, nil
}
