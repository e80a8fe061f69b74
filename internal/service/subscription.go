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
	"github.com/shopspring/decimal"
)

// SubscriptionService is the subscription lifecycle manager
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.CreateSubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)
	ListPayments(ctx context.Context, id string) (*dto.ListPaymentsResponse, error)

	PauseSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ResumeSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	FreezeSubscription(ctx context.Context, id string, req *dto.FreezeSubscriptionRequest) (*dto.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, id string, req *dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error)
	RefundSubscription(ctx context.Context, id string, req *dto.RefundSubscriptionRequest) (*dto.RefundSubscriptionResponse, error)
	SettleCashPayment(ctx context.Context, id string, req *dto.SettleCashPaymentRequest) (*dto.SubscriptionResponse, error)
	UpdateAutoRenew(ctx context.Context, id string, req *dto.UpdateAutoRenewRequest) (*dto.SubscriptionResponse, error)

	// DeleteSubscription removes a subscription and its daily orders. Admin only.
	DeleteSubscription(ctx context.Context, id string) error
}

type subscriptionService struct {
	ServiceParams
	settings SettingsService
	schedule ScheduleService
	pricing  PricingService
	payments PaymentOrchestrator
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	settings := NewSettingsService(params)
	return &subscriptionService{
		ServiceParams: params,
		settings:      settings,
		schedule:      NewScheduleService(params, settings),
		pricing:       NewPricingService(params, settings),
		payments:      NewPaymentOrchestrator(params),
	}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.CreateSubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	userID := lo.CoalesceOrEmpty(req.UserID, types.GetUserID(ctx))
	if userID == "" {
		return nil, ierr.NewError("user_id is required").
			WithHint("A user is required to create a subscription").
			Mark(ierr.ErrValidation)
	}

	now := s.now()
	start := types.StartOfDay(now)
	if req.StartDate != nil {
		start = types.StartOfDay(*req.StartDate)
	}
	if start.Before(types.StartOfDay(now)) && !req.AllowBackdatedStart {
		return nil, ierr.NewErrorf("start date %s is in the past", start.Format(time.DateOnly)).
			WithHint("A subscription cannot start before today").
			WithReportableDetails(map[string]any{
				"start_date": start.Format(time.DateOnly),
			}).
			Mark(ierr.ErrValidation)
	}

	schedule, err := s.schedule.Generate(ctx, &ScheduleRequest{
		StartDate:    start,
		DurationDays: req.DurationDays,
		MealsPerDay:  req.MealsPerDay,
		Mode:         req.SelectionMode,
		Days:         req.Days,
		MealTypes:    req.MealTypes,
		Preferences:  req.Preferences,
	})
	if err != nil {
		return nil, err
	}

	quote, err := s.pricing.Quote(ctx, schedule.Meals(), req.DurationDays)
	if err != nil {
		return nil, err
	}

	status := types.SubscriptionStatusActive
	if req.PaymentMethod == types.PaymentMethodCOD {
		status = types.SubscriptionStatusPending
	}

	sub := &subscription.Subscription{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:        userID,
		CustomerEmail: req.CustomerEmail,
		PlanType:      req.PlanType,
		PlanName:      req.PlanName,
		SelectionMode: req.SelectionMode,
		MealTypes:     subscription.MealTypeList(mealTypesOf(schedule)),
		Preferences:   subscription.StringList(req.Preferences),
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, req.DurationDays),
		MealsPerDay:   req.MealsPerDay,
		Meals:         schedule.Slots,
		Currency:      req.Currency,
		TotalPrice:    quote.TotalPrice,
		TotalCost:     quote.TotalCost,
		RefundAmount:  decimal.Zero,
		AutoRenew:     req.AutoRenew,
		Payment: subscription.PaymentState{
			Gateway:          req.PaymentMethod,
			Status:           types.PaymentStatusPending,
			AmountPaid:       decimal.Zero,
			BalanceRemaining: quote.TotalPrice,
			DiscountPercent:  quote.DiscountPercent,
		},
		SubscriptionStatus: status,
		Version:            1,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
	sub.TotalMeals = sub.CountMeals()
	if err := derive(ctx, s.settings, sub, now); err != nil {
		return nil, err
	}

	orders := buildDailyOrders(ctx, sub, schedule.Products, quote, now)

	s.Logger.Infow("creating subscription",
		"subscription_id", sub.ID,
		"user_id", userID,
		"payment_method", req.PaymentMethod,
		"selection_mode", req.SelectionMode,
		"duration_days", req.DurationDays,
		"total_meals", sub.TotalMeals,
		"total_price", quote.TotalPrice.String(),
	)

	outcome, err := s.payments.Collect(ctx, &CollectRequest{
		SubscriptionID:   sub.ID,
		UserID:           userID,
		Email:            req.CustomerEmail,
		Method:           req.PaymentMethod,
		PaymentMethodRef: req.PaymentMethodRef,
		Amount:           quote.TotalPrice,
		Currency:         req.Currency,
		Purpose:          types.PaymentPurposeSubscription,
		IdempotencyKey:   lo.CoalesceOrEmpty(req.IdempotencyKey, "sub-"+sub.ID),
		Description:      fmt.Sprintf("%s (%d days)", req.PlanName, req.DurationDays),
	}, func(ctx context.Context, outcome *CollectOutcome) error {
		applyPayment(sub, outcome)
		if err := s.SubRepo.Create(ctx, sub); err != nil {
			return err
		}
		return s.DailyOrderRepo.CreateMany(ctx, orders)
	})
	if err != nil {
		s.Logger.Errorw("failed to create subscription",
			"subscription_id", sub.ID,
			"user_id", userID,
			"error", err,
		)
		return nil, err
	}

	s.notify(ctx, subscriptionNotification(notification.KindSubscriptionCreated, sub,
		"Subscription created",
		fmt.Sprintf("Your %s plan starts on %s.", sub.PlanName, sub.StartDate.Format(time.DateOnly)),
	))

	return &dto.CreateSubscriptionResponse{
		Subscription: &dto.SubscriptionResponse{Subscription: sub},
		DailyOrders: lo.Map(orders, func(o *dailyorder.DailyOrder, _ int) *dto.DailyOrderResponse {
			return &dto.DailyOrderResponse{DailyOrder: o}
		}),
		Payment: &dto.PaymentResponse{Payment: outcome.Payment},
	}, nil
}

// derive recomputes derived state under the current global auto renew switch
func derive(ctx context.Context, settings SettingsService, sub *subscription.Subscription, now time.Time) error {
	autoRenew, err := settings.AutoRenew(ctx)
	if err != nil {
		return err
	}
	sub.Derive(now, autoRenew.Enabled)
	return nil
}

// applyPayment copies a collected payment onto the subscription summary
func applyPayment(sub *subscription.Subscription, outcome *CollectOutcome) {
	p := outcome.Payment
	sub.Payment.Status = p.PaymentStatus
	sub.Payment.PaymentID = p.ID
	sub.Payment.TransactionID = p.GatewayTransactionID
	if p.PaymentStatus == types.PaymentStatusCompleted {
		sub.Payment.AmountPaid = p.Amount
		sub.Payment.BalanceRemaining = decimal.Max(sub.TotalPrice.Sub(p.Amount), decimal.Zero)
	}
}

func mealTypesOf(schedule *Schedule) []types.MealType {
	if len(schedule.Slots) == 0 {
		return nil
	}
	return lo.Map(schedule.Slots[0].Items, func(item subscription.SlotItem, _ int) types.MealType {
		return item.MealType
	})
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.SubRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(subs, func(sub *subscription.Subscription, _ int) *dto.SubscriptionResponse {
		return &dto.SubscriptionResponse{Subscription: sub}
	})
	response := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &response, nil
}

func (s *subscriptionService) ListPayments(ctx context.Context, id string) (*dto.ListPaymentsResponse, error) {
	if _, err := s.SubRepo.Get(ctx, id); err != nil {
		return nil, err
	}

	payments, err := s.payments.ListPayments(ctx, id)
	if err != nil {
		return nil, err
	}

	response := &dto.ListPaymentsResponse{Items: make([]*dto.PaymentResponse, len(payments))}
	for i, p := range payments {
		response.Items[i] = &dto.PaymentResponse{Payment: p}
	}
	return response, nil
}

// mutate applies fn to a freshly read subscription and saves it. A version
// conflict means another writer got there first, so the whole read-check-write
// is retried against the new state. Guards in fn always see fresh data.
func (s *subscriptionService) mutate(
	ctx context.Context,
	id string,
	fn func(ctx context.Context, sub *subscription.Subscription, now time.Time) error,
) (*subscription.Subscription, error) {
	var result *subscription.Subscription

	err := retryOnConflict(ctx, func() error {
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			sub, err := s.SubRepo.Get(ctx, id)
			if err != nil {
				return err
			}

			now := s.now()
			if err := fn(ctx, sub, now); err != nil {
				return err
			}
			if err := derive(ctx, s.settings, sub, now); err != nil {
				return err
			}

			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return err
			}
			result = sub
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *subscriptionService) PauseSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	policy, err := s.settings.PausePolicy(ctx)
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("pausing subscription", "subscription_id", id, "max_pause_times", policy.MaxPauseTimes)

	sub, err := s.mutate(ctx, id, func(_ context.Context, sub *subscription.Subscription, now time.Time) error {
		return sub.Pause(now, policy.MaxPauseTimes)
	})
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) ResumeSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	s.Logger.Infow("resuming subscription", "subscription_id", id)

	sub, err := s.mutate(ctx, id, func(_ context.Context, sub *subscription.Subscription, _ time.Time) error {
		return sub.Resume()
	})
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) FreezeSubscription(ctx context.Context, id string, req *dto.FreezeSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.Logger.Infow("freezing subscription", "subscription_id", id, "days", req.Days)

	sub, err := s.mutate(ctx, id, func(_ context.Context, sub *subscription.Subscription, now time.Time) error {
		return sub.Freeze(now, req.Days, req.Reason)
	})
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, id string, req *dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.Logger.Infow("cancelling subscription", "subscription_id", id)

	sub, err := s.mutate(ctx, id, func(_ context.Context, sub *subscription.Subscription, now time.Time) error {
		return sub.Cancel(now, req.Reason)
	})
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) RefundSubscription(ctx context.Context, id string, req *dto.RefundSubscriptionRequest) (*dto.RefundSubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sub.CanRefund(req.Force); err != nil {
		return nil, err
	}

	policy, err := s.settings.RefundPolicy(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	amount := sub.RefundAmountFor(policy, now)

	s.Logger.Infow("refunding subscription",
		"subscription_id", sub.ID,
		"policy", policy.Policy,
		"days_consumed", sub.DaysConsumed(now),
		"consumed_meals", sub.ConsumedMeals,
		"total_meals", sub.TotalMeals,
		"refund_amount", amount.String(),
		"force", req.Force,
	)

	outcome, err := s.payments.Refund(ctx, &RefundRequest{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Method:         sub.Payment.Gateway,
		TransactionID:  sub.Payment.TransactionID,
		Amount:         amount,
		Currency:       sub.Currency,
		Reason:         req.Reason,
		IdempotencyKey: "refund-" + sub.ID,
	}, func(ctx context.Context, _ *RefundOutcome) error {
		sub.MarkRefunded(now, amount, req.Reason)
		if err := derive(ctx, s.settings, sub, now); err != nil {
			return err
		}
		return s.SubRepo.Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, subscriptionNotification(notification.KindSubscriptionRefunded, sub,
		"Subscription refunded",
		fmt.Sprintf("%s %s has been refunded for your %s plan.", amount.StringFixed(2), sub.Currency, sub.PlanName),
	))

	response := &dto.RefundSubscriptionResponse{
		Subscription: &dto.SubscriptionResponse{Subscription: sub},
		RefundAmount: amount,
		RefundID:     outcome.RefundID,
	}
	if outcome.Payment != nil {
		response.Payment = &dto.PaymentResponse{Payment: outcome.Payment}
	}
	return response, nil
}

func (s *subscriptionService) SettleCashPayment(ctx context.Context, id string, req *dto.SettleCashPaymentRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.Logger.Infow("settling cash payment", "subscription_id", id, "amount", req.Amount.String())

	sub, err := s.mutate(ctx, id, func(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
		if err := sub.SettleCash(req.Amount); err != nil {
			return err
		}
		if sub.Payment.PaymentID == "" {
			return nil
		}

		p, err := s.PaymentRepo.Get(ctx, sub.Payment.PaymentID)
		if err != nil {
			return err
		}
		p.PaymentStatus = types.PaymentStatusCompleted
		p.Amount = req.Amount
		p.CompletedAt = &now
		return s.PaymentRepo.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, subscriptionNotification(notification.KindSubscriptionActivated, sub,
		"Subscription active",
		fmt.Sprintf("We received your payment. Your %s plan is now active.", sub.PlanName),
	))
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) UpdateAutoRenew(ctx context.Context, id string, req *dto.UpdateAutoRenewRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.mutate(ctx, id, func(_ context.Context, sub *subscription.Subscription, _ time.Time) error {
		return sub.SetAutoRenew(*req.AutoRenew)
	})
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) DeleteSubscription(ctx context.Context, id string) error {
	s.Logger.Infow("deleting subscription", "subscription_id", id)

	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.SubRepo.Get(ctx, id); err != nil {
			return err
		}
		if err := s.DailyOrderRepo.DeleteBySubscription(ctx, id); err != nil {
			return err
		}
		return s.SubRepo.Delete(ctx, id)
	})
}
