package service

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/mealsub/internal/api/dto"
	"github.com/flexprice/mealsub/internal/domain/subscription"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/notification"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// SubscriptionJobService holds the bodies of the daily maintenance jobs.
// Every job may be redelivered, so each one only moves records that still
// match its filter and is a no-op on a second run.
type SubscriptionJobService interface {
	Run(ctx context.Context, job types.JobName) (*dto.JobResult, error)

	ExpireSubscriptions(ctx context.Context) (*dto.JobResult, error)
	UnfreezeSubscriptions(ctx context.Context) (*dto.JobResult, error)
	LockMeals(ctx context.Context) (*dto.JobResult, error)
	AutoRenewSubscriptions(ctx context.Context) (*dto.JobResult, error)
}

type subscriptionJobService struct {
	ServiceParams
	settings SettingsService
	schedule ScheduleService
	pricing  PricingService
	payments PaymentOrchestrator
}

func NewSubscriptionJobService(params ServiceParams) SubscriptionJobService {
	settings := NewSettingsService(params)
	return &subscriptionJobService{
		ServiceParams: params,
		settings:      settings,
		schedule:      NewScheduleService(params, settings),
		pricing:       NewPricingService(params, settings),
		payments:      NewPaymentOrchestrator(params),
	}
}

func (s *subscriptionJobService) Run(ctx context.Context, job types.JobName) (*dto.JobResult, error) {
	switch job {
	case types.JobExpireSubscriptions:
		return s.ExpireSubscriptions(ctx)
	case types.JobUnfreezeSubscriptions:
		return s.UnfreezeSubscriptions(ctx)
	case types.JobLockMeals:
		return s.LockMeals(ctx)
	case types.JobAutoRenewSubscriptions:
		return s.AutoRenewSubscriptions(ctx)
	}
	return nil, job.Validate()
}

func (s *subscriptionJobService) ExpireSubscriptions(ctx context.Context) (*dto.JobResult, error) {
	autoRenew, err := s.settings.AutoRenew(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()

	completed, err := s.SubRepo.CompleteExhausted(ctx)
	if err != nil {
		return nil, err
	}

	// with renewals switched off nothing else will ever move auto-renewing subscriptions
	expired, err := s.SubRepo.ExpireDue(ctx, now, !autoRenew.Enabled)
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("expire subscriptions job finished",
		"expired", len(expired),
		"completed", len(completed),
		"include_auto_renew", !autoRenew.Enabled,
	)

	for _, sub := range completed {
		s.notify(ctx, subscriptionNotification(notification.KindSubscriptionCompleted, sub,
			"Subscription completed",
			fmt.Sprintf("All meals of your %s plan have been delivered.", sub.PlanName),
		))
	}
	for _, sub := range expired {
		s.notify(ctx, subscriptionNotification(notification.KindSubscriptionExpired, sub,
			"Subscription expired",
			fmt.Sprintf("Your %s plan ended with %d meals left.", sub.PlanName, sub.RemainingMeals),
		))
	}

	return &dto.JobResult{
		Job:      types.JobExpireSubscriptions,
		Affected: len(expired) + len(completed),
	}, nil
}

func (s *subscriptionJobService) UnfreezeSubscriptions(ctx context.Context) (*dto.JobResult, error) {
	unfrozen, err := s.SubRepo.UnfreezeDue(ctx, s.now())
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("unfreeze subscriptions job finished", "unfrozen", len(unfrozen))

	for _, sub := range unfrozen {
		s.notify(ctx, subscriptionNotification(notification.KindSubscriptionActivated, sub,
			"Subscription resumed",
			fmt.Sprintf("Your %s plan is active again.", sub.PlanName),
		))
	}

	return &dto.JobResult{
		Job:      types.JobUnfreezeSubscriptions,
		Affected: len(unfrozen),
	}, nil
}

// LockMeals applies the current change window to every live subscription.
// Reading the window on each run lets a settings change take effect without
// rewriting subscriptions up front.
func (s *subscriptionJobService) LockMeals(ctx context.Context) (*dto.JobResult, error) {
	window, err := s.settings.ChangeWindow(ctx)
	if err != nil {
		return nil, err
	}

	filter := &types.SubscriptionFilter{
		QueryFilter: types.NoLimitQueryFilter(),
		Statuses: []types.SubscriptionStatus{
			types.SubscriptionStatusPending,
			types.SubscriptionStatusActive,
			types.SubscriptionStatusPaused,
			types.SubscriptionStatusFrozen,
		},
	}
	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	today := types.StartOfDay(s.now())
	result := &dto.JobResult{Job: types.JobLockMeals}

	for _, sub := range subs {
		changed, err := s.lockSubscriptionMeals(ctx, sub.ID, window.Days, today)
		if err != nil {
			result.Failed++
			s.Logger.Errorw("failed to lock meals",
				"subscription_id", sub.ID,
				"error", err,
			)
			continue
		}
		if changed {
			result.Affected++
		}
	}

	s.Logger.Infow("lock meals job finished",
		"change_window_days", window.Days,
		"subscriptions", len(subs),
		"changed", result.Affected,
		"failed", result.Failed,
	)

	if result.Failed > 0 {
		return result, ierr.NewErrorf("failed to lock meals for %d subscriptions", result.Failed).
			WithHint("Some subscriptions could not be updated").
			Mark(ierr.ErrSystem)
	}
	return result, nil
}

func (s *subscriptionJobService) lockSubscriptionMeals(ctx context.Context, id string, windowDays int, today time.Time) (bool, error) {
	changed := false
	err := retryOnConflict(ctx, func() error {
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			sub, err := s.SubRepo.Get(ctx, id)
			if err != nil {
				return err
			}

			changed = sub.RecomputeLocks(windowDays, today)
			if changed {
				if err := derive(ctx, s.settings, sub, s.now()); err != nil {
					return err
				}
				if err := s.SubRepo.Update(ctx, sub); err != nil {
					return err
				}
			}

			n, err := s.DailyOrderRepo.UpdateLockFlags(ctx, id, windowDays, today)
			if err != nil {
				return err
			}
			changed = changed || n > 0
			return nil
		})
	})
	return changed, err
}

func (s *subscriptionJobService) AutoRenewSubscriptions(ctx context.Context) (*dto.JobResult, error) {
	result := &dto.JobResult{Job: types.JobAutoRenewSubscriptions}

	autoRenew, err := s.settings.AutoRenew(ctx)
	if err != nil {
		return nil, err
	}
	if !autoRenew.Enabled {
		s.Logger.Infow("auto renew is disabled, skipping")
		return result, nil
	}

	due, err := s.SubRepo.ListRenewalDue(ctx, s.now(), s.Config.Jobs.BatchSize)
	if err != nil {
		return nil, err
	}

	for _, sub := range due {
		if err := s.renew(ctx, sub); err != nil {
			result.Failed++
			continue
		}
		result.Affected++
	}

	s.Logger.Infow("auto renew job finished",
		"due", len(due),
		"renewed", result.Affected,
		"failed", result.Failed,
	)
	return result, nil
}

// renew charges the next cycle and, in the same local transaction as the
// payment record, advances the dates and writes a fresh calendar with its
// daily orders. A renewal that cannot be paid turns auto-renew off so the
// expire job can close the subscription.
func (s *subscriptionJobService) renew(ctx context.Context, sub *subscription.Subscription) error {
	logger := s.Logger.With("subscription_id", sub.ID, "renewal", sub.RenewalCount+1)

	if sub.Payment.Gateway == types.PaymentMethodCOD {
		err := ierr.NewError("cash on delivery subscriptions cannot renew automatically").
			WithHint("Automatic renewal needs a wallet or a saved card").
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrValidation)
		s.renewalFailed(ctx, sub, err)
		return err
	}

	duration := sub.DurationDays
	if duration <= 0 {
		duration = types.DaysBetween(sub.StartDate, sub.EndDate)
	}
	mealTypes := []types.MealType(sub.MealTypes)
	if len(mealTypes) == 0 {
		mealTypes = types.MealTypes[:min(sub.MealsPerDay, len(types.MealTypes))]
	}

	start := types.StartOfDay(sub.EndDate)
	schedule, err := s.schedule.Generate(ctx, &ScheduleRequest{
		StartDate:    start,
		DurationDays: duration,
		MealsPerDay:  len(mealTypes),
		Mode:         types.SelectionModeAuto,
		MealTypes:    mealTypes,
		Preferences:  sub.Preferences,
	})
	if err != nil {
		logger.Errorw("failed to generate renewal calendar", "error", err)
		s.renewalFailed(ctx, sub, err)
		return err
	}

	quote, err := s.pricing.Quote(ctx, schedule.Meals(), duration)
	if err != nil {
		return err
	}

	renewalKey := fmt.Sprintf("renew-%s-%d", sub.ID, sub.RenewalCount+1)
	var renewed *subscription.Subscription

	_, err = s.payments.Collect(ctx, &CollectRequest{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Email:          sub.CustomerEmail,
		Method:         sub.Payment.Gateway,
		Amount:         quote.TotalPrice,
		Currency:       sub.Currency,
		Purpose:        types.PaymentPurposeRenewal,
		IdempotencyKey: renewalKey,
		Description:    fmt.Sprintf("%s renewal %d", sub.PlanName, sub.RenewalCount+1),
	}, func(ctx context.Context, outcome *CollectOutcome) error {
		fresh, err := s.SubRepo.Get(ctx, sub.ID)
		if err != nil {
			return err
		}
		if fresh.SubscriptionStatus != types.SubscriptionStatusActive || !fresh.AutoRenew || !fresh.EndDate.Equal(sub.EndDate) {
			return ierr.NewError("subscription changed before renewal").
				WithHint("Subscription is no longer due for renewal").
				WithReportableDetails(map[string]any{
					"subscription_id": fresh.ID,
					"status":          fresh.SubscriptionStatus,
					"auto_renew":      fresh.AutoRenew,
				}).
				Mark(ierr.ErrStateConflict)
		}

		now := s.now()
		startNextCycle(fresh, schedule, quote, start, duration)
		applyPayment(fresh, outcome)
		fresh.Derive(now, true)
		if err := s.SubRepo.Update(ctx, fresh); err != nil {
			return err
		}

		orders := buildDailyOrders(ctx, fresh, schedule.Products, quote, now)
		if err := s.DailyOrderRepo.CreateMany(ctx, orders); err != nil {
			return err
		}
		renewed = fresh
		return nil
	})
	if err != nil {
		if ierr.IsAlreadyExists(err) || ierr.IsStateConflict(err) {
			logger.Infow("renewal skipped", "reason", err.Error())
			return err
		}
		logger.Errorw("renewal payment failed", "error", err)
		s.renewalFailed(ctx, sub, err)
		return err
	}

	logger.Infow("subscription renewed",
		"start_date", renewed.StartDate,
		"end_date", renewed.EndDate,
		"total_price", renewed.TotalPrice.String(),
	)

	s.notify(ctx, subscriptionNotification(notification.KindRenewalSucceeded, renewed,
		"Subscription renewed",
		fmt.Sprintf("Your %s plan has been renewed until %s.", renewed.PlanName, renewed.EndDate.AddDate(0, 0, -1).Format(time.DateOnly)),
	))
	return nil
}

// startNextCycle moves the subscription onto the renewal calendar and resets
// the per-cycle counters. Histories are kept.
func startNextCycle(sub *subscription.Subscription, schedule *Schedule, quote *PriceQuote, start time.Time, duration int) {
	sub.StartDate = start
	sub.EndDate = start.AddDate(0, 0, duration)
	sub.Meals = schedule.Slots
	sub.MealsPerDay = len(mealTypesOf(schedule))
	sub.TotalMeals = sub.CountMeals()
	sub.ConsumedMeals = 0
	sub.DeliveredMeals = 0
	sub.PauseCount = 0
	sub.PausedAt = nil
	sub.TotalPrice = quote.TotalPrice
	sub.TotalCost = quote.TotalCost
	sub.Payment = subscription.PaymentState{
		Gateway:          sub.Payment.Gateway,
		Status:           types.PaymentStatusPending,
		AmountPaid:       decimal.Zero,
		BalanceRemaining: quote.TotalPrice,
		DiscountPercent:  quote.DiscountPercent,
	}
	sub.RenewalCount++
}

func (s *subscriptionJobService) renewalFailed(ctx context.Context, sub *subscription.Subscription, cause error) {
	err := retryOnConflict(ctx, func() error {
		fresh, err := s.SubRepo.Get(ctx, sub.ID)
		if err != nil {
			return err
		}
		if !fresh.AutoRenew {
			return nil
		}
		fresh.AutoRenew = false
		fresh.Derive(s.now(), false)
		return s.SubRepo.Update(ctx, fresh)
	})
	if err != nil {
		s.Logger.Errorw("failed to disable auto renew after failed renewal",
			"subscription_id", sub.ID,
			"error", err,
		)
	}

	n := subscriptionNotification(notification.KindRenewalFailed, sub,
		"Renewal failed",
		fmt.Sprintf("We could not renew your %s plan. Auto renew has been turned off.", sub.PlanName),
	)
	n.Data["reason"] = lo.CoalesceOrEmpty(ierr.HintOf(cause), cause.Error())
	s.notify(ctx, n)
}
