package subscription

import (
	"time"

	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/shopspring/decimal"
)

// Derive recomputes every derived field and applies the time and consumption
// driven transitions. It runs before every save so derived state heals itself
// even when a background job is late. renewalEnabled is the global auto
// renew switch.
func (s *Subscription) Derive(now time.Time, renewalEnabled bool) {
	s.DurationDays = types.DaysBetween(s.StartDate, s.EndDate)

	if s.ConsumedMeals < 0 {
		s.ConsumedMeals = 0
	}
	if s.ConsumedMeals > s.TotalMeals {
		s.ConsumedMeals = s.TotalMeals
	}
	s.RemainingMeals = s.TotalMeals - s.ConsumedMeals

	swappable := 0
	for _, slot := range s.Meals {
		if slot.Locked {
			continue
		}
		for _, item := range slot.Items {
			if item.Status != types.MealStatusDelivered {
				swappable++
			}
		}
	}
	s.SwappableMeals = swappable
	s.PendingDeliveries = max(s.RemainingMeals-s.SwappableMeals, 0)

	if s.SubscriptionStatus != types.SubscriptionStatusActive {
		return
	}
	switch {
	case s.TotalMeals > 0 && s.RemainingMeals == 0:
		s.SubscriptionStatus = types.SubscriptionStatusCompleted
	case s.IsExpiryDue(now, renewalEnabled):
		s.SubscriptionStatus = types.SubscriptionStatusExpired
	}
}

// IsExpiryDue reports whether an active subscription has run past its end date
// with meals left. Auto-renewing subscriptions are left for the renewal job
// while renewals are enabled.
func (s *Subscription) IsExpiryDue(now time.Time, renewalEnabled bool) bool {
	return s.SubscriptionStatus == types.SubscriptionStatusActive &&
		!(s.AutoRenew && renewalEnabled) &&
		now.After(s.EndDate) &&
		s.RemainingMeals > 0
}

// IsLockedDay reports whether day index i is outside the change window, or already past
func IsLockedDay(dayIndex int, date time.Time, changeWindowDays int, today time.Time) bool {
	return dayIndex >= changeWindowDays || types.StartOfDay(date).Before(types.StartOfDay(today))
}

// RecomputeLocks applies the lock rule to every day and reports whether anything changed
func (s *Subscription) RecomputeLocks(changeWindowDays int, today time.Time) bool {
	changed := false
	for i := range s.Meals {
		locked := IsLockedDay(s.Meals[i].DayIndex, s.Meals[i].Date, changeWindowDays, today)
		if s.Meals[i].Locked != locked {
			s.Meals[i].Locked = locked
			changed = true
		}
	}
	return changed
}

func (s *Subscription) stateConflict(action string, allowed ...types.SubscriptionStatus) error {
	return ierr.NewErrorf("cannot %s subscription in status %s", action, s.SubscriptionStatus).
		WithHintf("Subscription cannot be %s while it is %s", pastTense(action), s.SubscriptionStatus).
		WithReportableDetails(map[string]any{
			"subscription_id": s.ID,
			"status":          s.SubscriptionStatus,
			"allowed_status":  allowed,
		}).
		Mark(ierr.ErrStateConflict)
}

func pastTense(action string) string {
	switch action {
	case "pause":
		return "paused"
	case "resume":
		return "resumed"
	case "freeze":
		return "frozen"
	case "cancel":
		return "cancelled"
	case "refund":
		return "refunded"
	case "settle":
		return "settled"
	case "renew":
		return "renewed"
	case "update":
		return "updated"
	case "swap":
		return "swapped"
	}
	return action + "ed"
}

// Pause moves an active subscription to paused when the pause budget allows it
func (s *Subscription) Pause(now time.Time, maxPauseTimes int) error {
	if s.SubscriptionStatus != types.SubscriptionStatusActive {
		return s.stateConflict("pause", types.SubscriptionStatusActive)
	}
	if s.PauseCount >= maxPauseTimes {
		return ierr.NewErrorf("pause limit of %d reached", maxPauseTimes).
			WithHintf("This subscription has already been paused %d times", s.PauseCount).
			WithReportableDetails(map[string]any{
				"subscription_id": s.ID,
				"pause_count":     s.PauseCount,
				"max_pause_times": maxPauseTimes,
			}).
			Mark(ierr.ErrPauseLimitReached)
	}
	s.PauseCount++
	s.PausedAt = &now
	s.SubscriptionStatus = types.SubscriptionStatusPaused
	return nil
}

// Freeze appends a freeze period of days starting now
func (s *Subscription) Freeze(now time.Time, days int, reason string) error {
	if s.SubscriptionStatus != types.SubscriptionStatusActive {
		return s.stateConflict("freeze", types.SubscriptionStatusActive)
	}
	if days <= 0 {
		return ierr.NewError("freeze days must be positive").
			WithHint("Freeze duration must be at least one day").
			WithReportableDetails(map[string]any{"days": days}).
			Mark(ierr.ErrValidation)
	}
	end := now.AddDate(0, 0, days)
	s.FreezeHistory = append(s.FreezeHistory, FreezeEntry{
		ID:     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FREEZE),
		Start:  now,
		End:    end,
		Reason: reason,
	})
	s.FrozenDays += days
	s.FrozenUntil = &end
	s.SubscriptionStatus = types.SubscriptionStatusFrozen
	return nil
}

// Resume returns a paused or frozen subscription to active
func (s *Subscription) Resume() error {
	if s.SubscriptionStatus != types.SubscriptionStatusPaused &&
		s.SubscriptionStatus != types.SubscriptionStatusFrozen {
		return s.stateConflict("resume", types.SubscriptionStatusPaused, types.SubscriptionStatusFrozen)
	}
	s.PausedAt = nil
	s.FrozenUntil = nil
	s.SubscriptionStatus = types.SubscriptionStatusActive
	return nil
}

// Cancel ends a non-terminal subscription without moving money
func (s *Subscription) Cancel(now time.Time, reason string) error {
	if s.SubscriptionStatus.IsTerminal() {
		return s.stateConflict("cancel",
			types.SubscriptionStatusPending,
			types.SubscriptionStatusActive,
			types.SubscriptionStatusPaused,
			types.SubscriptionStatusFrozen,
		)
	}
	s.CancelReason = reason
	s.CancelledAt = &now
	s.SubscriptionStatus = types.SubscriptionStatusCancelled
	return nil
}

// CanRefund checks the refund guard. Operators may force a refund of a
// terminal subscription, but nothing is ever refunded twice.
func (s *Subscription) CanRefund(force bool) error {
	if s.SubscriptionStatus == types.SubscriptionStatusRefunded {
		return s.stateConflict("refund")
	}
	if s.SubscriptionStatus.IsTerminal() && !force {
		return s.stateConflict("refund",
			types.SubscriptionStatusPending,
			types.SubscriptionStatusActive,
			types.SubscriptionStatusPaused,
			types.SubscriptionStatusFrozen,
		)
	}
	return nil
}

// MarkRefunded records a completed refund
func (s *Subscription) MarkRefunded(now time.Time, amount decimal.Decimal, reason string) {
	s.RefundAmount = amount
	s.RefundReason = reason
	s.RefundedAt = &now
	s.SubscriptionStatus = types.SubscriptionStatusRefunded
	if amount.IsPositive() {
		s.Payment.Status = types.PaymentStatusRefunded
	}
}

// RefundAmountFor applies the refund policy to the amount paid.
// The full policy refunds everything while daysConsumed is within the grace
// period and otherwise behaves like the partial policy.
func (s *Subscription) RefundAmountFor(policy types.RefundPolicyConfig, now time.Time) decimal.Decimal {
	price := s.Payment.AmountPaid
	if !price.IsPositive() {
		return decimal.Zero
	}

	if policy.Policy == types.RefundPolicyFull && s.DaysConsumed(now) <= policy.GraceDays {
		return price.Round(2)
	}

	if s.TotalMeals <= 0 {
		return decimal.Zero
	}
	unconsumed := decimal.NewFromInt(int64(s.TotalMeals - s.ConsumedMeals))
	return unconsumed.Mul(price).Div(decimal.NewFromInt(int64(s.TotalMeals))).Round(2)
}

// DaysConsumed is the number of whole days elapsed since the start date
func (s *Subscription) DaysConsumed(now time.Time) int {
	return max(types.DaysBetween(s.StartDate, now), 0)
}

// SettleCash completes a pending cash-on-delivery payment
func (s *Subscription) SettleCash(amount decimal.Decimal) error {
	if s.SubscriptionStatus != types.SubscriptionStatusPending {
		return s.stateConflict("settle", types.SubscriptionStatusPending)
	}
	if s.Payment.Gateway != types.PaymentMethodCOD {
		return ierr.NewError("only cash on delivery payments can be settled").
			WithHint("This subscription was not paid by cash on delivery").
			WithReportableDetails(map[string]any{
				"subscription_id": s.ID,
				"gateway":         s.Payment.Gateway,
			}).
			Mark(ierr.ErrValidation)
	}
	s.Payment.Status = types.PaymentStatusCompleted
	s.Payment.AmountPaid = amount
	s.Payment.BalanceRemaining = decimal.Max(s.TotalPrice.Sub(amount), decimal.Zero)
	s.SubscriptionStatus = types.SubscriptionStatusActive
	return nil
}

// CanDeliver rejects deliveries against a subscription that was cancelled or refunded
func (s *Subscription) CanDeliver() error {
	if s.SubscriptionStatus == types.SubscriptionStatusCancelled ||
		s.SubscriptionStatus == types.SubscriptionStatusRefunded {
		return s.stateConflict("deliver",
			types.SubscriptionStatusPending,
			types.SubscriptionStatusActive,
			types.SubscriptionStatusPaused,
			types.SubscriptionStatusFrozen,
			types.SubscriptionStatusExpired,
			types.SubscriptionStatusCompleted,
		)
	}
	return nil
}

// ConsumeMeal records one delivered meal
func (s *Subscription) ConsumeMeal(date time.Time, mealType types.MealType) {
	s.ConsumedMeals++
	s.DeliveredMeals++
	if slot, ok := s.SlotForDate(date); ok {
		if item, ok := slot.Item(mealType); ok {
			item.Status = types.MealStatusDelivered
		}
	}
}

// SetAutoRenew toggles renewal on a subscription that has not ended
func (s *Subscription) SetAutoRenew(enabled bool) error {
	if s.SubscriptionStatus.IsTerminal() {
		return s.stateConflict("update",
			types.SubscriptionStatusPending,
			types.SubscriptionStatusActive,
			types.SubscriptionStatusPaused,
			types.SubscriptionStatusFrozen,
		)
	}
	s.AutoRenew = enabled
	return nil
}

// SwappableItem returns the meal that a swap on date would replace.
// Past days, days outside the change window and delivered meals are locked.
func (s *Subscription) SwappableItem(date time.Time, mealType types.MealType) (*SlotItem, error) {
	if s.SubscriptionStatus.IsTerminal() {
		return nil, s.stateConflict("swap",
			types.SubscriptionStatusPending,
			types.SubscriptionStatusActive,
			types.SubscriptionStatusPaused,
			types.SubscriptionStatusFrozen,
		)
	}

	slot, ok := s.SlotForDate(date)
	if !ok {
		return nil, slotNotFound(s.ID, date, mealType)
	}
	item, ok := slot.Item(mealType)
	if !ok {
		return nil, slotNotFound(s.ID, date, mealType)
	}

	if slot.Locked || item.Status == types.MealStatusDelivered {
		return nil, ierr.NewErrorf("meal on day %d is locked", slot.DayIndex).
			WithHint("This meal can no longer be changed").
			WithReportableDetails(map[string]any{
				"subscription_id": s.ID,
				"date":            slot.Date.Format(time.DateOnly),
				"day_index":       slot.DayIndex,
				"meal_type":       mealType,
			}).
			Mark(ierr.ErrMealLocked)
	}
	return item, nil
}

// SwapMeal replaces the product of an unlocked meal and records the swap
func (s *Subscription) SwapMeal(date time.Time, mealType types.MealType, productID string, now time.Time) (*SwapEntry, error) {
	item, err := s.SwappableItem(date, mealType)
	if err != nil {
		return nil, err
	}

	entry := SwapEntry{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SWAP),
		Date:        types.StartOfDay(date),
		MealType:    mealType,
		FromProduct: item.ProductID,
		ToProduct:   productID,
		SwappedAt:   now,
	}
	item.ProductID = productID
	s.SwapHistory = append(s.SwapHistory, entry)
	return &entry, nil
}

func slotNotFound(subscriptionID string, date time.Time, mealType types.MealType) error {
	return ierr.NewErrorf("no %s scheduled on %s", mealType, date.Format(time.DateOnly)).
		WithHintf("There is no %s on that day", mealType).
		WithReportableDetails(map[string]any{
			"subscription_id": subscriptionID,
			"date":            date.Format(time.DateOnly),
			"meal_type":       mealType,
		}).
		Mark(ierr.ErrSlotNotFound)
}
