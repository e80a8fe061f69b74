package subscription

import (
	"testing"
	"time"

	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newTestSubscription(days, mealsPerDay int) *Subscription {
	sub := &Subscription{
		ID:                 "subs_test",
		StartDate:          testStart,
		EndDate:            testStart.AddDate(0, 0, days),
		MealsPerDay:        mealsPerDay,
		TotalMeals:         days * mealsPerDay,
		SubscriptionStatus: types.SubscriptionStatusActive,
	}
	for i := 0; i < days; i++ {
		slot := MealSlot{Date: testStart.AddDate(0, 0, i), DayIndex: i, Locked: i >= 3}
		for _, mt := range types.MealTypes[:mealsPerDay] {
			slot.Items = append(slot.Items, SlotItem{MealType: mt, ProductID: "prod_" + string(mt), Status: types.MealStatusScheduled})
		}
		sub.Meals = append(sub.Meals, slot)
	}
	return sub
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(s *Subscription)
		now           time.Time
		renewalOff    bool
		wantRemaining int
		wantSwappable int
		wantPending   int
		wantStatus    types.SubscriptionStatus
	}{
		{
			name:          "fresh subscription",
			now:           testStart,
			wantRemaining: 14,
			wantSwappable: 6,
			wantPending:   8,
			wantStatus:    types.SubscriptionStatusActive,
		},
		{
			name: "consumed is clamped to total",
			mutate: func(s *Subscription) {
				s.ConsumedMeals = 20
			},
			now:           testStart,
			wantRemaining: 0,
			wantSwappable: 6,
			wantPending:   0,
			wantStatus:    types.SubscriptionStatusCompleted,
		},
		{
			name:          "past end date with meals left expires",
			now:           testStart.AddDate(0, 0, 8),
			wantRemaining: 14,
			wantSwappable: 6,
			wantPending:   8,
			wantStatus:    types.SubscriptionStatusExpired,
		},
		{
			name: "auto renew is left for renewal",
			mutate: func(s *Subscription) {
				s.AutoRenew = true
			},
			now:           testStart.AddDate(0, 0, 8),
			wantRemaining: 14,
			wantSwappable: 6,
			wantPending:   8,
			wantStatus:    types.SubscriptionStatusActive,
		},
		{
			name: "auto renew expires when renewals are switched off",
			mutate: func(s *Subscription) {
				s.AutoRenew = true
			},
			now:           testStart.AddDate(0, 0, 8),
			renewalOff:    true,
			wantRemaining: 14,
			wantSwappable: 6,
			wantPending:   8,
			wantStatus:    types.SubscriptionStatusExpired,
		},
		{
			name: "paused subscription is not expired",
			mutate: func(s *Subscription) {
				s.SubscriptionStatus = types.SubscriptionStatusPaused
			},
			now:           testStart.AddDate(0, 0, 8),
			wantRemaining: 14,
			wantSwappable: 6,
			wantPending:   8,
			wantStatus:    types.SubscriptionStatusPaused,
		},
		{
			name: "delivered meals are not swappable",
			mutate: func(s *Subscription) {
				s.ConsumedMeals = 2
				s.Meals[0].Items[0].Status = types.MealStatusDelivered
				s.Meals[0].Items[1].Status = types.MealStatusDelivered
			},
			now:           testStart,
			wantRemaining: 12,
			wantSwappable: 4,
			wantPending:   8,
			wantStatus:    types.SubscriptionStatusActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := newTestSubscription(7, 2)
			if tt.mutate != nil {
				tt.mutate(sub)
			}
			sub.Derive(tt.now, !tt.renewalOff)

			assert.Equal(t, 7, sub.DurationDays)
			assert.Equal(t, tt.wantRemaining, sub.RemainingMeals)
			assert.Equal(t, sub.TotalMeals, sub.ConsumedMeals+sub.RemainingMeals)
			assert.Equal(t, tt.wantSwappable, sub.SwappableMeals)
			assert.Equal(t, tt.wantPending, sub.PendingDeliveries)
			assert.Equal(t, tt.wantStatus, sub.SubscriptionStatus)
		})
	}
}

func TestPause(t *testing.T) {
	sub := newTestSubscription(7, 2)
	now := testStart.Add(time.Hour)

	require.NoError(t, sub.Pause(now, 2))
	assert.Equal(t, types.SubscriptionStatusPaused, sub.SubscriptionStatus)
	assert.Equal(t, 1, sub.PauseCount)

	err := sub.Pause(now, 2)
	assert.True(t, ierr.IsStateConflict(err))

	require.NoError(t, sub.Resume())
	require.NoError(t, sub.Pause(now, 2))
	require.NoError(t, sub.Resume())

	err = sub.Pause(now, 2)
	assert.True(t, ierr.IsPauseLimitReached(err))
	assert.Equal(t, 2, sub.PauseCount)
	assert.Equal(t, types.SubscriptionStatusActive, sub.SubscriptionStatus)
}

func TestFreeze(t *testing.T) {
	sub := newTestSubscription(7, 2)
	now := testStart.Add(time.Hour)

	err := sub.Freeze(now, 0, "travel")
	assert.True(t, ierr.IsValidation(err))

	require.NoError(t, sub.Freeze(now, 3, "travel"))
	assert.Equal(t, types.SubscriptionStatusFrozen, sub.SubscriptionStatus)
	assert.Equal(t, 3, sub.FrozenDays)
	require.NotNil(t, sub.FrozenUntil)
	assert.Equal(t, now.AddDate(0, 0, 3), *sub.FrozenUntil)
	require.Len(t, sub.FreezeHistory, 1)
	assert.Equal(t, "travel", sub.FreezeHistory[0].Reason)

	err = sub.Freeze(now, 1, "again")
	assert.True(t, ierr.IsStateConflict(err))

	require.NoError(t, sub.Resume())
	assert.Nil(t, sub.FrozenUntil)
	assert.Equal(t, 3, sub.FrozenDays)
}

func TestCancel(t *testing.T) {
	sub := newTestSubscription(7, 2)
	now := testStart.Add(time.Hour)

	require.NoError(t, sub.Cancel(now, "moving"))
	assert.Equal(t, types.SubscriptionStatusCancelled, sub.SubscriptionStatus)

	err := sub.Cancel(now, "twice")
	assert.True(t, ierr.IsStateConflict(err))
}

func TestResumeRequiresPausedOrFrozen(t *testing.T) {
	sub := newTestSubscription(7, 2)
	err := sub.Resume()
	assert.True(t, ierr.IsStateConflict(err))
}

func TestRefundAmountFor(t *testing.T) {
	partial := types.RefundPolicyConfig{Policy: types.RefundPolicyPartial}
	full := types.RefundPolicyConfig{Policy: types.RefundPolicyFull, GraceDays: 1}

	tests := []struct {
		name     string
		total    int
		consumed int
		paid     string
		policy   types.RefundPolicyConfig
		now      time.Time
		want     string
	}{
		{"partial refund of unconsumed meals", 14, 4, "1372", partial, testStart.AddDate(0, 0, 2), "980"},
		{"nothing consumed", 14, 0, "1372", partial, testStart, "1372"},
		{"everything consumed", 14, 14, "1372", partial, testStart, "0"},
		{"no meals", 0, 0, "1372", partial, testStart, "0"},
		{"nothing paid", 14, 0, "0", partial, testStart, "0"},
		{"full within grace", 14, 4, "1372", full, testStart.AddDate(0, 0, 1), "1372"},
		{"full after grace falls back to partial", 14, 4, "1372", full, testStart.AddDate(0, 0, 2), "980"},
		{"rounded to cents", 3, 1, "100", partial, testStart, "66.67"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &Subscription{
				StartDate:     testStart,
				TotalMeals:    tt.total,
				ConsumedMeals: tt.consumed,
				Payment:       PaymentState{AmountPaid: decimal.RequireFromString(tt.paid)},
			}
			got := sub.RefundAmountFor(tt.policy, tt.now)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestCanRefund(t *testing.T) {
	sub := newTestSubscription(7, 2)
	assert.NoError(t, sub.CanRefund(false))

	sub.SubscriptionStatus = types.SubscriptionStatusExpired
	assert.True(t, ierr.IsStateConflict(sub.CanRefund(false)))
	assert.NoError(t, sub.CanRefund(true))

	sub.SubscriptionStatus = types.SubscriptionStatusRefunded
	assert.True(t, ierr.IsStateConflict(sub.CanRefund(true)))
}

func TestRecomputeLocks(t *testing.T) {
	sub := newTestSubscription(7, 2)

	changed := sub.RecomputeLocks(5, testStart)
	assert.True(t, changed)
	for _, slot := range sub.Meals {
		assert.Equal(t, slot.DayIndex >= 5, slot.Locked, "day %d", slot.DayIndex)
	}

	assert.False(t, sub.RecomputeLocks(5, testStart))

	// days already behind us stay locked regardless of the window
	sub.RecomputeLocks(5, testStart.AddDate(0, 0, 2))
	assert.True(t, sub.Meals[0].Locked)
	assert.True(t, sub.Meals[1].Locked)
	assert.False(t, sub.Meals[2].Locked)
}

func TestSettleCash(t *testing.T) {
	sub := newTestSubscription(7, 2)
	sub.SubscriptionStatus = types.SubscriptionStatusPending
	sub.TotalPrice = decimal.NewFromInt(1372)
	sub.Payment = PaymentState{Gateway: types.PaymentMethodCOD, Status: types.PaymentStatusPending, BalanceRemaining: sub.TotalPrice}

	require.NoError(t, sub.SettleCash(sub.TotalPrice))
	assert.Equal(t, types.SubscriptionStatusActive, sub.SubscriptionStatus)
	assert.Equal(t, types.PaymentStatusCompleted, sub.Payment.Status)
	assert.True(t, sub.Payment.BalanceRemaining.IsZero())

	assert.True(t, ierr.IsStateConflict(sub.SettleCash(sub.TotalPrice)))
}

func TestSwapMeal(t *testing.T) {
	sub := newTestSubscription(7, 2)
	day1 := testStart.AddDate(0, 0, 1)

	entry, err := sub.SwapMeal(day1, types.MealTypeLunch, "prod_other", testStart)
	require.NoError(t, err)
	assert.Equal(t, "prod_lunch", entry.FromProduct)
	assert.Equal(t, "prod_other", entry.ToProduct)
	item, _ := sub.Meals[1].Item(types.MealTypeLunch)
	assert.Equal(t, "prod_other", item.ProductID)
	assert.Len(t, sub.SwapHistory, 1)

	_, err = sub.SwapMeal(testStart.AddDate(0, 0, 4), types.MealTypeLunch, "prod_other", testStart)
	assert.True(t, ierr.IsMealLocked(err))

	_, err = sub.SwapMeal(day1, types.MealTypeDinner, "prod_other", testStart)
	assert.True(t, ierr.IsSlotNotFound(err))

	_, err = sub.SwapMeal(testStart.AddDate(0, 0, 30), types.MealTypeLunch, "prod_other", testStart)
	assert.True(t, ierr.IsSlotNotFound(err))

	sub.Meals[0].Items[0].Status = types.MealStatusDelivered
	_, err = sub.SwappableItem(testStart, types.MealTypeBreakfast)
	assert.True(t, ierr.IsMealLocked(err))

	sub.SubscriptionStatus = types.SubscriptionStatusCancelled
	_, err = sub.SwappableItem(day1, types.MealTypeBreakfast)
	assert.True(t, ierr.IsStateConflict(err))
	assert.Len(t, sub.SwapHistory, 1)
}

func TestSetAutoRenew(t *testing.T) {
	sub := newTestSubscription(7, 2)
	require.NoError(t, sub.SetAutoRenew(true))
	assert.True(t, sub.AutoRenew)

	sub.SubscriptionStatus = types.SubscriptionStatusExpired
	assert.True(t, ierr.IsStateConflict(sub.SetAutoRenew(false)))
	assert.True(t, sub.AutoRenew)
}
