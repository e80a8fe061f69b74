package testutil

import (
	"maps"
	"slices"

	"github.com/flexprice/mealsub/internal/domain/dailyorder"
	"github.com/flexprice/mealsub/internal/domain/payment"
	"github.com/flexprice/mealsub/internal/domain/product"
	"github.com/flexprice/mealsub/internal/domain/settings"
	"github.com/flexprice/mealsub/internal/domain/subscription"
	"github.com/flexprice/mealsub/internal/domain/wallet"
)

func cloneTime[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSubscription(s *subscription.Subscription) *subscription.Subscription {
	c := *s
	c.MealTypes = slices.Clone(s.MealTypes)
	c.Preferences = slices.Clone(s.Preferences)
	c.FreezeHistory = slices.Clone(s.FreezeHistory)
	c.SwapHistory = slices.Clone(s.SwapHistory)
	c.PausedAt = cloneTime(s.PausedAt)
	c.FrozenUntil = cloneTime(s.FrozenUntil)
	c.RefundedAt = cloneTime(s.RefundedAt)
	c.CancelledAt = cloneTime(s.CancelledAt)
	if s.Meals != nil {
		c.Meals = make(subscription.MealSlots, len(s.Meals))
		for i, slot := range s.Meals {
			slot.Items = slices.Clone(slot.Items)
			c.Meals[i] = slot
		}
	}
	return &c
}

func cloneDailyOrder(o *dailyorder.DailyOrder) *dailyorder.DailyOrder {
	c := *o
	if o.Meals != nil {
		c.Meals = make(dailyorder.OrderMeals, len(o.Meals))
		for i, m := range o.Meals {
			m.StatusHistory = slices.Clone(m.StatusHistory)
			c.Meals[i] = m
		}
	}
	return &c
}

func cloneWallet(w *wallet.Wallet) *wallet.Wallet {
	c := *w
	return &c
}

func cloneWalletTransaction(t *wallet.Transaction) *wallet.Transaction {
	c := *t
	return &c
}

func clonePayment(p *payment.Payment) *payment.Payment {
	c := *p
	c.Metadata = maps.Clone(p.Metadata)
	c.CompletedAt = cloneTime(p.CompletedAt)
	return &c
}

func cloneCustomerProfile(p *payment.CustomerProfile) *payment.CustomerProfile {
	c := *p
	return &c
}

func cloneProduct(p *product.Product) *product.Product {
	c := *p
	c.Tags = slices.Clone(p.Tags)
	return &c
}

func cloneSetting(s *settings.Setting) *settings.Setting {
	c := *s
	c.Value = maps.Clone(s.Value)
	return &c
}
