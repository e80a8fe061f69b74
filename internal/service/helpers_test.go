package service

import (
	"testing"

	"github.com/flexprice/mealsub/internal/api/dto"
	"github.com/flexprice/mealsub/internal/testutil"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		DB:             s.GetDB(),
		SubRepo:        stores.SubscriptionRepo,
		DailyOrderRepo: stores.DailyOrderRepo,
		WalletRepo:     stores.WalletRepo,
		PaymentRepo:    stores.PaymentRepo,
		CustomerRepo:   stores.CustomerRepo,
		ProductRepo:    stores.ProductRepo,
		SettingsRepo:   stores.SettingsRepo,
		CardGateway:    s.GetCardGateway(),
		Notifier:       s.GetNotifier(),
		Now:            s.Clock(),
		Picker:         NewPicker(42),
	}
}

// autoPlanRequest is a seven day breakfast and lunch plan starting today
func autoPlanRequest(method types.PaymentMethod) *dto.CreateSubscriptionRequest {
	return &dto.CreateSubscriptionRequest{
		CustomerEmail: "jordan@example.com",
		PlanType:      "weekly",
		PlanName:      "Weekly Lunch Box",
		DurationDays:  7,
		SelectionMode: types.SelectionModeAuto,
		MealTypes:     []types.MealType{types.MealTypeBreakfast, types.MealTypeLunch},
		PaymentMethod: method,
	}
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) bool {
	t.Helper()
	if got.Equal(decimal.RequireFromString(want)) {
		return true
	}
	return assert.Fail(t, "amounts differ: want "+want+", got "+got.String(), msgAndArgs...)
}
