package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flexprice/mealsub/internal/api/dto"
	"github.com/flexprice/mealsub/internal/domain/payment"
	"github.com/flexprice/mealsub/internal/domain/product"
	"github.com/flexprice/mealsub/internal/domain/subscription"
	"github.com/flexprice/mealsub/internal/domain/wallet"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/notification"
	"github.com/flexprice/mealsub/internal/testutil"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  SubscriptionService
	orders   DailyOrderService
	settings SettingsService
	testData struct {
		breakfast *product.Product
		lunch     *product.Product
	}
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewSubscriptionService(params)
	s.orders = NewDailyOrderService(params)
	s.settings = NewSettingsService(params)

	s.testData.breakfast = s.CreateProduct("Overnight Oats", types.MealTypeBreakfast, 100, 40, "veg")
	s.testData.lunch = s.CreateProduct("Chicken Rice Bowl", types.MealTypeLunch, 100, 55)
}

func (s *SubscriptionServiceSuite) createWalletPlan() *subscription.Subscription {
	s.CreateWallet(types.DefaultUserID, 2000)
	resp, err := s.service.CreateSubscription(s.GetContext(), autoPlanRequest(types.PaymentMethodWallet))
	s.Require().NoError(err)
	return resp.Subscription.Subscription
}

func (s *SubscriptionServiceSuite) reload(id string) *subscription.Subscription {
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return sub
}

func (s *SubscriptionServiceSuite) deliver(subID string, day int, mealTypes ...types.MealType) {
	date := s.Today().AddDate(0, 0, day)
	order, err := s.GetStores().DailyOrderRepo.GetBySubscriptionAndDate(s.GetContext(), subID, date)
	s.Require().NoError(err)
	for _, mt := range mealTypes {
		_, err := s.orders.MarkMealDelivered(s.GetContext(), order.ID, mt)
		s.Require().NoError(err)
	}
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_WalletCheckout() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 2000)

	resp, err := s.service.CreateSubscription(ctx, autoPlanRequest(types.PaymentMethodWallet))
	s.Require().NoError(err)

	sub := resp.Subscription.Subscription
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Equal(s.Today(), sub.StartDate)
	s.Equal(s.Today().AddDate(0, 0, 7), sub.EndDate)
	s.Equal(7, sub.DurationDays)
	s.Equal(14, sub.TotalMeals)
	s.Equal(14, sub.RemainingMeals)
	s.Equal(6, sub.SwappableMeals)
	s.Equal(8, sub.PendingDeliveries)
	assertAmount(s.T(), "1372", sub.TotalPrice)
	assertAmount(s.T(), "665", sub.TotalCost)

	s.Equal(types.PaymentStatusCompleted, sub.Payment.Status)
	assertAmount(s.T(), "1372", sub.Payment.AmountPaid)
	assertAmount(s.T(), "0", sub.Payment.BalanceRemaining)
	assertAmount(s.T(), "2", sub.Payment.DiscountPercent)

	w, err := s.GetStores().WalletRepo.GetByUserID(ctx, types.DefaultUserID)
	s.Require().NoError(err)
	assertAmount(s.T(), "628", w.Balance)
	assertAmount(s.T(), "1372", w.TotalSpent)

	orders, err := s.GetStores().DailyOrderRepo.ListBySubscription(ctx, sub.ID)
	s.Require().NoError(err)
	s.Len(orders, 7)
	total := decimal.Zero
	for i, o := range orders {
		s.Equal(i, o.DayIndex)
		s.Equal(s.Today().AddDate(0, 0, i), o.DeliveryDate)
		s.Equal(i >= 3, o.Locked, "day %d", i)
		s.Equal(types.OrderStatusConfirmed, o.OrderStatus)
		s.Len(o.Meals, 2)
		assertAmount(s.T(), "196", o.TotalAmount)
		total = total.Add(o.TotalAmount)
	}
	assertAmount(s.T(), "1372", total)

	payments, err := s.service.ListPayments(ctx, sub.ID)
	s.Require().NoError(err)
	s.Len(payments.Items, 1)
	s.Equal(types.PaymentPurposeSubscription, payments.Items[0].Purpose)

	s.Len(s.GetNotifier().Sent(notification.KindSubscriptionCreated), 1)
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_InsufficientWallet() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 500)

	_, err := s.service.CreateSubscription(ctx, autoPlanRequest(types.PaymentMethodWallet))
	s.Error(err)
	s.True(ierr.IsInsufficientFunds(err))

	subs, err := s.GetStores().SubscriptionRepo.List(ctx, types.NewSubscriptionFilter())
	s.NoError(err)
	s.Empty(subs)

	count, err := s.GetStores().DailyOrderRepo.Count(ctx, types.NewDailyOrderFilter())
	s.NoError(err)
	s.Zero(count)

	w, err := s.GetStores().WalletRepo.GetByUserID(ctx, types.DefaultUserID)
	s.Require().NoError(err)
	assertAmount(s.T(), "500", w.Balance)
	s.Empty(s.GetNotifier().Sent(notification.KindSubscriptionCreated))
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_NoWallet() {
	_, err := s.service.CreateSubscription(s.GetContext(), autoPlanRequest(types.PaymentMethodWallet))
	s.True(ierr.IsInsufficientFunds(err))
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_DefaultsToCaller() {
	ctx := testutil.ContextForUser("user_42")
	s.CreateWallet("user_42", 2000)

	resp, err := s.service.CreateSubscription(ctx, autoPlanRequest(types.PaymentMethodWallet))
	s.Require().NoError(err)

	sub := resp.Subscription.Subscription
	s.Equal("user_42", sub.UserID)
	s.Equal("user_42", sub.CreatedBy)

	w, err := s.GetStores().WalletRepo.GetByUserID(ctx, "user_42")
	s.Require().NoError(err)
	assertAmount(s.T(), "628", w.Balance)
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_DuplicateIdempotencyKey() {
	s.CreateWallet(types.DefaultUserID, 5000)

	req := autoPlanRequest(types.PaymentMethodWallet)
	req.IdempotencyKey = "checkout-dup"
	_, err := s.service.CreateSubscription(s.GetContext(), req)
	s.Require().NoError(err)

	req = autoPlanRequest(types.PaymentMethodWallet)
	req.IdempotencyKey = "checkout-dup"
	_, err = s.service.CreateSubscription(s.GetContext(), req)
	s.True(ierr.IsAlreadyExists(err))

	w, err := s.GetStores().WalletRepo.GetByUserID(s.GetContext(), types.DefaultUserID)
	s.Require().NoError(err)
	assertAmount(s.T(), "3628", w.Balance)
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_Explicit() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 1000)
	dinner := s.CreateProduct("Lentil Soup", types.MealTypeDinner, 80, 30)

	day := func() dto.DaySelection {
		return dto.DaySelection{Meals: []dto.MealSelection{
			{MealType: types.MealTypeDinner, ProductID: dinner.ID},
			{MealType: types.MealTypeBreakfast, ProductID: s.testData.breakfast.ID},
		}}
	}
	resp, err := s.service.CreateSubscription(ctx, &dto.CreateSubscriptionRequest{
		PlanType:      "trial",
		PlanName:      "Three Day Trial",
		SelectionMode: types.SelectionModeExplicit,
		Days:          []dto.DaySelection{day(), day(), day()},
		PaymentMethod: types.PaymentMethodWallet,
	})
	s.Require().NoError(err)

	sub := resp.Subscription.Subscription
	s.Equal(3, sub.DurationDays)
	s.Equal(2, sub.MealsPerDay)
	s.Equal(6, sub.TotalMeals)
	// three days match no slab
	assertAmount(s.T(), "540", sub.TotalPrice)
	// items follow serving order
	s.Equal(types.MealTypeBreakfast, sub.Meals[0].Items[0].MealType)
	s.Equal(types.MealTypeDinner, sub.Meals[0].Items[1].MealType)
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_ExplicitRejectsBadProducts() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 1000)

	inactive := &product.Product{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRODUCT),
		Name:      "Retired Pancakes",
		MealType:  types.MealTypeBreakfast,
		Price:     decimal.NewFromInt(90),
		CostPrice: decimal.NewFromInt(30),
		Currency:  types.DefaultCurrency,
		IsActive:  false,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().ProductRepo.Create(ctx, inactive))

	tests := []struct {
		name      string
		mealType  types.MealType
		productID string
	}{
		{"unknown product", types.MealTypeBreakfast, "prod_missing"},
		{"inactive product", types.MealTypeBreakfast, inactive.ID},
		{"wrong meal type", types.MealTypeDinner, s.testData.lunch.ID},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.CreateSubscription(ctx, &dto.CreateSubscriptionRequest{
				PlanType:      "trial",
				PlanName:      "One Day",
				SelectionMode: types.SelectionModeExplicit,
				Days: []dto.DaySelection{{Meals: []dto.MealSelection{
					{MealType: tt.mealType, ProductID: tt.productID},
				}}},
				PaymentMethod: types.PaymentMethodWallet,
			})
			s.True(ierr.IsValidation(err), "got %v", err)
		})
	}

	subs, err := s.GetStores().SubscriptionRepo.List(ctx, types.NewSubscriptionFilter())
	s.NoError(err)
	s.Empty(subs)
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_AutoWithoutMatchingProducts() {
	s.CreateWallet(types.DefaultUserID, 2000)
	req := autoPlanRequest(types.PaymentMethodWallet)
	req.Preferences = []string{"vegan"}

	_, err := s.service.CreateSubscription(s.GetContext(), req)
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_CardCheckout() {
	ctx := s.GetContext()
	gw := s.GetCardGateway()
	gw.On("CreateCustomer", mock.Anything, mock.Anything).
		Return(&payment.GatewayCustomer{CustomerRef: "cus_100"}, nil).Once()
	gw.On("CreateAndConfirmCharge", mock.Anything, mock.MatchedBy(func(in *payment.ChargeInput) bool {
		return in.CustomerRef == "cus_100" && in.PaymentMethodRef == "pm_visa" && in.Amount.Equal(decimal.NewFromInt(1372))
	})).Return(&payment.ChargeResult{TransactionID: "ch_100", Status: payment.ChargeStatusSucceeded}, nil).Once()

	req := autoPlanRequest(types.PaymentMethodCard)
	req.PaymentMethodRef = "pm_visa"
	resp, err := s.service.CreateSubscription(ctx, req)
	s.Require().NoError(err)

	sub := resp.Subscription.Subscription
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Equal("ch_100", sub.Payment.TransactionID)
	s.Equal(types.PaymentStatusCompleted, resp.Payment.PaymentStatus)

	profile, err := s.GetStores().CustomerRepo.GetByUserID(ctx, types.DefaultUserID)
	s.Require().NoError(err)
	s.Equal("cus_100", profile.CustomerRef)
	s.Equal("pm_visa", profile.DefaultPaymentMethodRef)

	gw.AssertExpectations(s.T())
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_CompensatesChargeWhenSaveFails() {
	ctx := s.GetContext()
	gw := s.GetCardGateway()
	gw.On("CreateCustomer", mock.Anything, mock.Anything).
		Return(&payment.GatewayCustomer{CustomerRef: "cus_200"}, nil).Once()
	gw.On("CreateAndConfirmCharge", mock.Anything, mock.Anything).
		Return(&payment.ChargeResult{TransactionID: "ch_200", Status: payment.ChargeStatusSucceeded}, nil).Once()
	gw.On("Refund", mock.Anything, mock.MatchedBy(func(in *payment.RefundInput) bool {
		return in.TransactionID == "ch_200" &&
			in.Amount.Equal(decimal.NewFromInt(1372)) &&
			in.IdempotencyKey == "refund-checkout-e"
	})).Return(&payment.RefundResult{RefundID: "re_200", Status: "succeeded"}, nil).Once()

	s.GetDB().FailNextCommit = errors.New("connection reset during commit")

	req := autoPlanRequest(types.PaymentMethodCard)
	req.PaymentMethodRef = "pm_visa"
	req.IdempotencyKey = "checkout-e"
	_, err := s.service.CreateSubscription(ctx, req)
	s.Error(err)
	s.True(ierr.IsPaymentGateway(err))

	subs, err := s.GetStores().SubscriptionRepo.List(ctx, types.NewSubscriptionFilter())
	s.NoError(err)
	s.Empty(subs)

	count, err := s.GetStores().DailyOrderRepo.Count(ctx, types.NewDailyOrderFilter())
	s.NoError(err)
	s.Zero(count)

	// the checkout key stays free so the user can retry
	_, err = s.GetStores().PaymentRepo.GetByIdempotencyKey(ctx, "checkout-e")
	s.True(ierr.IsNotFound(err))

	refund, err := s.GetStores().PaymentRepo.GetByIdempotencyKey(ctx, "refund-checkout-e")
	s.Require().NoError(err)
	s.Equal(types.PaymentPurposeRefund, refund.Purpose)
	s.Equal(types.PaymentStatusRefunded, refund.PaymentStatus)
	s.Equal("re_200", refund.GatewayTransactionID)

	gw.AssertExpectations(s.T())
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_DeclinedCard() {
	gw := s.GetCardGateway()
	gw.On("CreateCustomer", mock.Anything, mock.Anything).
		Return(&payment.GatewayCustomer{CustomerRef: "cus_300"}, nil).Once()
	gw.On("CreateAndConfirmCharge", mock.Anything, mock.Anything).
		Return(&payment.ChargeResult{TransactionID: "ch_300", Status: "requires_payment_method"}, nil).Once()

	req := autoPlanRequest(types.PaymentMethodCard)
	req.PaymentMethodRef = "pm_declined"
	_, err := s.service.CreateSubscription(s.GetContext(), req)
	s.True(ierr.IsPaymentGateway(err))

	gw.AssertNotCalled(s.T(), "Refund", mock.Anything, mock.Anything)
	gw.AssertNumberOfCalls(s.T(), "CreateAndConfirmCharge", 1)

	subs, err := s.GetStores().SubscriptionRepo.List(s.GetContext(), types.NewSubscriptionFilter())
	s.NoError(err)
	s.Empty(subs)
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_CashOnDeliveryAndSettle() {
	ctx := s.GetContext()

	resp, err := s.service.CreateSubscription(ctx, autoPlanRequest(types.PaymentMethodCOD))
	s.Require().NoError(err)

	sub := resp.Subscription.Subscription
	s.Equal(types.SubscriptionStatusPending, sub.SubscriptionStatus)
	s.Equal(types.PaymentStatusPending, sub.Payment.Status)
	assertAmount(s.T(), "1372", sub.Payment.BalanceRemaining)
	s.Equal(types.PaymentStatusPending, resp.Payment.PaymentStatus)

	settled, err := s.service.SettleCashPayment(ctx, sub.ID, &dto.SettleCashPaymentRequest{Amount: decimal.NewFromInt(1372)})
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, settled.SubscriptionStatus)
	s.Equal(types.PaymentStatusCompleted, settled.Payment.Status)
	assertAmount(s.T(), "0", settled.Payment.BalanceRemaining)

	p, err := s.GetStores().PaymentRepo.Get(ctx, sub.Payment.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusCompleted, p.PaymentStatus)
	s.NotNil(p.CompletedAt)

	_, err = s.service.SettleCashPayment(ctx, sub.ID, &dto.SettleCashPaymentRequest{Amount: decimal.NewFromInt(1372)})
	s.True(ierr.IsStateConflict(err))

	s.Len(s.GetNotifier().Sent(notification.KindSubscriptionActivated), 1)
}

func (s *SubscriptionServiceSuite) TestPauseSubscription_Limit() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()

	for i := 0; i < 2; i++ {
		paused, err := s.service.PauseSubscription(ctx, sub.ID)
		s.Require().NoError(err)
		s.Equal(types.SubscriptionStatusPaused, paused.SubscriptionStatus)
		s.Equal(i+1, paused.PauseCount)
		s.NotNil(paused.PausedAt)

		resumed, err := s.service.ResumeSubscription(ctx, sub.ID)
		s.Require().NoError(err)
		s.Equal(types.SubscriptionStatusActive, resumed.SubscriptionStatus)
		s.Nil(resumed.PausedAt)
	}

	_, err := s.service.PauseSubscription(ctx, sub.ID)
	s.True(ierr.IsPauseLimitReached(err))

	current := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusActive, current.SubscriptionStatus)
	s.Equal(2, current.PauseCount)
}

func (s *SubscriptionServiceSuite) TestPauseSubscription_ConcurrentRequests() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()

	_, err := s.settings.UpdateSettingByKey(ctx, types.SettingKeyPausePolicy, &dto.UpdateSettingRequest{
		Value: map[string]interface{}{"max_pause_times": 1},
	})
	s.Require().NoError(err)

	const workers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.PauseSubscription(ctx, sub.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Len(failures, workers-1)
	for _, err := range failures {
		s.True(ierr.IsStateConflict(err) || ierr.IsPauseLimitReached(err), "got %v", err)
	}

	current := s.reload(sub.ID)
	s.Equal(1, current.PauseCount)
	s.Equal(types.SubscriptionStatusPaused, current.SubscriptionStatus)
}

// committedTx runs fn without rollback, like writes committed by separate
// database transactions
type committedTx struct{}

func (committedTx) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (s *SubscriptionServiceSuite) TestUpdate_StaleCopyConflicts() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()
	repo := s.GetStores().SubscriptionRepo

	first, err := repo.Get(ctx, sub.ID)
	s.Require().NoError(err)
	stale, err := repo.Get(ctx, sub.ID)
	s.Require().NoError(err)

	first.PauseCount = 1
	s.Require().NoError(repo.Update(ctx, first))

	stale.AutoRenew = true
	err = repo.Update(ctx, stale)
	s.True(ierr.IsVersionConflict(err), "got %v", err)

	current := s.reload(sub.ID)
	s.Equal(1, current.PauseCount)
	s.False(current.AutoRenew)
	s.Equal(first.Version, current.Version)
}

func (s *SubscriptionServiceSuite) TestPauseSubscription_RechecksLimitAfterConflict() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()

	_, err := s.settings.UpdateSettingByKey(ctx, types.SettingKeyPausePolicy, &dto.UpdateSettingRequest{
		Value: map[string]interface{}{"max_pause_times": 1},
	})
	s.Require().NoError(err)

	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.DB = committedTx{}
	svc := NewSubscriptionService(params)

	store := s.GetStores().SubscriptionRepo
	// another request pauses and resumes after our read and before our write
	store.OnNextUpdate(func(ctx context.Context) {
		other, err := store.Get(ctx, sub.ID)
		s.Require().NoError(err)
		other.PauseCount = 1
		s.Require().NoError(store.Update(ctx, other))
	})

	_, err = svc.PauseSubscription(ctx, sub.ID)
	s.True(ierr.IsPauseLimitReached(err), "got %v", err)

	current := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusActive, current.SubscriptionStatus)
	s.Equal(1, current.PauseCount)
	s.Nil(current.PausedAt)
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_NotificationFailureKeepsSubscription() {
	ctx := s.GetContext()
	s.GetNotifier().Err = errors.New("smtp down")

	sub := s.createWalletPlan()

	current := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusActive, current.SubscriptionStatus)
	s.Equal(types.PaymentStatusCompleted, current.Payment.Status)

	orders, err := s.GetStores().DailyOrderRepo.ListBySubscription(ctx, sub.ID)
	s.Require().NoError(err)
	s.Len(orders, 7)

	w, err := s.GetStores().WalletRepo.GetByUserID(ctx, types.DefaultUserID)
	s.Require().NoError(err)
	assertAmount(s.T(), "628", w.Balance)
	s.Len(s.GetNotifier().Sent(notification.KindSubscriptionCreated), 1)
}

func (s *SubscriptionServiceSuite) TestCreateSubscription_StartDate() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 4000)

	yesterday := s.Today().AddDate(0, 0, -1)
	req := autoPlanRequest(types.PaymentMethodWallet)
	req.StartDate = &yesterday
	_, err := s.service.CreateSubscription(ctx, req)
	s.True(ierr.IsValidation(err), "got %v", err)

	count, err := s.GetStores().SubscriptionRepo.Count(ctx, nil)
	s.Require().NoError(err)
	s.Zero(count)

	// later today is still today
	later := s.GetNow().Add(3 * time.Hour)
	req = autoPlanRequest(types.PaymentMethodWallet)
	req.StartDate = &later
	resp, err := s.service.CreateSubscription(ctx, req)
	s.Require().NoError(err)
	s.Equal(s.Today(), resp.Subscription.StartDate)

	// operators may backdate
	req = autoPlanRequest(types.PaymentMethodWallet)
	req.StartDate = &yesterday
	req.AllowBackdatedStart = true
	resp, err = s.service.CreateSubscription(ctx, req)
	s.Require().NoError(err)
	s.Equal(yesterday, resp.Subscription.StartDate)
}

func (s *SubscriptionServiceSuite) TestPauseRequiresActive() {
	ctx := s.GetContext()
	resp, err := s.service.CreateSubscription(ctx, autoPlanRequest(types.PaymentMethodCOD))
	s.Require().NoError(err)

	_, err = s.service.PauseSubscription(ctx, resp.Subscription.ID)
	s.True(ierr.IsStateConflict(err))
}

func (s *SubscriptionServiceSuite) TestFreezeSubscription() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()

	frozen, err := s.service.FreezeSubscription(ctx, sub.ID, &dto.FreezeSubscriptionRequest{Days: 3, Reason: "travelling"})
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusFrozen, frozen.SubscriptionStatus)
	s.Equal(3, frozen.FrozenDays)
	s.Require().NotNil(frozen.FrozenUntil)
	s.Equal(s.GetNow().AddDate(0, 0, 3), *frozen.FrozenUntil)
	s.Len(frozen.FreezeHistory, 1)
	s.Equal("travelling", frozen.FreezeHistory[0].Reason)

	_, err = s.service.FreezeSubscription(ctx, sub.ID, &dto.FreezeSubscriptionRequest{Days: 2})
	s.True(ierr.IsStateConflict(err))

	resumed, err := s.service.ResumeSubscription(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, resumed.SubscriptionStatus)
	s.Nil(resumed.FrozenUntil)
	s.Len(resumed.FreezeHistory, 1)
}

func (s *SubscriptionServiceSuite) TestFreezeSubscription_InvalidDays() {
	sub := s.createWalletPlan()
	_, err := s.service.FreezeSubscription(s.GetContext(), sub.ID, &dto.FreezeSubscriptionRequest{Days: 0})
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestCancelSubscription() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()

	cancelled, err := s.service.CancelSubscription(ctx, sub.ID, &dto.CancelSubscriptionRequest{Reason: "moving out"})
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, cancelled.SubscriptionStatus)
	s.Equal("moving out", cancelled.CancelReason)
	s.NotNil(cancelled.CancelledAt)

	_, err = s.service.CancelSubscription(ctx, sub.ID, &dto.CancelSubscriptionRequest{})
	s.True(ierr.IsStateConflict(err))

	_, err = s.service.ResumeSubscription(ctx, sub.ID)
	s.True(ierr.IsStateConflict(err))

	_, err = s.service.UpdateAutoRenew(ctx, sub.ID, &dto.UpdateAutoRenewRequest{AutoRenew: lo.ToPtr(true)})
	s.True(ierr.IsStateConflict(err))

	// cancelling moves no money
	w, err := s.GetStores().WalletRepo.GetByUserID(ctx, types.DefaultUserID)
	s.Require().NoError(err)
	assertAmount(s.T(), "628", w.Balance)
}

func (s *SubscriptionServiceSuite) TestRefundSubscription_Partial() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()

	s.deliver(sub.ID, 0, types.MealTypeBreakfast, types.MealTypeLunch)
	s.deliver(sub.ID, 1, types.MealTypeBreakfast, types.MealTypeLunch)
	s.SetNow(s.GetNow().AddDate(0, 0, 2))

	resp, err := s.service.RefundSubscription(ctx, sub.ID, &dto.RefundSubscriptionRequest{Reason: "not for me"})
	s.Require().NoError(err)
	assertAmount(s.T(), "980", resp.RefundAmount)
	s.Equal(types.SubscriptionStatusRefunded, resp.Subscription.SubscriptionStatus)
	s.Equal(types.PaymentStatusRefunded, resp.Subscription.Payment.Status)
	assertAmount(s.T(), "980", resp.Subscription.RefundAmount)
	s.NotEmpty(resp.RefundID)

	w, err := s.GetStores().WalletRepo.GetByUserID(ctx, types.DefaultUserID)
	s.Require().NoError(err)
	assertAmount(s.T(), "1608", w.Balance)

	txns, err := s.GetStores().WalletRepo.ListTransactions(ctx, w.ID, nil)
	s.Require().NoError(err)
	refunds := lo.Filter(txns, func(t *wallet.Transaction, _ int) bool { return t.Reason == types.TransactionReasonRefund })
	s.Len(refunds, 1)

	_, err = s.service.RefundSubscription(ctx, sub.ID, &dto.RefundSubscriptionRequest{Force: true})
	s.True(ierr.IsStateConflict(err))

	s.Len(s.GetNotifier().Sent(notification.KindSubscriptionRefunded), 1)
}

func (s *SubscriptionServiceSuite) TestRefundSubscription_FullWithinGrace() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()

	_, err := s.settings.UpdateSettingByKey(ctx, types.SettingKeyRefundPolicy, &dto.UpdateSettingRequest{
		Value: map[string]interface{}{"policy": "full", "grace_days": 1},
	})
	s.Require().NoError(err)
	s.deliver(sub.ID, 0, types.MealTypeBreakfast)

	s.SetNow(s.GetNow().Add(24 * time.Hour))
	resp, err := s.service.RefundSubscription(ctx, sub.ID, &dto.RefundSubscriptionRequest{})
	s.Require().NoError(err)
	assertAmount(s.T(), "1372", resp.RefundAmount)
}

func (s *SubscriptionServiceSuite) TestRefundSubscription_FullPastGraceActsPartial() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()

	_, err := s.settings.UpdateSettingByKey(ctx, types.SettingKeyRefundPolicy, &dto.UpdateSettingRequest{
		Value: map[string]interface{}{"policy": "full", "grace_days": 1},
	})
	s.Require().NoError(err)
	s.deliver(sub.ID, 0, types.MealTypeBreakfast, types.MealTypeLunch)

	s.SetNow(s.GetNow().AddDate(0, 0, 3))
	resp, err := s.service.RefundSubscription(ctx, sub.ID, &dto.RefundSubscriptionRequest{})
	s.Require().NoError(err)
	// 12 of 14 meals left
	assertAmount(s.T(), "1176", resp.RefundAmount)
}

func (s *SubscriptionServiceSuite) TestRefundSubscription_TerminalNeedsForce() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()

	_, err := s.service.CancelSubscription(ctx, sub.ID, &dto.CancelSubscriptionRequest{})
	s.Require().NoError(err)

	_, err = s.service.RefundSubscription(ctx, sub.ID, &dto.RefundSubscriptionRequest{})
	s.True(ierr.IsStateConflict(err))

	resp, err := s.service.RefundSubscription(ctx, sub.ID, &dto.RefundSubscriptionRequest{Force: true})
	s.Require().NoError(err)
	assertAmount(s.T(), "1372", resp.RefundAmount)
	s.Equal(types.SubscriptionStatusRefunded, resp.Subscription.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestRefundSubscription_NoMeals() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 0)

	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:             types.DefaultUserID,
		PlanName:           "Empty",
		StartDate:          s.Today(),
		EndDate:            s.Today().AddDate(0, 0, 7),
		Currency:           types.DefaultCurrency,
		TotalPrice:         decimal.NewFromInt(100),
		RefundAmount:       decimal.Zero,
		SubscriptionStatus: types.SubscriptionStatusActive,
		Payment: subscription.PaymentState{
			Gateway:    types.PaymentMethodWallet,
			Status:     types.PaymentStatusCompleted,
			AmountPaid: decimal.NewFromInt(100),
		},
		Version:   1,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, sub))

	resp, err := s.service.RefundSubscription(ctx, sub.ID, &dto.RefundSubscriptionRequest{})
	s.Require().NoError(err)
	assertAmount(s.T(), "0", resp.RefundAmount)
	s.Nil(resp.Payment)
	s.Equal(types.SubscriptionStatusRefunded, resp.Subscription.SubscriptionStatus)
	s.Equal(types.PaymentStatusCompleted, resp.Subscription.Payment.Status)
}

func (s *SubscriptionServiceSuite) TestRefundSubscription_Card() {
	ctx := s.GetContext()
	gw := s.GetCardGateway()
	gw.On("CreateCustomer", mock.Anything, mock.Anything).
		Return(&payment.GatewayCustomer{CustomerRef: "cus_400"}, nil).Once()
	gw.On("CreateAndConfirmCharge", mock.Anything, mock.Anything).
		Return(&payment.ChargeResult{TransactionID: "ch_400", Status: payment.ChargeStatusSucceeded}, nil).Once()

	req := autoPlanRequest(types.PaymentMethodCard)
	req.PaymentMethodRef = "pm_visa"
	created, err := s.service.CreateSubscription(ctx, req)
	s.Require().NoError(err)
	subID := created.Subscription.ID

	gw.On("Refund", mock.Anything, mock.MatchedBy(func(in *payment.RefundInput) bool {
		return in.TransactionID == "ch_400" && in.IdempotencyKey == "refund-"+subID
	})).Return(&payment.RefundResult{RefundID: "re_400", Status: "succeeded"}, nil).Once()

	resp, err := s.service.RefundSubscription(ctx, subID, &dto.RefundSubscriptionRequest{})
	s.Require().NoError(err)
	assertAmount(s.T(), "1372", resp.RefundAmount)
	s.Equal("re_400", resp.RefundID)
	s.Require().NotNil(resp.Payment)
	s.Equal(types.PaymentPurposeRefund, resp.Payment.Purpose)

	gw.AssertExpectations(s.T())
}

func (s *SubscriptionServiceSuite) TestUpdateAutoRenew() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()
	s.False(sub.AutoRenew)

	updated, err := s.service.UpdateAutoRenew(ctx, sub.ID, &dto.UpdateAutoRenewRequest{AutoRenew: lo.ToPtr(true)})
	s.Require().NoError(err)
	s.True(updated.AutoRenew)
	s.Equal(sub.Version+1, updated.Version)

	_, err = s.service.UpdateAutoRenew(ctx, sub.ID, &dto.UpdateAutoRenewRequest{})
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestGetListAndDelete() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()

	got, err := s.service.GetSubscription(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(sub.ID, got.ID)

	filter := types.NewSubscriptionFilter()
	filter.UserID = types.DefaultUserID
	list, err := s.service.ListSubscriptions(ctx, filter)
	s.Require().NoError(err)
	s.Len(list.Items, 1)

	s.Require().NoError(s.service.DeleteSubscription(ctx, sub.ID))

	_, err = s.service.GetSubscription(ctx, sub.ID)
	s.True(ierr.IsNotFound(err))

	orders, err := s.GetStores().DailyOrderRepo.ListBySubscription(ctx, sub.ID)
	s.NoError(err)
	s.Empty(orders)

	err = s.service.DeleteSubscription(ctx, sub.ID)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestRemainingMealsInvariant() {
	ctx := s.GetContext()
	sub := s.createWalletPlan()

	for day := 0; day < 3; day++ {
		s.deliver(sub.ID, day, types.MealTypeBreakfast)
		current := s.reload(sub.ID)
		s.Equal(current.TotalMeals-current.ConsumedMeals, current.RemainingMeals)
		s.Equal(day+1, current.ConsumedMeals)
		s.Equal(max(current.RemainingMeals-current.SwappableMeals, 0), current.PendingDeliveries)
	}

	payments, err := s.service.ListPayments(ctx, sub.ID)
	s.NoError(err)
	s.Len(payments.Items, 1)
}
