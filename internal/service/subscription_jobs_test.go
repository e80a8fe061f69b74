package service

import (
	"errors"
	"testing"
	"time"

	"github.com/flexprice/mealsub/internal/api/dto"
	"github.com/flexprice/mealsub/internal/domain/subscription"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/notification"
	"github.com/flexprice/mealsub/internal/testutil"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SubscriptionJobServiceSuite struct {
	testutil.BaseServiceTestSuite
	service       SubscriptionJobService
	subscriptions SubscriptionService
	settings      SettingsService
}

func TestSubscriptionJobService(t *testing.T) {
	suite.Run(t, new(SubscriptionJobServiceSuite))
}

func (s *SubscriptionJobServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewSubscriptionJobService(params)
	s.subscriptions = NewSubscriptionService(params)
	s.settings = NewSettingsService(params)

	s.CreateProduct("Overnight Oats", types.MealTypeBreakfast, 100, 40)
	s.CreateProduct("Banana Pancakes", types.MealTypeBreakfast, 100, 45)
	s.CreateProduct("Chicken Rice Bowl", types.MealTypeLunch, 100, 55)
}

func (s *SubscriptionJobServiceSuite) createPlan(autoRenew bool) *subscription.Subscription {
	req := autoPlanRequest(types.PaymentMethodWallet)
	req.AutoRenew = autoRenew
	resp, err := s.subscriptions.CreateSubscription(s.GetContext(), req)
	s.Require().NoError(err)
	return resp.Subscription.Subscription
}

func (s *SubscriptionJobServiceSuite) reload(id string) *subscription.Subscription {
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return sub
}

func (s *SubscriptionJobServiceSuite) updateSetting(key types.SettingKey, value map[string]interface{}) {
	_, err := s.settings.UpdateSettingByKey(s.GetContext(), key, &dto.UpdateSettingRequest{Value: value})
	s.Require().NoError(err)
}

func (s *SubscriptionJobServiceSuite) TestExpireSubscriptions_Idempotent() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 2000)
	sub := s.createPlan(false)

	result, err := s.service.ExpireSubscriptions(ctx)
	s.Require().NoError(err)
	s.Zero(result.Affected)

	s.SetNow(sub.EndDate.Add(time.Hour))

	result, err = s.service.ExpireSubscriptions(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Affected)
	s.Equal(types.SubscriptionStatusExpired, s.reload(sub.ID).SubscriptionStatus)

	result, err = s.service.ExpireSubscriptions(ctx)
	s.Require().NoError(err)
	s.Zero(result.Affected)

	s.Len(s.GetNotifier().Sent(notification.KindSubscriptionExpired), 1)
}

func (s *SubscriptionJobServiceSuite) TestExpireSubscriptions_LeavesAutoRenewForRenewal() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 2000)
	sub := s.createPlan(true)
	s.SetNow(sub.EndDate.Add(time.Hour))

	result, err := s.service.ExpireSubscriptions(ctx)
	s.Require().NoError(err)
	s.Zero(result.Affected)
	s.Equal(types.SubscriptionStatusActive, s.reload(sub.ID).SubscriptionStatus)

	// with renewals switched off nothing else would close it
	s.updateSetting(types.SettingKeyAutoRenew, map[string]interface{}{"enabled": false})

	result, err = s.service.ExpireSubscriptions(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Affected)
	s.Equal(types.SubscriptionStatusExpired, s.reload(sub.ID).SubscriptionStatus)
}

func (s *SubscriptionJobServiceSuite) TestExpireSubscriptions_CompletesExhausted() {
	ctx := s.GetContext()
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:             types.DefaultUserID,
		PlanName:           "Legacy",
		StartDate:          s.Today().AddDate(0, 0, -7),
		EndDate:            s.Today().AddDate(0, 0, 7),
		TotalMeals:         2,
		ConsumedMeals:      2,
		RemainingMeals:     0,
		TotalPrice:         decimal.NewFromInt(200),
		RefundAmount:       decimal.Zero,
		SubscriptionStatus: types.SubscriptionStatusActive,
		Version:            1,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, sub))

	result, err := s.service.Run(ctx, types.JobExpireSubscriptions)
	s.Require().NoError(err)
	s.Equal(1, result.Affected)

	current := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusCompleted, current.SubscriptionStatus)
	s.Equal(2, current.Version)
	s.Len(s.GetNotifier().Sent(notification.KindSubscriptionCompleted), 1)
}

func (s *SubscriptionJobServiceSuite) TestUnfreezeSubscriptions() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 2000)
	sub := s.createPlan(false)

	_, err := s.subscriptions.FreezeSubscription(ctx, sub.ID, &dto.FreezeSubscriptionRequest{Days: 2})
	s.Require().NoError(err)

	s.SetNow(s.GetNow().AddDate(0, 0, 1))
	result, err := s.service.UnfreezeSubscriptions(ctx)
	s.Require().NoError(err)
	s.Zero(result.Affected)
	s.Equal(types.SubscriptionStatusFrozen, s.reload(sub.ID).SubscriptionStatus)

	s.SetNow(s.GetNow().AddDate(0, 0, 1).Add(time.Minute))
	result, err = s.service.UnfreezeSubscriptions(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Affected)

	current := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusActive, current.SubscriptionStatus)
	s.Nil(current.FrozenUntil)
	s.Len(current.FreezeHistory, 1)

	result, err = s.service.UnfreezeSubscriptions(ctx)
	s.Require().NoError(err)
	s.Zero(result.Affected)
}

func (s *SubscriptionJobServiceSuite) TestLockMeals_FollowsChangeWindow() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 2000)
	sub := s.createPlan(false)

	result, err := s.service.LockMeals(ctx)
	s.Require().NoError(err)
	s.Zero(result.Affected)

	s.updateSetting(types.SettingKeyChangeWindow, map[string]interface{}{"days": 5})

	result, err = s.service.Run(ctx, types.JobLockMeals)
	s.Require().NoError(err)
	s.Equal(1, result.Affected)
	s.Zero(result.Failed)

	s.assertLocks(sub.ID, []bool{false, false, false, false, false, true, true})
	s.Equal(10, s.reload(sub.ID).SwappableMeals)

	// a day later the first day is in the past
	s.SetNow(s.GetNow().AddDate(0, 0, 1))
	_, err = s.service.LockMeals(ctx)
	s.Require().NoError(err)

	s.assertLocks(sub.ID, []bool{true, false, false, false, false, true, true})
	s.Equal(8, s.reload(sub.ID).SwappableMeals)
}

func (s *SubscriptionJobServiceSuite) assertLocks(subID string, want []bool) {
	sub := s.reload(subID)
	s.Require().Len(sub.Meals, len(want))
	for i, slot := range sub.Meals {
		s.Equal(want[i], slot.Locked, "subscription day %d", i)
	}

	orders, err := s.GetStores().DailyOrderRepo.ListBySubscription(s.GetContext(), subID)
	s.Require().NoError(err)
	s.Require().Len(orders, len(want))
	for i, o := range orders {
		s.Equal(want[i], o.Locked, "order day %d", i)
	}
}

func (s *SubscriptionJobServiceSuite) TestLockMeals_SkipsTerminal() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 2000)
	sub := s.createPlan(false)

	_, err := s.subscriptions.CancelSubscription(ctx, sub.ID, &dto.CancelSubscriptionRequest{})
	s.Require().NoError(err)
	s.updateSetting(types.SettingKeyChangeWindow, map[string]interface{}{"days": 7})

	result, err := s.service.LockMeals(ctx)
	s.Require().NoError(err)
	s.Zero(result.Affected)
	s.True(s.reload(sub.ID).Meals[6].Locked)
}

func (s *SubscriptionJobServiceSuite) TestAutoRenew_RegeneratesCalendar() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 4000)
	sub := s.createPlan(true)

	oldEnd := sub.EndDate
	s.SetNow(oldEnd.Add(6 * time.Hour))

	result, err := s.service.AutoRenewSubscriptions(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Affected)
	s.Zero(result.Failed)

	renewed := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusActive, renewed.SubscriptionStatus)
	s.Equal(oldEnd, renewed.StartDate)
	s.Equal(oldEnd.AddDate(0, 0, 7), renewed.EndDate)
	s.Equal(1, renewed.RenewalCount)
	s.Equal(14, renewed.TotalMeals)
	s.Zero(renewed.ConsumedMeals)
	s.Equal(14, renewed.RemainingMeals)
	s.Len(renewed.Meals, 7)
	s.Equal(oldEnd, renewed.Meals[0].Date)
	s.Equal(types.PaymentStatusCompleted, renewed.Payment.Status)
	assertAmount(s.T(), "1372", renewed.Payment.AmountPaid)
	s.True(renewed.AutoRenew)

	filter := types.NewDailyOrderFilter()
	filter.SubscriptionID = sub.ID
	filter.From = &oldEnd
	count, err := s.GetStores().DailyOrderRepo.Count(ctx, filter)
	s.Require().NoError(err)
	s.Equal(7, count)

	w, err := s.GetStores().WalletRepo.GetByUserID(ctx, types.DefaultUserID)
	s.Require().NoError(err)
	assertAmount(s.T(), "1256", w.Balance)

	renewal, err := s.GetStores().PaymentRepo.GetByIdempotencyKey(ctx, "renew-"+sub.ID+"-1")
	s.Require().NoError(err)
	s.Equal(types.PaymentPurposeRenewal, renewal.Purpose)
	s.Len(s.GetNotifier().Sent(notification.KindRenewalSucceeded), 1)

	// the renewed cycle is not due yet
	result, err = s.service.AutoRenewSubscriptions(ctx)
	s.Require().NoError(err)
	s.Zero(result.Affected)
}

func (s *SubscriptionJobServiceSuite) TestAutoRenew_PaymentFailureDisablesRenewal() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 1500)
	sub := s.createPlan(true)
	s.SetNow(sub.EndDate.Add(time.Hour))

	result, err := s.service.AutoRenewSubscriptions(ctx)
	s.Require().NoError(err)
	s.Zero(result.Affected)
	s.Equal(1, result.Failed)

	current := s.reload(sub.ID)
	s.False(current.AutoRenew)
	s.Equal(0, current.RenewalCount)
	s.Equal(sub.EndDate, current.EndDate)
	// past its end with meals left, so it closes as soon as renewal is off
	s.Equal(types.SubscriptionStatusExpired, current.SubscriptionStatus)

	w, err := s.GetStores().WalletRepo.GetByUserID(ctx, types.DefaultUserID)
	s.Require().NoError(err)
	assertAmount(s.T(), "128", w.Balance)

	failed := s.GetNotifier().Sent(notification.KindRenewalFailed)
	s.Require().Len(failed, 1)
	s.NotEmpty(failed[0].Data["reason"])

	result, err = s.service.AutoRenewSubscriptions(ctx)
	s.Require().NoError(err)
	s.Zero(result.Affected)
	s.Zero(result.Failed)
}

func (s *SubscriptionJobServiceSuite) TestAutoRenew_GloballyDisabled() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 4000)
	sub := s.createPlan(true)
	s.SetNow(sub.EndDate.Add(time.Hour))
	s.updateSetting(types.SettingKeyAutoRenew, map[string]interface{}{"enabled": false})

	result, err := s.service.AutoRenewSubscriptions(ctx)
	s.Require().NoError(err)
	s.Zero(result.Affected)
	s.Zero(s.reload(sub.ID).RenewalCount)
}

func (s *SubscriptionJobServiceSuite) TestExpireSubscriptions_NotificationFailure() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 2000)
	sub := s.createPlan(false)
	s.GetNotifier().Err = errors.New("smtp down")
	s.SetNow(sub.EndDate.Add(time.Hour))

	result, err := s.service.ExpireSubscriptions(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Affected)
	s.Equal(types.SubscriptionStatusExpired, s.reload(sub.ID).SubscriptionStatus)
	s.Len(s.GetNotifier().Sent(notification.KindSubscriptionExpired), 1)

	result, err = s.service.ExpireSubscriptions(ctx)
	s.Require().NoError(err)
	s.Zero(result.Affected)
}

func (s *SubscriptionJobServiceSuite) TestAutoRenew_NotificationFailure() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 4000)
	sub := s.createPlan(true)
	s.GetNotifier().Err = errors.New("smtp down")
	s.SetNow(sub.EndDate.Add(6 * time.Hour))

	result, err := s.service.AutoRenewSubscriptions(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Affected)
	s.Zero(result.Failed)

	renewed := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusActive, renewed.SubscriptionStatus)
	s.Equal(1, renewed.RenewalCount)
	s.Equal(sub.EndDate.AddDate(0, 0, 7), renewed.EndDate)
	s.True(renewed.AutoRenew)

	w, err := s.GetStores().WalletRepo.GetByUserID(ctx, types.DefaultUserID)
	s.Require().NoError(err)
	assertAmount(s.T(), "1256", w.Balance)
	s.Len(s.GetNotifier().Sent(notification.KindRenewalSucceeded), 1)
}

func (s *SubscriptionJobServiceSuite) TestRun_UnknownJob() {
	_, err := s.service.Run(s.GetContext(), types.JobName("send-invoices"))
	s.True(ierr.IsValidation(err))
}
