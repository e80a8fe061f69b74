package service

import (
	"testing"

	"github.com/flexprice/mealsub/internal/api/dto"
	"github.com/flexprice/mealsub/internal/domain/dailyorder"
	"github.com/flexprice/mealsub/internal/domain/product"
	"github.com/flexprice/mealsub/internal/domain/subscription"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/notification"
	"github.com/flexprice/mealsub/internal/testutil"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/stretchr/testify/suite"
)

type DailyOrderServiceSuite struct {
	testutil.BaseServiceTestSuite
	service       DailyOrderService
	subscriptions SubscriptionService
	testData      struct {
		oats     *product.Product
		pancakes *product.Product
		lunch    *product.Product
		sub      *subscription.Subscription
	}
}

func TestDailyOrderService(t *testing.T) {
	suite.Run(t, new(DailyOrderServiceSuite))
}

func (s *DailyOrderServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewDailyOrderService(params)
	s.subscriptions = NewSubscriptionService(params)
	s.setupTestData()
}

func (s *DailyOrderServiceSuite) setupTestData() {
	s.testData.oats = s.CreateProduct("Overnight Oats", types.MealTypeBreakfast, 100, 40)
	s.testData.pancakes = s.CreateProduct("Banana Pancakes", types.MealTypeBreakfast, 100, 45)
	s.testData.lunch = s.CreateProduct("Chicken Rice Bowl", types.MealTypeLunch, 100, 55)
	s.CreateWallet(types.DefaultUserID, 2000)

	resp, err := s.subscriptions.CreateSubscription(s.GetContext(), autoPlanRequest(types.PaymentMethodWallet))
	s.Require().NoError(err)
	s.testData.sub = resp.Subscription.Subscription
}

func (s *DailyOrderServiceSuite) orderOn(day int) *dailyorder.DailyOrder {
	order, err := s.GetStores().DailyOrderRepo.GetBySubscriptionAndDate(s.GetContext(), s.testData.sub.ID, s.Today().AddDate(0, 0, day))
	s.Require().NoError(err)
	return order
}

func (s *DailyOrderServiceSuite) subscription() *subscription.Subscription {
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), s.testData.sub.ID)
	s.Require().NoError(err)
	return sub
}

func (s *DailyOrderServiceSuite) TestSwapMeal_UnlockedDay() {
	ctx := s.GetContext()
	date := s.Today().AddDate(0, 0, 1)

	before := s.orderOn(1)
	meal, ok := before.Meal(types.MealTypeBreakfast)
	s.Require().True(ok)
	from := meal.ProductID

	resp, err := s.service.SwapMeal(ctx, s.testData.sub.ID, &dto.SwapMealRequest{
		Date:     date,
		MealType: types.MealTypeBreakfast,
	})
	s.Require().NoError(err)
	s.Equal(from, resp.FromProductID)
	s.NotEqual(from, resp.ToProductID)

	after := s.orderOn(1)
	swapped, ok := after.Meal(types.MealTypeBreakfast)
	s.Require().True(ok)
	s.Equal(resp.ToProductID, swapped.ProductID)
	// the paid price stays, the kitchen cost follows the new product
	assertAmount(s.T(), "98", swapped.Price)
	assertAmount(s.T(), before.TotalAmount.String(), after.TotalAmount)

	sub := s.subscription()
	slot, ok := sub.SlotForDate(date)
	s.Require().True(ok)
	item, ok := slot.Item(types.MealTypeBreakfast)
	s.Require().True(ok)
	s.Equal(resp.ToProductID, item.ProductID)
	s.Require().Len(sub.SwapHistory, 1)
	s.Equal(from, sub.SwapHistory[0].FromProduct)
	s.Equal(resp.ToProductID, sub.SwapHistory[0].ToProduct)
	assertAmount(s.T(), "1372", sub.TotalPrice)
}

func (s *DailyOrderServiceSuite) TestSwapMeal_LockedDay() {
	ctx := s.GetContext()
	date := s.Today().AddDate(0, 0, 4)

	before := s.orderOn(4)
	s.True(before.Locked)
	meal, _ := before.Meal(types.MealTypeBreakfast)

	_, err := s.service.SwapMeal(ctx, s.testData.sub.ID, &dto.SwapMealRequest{
		Date:     date,
		MealType: types.MealTypeBreakfast,
	})
	s.Error(err)
	s.True(ierr.IsMealLocked(err))

	after := s.orderOn(4)
	unchanged, _ := after.Meal(types.MealTypeBreakfast)
	s.Equal(meal.ProductID, unchanged.ProductID)
	s.Empty(s.subscription().SwapHistory)
}

func (s *DailyOrderServiceSuite) TestSwapMeal_NoAlternative() {
	_, err := s.service.SwapMeal(s.GetContext(), s.testData.sub.ID, &dto.SwapMealRequest{
		Date:     s.Today(),
		MealType: types.MealTypeLunch,
	})
	s.True(ierr.IsNoAlternative(err))
}

func (s *DailyOrderServiceSuite) TestSwapMeal_SlotNotFound() {
	ctx := s.GetContext()

	_, err := s.service.SwapMeal(ctx, s.testData.sub.ID, &dto.SwapMealRequest{
		Date:     s.Today().AddDate(0, 0, 30),
		MealType: types.MealTypeBreakfast,
	})
	s.True(ierr.IsSlotNotFound(err))

	_, err = s.service.SwapMeal(ctx, s.testData.sub.ID, &dto.SwapMealRequest{
		Date:     s.Today(),
		MealType: types.MealTypeDinner,
	})
	s.True(ierr.IsSlotNotFound(err))
}

func (s *DailyOrderServiceSuite) TestSwapMeal_DeliveredMeal() {
	ctx := s.GetContext()
	order := s.orderOn(0)

	_, err := s.service.MarkMealDelivered(ctx, order.ID, types.MealTypeBreakfast)
	s.Require().NoError(err)

	_, err = s.service.SwapMeal(ctx, s.testData.sub.ID, &dto.SwapMealRequest{
		Date:     s.Today(),
		MealType: types.MealTypeBreakfast,
	})
	s.True(ierr.IsMealLocked(err))
}

func (s *DailyOrderServiceSuite) TestSwapMeal_InactiveSubscription() {
	ctx := s.GetContext()
	_, err := s.subscriptions.CancelSubscription(ctx, s.testData.sub.ID, &dto.CancelSubscriptionRequest{})
	s.Require().NoError(err)

	_, err = s.service.SwapMeal(ctx, s.testData.sub.ID, &dto.SwapMealRequest{
		Date:     s.Today(),
		MealType: types.MealTypeBreakfast,
	})
	s.True(ierr.IsStateConflict(err))
}

func (s *DailyOrderServiceSuite) TestUpdateMealStatus_OrderStatus() {
	ctx := s.GetContext()
	order := s.orderOn(0)

	resp, err := s.service.UpdateMealStatus(ctx, order.ID, &dto.UpdateMealStatusRequest{
		MealType: types.MealTypeBreakfast,
		Status:   types.MealStatusPrepared,
	})
	s.Require().NoError(err)
	s.Equal(types.OrderStatusPreparing, resp.OrderStatus)

	resp, err = s.service.UpdateMealStatus(ctx, order.ID, &dto.UpdateMealStatusRequest{
		MealType: types.MealTypeLunch,
		Status:   types.MealStatusDispatched,
	})
	s.Require().NoError(err)
	s.Equal(types.OrderStatusOutForDelivery, resp.OrderStatus)

	resp, err = s.service.MarkMealDelivered(ctx, order.ID, types.MealTypeLunch)
	s.Require().NoError(err)
	s.Equal(types.OrderStatusPreparing, resp.OrderStatus)

	resp, err = s.service.UpdateMealStatus(ctx, order.ID, &dto.UpdateMealStatusRequest{
		MealType: types.MealTypeBreakfast,
		Status:   types.MealStatusDelayed,
		Note:     "rider stuck in traffic",
	})
	s.Require().NoError(err)
	s.Equal(types.OrderStatusPartiallyDelivered, resp.OrderStatus)

	breakfast, _ := resp.Meal(types.MealTypeBreakfast)
	s.Len(breakfast.StatusHistory, 3)
	s.Equal("rider stuck in traffic", breakfast.StatusHistory[2].Note)

	// only the delivered lunch counts as consumed
	sub := s.subscription()
	s.Equal(1, sub.ConsumedMeals)
	s.Equal(13, sub.RemainingMeals)
}

func (s *DailyOrderServiceSuite) TestMarkMealDelivered_ConsumesOnce() {
	ctx := s.GetContext()
	order := s.orderOn(2)

	_, err := s.service.MarkMealDelivered(ctx, order.ID, types.MealTypeBreakfast)
	s.Require().NoError(err)
	_, err = s.service.MarkMealDelivered(ctx, order.ID, types.MealTypeBreakfast)
	s.Require().NoError(err)

	sub := s.subscription()
	s.Equal(1, sub.ConsumedMeals)
	s.Equal(1, sub.DeliveredMeals)
	s.Equal(13, sub.RemainingMeals)
	s.Len(s.GetNotifier().Sent(notification.KindMealDelivered), 1)

	_, err = s.service.UpdateMealStatus(ctx, order.ID, &dto.UpdateMealStatusRequest{
		MealType: types.MealTypeBreakfast,
		Status:   types.MealStatusDispatched,
	})
	s.True(ierr.IsStateConflict(err))
}

func (s *DailyOrderServiceSuite) TestMarkMealDelivered_CompletesSubscription() {
	ctx := s.GetContext()

	orders, err := s.GetStores().DailyOrderRepo.ListBySubscription(ctx, s.testData.sub.ID)
	s.Require().NoError(err)
	for _, o := range orders {
		for _, mt := range []types.MealType{types.MealTypeBreakfast, types.MealTypeLunch} {
			_, err := s.service.MarkMealDelivered(ctx, o.ID, mt)
			s.Require().NoError(err)
		}
	}

	sub := s.subscription()
	s.Equal(types.SubscriptionStatusCompleted, sub.SubscriptionStatus)
	s.Equal(14, sub.ConsumedMeals)
	s.Zero(sub.RemainingMeals)
	s.Len(s.GetNotifier().Sent(notification.KindSubscriptionCompleted), 1)
}

func (s *DailyOrderServiceSuite) TestMarkMealDelivered_CancelledSubscription() {
	ctx := s.GetContext()
	order := s.orderOn(1)

	_, err := s.subscriptions.CancelSubscription(ctx, s.testData.sub.ID, &dto.CancelSubscriptionRequest{Reason: "moving away"})
	s.Require().NoError(err)

	_, err = s.service.MarkMealDelivered(ctx, order.ID, types.MealTypeBreakfast)
	s.True(ierr.IsStateConflict(err))

	// neither record moved
	meal, ok := s.orderOn(1).Meal(types.MealTypeBreakfast)
	s.Require().True(ok)
	s.NotEqual(types.MealStatusDelivered, meal.Status)

	sub := s.subscription()
	s.Equal(types.SubscriptionStatusCancelled, sub.SubscriptionStatus)
	s.Zero(sub.ConsumedMeals)
	s.Zero(sub.DeliveredMeals)
	s.Equal(14, sub.RemainingMeals)
	s.Empty(s.GetNotifier().Sent(notification.KindMealDelivered))

	// kitchen progress on the order is still recorded
	_, err = s.service.UpdateMealStatus(ctx, order.ID, &dto.UpdateMealStatusRequest{
		MealType: types.MealTypeBreakfast,
		Status:   types.MealStatusPrepared,
	})
	s.NoError(err)
}

func (s *DailyOrderServiceSuite) TestUpdateMealStatus_UnknownMeal() {
	_, err := s.service.UpdateMealStatus(s.GetContext(), s.orderOn(0).ID, &dto.UpdateMealStatusRequest{
		MealType: types.MealTypeDinner,
		Status:   types.MealStatusPrepared,
	})
	s.True(ierr.IsSlotNotFound(err))
}

func (s *DailyOrderServiceSuite) TestListDailyOrders() {
	ctx := s.GetContext()
	from := s.Today().AddDate(0, 0, 2)
	to := s.Today().AddDate(0, 0, 4)

	filter := types.NewDailyOrderFilter()
	filter.SubscriptionID = s.testData.sub.ID
	filter.From = &from
	filter.To = &to

	resp, err := s.service.ListDailyOrders(ctx, filter)
	s.Require().NoError(err)
	s.Len(resp.Items, 3)
	s.Equal(2, resp.Items[0].DayIndex)

	got, err := s.service.GetDailyOrder(ctx, resp.Items[0].ID)
	s.Require().NoError(err)
	s.Equal(resp.Items[0].OrderNumber, got.OrderNumber)

	today := s.Today()
	filter.To = &today
	_, err = s.service.ListDailyOrders(ctx, filter)
	s.True(ierr.IsValidation(err))
}
