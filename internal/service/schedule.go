package service

import (
	"context"
	"slices"
	"time"

	"github.com/flexprice/mealsub/internal/api/dto"
	"github.com/flexprice/mealsub/internal/domain/dailyorder"
	"github.com/flexprice/mealsub/internal/domain/product"
	"github.com/flexprice/mealsub/internal/domain/subscription"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/samber/lo"
)

// ScheduleRequest describes the calendar to generate
type ScheduleRequest struct {
	StartDate    time.Time
	DurationDays int
	MealsPerDay  int
	Mode         types.SelectionMode

	// Days holds the explicit selections
	Days []dto.DaySelection

	// MealTypes and Preferences drive auto-fill
	MealTypes   []types.MealType
	Preferences []string
}

// Schedule is a generated calendar and the products it references
type Schedule struct {
	Slots            subscription.MealSlots
	Products         map[string]*product.Product
	ChangeWindowDays int
}

// Meals returns one product per scheduled meal in calendar order
func (s *Schedule) Meals() []*product.Product {
	var meals []*product.Product
	for _, slot := range s.Slots {
		for _, item := range slot.Items {
			meals = append(meals, s.Products[item.ProductID])
		}
	}
	return meals
}

// ScheduleService is the meal schedule generator
type ScheduleService interface {
	Generate(ctx context.Context, req *ScheduleRequest) (*Schedule, error)

	// PickAlternative draws a random active product of mealType other than exclude
	PickAlternative(ctx context.Context, mealType types.MealType, preferences []string, exclude string) (*product.Product, error)
}

type scheduleService struct {
	ServiceParams
	settings SettingsService
}

func NewScheduleService(params ServiceParams, settings SettingsService) ScheduleService {
	return &scheduleService{
		ServiceParams: params,
		settings:      settings,
	}
}

func (s *scheduleService) Generate(ctx context.Context, req *ScheduleRequest) (*Schedule, error) {
	if req.DurationDays <= 0 || req.MealsPerDay <= 0 {
		return nil, ierr.NewError("duration and meals per day must be positive").
			WithHint("Plan duration and meals per day are required").
			WithReportableDetails(map[string]any{
				"duration_days": req.DurationDays,
				"meals_per_day": req.MealsPerDay,
			}).
			Mark(ierr.ErrValidation)
	}

	window, err := s.settings.ChangeWindow(ctx)
	if err != nil {
		return nil, err
	}

	var schedule *Schedule
	switch req.Mode {
	case types.SelectionModeExplicit:
		schedule, err = s.explicit(ctx, req)
	case types.SelectionModeAuto:
		schedule, err = s.autoFill(ctx, req)
	default:
		err = req.Mode.Validate()
	}
	if err != nil {
		return nil, err
	}

	today := types.StartOfDay(s.now())
	for i := range schedule.Slots {
		slot := &schedule.Slots[i]
		slot.Locked = subscription.IsLockedDay(slot.DayIndex, slot.Date, window.Days, today)
	}
	schedule.ChangeWindowDays = window.Days
	return schedule, nil
}

func (s *scheduleService) explicit(ctx context.Context, req *ScheduleRequest) (*Schedule, error) {
	if len(req.Days) != req.DurationDays {
		return nil, ierr.NewError("day selections do not match duration").
			WithHintf("Expected meals for %d days but got %d", req.DurationDays, len(req.Days)).
			Mark(ierr.ErrValidation)
	}

	ids := lo.Uniq(lo.FlatMap(req.Days, func(d dto.DaySelection, _ int) []string {
		return lo.Map(d.Meals, func(m dto.MealSelection, _ int) string { return m.ProductID })
	}))

	products, err := s.ProductRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	slots := make(subscription.MealSlots, 0, len(req.Days))
	for i, day := range req.Days {
		if len(day.Meals) != req.MealsPerDay {
			return nil, ierr.NewErrorf("day %d has %d meals, expected %d", i, len(day.Meals), req.MealsPerDay).
				WithHintf("Every day must have exactly %d meals", req.MealsPerDay).
				Mark(ierr.ErrValidation)
		}

		items := make([]subscription.SlotItem, 0, len(day.Meals))
		for _, meal := range day.Meals {
			p, ok := products[meal.ProductID]
			if !ok || !p.IsActive || p.Status != types.StatusPublished {
				return nil, ierr.NewErrorf("product %s is missing or inactive", meal.ProductID).
					WithHint("One of the selected meals is no longer available").
					WithReportableDetails(map[string]any{
						"day_index":  i,
						"product_id": meal.ProductID,
					}).
					Mark(ierr.ErrValidation)
			}
			if p.MealType != meal.MealType {
				return nil, ierr.NewErrorf("product %s is a %s, not a %s", p.ID, p.MealType, meal.MealType).
					WithHintf("%s cannot be served as %s", p.Name, meal.MealType).
					WithReportableDetails(map[string]any{
						"day_index":  i,
						"product_id": p.ID,
						"meal_type":  meal.MealType,
					}).
					Mark(ierr.ErrValidation)
			}
			items = append(items, subscription.SlotItem{
				MealType:  meal.MealType,
				ProductID: p.ID,
				Status:    types.MealStatusScheduled,
			})
		}
		sortByServingOrder(items)

		slots = append(slots, subscription.MealSlot{
			Date:     req.StartDate.AddDate(0, 0, i),
			DayIndex: i,
			Items:    items,
		})
	}

	return &Schedule{Slots: slots, Products: products}, nil
}

func (s *scheduleService) autoFill(ctx context.Context, req *ScheduleRequest) (*Schedule, error) {
	if len(req.MealTypes) != req.MealsPerDay {
		return nil, ierr.NewError("meals per day does not match meal types").
			WithHint("Meals per day must equal the number of meal types").
			Mark(ierr.ErrValidation)
	}

	pool, err := s.ProductRepo.FindActive(ctx, &types.ProductFilter{
		MealTypes:   req.MealTypes,
		Preferences: req.Preferences,
		ActiveOnly:  true,
	})
	if err != nil {
		return nil, err
	}

	byType := lo.GroupBy(pool, func(p *product.Product) types.MealType { return p.MealType })
	for _, mt := range req.MealTypes {
		if len(byType[mt]) == 0 {
			return nil, ierr.NewErrorf("no active %s products match the preferences", mt).
				WithHintf("No %s meals are available for these preferences", mt).
				WithReportableDetails(map[string]any{
					"meal_type":   mt,
					"preferences": req.Preferences,
				}).
				Mark(ierr.ErrValidation)
		}
	}

	mealTypes := slices.Clone(req.MealTypes)
	sortMealTypes(mealTypes)

	products := make(map[string]*product.Product)
	slots := make(subscription.MealSlots, 0, req.DurationDays)
	for i := 0; i < req.DurationDays; i++ {
		items := make([]subscription.SlotItem, 0, len(mealTypes))
		for _, mt := range mealTypes {
			p := pick(s.Picker, byType[mt])
			products[p.ID] = p
			items = append(items, subscription.SlotItem{
				MealType:  mt,
				ProductID: p.ID,
				Status:    types.MealStatusScheduled,
			})
		}
		slots = append(slots, subscription.MealSlot{
			Date:     req.StartDate.AddDate(0, 0, i),
			DayIndex: i,
			Items:    items,
		})
	}

	return &Schedule{Slots: slots, Products: products}, nil
}

func (s *scheduleService) PickAlternative(ctx context.Context, mealType types.MealType, preferences []string, exclude string) (*product.Product, error) {
	pool, err := s.ProductRepo.FindActive(ctx, &types.ProductFilter{
		MealTypes:   []types.MealType{mealType},
		Preferences: preferences,
		ActiveOnly:  true,
	})
	if err != nil {
		return nil, err
	}

	candidates := lo.Filter(pool, func(p *product.Product, _ int) bool { return p.ID != exclude })
	if len(candidates) == 0 {
		return nil, ierr.NewErrorf("no alternative %s product available", mealType).
			WithHintf("There is no other %s to swap to right now", mealType).
			WithReportableDetails(map[string]any{
				"meal_type":       mealType,
				"current_product": exclude,
			}).
			Mark(ierr.ErrNoAlternative)
	}
	return pick(s.Picker, candidates), nil
}

func sortByServingOrder(items []subscription.SlotItem) {
	slices.SortStableFunc(items, func(a, b subscription.SlotItem) int {
		return lo.IndexOf(types.MealTypes, a.MealType) - lo.IndexOf(types.MealTypes, b.MealType)
	})
}

func sortMealTypes(mealTypes []types.MealType) {
	slices.SortStableFunc(mealTypes, func(a, b types.MealType) int {
		return lo.IndexOf(types.MealTypes, a) - lo.IndexOf(types.MealTypes, b)
	})
}

// buildDailyOrders projects the subscription calendar onto one daily order per day.
// Meal prices carry the plan discount so the orders add up to the plan price.
func buildDailyOrders(ctx context.Context, sub *subscription.Subscription, products map[string]*product.Product, quote *PriceQuote, now time.Time) []*dailyorder.DailyOrder {
	userID := types.GetUserID(ctx)
	orders := make([]*dailyorder.DailyOrder, 0, len(sub.Meals))
	for _, slot := range sub.Meals {
		order := &dailyorder.DailyOrder{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DAILY_ORDER),
			OrderNumber:    types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_DAILY_ORDER),
			SubscriptionID: sub.ID,
			UserID:         sub.UserID,
			DeliveryDate:   slot.Date,
			DayIndex:       slot.DayIndex,
			Locked:         slot.Locked,
			Currency:       sub.Currency,
			Meals:          make(dailyorder.OrderMeals, 0, len(slot.Items)),
			BaseModel:      types.GetDefaultBaseModel(ctx),
		}
		for _, item := range slot.Items {
			p := products[item.ProductID]
			order.Meals = append(order.Meals, dailyorder.OrderMeal{
				MealType:    item.MealType,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    1,
				Price:       quote.MealPrice(p.Price),
				CostPrice:   p.CostPrice,
				Status:      types.MealStatusScheduled,
				StatusHistory: []dailyorder.StatusChange{{
					Status:    types.MealStatusScheduled,
					ChangedAt: now,
					ChangedBy: userID,
				}},
			})
		}
		order.Recompute()
		orders = append(orders, order)
	}
	return orders
}
