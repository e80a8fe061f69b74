package v1

import (
	"net/http"

	"github.com/flexprice/mealsub/internal/api/dto"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/service"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/gin-gonic/gin"
)

type DailyOrderHandler struct {
	service service.DailyOrderService
	log     *logger.Logger
}

func NewDailyOrderHandler(service service.DailyOrderService, log *logger.Logger) *DailyOrderHandler {
	return &DailyOrderHandler{service: service, log: log}
}

// @Summary List daily orders
// @Description Filter by user, subscription and delivery date range (YYYY-MM-DD)
// @Tags DailyOrders
// @Produce json
// @Param filter query types.DailyOrderFilter false "Filter"
// @Success 200 {object} dto.ListDailyOrdersResponse
// @Router /daily-orders [get]
func (h *DailyOrderHandler) ListDailyOrders(c *gin.Context) {
	filter := types.NewDailyOrderFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if filter.UserID == "" && filter.SubscriptionID == "" {
		filter.UserID = types.GetUserID(c.Request.Context())
	}

	resp, err := h.service.ListDailyOrders(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get daily order
// @Tags DailyOrders
// @Produce json
// @Param id path string true "Daily order ID"
// @Success 200 {object} dto.DailyOrderResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /daily-orders/{id} [get]
func (h *DailyOrderHandler) GetDailyOrder(c *gin.Context) {
	resp, err := h.service.GetDailyOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Swap meal
// @Description Replace one meal of a day with a random product of the same type
// @Tags DailyOrders
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.SwapMealRequest true "Swap Request"
// @Success 200 {object} dto.SwapMealResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 422 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/swap [post]
func (h *DailyOrderHandler) SwapMeal(c *gin.Context) {
	var req dto.SwapMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.SwapMeal(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.log.Errorw("failed to swap meal",
			"subscription_id", c.Param("id"),
			"meal_type", req.MealType,
			"error", err,
		)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Update meal status
// @Description Status transition sent by the dispatch system
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Daily order ID"
// @Param request body dto.UpdateMealStatusRequest true "Status"
// @Success 200 {object} dto.DailyOrderResponse
// @Router /admin/daily-orders/{id}/meal-status [put]
func (h *DailyOrderHandler) UpdateMealStatus(c *gin.Context) {
	var req dto.UpdateMealStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateMealStatus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.log.Errorw("failed to update meal status", "order_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Mark meal delivered
// @Tags Admin
// @Produce json
// @Param id path string true "Daily order ID"
// @Param meal_type path string true "Meal type"
// @Success 200 {object} dto.DailyOrderResponse
// @Router /admin/daily-orders/{id}/meals/{meal_type}/deliver [post]
func (h *DailyOrderHandler) MarkMealDelivered(c *gin.Context) {
	mealType := types.MealType(c.Param("meal_type"))
	if err := mealType.Validate(); err != nil {
		c.Error(err)
		return
	}

	resp, err := h.service.MarkMealDelivered(c.Request.Context(), c.Param("id"), mealType)
	if err != nil {
		h.log.Errorw("failed to mark meal delivered", "order_id", c.Param("id"), "meal_type", mealType, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
