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

type SubscriptionHandler struct {
	service service.SubscriptionService
	log     *logger.Logger
}

func NewSubscriptionHandler(service service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, log: log}
}

// @Summary Create subscription
// @Description Checkout a new meal subscription for the caller
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param subscription body dto.CreateSubscriptionRequest true "Subscription Request"
// @Success 201 {object} dto.CreateSubscriptionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 402 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Router /subscriptions [post]
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req dto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	// checkout always subscribes the caller
	req.UserID = types.GetUserID(c.Request.Context())

	resp, err := h.service.CreateSubscription(c.Request.Context(), &req)
	if err != nil {
		h.log.Errorw("failed to create subscription", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Create subscription for a user
// @Description Operator checkout on behalf of user_id
// @Tags Admin
// @Accept json
// @Produce json
// @Param subscription body dto.CreateSubscriptionRequest true "Subscription Request"
// @Success 201 {object} dto.CreateSubscriptionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /admin/subscriptions [post]
func (h *SubscriptionHandler) AdminCreateSubscription(c *gin.Context) {
	var req dto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if req.UserID == "" {
		c.Error(ierr.NewError("user_id is required").
			WithHint("Please provide the user to subscribe").
			Mark(ierr.ErrValidation))
		return
	}
	req.AllowBackdatedStart = true

	resp, err := h.service.CreateSubscription(c.Request.Context(), &req)
	if err != nil {
		h.log.Errorw("failed to create subscription", "user_id", req.UserID, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get subscription
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /subscriptions/{id} [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	resp, err := h.service.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List subscriptions
// @Description Defaults to the caller's subscriptions when user_id is omitted
// @Tags Subscriptions
// @Produce json
// @Param filter query types.SubscriptionFilter false "Filter"
// @Success 200 {object} dto.ListSubscriptionsResponse
// @Router /subscriptions [get]
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	filter := types.NewSubscriptionFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if filter.UserID == "" {
		filter.UserID = types.GetUserID(c.Request.Context())
	}

	resp, err := h.service.ListSubscriptions(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List subscription payments
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.ListPaymentsResponse
// @Router /subscriptions/{id}/payments [get]
func (h *SubscriptionHandler) ListPayments(c *gin.Context) {
	resp, err := h.service.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Pause subscription
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/pause [post]
func (h *SubscriptionHandler) PauseSubscription(c *gin.Context) {
	resp, err := h.service.PauseSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.Errorw("failed to pause subscription", "subscription_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Resume subscription
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/resume [post]
func (h *SubscriptionHandler) ResumeSubscription(c *gin.Context) {
	resp, err := h.service.ResumeSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.Errorw("failed to resume subscription", "subscription_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Freeze subscription
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.FreezeSubscriptionRequest true "Freeze Request"
// @Success 200 {object} dto.SubscriptionResponse
// @Router /subscriptions/{id}/freeze [post]
func (h *SubscriptionHandler) FreezeSubscription(c *gin.Context) {
	var req dto.FreezeSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.FreezeSubscription(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.log.Errorw("failed to freeze subscription", "subscription_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Cancel subscription
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.CancelSubscriptionRequest false "Cancel Request"
// @Success 200 {object} dto.SubscriptionResponse
// @Router /subscriptions/{id}/cancel [post]
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	var req dto.CancelSubscriptionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	resp, err := h.service.CancelSubscription(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.log.Errorw("failed to cancel subscription", "subscription_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Refund subscription
// @Description Refunds the unconsumed share of the amount paid
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.RefundSubscriptionRequest false "Refund Request"
// @Success 200 {object} dto.RefundSubscriptionResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/refund [post]
func (h *SubscriptionHandler) RefundSubscription(c *gin.Context) {
	var req dto.RefundSubscriptionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	resp, err := h.service.RefundSubscription(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.log.Errorw("failed to refund subscription", "subscription_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Settle cash on delivery payment
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.SettleCashPaymentRequest true "Settlement"
// @Success 200 {object} dto.SubscriptionResponse
// @Router /admin/subscriptions/{id}/settle-cash [post]
func (h *SubscriptionHandler) SettleCashPayment(c *gin.Context) {
	var req dto.SettleCashPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.SettleCashPayment(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.log.Errorw("failed to settle cash payment", "subscription_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Toggle auto renew
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.UpdateAutoRenewRequest true "Auto renew"
// @Success 200 {object} dto.SubscriptionResponse
// @Router /subscriptions/{id}/auto-renew [put]
func (h *SubscriptionHandler) UpdateAutoRenew(c *gin.Context) {
	var req dto.UpdateAutoRenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateAutoRenew(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Delete subscription
// @Description Removes a subscription and its daily orders
// @Tags Admin
// @Param id path string true "Subscription ID"
// @Success 204
// @Router /admin/subscriptions/{id} [delete]
func (h *SubscriptionHandler) DeleteSubscription(c *gin.Context) {
	if err := h.service.DeleteSubscription(c.Request.Context(), c.Param("id")); err != nil {
		h.log.Errorw("failed to delete subscription", "subscription_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// bindOptionalJSON binds a body when one was sent
func bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return false
	}
	return true
}
