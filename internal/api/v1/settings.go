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

type SettingsHandler struct {
	service service.SettingsService
	log     *logger.Logger
}

func NewSettingsHandler(
	service service.SettingsService,
	log *logger.Logger,
) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		log:     log,
	}
}

// @Summary Subscription settings
// @Description Discount slabs, change window, pause limit, refund policy and auto renew toggle
// @Tags Settings
// @Produce json
// @Success 200 {object} dto.SubscriptionSettingsResponse
// @Router /settings/subscription [get]
func (h *SettingsHandler) GetSubscriptionSettings(c *gin.Context) {
	resp, err := h.service.GetSubscriptionSettings(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List settings
// @Tags Admin
// @Produce json
// @Success 200 {array} dto.SettingResponse
// @Router /admin/settings [get]
func (h *SettingsHandler) ListSettings(c *gin.Context) {
	resp, err := h.service.ListSettings(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get setting
// @Tags Admin
// @Produce json
// @Param key path string true "Setting key"
// @Success 200 {object} dto.SettingResponse
// @Router /admin/settings/{key} [get]
func (h *SettingsHandler) GetSettingByKey(c *gin.Context) {
	key := types.SettingKey(c.Param("key"))

	resp, err := h.service.GetSettingByKey(c.Request.Context(), key)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Update setting
// @Tags Admin
// @Accept json
// @Produce json
// @Param key path string true "Setting key"
// @Param request body dto.UpdateSettingRequest true "Value"
// @Success 200 {object} dto.SettingResponse
// @Router /admin/settings/{key} [put]
func (h *SettingsHandler) UpdateSettingByKey(c *gin.Context) {
	key := types.SettingKey(c.Param("key"))

	var req dto.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateSettingByKey(c.Request.Context(), key, &req)
	if err != nil {
		h.log.Errorw("failed to update setting", "key", key, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Reset setting to its default
// @Tags Admin
// @Param key path string true "Setting key"
// @Success 204
// @Router /admin/settings/{key} [delete]
func (h *SettingsHandler) DeleteSettingByKey(c *gin.Context) {
	key := types.SettingKey(c.Param("key"))

	if err := h.service.DeleteSettingByKey(c.Request.Context(), key); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
