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

type WalletHandler struct {
	walletService service.WalletService
	logger        *logger.Logger
}

func NewWalletHandler(walletService service.WalletService, logger *logger.Logger) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		logger:        logger,
	}
}

// GetWallet godoc
// @Summary Get the caller's wallet
// @Tags Wallet
// @Produce json
// @Success 200 {object} dto.WalletResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /wallet [get]
func (h *WalletHandler) GetWallet(c *gin.Context) {
	resp, err := h.walletService.GetWallet(c.Request.Context(), types.GetUserID(c.Request.Context()))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// TopUpWallet godoc
// @Summary Top up the caller's wallet
// @Description Charges the card and credits the wallet with the same amount
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body dto.TopUpWalletRequest true "Top up request"
// @Success 200 {object} dto.TopUpWalletResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Router /wallet/top-up [post]
func (h *WalletHandler) TopUpWallet(c *gin.Context) {
	var req dto.TopUpWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	userID := types.GetUserID(c.Request.Context())
	resp, err := h.walletService.TopUpWallet(c.Request.Context(), userID, &req)
	if err != nil {
		h.logger.Errorw("failed to top up wallet", "user_id", userID, "amount", req.Amount, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListTransactions godoc
// @Summary List wallet ledger entries
// @Tags Wallet
// @Produce json
// @Param filter query types.QueryFilter false "Filter"
// @Success 200 {object} dto.ListWalletTransactionsResponse
// @Router /wallet/transactions [get]
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	var filter types.QueryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.walletService.ListTransactions(c.Request.Context(), types.GetUserID(c.Request.Context()), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
