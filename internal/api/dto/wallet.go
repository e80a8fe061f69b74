package dto

import (
	"github.com/flexprice/mealsub/internal/domain/wallet"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/flexprice/mealsub/internal/validator"
	"github.com/shopspring/decimal"
)

type WalletResponse struct {
	*wallet.Wallet
}

// TopUpWalletRequest credits the wallet after charging a card
type TopUpWalletRequest struct {
	Amount           decimal.Decimal `json:"amount" validate:"required" swaggertype:"string"`
	PaymentMethodRef string          `json:"payment_method_ref,omitempty"`
	Currency         string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	CustomerEmail    string          `json:"customer_email,omitempty" validate:"omitempty,email"`
	IdempotencyKey   string          `json:"idempotency_key,omitempty" validate:"omitempty,max=255"`
}

func (r *TopUpWalletRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ierr.NewError("amount must be positive").
			WithHint("Top up amount must be greater than zero").
			WithReportableDetails(map[string]any{"amount": r.Amount}).
			Mark(ierr.ErrValidation)
	}
	if r.Currency == "" {
		r.Currency = types.DefaultCurrency
	}
	return nil
}

type TopUpWalletResponse struct {
	Wallet      *WalletResponse            `json:"wallet"`
	Transaction *WalletTransactionResponse `json:"transaction"`
	Payment     *PaymentResponse           `json:"payment"`
}

type WalletTransactionResponse struct {
	*wallet.Transaction
}

type ListWalletTransactionsResponse = types.ListResponse[*WalletTransactionResponse]
