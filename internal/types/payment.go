package types

import (
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/samber/lo"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentMethod is the caller-selected payment path
type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCOD    PaymentMethod = "cod"
)

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) Validate() error {
	allowed := []PaymentMethod{PaymentMethodWallet, PaymentMethodCard, PaymentMethodCOD}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid payment method").
			WithHint("Payment method must be wallet, card or cod").
			WithReportableDetails(map[string]any{
				"payment_method": m,
				"allowed":        allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentPurpose tells which money movement a ledger entry records
type PaymentPurpose string

const (
	PaymentPurposeSubscription PaymentPurpose = "subscription"
	PaymentPurposeRenewal      PaymentPurpose = "renewal"
	PaymentPurposeTopUp        PaymentPurpose = "wallet_topup"
	PaymentPurposeRefund       PaymentPurpose = "refund"
)

// DefaultCurrency is used when a request does not name a currency
const DefaultCurrency = "usd"
