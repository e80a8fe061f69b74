package payment

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// ErrChargeOutcomeUnknown marks gateway failures after which the charge may or may not
// have gone through, such as timeouts and dropped connections. Such calls are retried
// with the same idempotency key, which lets the gateway answer with the original result.
var ErrChargeOutcomeUnknown = errors.New("charge outcome unknown")

// CardGateway is the external card processor
type CardGateway interface {
	CreateCustomer(ctx context.Context, input *CreateCustomerInput) (*GatewayCustomer, error)
	CreateAndConfirmCharge(ctx context.Context, input *ChargeInput) (*ChargeResult, error)
	Refund(ctx context.Context, input *RefundInput) (*RefundResult, error)
}

type CreateCustomerInput struct {
	UserID string
	Email  string
}

type GatewayCustomer struct {
	CustomerRef string
}

type ChargeInput struct {
	CustomerRef      string
	PaymentMethodRef string
	Amount           decimal.Decimal
	Currency         string
	IdempotencyKey   string
	Description      string
	Metadata         map[string]string
}

// ChargeStatusSucceeded is the only charge status treated as captured funds
const ChargeStatusSucceeded = "succeeded"

type ChargeResult struct {
	TransactionID string
	Status        string
}

// RefundInput refunds a charge. A zero Amount refunds the full charge.
type RefundInput struct {
	TransactionID  string
	Amount         decimal.Decimal
	IdempotencyKey string
	Reason         string
}

type RefundResult struct {
	RefundID string
	Status   string
}
