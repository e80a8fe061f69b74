package payment

import (
	"time"

	"github.com/flexprice/mealsub/internal/types"
	"github.com/shopspring/decimal"
)

// Payment is an append-only record of one money movement attempt
type Payment struct {
	ID string `db:"id" json:"id"`

	// SubscriptionID is empty for wallet top-ups
	SubscriptionID string `db:"subscription_id" json:"subscription_id,omitempty"`

	UserID string `db:"user_id" json:"user_id"`

	Purpose types.PaymentPurpose `db:"purpose" json:"purpose"`

	Method types.PaymentMethod `db:"method" json:"method"`

	Amount decimal.Decimal `db:"amount" json:"amount" swaggertype:"string"`

	Currency string `db:"currency" json:"currency"`

	PaymentStatus types.PaymentStatus `db:"payment_status" json:"payment_status"`

	// GatewayTransactionID is the external charge or refund id, used for reconciliation
	GatewayTransactionID string `db:"gateway_transaction_id" json:"gateway_transaction_id,omitempty"`

	// IdempotencyKey guards against recording the same attempt twice
	IdempotencyKey string `db:"idempotency_key" json:"idempotency_key"`

	FailureReason string `db:"failure_reason" json:"failure_reason,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	types.BaseModel
}

// CustomerProfile links a user to their card gateway customer and saved card
type CustomerProfile struct {
	UserID string `db:"user_id" json:"user_id"`
	// CustomerRef is the gateway customer handle
	CustomerRef string `db:"customer_ref" json:"customer_ref"`
	// DefaultPaymentMethodRef is the saved card used for off-session renewals
	DefaultPaymentMethodRef string    `db:"default_payment_method_ref" json:"default_payment_method_ref"`
	CreatedAt               time.Time `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time `db:"updated_at" json:"updated_at"`
}

// HasSavedMethod reports whether the profile can be charged off-session
func (c *CustomerProfile) HasSavedMethod() bool {
	return c != nil && c.CustomerRef != "" && c.DefaultPaymentMethodRef != ""
}
