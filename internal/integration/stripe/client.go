package stripe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/flexprice/mealsub/internal/config"
	"github.com/flexprice/mealsub/internal/domain/payment"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

// Gateway implements payment.CardGateway on top of Stripe payment intents
type Gateway struct {
	client *stripe.Client
	logger *logger.Logger
}

var _ payment.CardGateway = (*Gateway)(nil)

// NewGateway creates a Stripe backed card gateway
func NewGateway(cfg *config.Configuration, logger *logger.Logger) *Gateway {
	return &Gateway{
		client: stripe.NewClient(cfg.Stripe.SecretKey, nil),
		logger: logger,
	}
}

func (g *Gateway) CreateCustomer(ctx context.Context, input *payment.CreateCustomerInput) (*payment.GatewayCustomer, error) {
	params := &stripe.CustomerCreateParams{
		Email: stripe.String(input.Email),
		Metadata: map[string]string{
			"mealsub_user_id": input.UserID,
		},
	}
	params.SetIdempotencyKey("customer-" + input.UserID)

	customer, err := g.client.V1Customers.Create(ctx, params)
	if err != nil {
		g.logger.Errorw("failed to create stripe customer", "user_id", input.UserID, "error", err)
		return nil, classify(err, "Failed to create card customer")
	}
	return &payment.GatewayCustomer{CustomerRef: customer.ID}, nil
}

// CreateAndConfirmCharge charges a saved card off-session. The idempotency
// key makes a resubmission after an ambiguous failure return the original intent.
func (g *Gateway) CreateAndConfirmCharge(ctx context.Context, input *payment.ChargeInput) (*payment.ChargeResult, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(toMinorUnits(input.Amount)),
		Currency:      stripe.String(strings.ToLower(input.Currency)),
		Customer:      stripe.String(input.CustomerRef),
		PaymentMethod: stripe.String(input.PaymentMethodRef),
		Description:   stripe.String(input.Description),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
		Metadata:      input.Metadata,
	}
	params.SetIdempotencyKey(input.IdempotencyKey)

	intent, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		g.logger.Errorw("failed to create payment intent",
			"idempotency_key", input.IdempotencyKey,
			"amount", input.Amount.String(),
			"error", err,
		)
		return nil, classify(err, "Card payment failed")
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, ierr.NewErrorf("payment intent %s is %s", intent.ID, intent.Status).
			WithHint("Card payment was not completed").
			WithReportableDetails(map[string]any{
				"transaction_id": intent.ID,
				"status":         intent.Status,
			}).
			Mark(ierr.ErrPaymentGateway)
	}

	return &payment.ChargeResult{
		TransactionID: intent.ID,
		Status:        string(intent.Status),
	}, nil
}

func (g *Gateway) Refund(ctx context.Context, input *payment.RefundInput) (*payment.RefundResult, error) {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(input.TransactionID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
		Metadata: map[string]string{
			"reason": input.Reason,
		},
	}
	if input.Amount.IsPositive() {
		params.Amount = stripe.Int64(toMinorUnits(input.Amount))
	}
	params.SetIdempotencyKey(input.IdempotencyKey)

	refund, err := g.client.V1Refunds.Create(ctx, params)
	if err != nil {
		g.logger.Errorw("failed to create refund",
			"transaction_id", input.TransactionID,
			"idempotency_key", input.IdempotencyKey,
			"error", err,
		)
		return nil, classify(err, "Card refund failed")
	}

	return &payment.RefundResult{
		RefundID: refund.ID,
		Status:   string(refund.Status),
	}, nil
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// classify separates definite rejections from failures whose outcome is unknown.
// Network errors, timeouts and 5xx responses may have been applied by Stripe.
func classify(err error, hint string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 || stripeErr.Type == stripe.ErrorTypeAPI {
			return unknownOutcome(err, hint)
		}
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(map[string]any{
				"code":         stripeErr.Code,
				"decline_code": stripeErr.DeclineCode,
				"message":      stripeErr.Msg,
			}).
			Mark(ierr.ErrPaymentGateway)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return unknownOutcome(err, hint)
	}

	return ierr.WithError(err).
		WithHint(hint).
		Mark(ierr.ErrPaymentGateway)
}

func unknownOutcome(err error, hint string) error {
	return ierr.WithError(fmt.Errorf("%w: %w", payment.ErrChargeOutcomeUnknown, err)).
		WithHint(hint).
		Mark(ierr.ErrPaymentGateway)
}
