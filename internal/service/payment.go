package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/mealsub/internal/domain/payment"
	"github.com/flexprice/mealsub/internal/domain/wallet"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/shopspring/decimal"
)

// CollectRequest describes one inbound money movement
type CollectRequest struct {
	SubscriptionID string
	UserID         string
	Email          string
	Method         types.PaymentMethod
	// PaymentMethodRef is the card to charge; the saved card is used when empty
	PaymentMethodRef string
	Amount           decimal.Decimal
	Currency         string
	Purpose          types.PaymentPurpose
	IdempotencyKey   string
	Description      string
}

// CollectOutcome is handed to the persist callback and returned to the caller
type CollectOutcome struct {
	Payment           *payment.Payment
	WalletTransaction *wallet.Transaction
}

// RefundRequest describes one outbound money movement
type RefundRequest struct {
	SubscriptionID string
	UserID         string
	Method         types.PaymentMethod
	// TransactionID is the original card charge
	TransactionID  string
	Amount         decimal.Decimal
	Currency       string
	Reason         string
	IdempotencyKey string
}

type RefundOutcome struct {
	RefundID          string
	Payment           *payment.Payment
	WalletTransaction *wallet.Transaction
}

// PersistFunc runs inside the local transaction that records the payment
type PersistFunc[T any] func(ctx context.Context, outcome *T) error

// PaymentOrchestrator captures and returns funds over the wallet, card and
// cash-on-delivery paths. Local writes happen in one transaction together
// with the caller's persist callback. A card charge cannot join that
// transaction, so a failed local write after a successful charge is
// compensated with a refund.
type PaymentOrchestrator interface {
	Collect(ctx context.Context, req *CollectRequest, persist PersistFunc[CollectOutcome]) (*CollectOutcome, error)
	Refund(ctx context.Context, req *RefundRequest, persist PersistFunc[RefundOutcome]) (*RefundOutcome, error)
	ListPayments(ctx context.Context, subscriptionID string) ([]*payment.Payment, error)
}

type paymentOrchestrator struct {
	ServiceParams
}

func NewPaymentOrchestrator(params ServiceParams) PaymentOrchestrator {
	return &paymentOrchestrator{ServiceParams: params}
}

func (s *paymentOrchestrator) Collect(ctx context.Context, req *CollectRequest, persist PersistFunc[CollectOutcome]) (*CollectOutcome, error) {
	if req.Amount.IsNegative() {
		return nil, ierr.NewError("amount must not be negative").
			WithHint("Invalid payment amount").
			WithReportableDetails(map[string]any{"amount": req.Amount}).
			Mark(ierr.ErrValidation)
	}
	if err := req.Method.Validate(); err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT)
	}

	existing, err := s.PaymentRepo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, ierr.NewError("payment already processed").
			WithHint("This payment has already been processed").
			WithReportableDetails(map[string]any{
				"idempotency_key": req.IdempotencyKey,
				"payment_id":      existing.ID,
				"subscription_id": existing.SubscriptionID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	s.Logger.Infow("collecting payment",
		"user_id", req.UserID,
		"subscription_id", req.SubscriptionID,
		"method", req.Method,
		"purpose", req.Purpose,
		"amount", req.Amount.String(),
	)

	switch {
	case req.Method == types.PaymentMethodCOD:
		return s.collectCash(ctx, req, persist)
	case !req.Amount.IsPositive():
		return s.collectNothing(ctx, req, persist)
	case req.Method == types.PaymentMethodWallet:
		return s.collectFromWallet(ctx, req, persist)
	default:
		return s.collectFromCard(ctx, req, persist)
	}
}

func (s *paymentOrchestrator) newPayment(ctx context.Context, req *CollectRequest, status types.PaymentStatus) *payment.Payment {
	p := &payment.Payment{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		SubscriptionID: req.SubscriptionID,
		UserID:         req.UserID,
		Purpose:        req.Purpose,
		Method:         req.Method,
		Amount:         req.Amount,
		Currency:       req.Currency,
		PaymentStatus:  status,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       types.Metadata{"description": req.Description},
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	if status == types.PaymentStatusCompleted {
		now := s.now()
		p.CompletedAt = &now
	}
	return p
}

// collectCash records a pending payment; cash is settled out of band
func (s *paymentOrchestrator) collectCash(ctx context.Context, req *CollectRequest, persist PersistFunc[CollectOutcome]) (*CollectOutcome, error) {
	outcome := &CollectOutcome{Payment: s.newPayment(ctx, req, types.PaymentStatusPending)}
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.PaymentRepo.Create(ctx, outcome.Payment); err != nil {
			return err
		}
		return persist(ctx, outcome)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *paymentOrchestrator) collectNothing(ctx context.Context, req *CollectRequest, persist PersistFunc[CollectOutcome]) (*CollectOutcome, error) {
	outcome := &CollectOutcome{Payment: s.newPayment(ctx, req, types.PaymentStatusCompleted)}
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.PaymentRepo.Create(ctx, outcome.Payment); err != nil {
			return err
		}
		return persist(ctx, outcome)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *paymentOrchestrator) collectFromWallet(ctx context.Context, req *CollectRequest, persist PersistFunc[CollectOutcome]) (*CollectOutcome, error) {
	w, err := s.WalletRepo.GetByUserID(ctx, req.UserID)
	if ierr.IsNotFound(err) {
		return nil, ierr.WithError(err).
			WithHint("You need a funded wallet to pay with wallet").
			WithReportableDetails(map[string]any{
				"user_id":  req.UserID,
				"required": req.Amount,
			}).
			Mark(ierr.ErrInsufficientFunds)
	}
	if err != nil {
		return nil, err
	}

	// fail fast without opening a transaction; Apply re-checks atomically
	if !w.CanDebit(req.Amount) {
		return nil, ierr.NewError("insufficient wallet balance").
			WithHint("Wallet balance is not enough for this payment").
			WithReportableDetails(map[string]any{
				"wallet_id":     w.ID,
				"balance":       w.Balance,
				"required":      req.Amount,
				"wallet_status": w.WalletStatus,
			}).
			Mark(ierr.ErrInsufficientFunds)
	}

	reason := types.TransactionReasonSubscriptionPayment
	if req.Purpose == types.PaymentPurposeRenewal {
		reason = types.TransactionReasonRenewalPayment
	}

	outcome := &CollectOutcome{}
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		txn, err := s.WalletRepo.Apply(ctx, &wallet.Operation{
			WalletID:    w.ID,
			Type:        types.TransactionTypeDebit,
			Amount:      req.Amount,
			Reason:      reason,
			ReferenceID: req.SubscriptionID,
			Description: req.Description,
		})
		if err != nil {
			return err
		}
		outcome.WalletTransaction = txn

		outcome.Payment = s.newPayment(ctx, req, types.PaymentStatusCompleted)
		outcome.Payment.GatewayTransactionID = txn.ID
		if err := s.PaymentRepo.Create(ctx, outcome.Payment); err != nil {
			return err
		}
		return persist(ctx, outcome)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *paymentOrchestrator) collectFromCard(ctx context.Context, req *CollectRequest, persist PersistFunc[CollectOutcome]) (*CollectOutcome, error) {
	customerRef, methodRef, err := s.resolveCard(ctx, req)
	if err != nil {
		return nil, err
	}

	charge, err := s.charge(ctx, &payment.ChargeInput{
		CustomerRef:      customerRef,
		PaymentMethodRef: methodRef,
		Amount:           req.Amount,
		Currency:         req.Currency,
		IdempotencyKey:   req.IdempotencyKey,
		Description:      req.Description,
		Metadata: map[string]string{
			"subscription_id": req.SubscriptionID,
			"user_id":         req.UserID,
			"purpose":         string(req.Purpose),
		},
	})
	if err != nil {
		return nil, err
	}

	outcome := &CollectOutcome{Payment: s.newPayment(ctx, req, types.PaymentStatusCompleted)}
	outcome.Payment.GatewayTransactionID = charge.TransactionID

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.PaymentRepo.Create(ctx, outcome.Payment); err != nil {
			return err
		}
		return persist(ctx, outcome)
	})
	if err != nil {
		return nil, s.compensate(ctx, req, charge, err)
	}
	return outcome, nil
}

// resolveCard finds or creates the gateway customer and picks the card to charge
func (s *paymentOrchestrator) resolveCard(ctx context.Context, req *CollectRequest) (string, string, error) {
	profile, err := s.CustomerRepo.GetByUserID(ctx, req.UserID)
	if err != nil && !ierr.IsNotFound(err) {
		return "", "", err
	}

	methodRef := req.PaymentMethodRef
	if methodRef == "" && profile != nil {
		methodRef = profile.DefaultPaymentMethodRef
	}
	if methodRef == "" {
		return "", "", ierr.NewError("no card to charge").
			WithHint("Add a card to pay by card").
			WithReportableDetails(map[string]any{"user_id": req.UserID}).
			Mark(ierr.ErrValidation)
	}

	if profile != nil && profile.CustomerRef != "" {
		if profile.DefaultPaymentMethodRef != methodRef {
			profile.DefaultPaymentMethodRef = methodRef
			profile.UpdatedAt = s.now()
			if err := s.CustomerRepo.Upsert(ctx, profile); err != nil {
				return "", "", err
			}
		}
		return profile.CustomerRef, methodRef, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.Config.Stripe.ChargeTimeout)
	defer cancel()
	customer, err := s.CardGateway.CreateCustomer(callCtx, &payment.CreateCustomerInput{
		UserID: req.UserID,
		Email:  req.Email,
	})
	if err != nil {
		return "", "", asGatewayError(err, "Could not set up card payments")
	}

	now := s.now()
	if err := s.CustomerRepo.Upsert(ctx, &payment.CustomerProfile{
		UserID:                  req.UserID,
		CustomerRef:             customer.CustomerRef,
		DefaultPaymentMethodRef: methodRef,
		CreatedAt:               now,
		UpdatedAt:               now,
	}); err != nil {
		return "", "", err
	}
	return customer.CustomerRef, methodRef, nil
}

// charge calls the gateway with a bounded timeout. When the outcome of a call
// is unknown the same idempotency key is resubmitted, which returns the
// original charge if it went through instead of charging twice.
func (s *paymentOrchestrator) charge(ctx context.Context, input *payment.ChargeInput) (*payment.ChargeResult, error) {
	var result *payment.ChargeResult
	attempt := 0

	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, s.Config.Stripe.ChargeTimeout)
		defer cancel()

		res, err := s.CardGateway.CreateAndConfirmCharge(callCtx, input)
		if err != nil {
			if ierr.Is(err, payment.ErrChargeOutcomeUnknown) {
				s.Logger.Warnw("charge outcome unknown, verifying with same idempotency key",
					"idempotency_key", input.IdempotencyKey,
					"attempt", attempt,
					"error", err,
				)
				return err
			}
			return backoff.Permanent(err)
		}
		if res.Status != payment.ChargeStatusSucceeded {
			return backoff.Permanent(ierr.NewErrorf("charge %s is %s", res.TransactionID, res.Status).
				WithHint("Card payment was not completed").
				WithReportableDetails(map[string]any{
					"transaction_id": res.TransactionID,
					"status":         res.Status,
				}).
				Mark(ierr.ErrPaymentGateway))
		}
		result = res
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.Config.Stripe.VerifyAttempts), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		s.Logger.Errorw("card charge failed",
			"idempotency_key", input.IdempotencyKey,
			"attempts", attempt,
			"error", err,
		)
		return nil, asGatewayError(err, "Card payment failed")
	}
	return result, nil
}

// compensate refunds a charge whose local transaction failed and returns the
// gateway error carrying the refund outcome
func (s *paymentOrchestrator) compensate(ctx context.Context, req *CollectRequest, charge *payment.ChargeResult, cause error) error {
	details := map[string]any{
		"transaction_id":  charge.TransactionID,
		"idempotency_key": req.IdempotencyKey,
	}

	// the caller may already be gone; the refund must still go out
	refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Config.Stripe.ChargeTimeout)
	defer cancel()

	refundKey := "refund-" + req.IdempotencyKey
	refund, err := s.CardGateway.Refund(refundCtx, &payment.RefundInput{
		TransactionID:  charge.TransactionID,
		Amount:         req.Amount,
		IdempotencyKey: refundKey,
		Reason:         "local transaction failed after charge",
	})
	if err != nil {
		details["refund_status"] = "failed"
		s.Logger.Errorw("compensating refund failed, manual reconciliation required",
			"transaction_id", charge.TransactionID,
			"user_id", req.UserID,
			"amount", req.Amount.String(),
			"cause", cause,
			"error", err,
		)
		return ierr.WithError(cause).
			WithHint("Your card was charged but the order could not be saved. Support will refund you.").
			WithReportableDetails(details).
			Mark(ierr.ErrPaymentGateway)
	}

	details["refund_id"] = refund.RefundID
	details["refund_status"] = refund.Status
	s.Logger.Warnw("charge refunded after local transaction failure",
		"transaction_id", charge.TransactionID,
		"refund_id", refund.RefundID,
		"cause", cause,
	)

	now := s.now()
	record := &payment.Payment{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		SubscriptionID:       req.SubscriptionID,
		UserID:               req.UserID,
		Purpose:              types.PaymentPurposeRefund,
		Method:               types.PaymentMethodCard,
		Amount:               req.Amount,
		Currency:             req.Currency,
		PaymentStatus:        types.PaymentStatusRefunded,
		GatewayTransactionID: refund.RefundID,
		IdempotencyKey:       refundKey,
		FailureReason:        cause.Error(),
		Metadata:             types.Metadata{"charge_id": charge.TransactionID},
		CompletedAt:          &now,
		BaseModel:            types.GetDefaultBaseModel(ctx),
	}
	if err := s.PaymentRepo.Create(refundCtx, record); err != nil {
		s.Logger.Errorw("failed to record compensating refund",
			"refund_id", refund.RefundID,
			"error", err,
		)
	}

	return ierr.WithError(cause).
		WithHint("Your order could not be saved and the card payment was refunded").
		WithReportableDetails(details).
		Mark(ierr.ErrPaymentGateway)
}

func (s *paymentOrchestrator) Refund(ctx context.Context, req *RefundRequest, persist PersistFunc[RefundOutcome]) (*RefundOutcome, error) {
	outcome := &RefundOutcome{}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = "refund-" + req.SubscriptionID
	}

	s.Logger.Infow("refunding payment",
		"subscription_id", req.SubscriptionID,
		"method", req.Method,
		"amount", req.Amount.String(),
	)

	if req.Amount.IsPositive() && req.Method == types.PaymentMethodCard && req.TransactionID != "" {
		refundCtx, cancel := context.WithTimeout(ctx, s.Config.Stripe.ChargeTimeout)
		defer cancel()

		refund, err := s.CardGateway.Refund(refundCtx, &payment.RefundInput{
			TransactionID:  req.TransactionID,
			Amount:         req.Amount,
			IdempotencyKey: req.IdempotencyKey,
			Reason:         req.Reason,
		})
		if err != nil {
			return nil, asGatewayError(err, "Card refund failed")
		}
		outcome.RefundID = refund.RefundID
	}

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		if req.Amount.IsPositive() {
			if err := s.recordRefund(ctx, req, outcome); err != nil {
				return err
			}
		}
		return persist(ctx, outcome)
	})
	if err != nil {
		if outcome.RefundID != "" {
			// a retry reuses the idempotency key and gets the same refund back
			s.Logger.Errorw("card refunded but local update failed",
				"subscription_id", req.SubscriptionID,
				"refund_id", outcome.RefundID,
				"error", err,
			)
		}
		return nil, err
	}
	return outcome, nil
}

func (s *paymentOrchestrator) recordRefund(ctx context.Context, req *RefundRequest, outcome *RefundOutcome) error {
	status := types.PaymentStatusRefunded
	switch req.Method {
	case types.PaymentMethodWallet:
		w, err := s.WalletRepo.GetByUserID(ctx, req.UserID)
		if err != nil {
			return err
		}
		txn, err := s.WalletRepo.Apply(ctx, &wallet.Operation{
			WalletID:    w.ID,
			Type:        types.TransactionTypeCredit,
			Amount:      req.Amount,
			Reason:      types.TransactionReasonRefund,
			ReferenceID: req.SubscriptionID,
			Description: req.Reason,
		})
		if err != nil {
			return err
		}
		outcome.WalletTransaction = txn
		outcome.RefundID = txn.ID
	case types.PaymentMethodCOD:
		// cash goes back by hand
		status = types.PaymentStatusPending
	}

	now := s.now()
	outcome.Payment = &payment.Payment{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		SubscriptionID:       req.SubscriptionID,
		UserID:               req.UserID,
		Purpose:              types.PaymentPurposeRefund,
		Method:               req.Method,
		Amount:               req.Amount,
		Currency:             req.Currency,
		PaymentStatus:        status,
		GatewayTransactionID: outcome.RefundID,
		IdempotencyKey:       req.IdempotencyKey,
		Metadata:             types.Metadata{"reason": req.Reason},
		BaseModel:            types.GetDefaultBaseModel(ctx),
	}
	if status == types.PaymentStatusRefunded {
		outcome.Payment.CompletedAt = &now
	}
	return s.PaymentRepo.Create(ctx, outcome.Payment)
}

func (s *paymentOrchestrator) ListPayments(ctx context.Context, subscriptionID string) ([]*payment.Payment, error) {
	return s.PaymentRepo.ListBySubscription(ctx, subscriptionID)
}

func asGatewayError(err error, hint string) error {
	if ierr.IsPaymentGateway(err) {
		return err
	}
	return ierr.WithError(err).
		WithHint(hint).
		Mark(ierr.ErrPaymentGateway)
}
