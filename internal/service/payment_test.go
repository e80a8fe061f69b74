package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/flexprice/mealsub/internal/domain/payment"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/testutil"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type PaymentOrchestratorSuite struct {
	testutil.BaseServiceTestSuite
	service PaymentOrchestrator
}

func TestPaymentOrchestrator(t *testing.T) {
	suite.Run(t, new(PaymentOrchestratorSuite))
}

func (s *PaymentOrchestratorSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewPaymentOrchestrator(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *PaymentOrchestratorSuite) cardRequest(key string) *CollectRequest {
	return &CollectRequest{
		SubscriptionID:   "subs_manual",
		UserID:           types.DefaultUserID,
		Method:           types.PaymentMethodCard,
		PaymentMethodRef: "pm_visa",
		Amount:           decimal.NewFromInt(300),
		Currency:         types.DefaultCurrency,
		Purpose:          types.PaymentPurposeSubscription,
		IdempotencyKey:   key,
	}
}

func noopPersist(context.Context, *CollectOutcome) error { return nil }

func (s *PaymentOrchestratorSuite) TestCollect_UnknownOutcomeReusesKey() {
	gw := s.GetCardGateway()
	gw.On("CreateCustomer", mock.Anything, mock.Anything).
		Return(&payment.GatewayCustomer{CustomerRef: "cus_retry"}, nil).Once()
	sameKey := mock.MatchedBy(func(in *payment.ChargeInput) bool { return in.IdempotencyKey == "charge-retry" })
	gw.On("CreateAndConfirmCharge", mock.Anything, sameKey).
		Return(nil, fmt.Errorf("read tcp: %w", payment.ErrChargeOutcomeUnknown)).Once()
	gw.On("CreateAndConfirmCharge", mock.Anything, sameKey).
		Return(&payment.ChargeResult{TransactionID: "ch_retry", Status: payment.ChargeStatusSucceeded}, nil).Once()

	outcome, err := s.service.Collect(s.GetContext(), s.cardRequest("charge-retry"), noopPersist)
	s.Require().NoError(err)
	s.Equal("ch_retry", outcome.Payment.GatewayTransactionID)
	s.Equal(types.PaymentStatusCompleted, outcome.Payment.PaymentStatus)

	gw.AssertNumberOfCalls(s.T(), "CreateAndConfirmCharge", 2)
	gw.AssertExpectations(s.T())
}

func (s *PaymentOrchestratorSuite) TestCollect_UnknownOutcomeGivesUp() {
	gw := s.GetCardGateway()
	gw.On("CreateCustomer", mock.Anything, mock.Anything).
		Return(&payment.GatewayCustomer{CustomerRef: "cus_retry"}, nil).Once()
	gw.On("CreateAndConfirmCharge", mock.Anything, mock.Anything).
		Return(nil, payment.ErrChargeOutcomeUnknown)

	_, err := s.service.Collect(s.GetContext(), s.cardRequest("charge-lost"), noopPersist)
	s.True(ierr.IsPaymentGateway(err))

	// the first call plus VerifyAttempts retries
	gw.AssertNumberOfCalls(s.T(), "CreateAndConfirmCharge", 3)

	_, err = s.GetStores().PaymentRepo.GetByIdempotencyKey(s.GetContext(), "charge-lost")
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentOrchestratorSuite) TestCollect_PersistFailureRollsBackWallet() {
	ctx := s.GetContext()
	s.CreateWallet(types.DefaultUserID, 1000)

	req := s.cardRequest("wallet-rollback")
	req.Method = types.PaymentMethodWallet
	_, err := s.service.Collect(ctx, req, func(context.Context, *CollectOutcome) error {
		return ierr.NewError("calendar write failed").Mark(ierr.ErrDatabase)
	})
	s.True(ierr.Is(err, ierr.ErrDatabase))

	w, err := s.GetStores().WalletRepo.GetByUserID(ctx, types.DefaultUserID)
	s.Require().NoError(err)
	assertAmount(s.T(), "1000", w.Balance)

	_, err = s.GetStores().PaymentRepo.GetByIdempotencyKey(ctx, "wallet-rollback")
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentOrchestratorSuite) TestCollect_ZeroAmountSkipsGateway() {
	req := s.cardRequest("free-cycle")
	req.Amount = decimal.Zero

	outcome, err := s.service.Collect(s.GetContext(), req, noopPersist)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusCompleted, outcome.Payment.PaymentStatus)
	s.GetCardGateway().AssertNotCalled(s.T(), "CreateAndConfirmCharge", mock.Anything, mock.Anything)
}

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()
	conflict := ierr.NewError("stale version").Mark(ierr.ErrVersionConflict)

	t.Run("retries until the write goes through", func(t *testing.T) {
		calls := 0
		err := retryOnConflict(ctx, func() error {
			calls++
			if calls < 3 {
				return conflict
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("other errors stop immediately", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := retryOnConflict(ctx, func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		calls := 0
		err := retryOnConflict(ctx, func() error {
			calls++
			return conflict
		})
		assert.True(t, ierr.IsVersionConflict(err))
		assert.Equal(t, conflictRetries+1, calls)
	})
}
