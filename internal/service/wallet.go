package service

import (
	"context"
	"fmt"

	"github.com/flexprice/mealsub/internal/api/dto"
	"github.com/flexprice/mealsub/internal/domain/wallet"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/notification"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// WalletService exposes the prepaid wallet ledger
type WalletService interface {
	GetWallet(ctx context.Context, userID string) (*dto.WalletResponse, error)

	// TopUpWallet charges a card and credits the wallet with the same amount
	TopUpWallet(ctx context.Context, userID string, req *dto.TopUpWalletRequest) (*dto.TopUpWalletResponse, error)

	ListTransactions(ctx context.Context, userID string, filter *types.QueryFilter) (*dto.ListWalletTransactionsResponse, error)
}

type walletService struct {
	ServiceParams
	payments PaymentOrchestrator
}

func NewWalletService(params ServiceParams) WalletService {
	return &walletService{
		ServiceParams: params,
		payments:      NewPaymentOrchestrator(params),
	}
}

func (s *walletService) GetWallet(ctx context.Context, userID string) (*dto.WalletResponse, error) {
	w, err := s.WalletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.WalletResponse{Wallet: w}, nil
}

func (s *walletService) TopUpWallet(ctx context.Context, userID string, req *dto.TopUpWalletRequest) (*dto.TopUpWalletResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ierr.NewError("user_id is required").
			WithHint("A user is required to top up a wallet").
			Mark(ierr.ErrValidation)
	}

	var (
		w   *wallet.Wallet
		txn *wallet.Transaction
	)
	outcome, err := s.payments.Collect(ctx, &CollectRequest{
		UserID:           userID,
		Email:            req.CustomerEmail,
		Method:           types.PaymentMethodCard,
		PaymentMethodRef: req.PaymentMethodRef,
		Amount:           req.Amount,
		Currency:         req.Currency,
		Purpose:          types.PaymentPurposeTopUp,
		IdempotencyKey:   lo.CoalesceOrEmpty(req.IdempotencyKey, types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT)),
		Description:      "Wallet top up",
	}, func(ctx context.Context, outcome *CollectOutcome) error {
		var err error
		w, err = s.getOrCreateWallet(ctx, userID, req.Currency)
		if err != nil {
			return err
		}

		txn, err = s.WalletRepo.Apply(ctx, &wallet.Operation{
			WalletID:    w.ID,
			Type:        types.TransactionTypeCredit,
			Amount:      req.Amount,
			Reason:      types.TransactionReasonTopUp,
			ReferenceID: outcome.Payment.ID,
			Description: "Wallet top up",
		})
		if err != nil {
			return err
		}
		outcome.WalletTransaction = txn

		w, err = s.WalletRepo.Get(ctx, w.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("wallet topped up",
		"wallet_id", w.ID,
		"user_id", userID,
		"amount", req.Amount.String(),
		"balance", w.Balance.String(),
	)

	s.notify(ctx, &notification.Notification{
		Kind:    notification.KindWalletTopUp,
		UserID:  userID,
		Email:   req.CustomerEmail,
		Title:   "Wallet topped up",
		Message: fmt.Sprintf("%s %s was added to your wallet.", req.Amount.StringFixed(2), req.Currency),
		Data: map[string]any{
			"wallet_id":      w.ID,
			"transaction_id": txn.ID,
		},
	})

	return &dto.TopUpWalletResponse{
		Wallet:      &dto.WalletResponse{Wallet: w},
		Transaction: &dto.WalletTransactionResponse{Transaction: txn},
		Payment:     &dto.PaymentResponse{Payment: outcome.Payment},
	}, nil
}

func (s *walletService) getOrCreateWallet(ctx context.Context, userID, currency string) (*wallet.Wallet, error) {
	w, err := s.WalletRepo.GetByUserID(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	w = &wallet.Wallet{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WALLET),
		UserID:       userID,
		Currency:     currency,
		Balance:      decimal.Zero,
		TotalSpent:   decimal.Zero,
		TotalCredits: decimal.Zero,
		WalletStatus: types.WalletStatusActive,
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}
	if err := s.WalletRepo.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *walletService) ListTransactions(ctx context.Context, userID string, filter *types.QueryFilter) (*dto.ListWalletTransactionsResponse, error) {
	if filter == nil {
		filter = lo.ToPtr(types.DefaultQueryFilter)
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	w, err := s.WalletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	txns, err := s.WalletRepo.ListTransactions(ctx, w.ID, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(txns, func(t *wallet.Transaction, _ int) *dto.WalletTransactionResponse {
		return &dto.WalletTransactionResponse{Transaction: t}
	})
	response := types.NewListResponse(items, len(items), filter.GetLimit(), filter.GetOffset())
	return &response, nil
}
