package wallet

import (
	"context"

	"github.com/flexprice/mealsub/internal/types"
)

// Repository is the wallet ledger
type Repository interface {
	Create(ctx context.Context, w *Wallet) error
	Get(ctx context.Context, id string) (*Wallet, error)
	GetByUserID(ctx context.Context, userID string) (*Wallet, error)

	// Apply moves money atomically and appends the ledger entry.
	// A debit that would take the balance below zero fails with ierr.ErrInsufficientFunds
	// and leaves the wallet untouched.
	Apply(ctx context.Context, op *Operation) (*Transaction, error)

	ListTransactions(ctx context.Context, walletID string, filter *types.QueryFilter) ([]*Transaction, error)
}
