package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/flexprice/mealsub/internal/domain/wallet"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
)

// InMemoryWalletStore implements wallet.Repository
type InMemoryWalletStore struct {
	wallets      *InMemoryStore[*wallet.Wallet]
	transactions *InMemoryStore[*wallet.Transaction]
	// applyMu serializes balance updates like the conditional UPDATE does in postgres
	applyMu sync.Mutex
}

func NewInMemoryWalletStore() *InMemoryWalletStore {
	return &InMemoryWalletStore{
		wallets:      NewInMemoryStore(cloneWallet),
		transactions: NewInMemoryStore(cloneWalletTransaction),
	}
}

func (s *InMemoryWalletStore) Create(ctx context.Context, w *wallet.Wallet) error {
	if existing, _ := s.GetByUserID(ctx, w.UserID); existing != nil {
		return ierr.NewError("wallet already exists").
			WithHint("User already has a wallet").
			WithReportableDetails(map[string]any{"user_id": w.UserID}).
			Mark(ierr.ErrAlreadyExists)
	}
	return s.wallets.Create(ctx, w.ID, w)
}

func (s *InMemoryWalletStore) Get(ctx context.Context, id string) (*wallet.Wallet, error) {
	return s.wallets.Get(ctx, id)
}

func (s *InMemoryWalletStore) GetByUserID(ctx context.Context, userID string) (*wallet.Wallet, error) {
	wallets, err := s.wallets.List(ctx, nil, func(_ context.Context, w *wallet.Wallet) bool {
		return w.UserID == userID && w.Status == types.StatusPublished
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(wallets) == 0 {
		return nil, ierr.NewErrorf("wallet for user %s not found", userID).
			WithHint("User has no wallet").
			Mark(ierr.ErrNotFound)
	}
	return wallets[0], nil
}

func (s *InMemoryWalletStore) Apply(ctx context.Context, op *wallet.Operation) (*wallet.Transaction, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	w, err := s.wallets.Get(ctx, op.WalletID)
	if err != nil {
		return nil, err
	}
	if w.WalletStatus != types.WalletStatusActive {
		return nil, ierr.NewErrorf("wallet %s is %s", w.ID, w.WalletStatus).
			WithHint("Wallet is not active").
			Mark(ierr.ErrStateConflict)
	}

	before := w.Balance
	switch op.Type {
	case types.TransactionTypeDebit:
		if w.Balance.LessThan(op.Amount) {
			return nil, ierr.NewError("insufficient wallet balance").
				WithHint("Wallet balance is not enough for this payment").
				WithReportableDetails(map[string]any{
					"wallet_id": w.ID,
					"balance":   w.Balance,
					"required":  op.Amount,
				}).
				Mark(ierr.ErrInsufficientFunds)
		}
		w.Balance = w.Balance.Sub(op.Amount)
		w.TotalSpent = w.TotalSpent.Add(op.Amount)
	default:
		w.Balance = w.Balance.Add(op.Amount)
		w.TotalCredits = w.TotalCredits.Add(op.Amount)
	}
	w.UpdatedAt = time.Now().UTC()

	if err := s.wallets.Update(ctx, w.ID, w); err != nil {
		return nil, err
	}

	txn := &wallet.Transaction{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WALLET_TRANSACTION),
		WalletID:      w.ID,
		UserID:        w.UserID,
		Type:          op.Type,
		Amount:        op.Amount,
		BalanceBefore: before,
		BalanceAfter:  w.Balance,
		Reason:        op.Reason,
		ReferenceID:   op.ReferenceID,
		Description:   op.Description,
		CreatedAt:     time.Now().UTC(),
		CreatedBy:     types.GetUserID(ctx),
	}
	if err := s.transactions.Create(ctx, txn.ID, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *InMemoryWalletStore) ListTransactions(ctx context.Context, walletID string, filter *types.QueryFilter) ([]*wallet.Transaction, error) {
	return s.transactions.List(ctx, filter,
		func(_ context.Context, t *wallet.Transaction) bool { return t.WalletID == walletID },
		func(a, b *wallet.Transaction) bool {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID > b.ID
			}
			return a.CreatedAt.After(b.CreatedAt)
		})
}

// Snapshot captures wallets and ledger entries together
func (s *InMemoryWalletStore) Snapshot() func() {
	restoreWallets := s.wallets.Snapshot()
	restoreTxns := s.transactions.Snapshot()
	return func() {
		restoreWallets()
		restoreTxns()
	}
}

func (s *InMemoryWalletStore) Clear() {
	s.wallets.Clear()
	s.transactions.Clear()
}
