package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/mealsub/internal/domain/wallet"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/postgres"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/shopspring/decimal"
)

type walletRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewWalletRepository creates a new instance of wallet repository
func NewWalletRepository(db *postgres.DB, logger *logger.Logger) wallet.Repository {
	return &walletRepository{
		db:     db,
		logger: logger,
	}
}

func (r *walletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallets (
			id, user_id, currency, balance, total_spent, total_credits, wallet_status,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :user_id, :currency, :balance, :total_spent, :total_credits, :wallet_status,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating wallet", "wallet_id", w.ID, "user_id", w.UserID)

	if _, err := r.db.NamedExecContext(ctx, query, w); err != nil {
		return createError(err, "wallet", map[string]any{"user_id": w.UserID})
	}
	return nil
}

func (r *walletRepository) Get(ctx context.Context, id string) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := r.db.NamedGetContext(ctx, &w,
		`SELECT * FROM wallets WHERE id = :id AND status = :status`,
		map[string]interface{}{
			"id":     id,
			"status": types.StatusPublished,
		})
	if err != nil {
		return nil, notFoundOrDatabase(err, "wallet", id)
	}
	return &w, nil
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID string) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := r.db.NamedGetContext(ctx, &w,
		`SELECT * FROM wallets WHERE user_id = :user_id AND status = :status`,
		map[string]interface{}{
			"user_id": userID,
			"status":  types.StatusPublished,
		})
	if err != nil {
		return nil, notFoundOrDatabase(err, "wallet for user", userID)
	}
	return &w, nil
}

// Apply updates the balance with a single conditional statement so concurrent
// debits can never overdraw, then appends the ledger entry.
func (r *walletRepository) Apply(ctx context.Context, op *wallet.Operation) (*wallet.Transaction, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	var query string
	switch op.Type {
	case types.TransactionTypeDebit:
		query = `
			UPDATE wallets
			SET balance = balance - :amount, total_spent = total_spent + :amount, updated_at = :now
			WHERE id = :id AND status = :status AND wallet_status = :wallet_status
			AND balance >= :amount
			RETURNING balance, user_id`
	default:
		query = `
			UPDATE wallets
			SET balance = balance + :amount, total_credits = total_credits + :amount, updated_at = :now
			WHERE id = :id AND status = :status AND wallet_status = :wallet_status
			RETURNING balance, user_id`
	}

	now := time.Now().UTC()
	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"id":            op.WalletID,
		"amount":        op.Amount,
		"now":           now,
		"status":        types.StatusPublished,
		"wallet_status": types.WalletStatusActive,
	})
	if err != nil {
		return nil, databaseError(err, "Failed to update wallet balance")
	}

	var (
		balanceAfter decimal.Decimal
		userID       string
		updated      bool
	)
	if rows.Next() {
		if err := rows.Scan(&balanceAfter, &userID); err != nil {
			rows.Close()
			return nil, databaseError(err, "Failed to update wallet balance")
		}
		updated = true
	}
	rows.Close()

	if !updated {
		w, err := r.Get(ctx, op.WalletID)
		if err != nil {
			return nil, err
		}
		if w.WalletStatus != types.WalletStatusActive {
			return nil, ierr.NewErrorf("wallet %s is %s", w.ID, w.WalletStatus).
				WithHint("Wallet is not active").
				WithReportableDetails(map[string]any{"wallet_id": w.ID}).
				Mark(ierr.ErrStateConflict)
		}
		return nil, ierr.NewError("insufficient wallet balance").
			WithHint("Wallet balance is not enough for this payment").
			WithReportableDetails(map[string]any{
				"wallet_id": w.ID,
				"balance":   w.Balance,
				"required":  op.Amount,
			}).
			Mark(ierr.ErrInsufficientFunds)
	}

	balanceBefore := balanceAfter.Add(op.Amount)
	if op.Type == types.TransactionTypeCredit {
		balanceBefore = balanceAfter.Sub(op.Amount)
	}

	txn := &wallet.Transaction{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WALLET_TRANSACTION),
		WalletID:      op.WalletID,
		UserID:        userID,
		Type:          op.Type,
		Amount:        op.Amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Reason:        op.Reason,
		ReferenceID:   op.ReferenceID,
		Description:   op.Description,
		CreatedAt:     now,
		CreatedBy:     types.GetUserID(ctx),
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO wallet_transactions (
			id, wallet_id, user_id, type, amount, balance_before, balance_after,
			reason, reference_id, description, created_at, created_by
		) VALUES (
			:id, :wallet_id, :user_id, :type, :amount, :balance_before, :balance_after,
			:reason, :reference_id, :description, :created_at, :created_by
		)`, txn)
	if err != nil {
		return nil, databaseError(err, "Failed to record wallet transaction")
	}

	r.logger.Debugw("applied wallet operation",
		"wallet_id", op.WalletID,
		"type", op.Type,
		"amount", op.Amount,
		"balance_after", balanceAfter,
	)
	return txn, nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, walletID string, filter *types.QueryFilter) ([]*wallet.Transaction, error) {
	query := fmt.Sprintf(`SELECT * FROM wallet_transactions WHERE wallet_id = :wallet_id%s`,
		pagination(filter, map[string]string{"created_at": "created_at"}))

	var txns []*wallet.Transaction
	if err := r.db.NamedSelectContext(ctx, &txns, query, map[string]interface{}{"wallet_id": walletID}); err != nil {
		return nil, databaseError(err, "Failed to list wallet transactions")
	}
	return txns, nil
}
