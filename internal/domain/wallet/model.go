package wallet

import (
	"time"

	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/shopspring/decimal"
)

// Wallet is a user's prepaid balance
type Wallet struct {
	ID           string             `db:"id" json:"id"`
	UserID       string             `db:"user_id" json:"user_id"`
	Currency     string             `db:"currency" json:"currency"`
	Balance      decimal.Decimal    `db:"balance" json:"balance" swaggertype:"string"`
	TotalSpent   decimal.Decimal    `db:"total_spent" json:"total_spent" swaggertype:"string"`
	TotalCredits decimal.Decimal    `db:"total_credits" json:"total_credits" swaggertype:"string"`
	WalletStatus types.WalletStatus `db:"wallet_status" json:"wallet_status"`
	types.BaseModel
}

// Transaction is one immutable wallet ledger entry
type Transaction struct {
	ID            string                  `db:"id" json:"id"`
	WalletID      string                  `db:"wallet_id" json:"wallet_id"`
	UserID        string                  `db:"user_id" json:"user_id"`
	Type          types.TransactionType   `db:"type" json:"type"`
	Amount        decimal.Decimal         `db:"amount" json:"amount" swaggertype:"string"`
	BalanceBefore decimal.Decimal         `db:"balance_before" json:"balance_before" swaggertype:"string"`
	BalanceAfter  decimal.Decimal         `db:"balance_after" json:"balance_after" swaggertype:"string"`
	Reason        types.TransactionReason `db:"reason" json:"reason"`
	// ReferenceID points at the subscription or payment that caused the entry
	ReferenceID string    `db:"reference_id" json:"reference_id"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
}

// Operation is a request to move money in or out of a wallet
type Operation struct {
	WalletID    string
	Type        types.TransactionType
	Amount      decimal.Decimal
	Reason      types.TransactionReason
	ReferenceID string
	Description string
}

func (o *Operation) Validate() error {
	if o.WalletID == "" {
		return ierr.NewError("wallet_id is required").
			WithHint("Wallet ID is required").
			Mark(ierr.ErrValidation)
	}
	if o.Type != types.TransactionTypeCredit && o.Type != types.TransactionTypeDebit {
		return ierr.NewError("invalid transaction type").
			WithHint("Transaction type must be credit or debit").
			WithReportableDetails(map[string]any{"type": o.Type}).
			Mark(ierr.ErrValidation)
	}
	if !o.Amount.IsPositive() {
		return ierr.NewError("amount must be positive").
			WithHint("Amount must be greater than zero").
			WithReportableDetails(map[string]any{"amount": o.Amount}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CanDebit reports whether the wallet is usable and holds at least amount
func (w *Wallet) CanDebit(amount decimal.Decimal) bool {
	return w.WalletStatus == types.WalletStatusActive && !w.Balance.LessThan(amount)
}
