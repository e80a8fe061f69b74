package types

// WalletStatus is the status of a wallet
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "active"
	WalletStatusFrozen WalletStatus = "frozen"
	WalletStatusClosed WalletStatus = "closed"
)

// TransactionType is the direction of a wallet ledger entry
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// TransactionReason explains why a wallet ledger entry was written
type TransactionReason string

const (
	TransactionReasonSubscriptionPayment TransactionReason = "subscription_payment"
	TransactionReasonRenewalPayment      TransactionReason = "renewal_payment"
	TransactionReasonTopUp               TransactionReason = "wallet_topup"
	TransactionReasonRefund              TransactionReason = "subscription_refund"
)
