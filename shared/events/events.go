package events

import "time"

// Event types
const (
	WalletProvisioned    = "wallet.provisioned"
	TransactionCompleted = "transaction.completed"
	TransactionFailed    = "transaction.failed"
	BalanceUpdated       = "balance.updated"
)

// Stream names
const (
	WalletEventsStream = "wallet.events"
)

// Event is the envelope written to every stream entry. ID is a ULID, so IDs
// sort by publish time.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Wallet events
type WalletProvisionedEvent struct {
	WalletID string `json:"walletId"`
	UserID   string `json:"userId"`
	Currency string `json:"currency"`
}

// Transaction events. Amounts are decimal strings with two fraction digits.
type TransactionCompletedEvent struct {
	Reference    string `json:"reference"`
	UserID       string `json:"userId"`
	WalletID     string `json:"walletId"`
	Direction    string `json:"direction"`
	Category     string `json:"category"`
	Amount       string `json:"amount"`
	BalanceAfter string `json:"balanceAfter"`
}

type TransactionFailedEvent struct {
	Reference string `json:"reference"`
	UserID    string `json:"userId"`
	Category  string `json:"category"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

type BalanceUpdatedEvent struct {
	WalletID   string `json:"walletId"`
	UserID     string `json:"userId"`
	NewBalance string `json:"newBalance"`
	Change     string `json:"change"`
}
