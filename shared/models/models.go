package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

type Category string

const (
	CategoryTransfer    Category = "transfer"
	CategoryDeposit     Category = "deposit"
	CategoryWithdrawal  Category = "withdrawal"
	CategoryBillPayment Category = "bill_payment"
	CategoryAirtime     Category = "airtime"
	CategoryRefund      Category = "refund"
	CategoryBonus       Category = "bonus"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryTransfer, CategoryDeposit, CategoryWithdrawal, CategoryBillPayment,
		CategoryAirtime, CategoryRefund, CategoryBonus:
		return true
	}
	return false
}

// IsCreditSource reports whether c may be used for a credit that does not
// originate from another wallet.
func (c Category) IsCreditSource() bool {
	return c == CategoryDeposit || c == CategoryBonus || c == CategoryRefund
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusReversed  Status = "reversed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusReversed:
		return true
	}
	return false
}

// IsTerminal reports whether s can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusReversed
}

// Audit carries request metadata recorded on every posted transaction.
type Audit struct {
	IPAddress string
	UserAgent string
}

type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	UserID    string          `json:"-"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	IsActive  bool            `json:"isActive"`
	IsFrozen  bool            `json:"isFrozen"`
	CreatedAt time.Time       `json:"createdTimestamp"`
	UpdatedAt time.Time       `json:"updatedTimestamp"`
}

// CanDebit checks the wallet-level preconditions for removing amount.
func (w *Wallet) CanDebit(amount decimal.Decimal) error {
	if !w.IsActive {
		return ErrWalletInactive
	}
	if w.IsFrozen {
		return ErrWalletFrozen
	}
	if w.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	return nil
}

// CanReceive checks whether the wallet may be credited by another wallet.
func (w *Wallet) CanReceive() error {
	if !w.IsActive || w.IsFrozen {
		return ErrRecipientWalletInactive
	}
	return nil
}

type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	Reference     string          `json:"reference"`
	WalletID      uuid.UUID       `json:"-"`
	UserID        string          `json:"-"`
	SenderID      string          `json:"senderId,omitempty"`
	RecipientID   string          `json:"recipientId,omitempty"`
	Direction     Direction       `json:"direction"`
	Category      Category        `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Status        Status          `json:"status"`
	Narration     string          `json:"narration,omitempty"`
	Description   string          `json:"description,omitempty"`
	IPAddress     string          `json:"-"`
	UserAgent     string          `json:"-"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
	CompletedAt   *time.Time      `json:"completedTimestamp,omitempty"`
}

// SignedAmount is the amount as it applies to the wallet balance.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Complete applies the transaction on top of balance and marks it completed.
func (t *Transaction) Complete(balance decimal.Decimal, at time.Time) {
	t.BalanceBefore = balance
	t.BalanceAfter = balance.Add(t.SignedAmount())
	t.Status = StatusCompleted
	completed := at
	t.CompletedAt = &completed
}

// Fail marks the transaction failed without touching its balance snapshot.
func (t *Transaction) Fail(narration string) {
	t.Status = StatusFailed
	if narration != "" {
		t.Narration = narration
	}
}

// DailyAnalytics is the per-user, per-day activity rollup.
type DailyAnalytics struct {
	UserID            string          `json:"-"`
	Date              time.Time       `json:"date"`
	TotalCredits      decimal.Decimal `json:"totalCredits"`
	TotalDebits       decimal.Decimal `json:"totalDebits"`
	TotalTransactions int             `json:"totalTransactions"`
	TransfersSent     int             `json:"transfersSent"`
	TransfersReceived int             `json:"transfersReceived"`
	BillPayments      int             `json:"billPayments"`
	AirtimePurchases  int             `json:"airtimePurchases"`
	ClosingBalance    decimal.Decimal `json:"closingBalance"`
	CreatedAt         time.Time       `json:"createdTimestamp"`
	UpdatedAt         time.Time       `json:"updatedTimestamp"`
}

// AnalyticsDelta is one completed posting folded into a DailyAnalytics row.
type AnalyticsDelta struct {
	UserID            string
	Date              time.Time
	Credits           decimal.Decimal
	Debits            decimal.Decimal
	TransfersSent     int
	TransfersReceived int
	BillPayments      int
	AirtimePurchases  int
	ClosingBalance    decimal.Decimal
}

type BeneficiaryContact struct {
	ID                uuid.UUID       `json:"id"`
	UserID            string          `json:"-"`
	BeneficiaryID     string          `json:"beneficiaryId"`
	Nickname          string          `json:"nickname,omitempty"`
	IsFavorite        bool            `json:"isFavorite"`
	TotalSent         decimal.Decimal `json:"totalSent"`
	TransactionCount  int             `json:"transactionCount"`
	CreatedAt         time.Time       `json:"createdTimestamp"`
	LastTransactionAt *time.Time      `json:"lastTransactionTimestamp,omitempty"`
}

type SavedCard struct {
	ID                uuid.UUID  `json:"id"`
	UserID            string     `json:"-"`
	AuthorizationCode string     `json:"-"`
	CardType          string     `json:"cardType"`
	Last4             string     `json:"last4"`
	ExpMonth          string     `json:"expMonth"`
	ExpYear           string     `json:"expYear"`
	Bank              string     `json:"bank,omitempty"`
	Nickname          string     `json:"nickname,omitempty"`
	IsDefault         bool       `json:"isDefault"`
	IsActive          bool       `json:"isActive"`
	CreatedAt         time.Time  `json:"createdTimestamp"`
	LastUsedAt        *time.Time `json:"lastUsedTimestamp,omitempty"`
}

// Display renders the card as "Visa **** 1234".
func (c *SavedCard) Display() string {
	cardType := strings.TrimSpace(c.CardType)
	if cardType == "" {
		cardType = "Card"
	} else {
		cardType = strings.ToUpper(cardType[:1]) + strings.ToLower(cardType[1:])
	}
	return fmt.Sprintf("%s **** %s", cardType, c.Last4)
}

type TransactionPIN struct {
	UserID         string
	PINHash        string
	IsActive       bool
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsLocked reports whether the PIN is locked at the given instant.
func (p *TransactionPIN) IsLocked(at time.Time) bool {
	return p.LockedUntil != nil && at.Before(*p.LockedUntil)
}

// Identity is the externally owned user record used to resolve recipients.
type Identity struct {
	ID            string    `json:"id"`
	PhoneNumber   string    `json:"phoneNumber"`
	AccountNumber string    `json:"accountNumber"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	CreatedAt     time.Time `json:"createdTimestamp"`
}
