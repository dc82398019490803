package models

import "time"

// WalletView is the read-optimised projection of a wallet.
// Amounts are rendered with two fixed decimals.
type WalletView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	IsActive  bool      `json:"isActive"`
	IsFrozen  bool      `json:"isFrozen"`
	CreatedAt time.Time `json:"createdTimestamp"`
	UpdatedAt time.Time `json:"updatedTimestamp"`
}

func NewWalletView(w *Wallet) *WalletView {
	return &WalletView{
		ID:        w.ID.String(),
		UserID:    w.UserID,
		Balance:   FormatMoney(w.Balance),
		Currency:  w.Currency,
		IsActive:  w.IsActive,
		IsFrozen:  w.IsFrozen,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

// TransactionView is the read-optimised projection of a transaction.
// UserID is populated for ownership checks but never serialised to the API response.
type TransactionView struct {
	ID            string     `json:"id"`
	Reference     string     `json:"reference"`
	UserID        string     `json:"-"`
	SenderID      string     `json:"senderId,omitempty"`
	RecipientID   string     `json:"recipientId,omitempty"`
	Direction     Direction  `json:"direction"`
	Category      Category   `json:"category"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	BalanceBefore string     `json:"balanceBefore"`
	BalanceAfter  string     `json:"balanceAfter"`
	Status        Status     `json:"status"`
	Narration     string     `json:"narration,omitempty"`
	Description   string     `json:"description,omitempty"`
	CreatedAt     time.Time  `json:"createdTimestamp"`
	CompletedAt   *time.Time `json:"completedTimestamp,omitempty"`
}

func NewTransactionView(t *Transaction) *TransactionView {
	return &TransactionView{
		ID:            t.ID.String(),
		Reference:     t.Reference,
		UserID:        t.UserID,
		SenderID:      t.SenderID,
		RecipientID:   t.RecipientID,
		Direction:     t.Direction,
		Category:      t.Category,
		Amount:        FormatMoney(t.Amount),
		Currency:      t.Currency,
		BalanceBefore: FormatMoney(t.BalanceBefore),
		BalanceAfter:  FormatMoney(t.BalanceAfter),
		Status:        t.Status,
		Narration:     t.Narration,
		Description:   t.Description,
		CreatedAt:     t.CreatedAt,
		CompletedAt:   t.CompletedAt,
	}
}

type TransactionPage struct {
	Transactions []*TransactionView `json:"transactions"`
	Page         int                `json:"page"`
	PageSize     int                `json:"pageSize"`
	Total        int                `json:"total"`
}

// DaySummary is a single day's activity as shown on the dashboard.
type DaySummary struct {
	Date              string `json:"date"`
	TotalCredits      string `json:"totalCredits"`
	TotalDebits       string `json:"totalDebits"`
	TotalTransactions int    `json:"totalTransactions"`
	TransfersSent     int    `json:"transfersSent"`
	TransfersReceived int    `json:"transfersReceived"`
	BillPayments      int    `json:"billPayments"`
	AirtimePurchases  int    `json:"airtimePurchases"`
	ClosingBalance    string `json:"closingBalance"`
}

func NewDaySummary(a *DailyAnalytics) *DaySummary {
	return &DaySummary{
		Date:              a.Date.Format("2006-01-02"),
		TotalCredits:      FormatMoney(a.TotalCredits),
		TotalDebits:       FormatMoney(a.TotalDebits),
		TotalTransactions: a.TotalTransactions,
		TransfersSent:     a.TransfersSent,
		TransfersReceived: a.TransfersReceived,
		BillPayments:      a.BillPayments,
		AirtimePurchases:  a.AirtimePurchases,
		ClosingBalance:    FormatMoney(a.ClosingBalance),
	}
}

type DashboardView struct {
	Wallet             *WalletView        `json:"wallet"`
	RecentTransactions []*TransactionView `json:"recentTransactions"`
	Today              *DaySummary        `json:"today"`
}

// AnalyticsView aggregates the daily rollups over a trailing window.
type AnalyticsView struct {
	Days              int           `json:"days"`
	StartDate         string        `json:"startDate"`
	EndDate           string        `json:"endDate"`
	TotalCredits      string        `json:"totalCredits"`
	TotalDebits       string        `json:"totalDebits"`
	NetFlow           string        `json:"netFlow"`
	CurrentBalance    string        `json:"currentBalance"`
	TotalTransactions int           `json:"totalTransactions"`
	TransfersSent     int           `json:"transfersSent"`
	TransfersReceived int           `json:"transfersReceived"`
	BillPayments      int           `json:"billPayments"`
	AirtimePurchases  int           `json:"airtimePurchases"`
	Daily             []*DaySummary `json:"daily"`
}

type BeneficiaryView struct {
	ID                string     `json:"id"`
	BeneficiaryID     string     `json:"beneficiaryId"`
	PhoneNumber       string     `json:"phoneNumber"`
	FullName          string     `json:"fullName"`
	Nickname          string     `json:"nickname,omitempty"`
	IsFavorite        bool       `json:"isFavorite"`
	TotalSent         string     `json:"totalSent"`
	TransactionCount  int        `json:"transactionCount"`
	LastTransactionAt *time.Time `json:"lastTransactionTimestamp,omitempty"`
}

// SavedCardView never carries the authorization code.
type SavedCardView struct {
	ID         string     `json:"id"`
	Display    string     `json:"display"`
	CardType   string     `json:"cardType"`
	Last4      string     `json:"last4"`
	ExpMonth   string     `json:"expMonth"`
	ExpYear    string     `json:"expYear"`
	Bank       string     `json:"bank,omitempty"`
	Nickname   string     `json:"nickname,omitempty"`
	IsDefault  bool       `json:"isDefault"`
	LastUsedAt *time.Time `json:"lastUsedTimestamp,omitempty"`
}

func NewSavedCardView(c *SavedCard) *SavedCardView {
	return &SavedCardView{
		ID:         c.ID.String(),
		Display:    c.Display(),
		CardType:   c.CardType,
		Last4:      c.Last4,
		ExpMonth:   c.ExpMonth,
		ExpYear:    c.ExpYear,
		Bank:       c.Bank,
		Nickname:   c.Nickname,
		IsDefault:  c.IsDefault,
		LastUsedAt: c.LastUsedAt,
	}
}
