package cqrs

import (
	"time"

	"github.com/vay-dev/swift-wallet-be/shared/models"
)

// ---------- Wallet queries ----------

// GetWalletQuery fetches the caller's wallet.
type GetWalletQuery struct {
	UserID string
}

// GetDashboardQuery fetches the wallet, recent activity and today's rollup.
type GetDashboardQuery struct {
	UserID string
}

// GetAnalyticsQuery summarises the trailing Days of activity.
type GetAnalyticsQuery struct {
	UserID string
	Days   int
}

// ListBeneficiariesQuery fetches the caller's saved recipients.
type ListBeneficiariesQuery struct {
	UserID        string
	FavoritesOnly bool
}

// ListSavedCardsQuery fetches the caller's active saved cards.
type ListSavedCardsQuery struct {
	UserID string
}

// ---------- Transaction queries ----------

// GetTransactionQuery fetches a single transaction owned by UserID.
type GetTransactionQuery struct {
	Reference string
	UserID    string
}

// ListTransactionsQuery pages through a user's history, newest first.
type ListTransactionsQuery struct {
	UserID    string
	Direction models.Direction
	Status    models.Status
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}
