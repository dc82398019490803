package query

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vay-dev/swift-wallet-be/shared/cqrs"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

const (
	dashboardRecentCount = 5
	defaultAnalyticsDays = 7
	maxAnalyticsDays     = 365
)

type WalletReader interface {
	GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
}

type RecentTransactionReader interface {
	ListRecent(ctx context.Context, userID string, n int) ([]*models.TransactionView, error)
}

type AnalyticsReader interface {
	GetDay(ctx context.Context, userID string, date time.Time) (*models.DailyAnalytics, error)
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]*models.DailyAnalytics, error)
	LatestBefore(ctx context.Context, userID string, date time.Time) (*models.DailyAnalytics, error)
}

type BeneficiaryReader interface {
	List(ctx context.Context, userID string, favoritesOnly bool) ([]*models.BeneficiaryView, error)
}

type CardReader interface {
	ListActive(ctx context.Context, userID string) ([]*models.SavedCard, error)
}

// WalletQueryService serves the wallet-centric reads: balance, dashboard,
// analytics, beneficiaries and saved cards.
type WalletQueryService struct {
	wallets       WalletReader
	transactions  RecentTransactionReader
	analytics     AnalyticsReader
	beneficiaries BeneficiaryReader
	cards         CardReader
	now           func() time.Time
}

func NewWalletQueryService(
	wallets WalletReader,
	transactions RecentTransactionReader,
	analytics AnalyticsReader,
	beneficiaries BeneficiaryReader,
	cards CardReader,
) *WalletQueryService {
	return &WalletQueryService{
		wallets:       wallets,
		transactions:  transactions,
		analytics:     analytics,
		beneficiaries: beneficiaries,
		cards:         cards,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *WalletQueryService) GetWallet(ctx context.Context, q cqrs.GetWalletQuery) (*models.WalletView, error) {
	w, err := s.wallets.GetByUserID(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	return models.NewWalletView(w), nil
}

// Dashboard returns the wallet with its five most recent transactions and
// today's rollup. A day without activity is reported as zeros.
func (s *WalletQueryService) Dashboard(ctx context.Context, q cqrs.GetDashboardQuery) (*models.DashboardView, error) {
	w, err := s.wallets.GetByUserID(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	recent, err := s.transactions.ListRecent(ctx, q.UserID, dashboardRecentCount)
	if err != nil {
		return nil, err
	}

	today := startOfDay(s.now())
	day, err := s.analytics.GetDay(ctx, q.UserID, today)
	if err != nil {
		return nil, err
	}
	if day == nil {
		day = emptyDay(q.UserID, today, w.Balance)
	}

	return &models.DashboardView{
		Wallet:             models.NewWalletView(w),
		RecentTransactions: recent,
		Today:              models.NewDaySummary(day),
	}, nil
}

// Analytics summarises the trailing window of q.Days days ending today.
// Days without activity appear with zero totals and carry the previous
// closing balance forward. Quiet days at the start of the window close at the
// balance held before the window opened.
func (s *WalletQueryService) Analytics(ctx context.Context, q cqrs.GetAnalyticsQuery) (*models.AnalyticsView, error) {
	days := q.Days
	if days == 0 {
		days = defaultAnalyticsDays
	}
	if days < 1 || days > maxAnalyticsDays {
		return nil, models.NewValidationError("days", "days must be between 1 and %d", maxAnalyticsDays)
	}

	w, err := s.wallets.GetByUserID(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	end := startOfDay(s.now())
	start := end.AddDate(0, 0, -(days - 1))

	rows, err := s.analytics.ListRange(ctx, q.UserID, start, end)
	if err != nil {
		return nil, err
	}
	prior, err := s.analytics.LatestBefore(ctx, q.UserID, start)
	if err != nil {
		return nil, err
	}

	var opening decimal.Decimal
	if prior != nil {
		opening = prior.ClosingBalance
	} else {
		// No history before the window: back the window's net flow out of
		// the live balance.
		opening = w.Balance
		for _, r := range rows {
			opening = opening.Sub(r.TotalCredits).Add(r.TotalDebits)
		}
	}

	view := summarize(q.UserID, start, days, opening, rows)
	view.CurrentBalance = models.FormatMoney(w.Balance)
	return view, nil
}

func summarize(userID string, start time.Time, days int, opening decimal.Decimal, rows []*models.DailyAnalytics) *models.AnalyticsView {
	byDate := make(map[string]*models.DailyAnalytics, len(rows))
	for _, r := range rows {
		byDate[r.Date.Format("2006-01-02")] = r
	}

	view := &models.AnalyticsView{
		Days:      days,
		StartDate: start.Format("2006-01-02"),
		EndDate:   start.AddDate(0, 0, days-1).Format("2006-01-02"),
		Daily:     make([]*models.DaySummary, 0, days),
	}

	credits, debits := decimal.Zero, decimal.Zero
	closing := opening
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		row, ok := byDate[date.Format("2006-01-02")]
		if !ok {
			row = emptyDay(userID, date, closing)
		}
		closing = row.ClosingBalance

		credits = credits.Add(row.TotalCredits)
		debits = debits.Add(row.TotalDebits)
		view.TotalTransactions += row.TotalTransactions
		view.TransfersSent += row.TransfersSent
		view.TransfersReceived += row.TransfersReceived
		view.BillPayments += row.BillPayments
		view.AirtimePurchases += row.AirtimePurchases
		view.Daily = append(view.Daily, models.NewDaySummary(row))
	}

	view.TotalCredits = models.FormatMoney(credits)
	view.TotalDebits = models.FormatMoney(debits)
	view.NetFlow = models.FormatMoney(credits.Sub(debits))
	return view
}

func (s *WalletQueryService) ListBeneficiaries(ctx context.Context, q cqrs.ListBeneficiariesQuery) ([]*models.BeneficiaryView, error) {
	return s.beneficiaries.List(ctx, q.UserID, q.FavoritesOnly)
}

func (s *WalletQueryService) ListSavedCards(ctx context.Context, q cqrs.ListSavedCardsQuery) ([]*models.SavedCardView, error) {
	cards, err := s.cards.ListActive(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	views := make([]*models.SavedCardView, 0, len(cards))
	for _, c := range cards {
		views = append(views, models.NewSavedCardView(c))
	}
	return views, nil
}

func emptyDay(userID string, date time.Time, closing decimal.Decimal) *models.DailyAnalytics {
	return &models.DailyAnalytics{
		UserID:         userID,
		Date:           date,
		TotalCredits:   decimal.Zero,
		TotalDebits:    decimal.Zero,
		ClosingBalance: closing,
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
