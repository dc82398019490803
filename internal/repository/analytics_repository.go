package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vay-dev/swift-wallet-be/shared/models"
)

const analyticsColumns = `user_id, date, total_credits, total_debits, total_transactions, transfers_sent,
	transfers_received, bill_payments, airtime_purchases, closing_balance, created_at, updated_at`

type AnalyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Apply folds a completed posting into the user's row for the day, creating
// it on first use.
func (r *AnalyticsRepository) Apply(ctx context.Context, d models.AnalyticsDelta, at time.Time) error {
	query := `
		INSERT INTO daily_analytics (user_id, date, total_credits, total_debits, total_transactions,
			transfers_sent, transfers_received, bill_payments, airtime_purchases, closing_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (user_id, date) DO UPDATE SET
			total_credits      = daily_analytics.total_credits + EXCLUDED.total_credits,
			total_debits       = daily_analytics.total_debits + EXCLUDED.total_debits,
			total_transactions = daily_analytics.total_transactions + 1,
			transfers_sent     = daily_analytics.transfers_sent + EXCLUDED.transfers_sent,
			transfers_received = daily_analytics.transfers_received + EXCLUDED.transfers_received,
			bill_payments      = daily_analytics.bill_payments + EXCLUDED.bill_payments,
			airtime_purchases  = daily_analytics.airtime_purchases + EXCLUDED.airtime_purchases,
			closing_balance    = EXCLUDED.closing_balance,
			updated_at         = EXCLUDED.updated_at
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		d.UserID, d.Date.Format("2006-01-02"), d.Credits, d.Debits,
		d.TransfersSent, d.TransfersReceived, d.BillPayments, d.AirtimePurchases,
		d.ClosingBalance, at,
	)
	if err != nil {
		return fmt.Errorf("failed to update daily analytics: %w", err)
	}
	return nil
}

// GetDay returns the user's row for date, or nil when there was no activity.
func (r *AnalyticsRepository) GetDay(ctx context.Context, userID string, date time.Time) (*models.DailyAnalytics, error) {
	query := `SELECT ` + analyticsColumns + ` FROM daily_analytics WHERE user_id = $1 AND date = $2`
	a, err := scanAnalytics(r.db.QueryRowContext(ctx, query, userID, date.Format("2006-01-02")))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily analytics: %w", err)
	}
	return a, nil
}

// ListRange returns rows with from <= date <= to, oldest first.
func (r *AnalyticsRepository) ListRange(ctx context.Context, userID string, from, to time.Time) ([]*models.DailyAnalytics, error) {
	query := `SELECT ` + analyticsColumns + ` FROM daily_analytics
		WHERE user_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC`
	rows, err := r.db.QueryContext(ctx, query, userID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to list daily analytics: %w", err)
	}
	defer rows.Close()

	var out []*models.DailyAnalytics
	for rows.Next() {
		a, err := scanAnalytics(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily analytics: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestBefore returns the most recent row dated strictly before date, or nil
// when the user has no earlier activity.
func (r *AnalyticsRepository) LatestBefore(ctx context.Context, userID string, date time.Time) (*models.DailyAnalytics, error) {
	query := `SELECT ` + analyticsColumns + ` FROM daily_analytics
		WHERE user_id = $1 AND date < $2 ORDER BY date DESC LIMIT 1`
	a, err := scanAnalytics(r.db.QueryRowContext(ctx, query, userID, date.Format("2006-01-02")))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prior daily analytics: %w", err)
	}
	return a, nil
}

func scanAnalytics(row rowScanner) (*models.DailyAnalytics, error) {
	var a models.DailyAnalytics
	err := row.Scan(&a.UserID, &a.Date, &a.TotalCredits, &a.TotalDebits, &a.TotalTransactions,
		&a.TransfersSent, &a.TransfersReceived, &a.BillPayments, &a.AirtimePurchases,
		&a.ClosingBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
