package command

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

// analyticsDelta maps a completed posting onto the increments applied to the
// owner's daily rollup. closing is the wallet balance right after t.
func analyticsDelta(t *models.Transaction, closing decimal.Decimal) models.AnalyticsDelta {
	at := t.CreatedAt
	if t.CompletedAt != nil {
		at = *t.CompletedAt
	}

	d := models.AnalyticsDelta{
		UserID:         t.UserID,
		Date:           analyticsDate(at),
		Credits:        decimal.Zero,
		Debits:         decimal.Zero,
		ClosingBalance: closing,
	}

	switch t.Direction {
	case models.DirectionCredit:
		d.Credits = t.Amount
		if t.Category == models.CategoryTransfer {
			d.TransfersReceived = 1
		}
	case models.DirectionDebit:
		d.Debits = t.Amount
		switch t.Category {
		case models.CategoryTransfer:
			d.TransfersSent = 1
		case models.CategoryBillPayment:
			d.BillPayments = 1
		case models.CategoryAirtime:
			d.AirtimePurchases = 1
		}
	}
	return d
}

// analyticsDate truncates t to its UTC calendar day.
func analyticsDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
