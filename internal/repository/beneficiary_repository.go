package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

type BeneficiaryRepository struct {
	db *sql.DB
}

func NewBeneficiaryRepository(db *sql.DB) *BeneficiaryRepository {
	return &BeneficiaryRepository{db: db}
}

// Accumulate records a completed transfer from userID to beneficiaryID.
func (r *BeneficiaryRepository) Accumulate(ctx context.Context, userID, beneficiaryID string, amount decimal.Decimal, at time.Time) error {
	query := `
		INSERT INTO beneficiary_contacts (id, user_id, beneficiary_id, total_sent, transaction_count, created_at, last_transaction_at)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (user_id, beneficiary_id) DO UPDATE SET
			total_sent          = beneficiary_contacts.total_sent + EXCLUDED.total_sent,
			transaction_count   = beneficiary_contacts.transaction_count + 1,
			last_transaction_at = EXCLUDED.last_transaction_at
	`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, uuid.New(), userID, beneficiaryID, amount, at); err != nil {
		return fmt.Errorf("failed to record beneficiary: %w", err)
	}
	return nil
}

// Save creates or renames a beneficiary without touching its running totals.
func (r *BeneficiaryRepository) Save(ctx context.Context, b *models.BeneficiaryContact) error {
	query := `
		INSERT INTO beneficiary_contacts (id, user_id, beneficiary_id, nickname, is_favorite, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, beneficiary_id) DO UPDATE SET
			nickname    = EXCLUDED.nickname,
			is_favorite = EXCLUDED.is_favorite
		RETURNING id, total_sent, transaction_count, created_at, last_transaction_at
	`
	var last sql.NullTime
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		b.ID, b.UserID, b.BeneficiaryID, b.Nickname, b.IsFavorite, b.CreatedAt,
	).Scan(&b.ID, &b.TotalSent, &b.TransactionCount, &b.CreatedAt, &last)
	if err != nil {
		return fmt.Errorf("failed to save beneficiary: %w", err)
	}
	b.LastTransactionAt = timePtr(last)
	return nil
}

// List returns the user's beneficiaries, most recently paid first.
func (r *BeneficiaryRepository) List(ctx context.Context, userID string, favoritesOnly bool) ([]*models.BeneficiaryView, error) {
	query := `
		SELECT b.id, b.beneficiary_id, u.phone_number, u.full_name, b.nickname, b.is_favorite,
			b.total_sent, b.transaction_count, b.last_transaction_at
		FROM beneficiary_contacts b
		JOIN users u ON u.id = b.beneficiary_id
		WHERE b.user_id = $1 AND ($2 = FALSE OR b.is_favorite)
		ORDER BY b.last_transaction_at DESC NULLS LAST, b.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, favoritesOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list beneficiaries: %w", err)
	}
	defer rows.Close()

	views := make([]*models.BeneficiaryView, 0)
	for rows.Next() {
		var (
			v         models.BeneficiaryView
			id        uuid.UUID
			totalSent decimal.Decimal
			last      sql.NullTime
		)
		if err := rows.Scan(&id, &v.BeneficiaryID, &v.PhoneNumber, &v.FullName, &v.Nickname,
			&v.IsFavorite, &totalSent, &v.TransactionCount, &last); err != nil {
			return nil, fmt.Errorf("failed to scan beneficiary: %w", err)
		}
		v.ID = id.String()
		v.TotalSent = models.FormatMoney(totalSent)
		v.LastTransactionAt = timePtr(last)
		views = append(views, &v)
	}
	return views, rows.Err()
}
