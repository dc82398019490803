package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

const cardColumns = `id, user_id, authorization_code, card_type, last4, exp_month, exp_year, bank,
	nickname, is_default, is_active, created_at, last_used_at`

// CardRepository stores reusable card authorizations. The authorization code
// is written and read here only; views never carry it.
type CardRepository struct {
	db *sql.DB
}

func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

// Remember stores card, or brings back the user's own deleted card when the
// same authorization is used again. The card becomes the default only when
// the user has no other default; ID, IsDefault and IsActive are filled from the
// stored row. It reports false when the authorization is already active or
// belongs to another user.
//
// Callers settling a deposit hold the user's wallet lock, which serializes
// default assignment per user; saved_cards_one_default rejects anything that
// slips past it.
func (r *CardRepository) Remember(ctx context.Context, card *models.SavedCard) (bool, error) {
	query := `
		INSERT INTO saved_cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
			NOT EXISTS (SELECT 1 FROM saved_cards d WHERE d.user_id = $2 AND d.is_default),
			TRUE, $10, $11)
		ON CONFLICT (authorization_code) DO UPDATE SET
			is_active  = TRUE,
			is_default = NOT EXISTS (SELECT 1 FROM saved_cards d WHERE d.user_id = EXCLUDED.user_id AND d.is_default),
			card_type  = EXCLUDED.card_type,
			last4      = EXCLUDED.last4,
			exp_month  = EXCLUDED.exp_month,
			exp_year   = EXCLUDED.exp_year,
			bank       = EXCLUDED.bank
		WHERE saved_cards.user_id = EXCLUDED.user_id AND NOT saved_cards.is_active
		RETURNING id, is_default, is_active
	`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		card.ID, card.UserID, card.AuthorizationCode, card.CardType, card.Last4,
		card.ExpMonth, card.ExpYear, card.Bank, card.Nickname,
		card.CreatedAt, nullTime(card.LastUsedAt),
	).Scan(&card.ID, &card.IsDefault, &card.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to save card: %w", err)
	}
	return true, nil
}

// GetActive returns an active card owned by userID.
func (r *CardRepository) GetActive(ctx context.Context, userID string, id uuid.UUID) (*models.SavedCard, error) {
	query := `SELECT ` + cardColumns + ` FROM saved_cards WHERE id = $1 AND user_id = $2 AND is_active`
	card, err := scanCard(conn(ctx, r.db).QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// ListActive returns the user's active cards with the default first.
func (r *CardRepository) ListActive(ctx context.Context, userID string) ([]*models.SavedCard, error) {
	query := `SELECT ` + cardColumns + ` FROM saved_cards
		WHERE user_id = $1 AND is_active ORDER BY is_default DESC, created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	cards := make([]*models.SavedCard, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// SetDefault makes id the user's only default card.
func (r *CardRepository) SetDefault(ctx context.Context, userID string, id uuid.UUID) error {
	query := `
		UPDATE saved_cards SET is_default = (id = $2)
		WHERE user_id = $1 AND is_active AND (is_default OR id = $2)
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, userID, id)
	if err != nil {
		return fmt.Errorf("failed to set default card: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return models.ErrCardNotFound
	}
	return nil
}

// Deactivate soft-deletes a card and clears its default flag.
func (r *CardRepository) Deactivate(ctx context.Context, userID string, id uuid.UUID) error {
	query := `UPDATE saved_cards SET is_active = FALSE, is_default = FALSE WHERE id = $1 AND user_id = $2 AND is_active`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return models.ErrCardNotFound
	}
	return nil
}

func (r *CardRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE saved_cards SET last_used_at = $2 WHERE id = $1`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to touch card: %w", err)
	}
	return nil
}

func scanCard(row rowScanner) (*models.SavedCard, error) {
	var (
		c        models.SavedCard
		lastUsed sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.AuthorizationCode, &c.CardType, &c.Last4,
		&c.ExpMonth, &c.ExpYear, &c.Bank, &c.Nickname, &c.IsDefault, &c.IsActive,
		&c.CreatedAt, &lastUsed)
	if err != nil {
		return nil, err
	}
	c.LastUsedAt = timePtr(lastUsed)
	return &c, nil
}
