package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vay-dev/swift-wallet-be/shared/models"
)

type PINRepository struct {
	db *sql.DB
}

func NewPINRepository(db *sql.DB) *PINRepository {
	return &PINRepository{db: db}
}

func (r *PINRepository) Get(ctx context.Context, userID string) (*models.TransactionPIN, error) {
	query := `
		SELECT user_id, pin_hash, is_active, failed_attempts, locked_until, created_at, updated_at
		FROM transaction_pins WHERE user_id = $1
	`
	var (
		p      models.TransactionPIN
		locked sql.NullTime
	)
	err := conn(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.PINHash, &p.IsActive, &p.FailedAttempts, &locked, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPINNotSet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction pin: %w", err)
	}
	p.LockedUntil = timePtr(locked)
	return &p, nil
}

// Save creates or replaces the user's PIN and clears any lockout.
func (r *PINRepository) Save(ctx context.Context, p *models.TransactionPIN) error {
	query := `
		INSERT INTO transaction_pins (user_id, pin_hash, is_active, failed_attempts, locked_until, created_at, updated_at)
		VALUES ($1, $2, TRUE, 0, NULL, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			pin_hash = EXCLUDED.pin_hash,
			is_active = TRUE,
			failed_attempts = 0,
			locked_until = NULL,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, p.UserID, p.PINHash, p.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save transaction pin: %w", err)
	}
	return nil
}

// RecordFailure increments the failed attempt counter and locks the PIN
// until lockUntil once maxAttempts is reached. The counter restarts after a
// lock is applied.
func (r *PINRepository) RecordFailure(ctx context.Context, userID string, maxAttempts int, lockUntil, at time.Time) (*models.TransactionPIN, error) {
	query := `
		UPDATE transaction_pins SET
			locked_until    = CASE WHEN failed_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
			failed_attempts = CASE WHEN failed_attempts + 1 >= $2 THEN 0 ELSE failed_attempts + 1 END,
			updated_at      = $4
		WHERE user_id = $1
		RETURNING failed_attempts, locked_until
	`
	p := models.TransactionPIN{UserID: userID}
	var locked sql.NullTime
	err := conn(ctx, r.db).QueryRowContext(ctx, query, userID, maxAttempts, lockUntil, at).Scan(&p.FailedAttempts, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPINNotSet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record pin failure: %w", err)
	}
	p.LockedUntil = timePtr(locked)
	return &p, nil
}

func (r *PINRepository) ResetFailures(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE transaction_pins SET failed_attempts = 0, locked_until = NULL, updated_at = $2 WHERE user_id = $1 AND (failed_attempts > 0 OR locked_until IS NOT NULL)`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, userID, at); err != nil {
		return fmt.Errorf("failed to reset pin failures: %w", err)
	}
	return nil
}
