package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

const walletColumns = `id, user_id, balance, currency, is_active, is_frozen, created_at, updated_at`

// WalletRepository persists wallets. Balance writes are expected to happen
// inside a transaction that holds the row lock taken by LockByID.
type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create inserts a wallet. It reports false when the user already has one.
func (r *WalletRepository) Create(ctx context.Context, wallet *models.Wallet) (bool, error) {
	query := `
		INSERT INTO wallets (id, user_id, balance, currency, is_active, is_frozen, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO NOTHING
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		wallet.ID, wallet.UserID, wallet.Balance, wallet.Currency,
		wallet.IsActive, wallet.IsFrozen, wallet.CreatedAt, wallet.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create wallet: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to create wallet: %w", err)
	}
	return n == 1, nil
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	return scanWallet(conn(ctx, r.db).QueryRowContext(ctx, query, userID))
}

func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

// LockByID reads a wallet with a row lock held until the surrounding
// transaction ends.
func (r *WalletRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	if getTx(ctx) == nil {
		return nil, errors.New("LockByID requires a transaction")
	}
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	return scanWallet(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *WalletRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, at time.Time) error {
	query := `UPDATE wallets SET balance = $2, updated_at = $3 WHERE id = $1`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, balance, at)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	if n == 0 {
		return models.ErrWalletNotFound
	}
	return nil
}

// SetStatus toggles the administrative flags on a wallet.
func (r *WalletRepository) SetStatus(ctx context.Context, id uuid.UUID, active, frozen bool, at time.Time) error {
	query := `UPDATE wallets SET is_active = $2, is_frozen = $3, updated_at = $4 WHERE id = $1`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, active, frozen, at)
	if err != nil {
		return fmt.Errorf("failed to update wallet status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return models.ErrWalletNotFound
	}
	return nil
}

func scanWallet(row *sql.Row) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.IsActive, &w.IsFrozen, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &w, nil
}
