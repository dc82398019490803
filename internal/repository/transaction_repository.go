package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vay-dev/swift-wallet-be/shared/models"
)

const transactionColumns = `id, reference, wallet_id, user_id, sender_id, recipient_id, direction, category,
	amount, currency, balance_before, balance_after, status, narration, description,
	ip_address, user_agent, created_at, completed_at`

// TransactionRepository handles all write-side operations on the transactions
// table.
type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a transaction. A reference collision returns
// ErrDuplicateReference without aborting the surrounding transaction.
func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (reference) DO NOTHING
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		t.ID, t.Reference, t.WalletID, t.UserID,
		nullString(t.SenderID), nullString(t.RecipientID),
		string(t.Direction), string(t.Category),
		t.Amount, t.Currency, t.BalanceBefore, t.BalanceAfter,
		string(t.Status), t.Narration, t.Description,
		nullString(t.IPAddress), nullString(t.UserAgent),
		t.CreatedAt, nullTime(t.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", models.ErrDuplicateReference, err)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	if n == 0 {
		return models.ErrDuplicateReference
	}
	return nil
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`
	return scanTransaction(conn(ctx, r.db).QueryRowContext(ctx, query, reference))
}

// LockByReference reads a transaction with a row lock held until the
// surrounding transaction ends.
func (r *TransactionRepository) LockByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	if getTx(ctx) == nil {
		return nil, errors.New("LockByReference requires a transaction")
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1 FOR UPDATE`
	return scanTransaction(conn(ctx, r.db).QueryRowContext(ctx, query, reference))
}

// Update moves a pending transaction to its next state. Rows that already
// left pending are never rewritten.
func (r *TransactionRepository) Update(ctx context.Context, t *models.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $2, balance_before = $3, balance_after = $4, narration = $5, completed_at = $6
		WHERE id = $1 AND status = 'pending'
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		t.ID, string(t.Status), t.BalanceBefore, t.BalanceAfter, t.Narration, nullTime(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n == 0 {
		return models.ErrTransactionNotPending
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t                                       models.Transaction
		senderID, recipientID, ipAddress, agent sql.NullString
		direction, category, status             string
		completedAt                             sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.Reference, &t.WalletID, &t.UserID, &senderID, &recipientID,
		&direction, &category, &t.Amount, &t.Currency, &t.BalanceBefore, &t.BalanceAfter,
		&status, &t.Narration, &t.Description, &ipAddress, &agent, &t.CreatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	t.SenderID = senderID.String
	t.RecipientID = recipientID.String
	t.IPAddress = ipAddress.String
	t.UserAgent = agent.String
	t.Direction = models.Direction(direction)
	t.Category = models.Category(category)
	t.Status = models.Status(status)
	t.CompletedAt = timePtr(completedAt)
	return &t, nil
}
