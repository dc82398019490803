package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vay-dev/swift-wallet-be/shared/models"
)

const identityColumns = `id, phone_number, account_number, email, full_name, created_at`

// IdentityRepository is the local directory of users known to the wallet.
// Records are written by the identity provisioning hook and read when
// resolving transfer recipients.
type IdentityRepository struct {
	db *sql.DB
}

func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	query := `INSERT INTO users (` + identityColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		identity.ID, identity.PhoneNumber, identity.AccountNumber,
		identity.Email, identity.FullName, identity.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrIdentityExists
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	return r.getBy(ctx, "id", id)
}

func (r *IdentityRepository) FindByPhone(ctx context.Context, phone string) (*models.Identity, error) {
	return r.getBy(ctx, "phone_number", phone)
}

func (r *IdentityRepository) FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Identity, error) {
	return r.getBy(ctx, "account_number", accountNumber)
}

// getBy looks an identity up by column; column is never user input.
func (r *IdentityRepository) getBy(ctx context.Context, column, value string) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM users WHERE ` + column + ` = $1`
	var i models.Identity
	err := conn(ctx, r.db).QueryRowContext(ctx, query, value).Scan(
		&i.ID, &i.PhoneNumber, &i.AccountNumber, &i.Email, &i.FullName, &i.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return &i, nil
}
