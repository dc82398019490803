package command

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

// TxManager runs fn as one atomic unit. Stores called with the context passed
// to fn take part in the same transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type WalletStore interface {
	Create(ctx context.Context, wallet *models.Wallet) (bool, error)
	GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, at time.Time) error
	SetStatus(ctx context.Context, id uuid.UUID, active, frozen bool, at time.Time) error
}

type TransactionStore interface {
	Create(ctx context.Context, t *models.Transaction) error
	GetByReference(ctx context.Context, reference string) (*models.Transaction, error)
	LockByReference(ctx context.Context, reference string) (*models.Transaction, error)
	Update(ctx context.Context, t *models.Transaction) error
}

type AnalyticsStore interface {
	Apply(ctx context.Context, delta models.AnalyticsDelta, at time.Time) error
}

type BeneficiaryStore interface {
	Accumulate(ctx context.Context, userID, beneficiaryID string, amount decimal.Decimal, at time.Time) error
	Save(ctx context.Context, b *models.BeneficiaryContact) error
}

type CardStore interface {
	Remember(ctx context.Context, card *models.SavedCard) (bool, error)
	GetActive(ctx context.Context, userID string, id uuid.UUID) (*models.SavedCard, error)
	SetDefault(ctx context.Context, userID string, id uuid.UUID) error
	Deactivate(ctx context.Context, userID string, id uuid.UUID) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}

type PINStore interface {
	Get(ctx context.Context, userID string) (*models.TransactionPIN, error)
	Save(ctx context.Context, pin *models.TransactionPIN) error
	RecordFailure(ctx context.Context, userID string, maxAttempts int, lockUntil, at time.Time) (*models.TransactionPIN, error)
	ResetFailures(ctx context.Context, userID string, at time.Time) error
}

type IdentityStore interface {
	Create(ctx context.Context, identity *models.Identity) error
	GetByID(ctx context.Context, id string) (*models.Identity, error)
	FindByPhone(ctx context.Context, phone string) (*models.Identity, error)
	FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Identity, error)
}

// EventPublisher appends an event to a stream.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// Stores bundles the persistence dependencies shared by the command services.
type Stores struct {
	Tx            TxManager
	Wallets       WalletStore
	Transactions  TransactionStore
	Analytics     AnalyticsStore
	Beneficiaries BeneficiaryStore
	Cards         CardStore
	PINs          PINStore
	Identities    IdentityStore
}

// Clock returns the current instant. Tests substitute a fixed one.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
