package cqrs

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

// RegisterIdentityCommand mirrors a user created by the identity system into
// the local directory. UserID and AccountNumber are generated when empty.
type RegisterIdentityCommand struct {
	UserID        string
	PhoneNumber   string
	AccountNumber string
	Email         string
	FullName      string
}

type ProvisionWalletCommand struct {
	UserID string
}

// TransferCommand moves funds to the identity matching RecipientPhone or,
// when that is empty, RecipientAccount.
type TransferCommand struct {
	SenderUserID     string
	RecipientPhone   string
	RecipientAccount string
	Amount           decimal.Decimal
	Narration        string
	PIN              string
	Audit            models.Audit
}

// DepositCommand credits a wallet from an internal source such as a bonus or
// a refund. Category defaults to deposit.
type DepositCommand struct {
	UserID      string
	Amount      decimal.Decimal
	Category    models.Category
	Narration   string
	Description string
	Audit       models.Audit
}

type WithdrawCommand struct {
	UserID    string
	Amount    decimal.Decimal
	Narration string
	PIN       string
	Audit     models.Audit
}

type BillPaymentCommand struct {
	UserID string
	Amount decimal.Decimal
	Bill   models.BillDetails
	PIN    string
	Audit  models.Audit
}

type InitiateTopUpCommand struct {
	UserID string
	Email  string
	Amount decimal.Decimal
	Audit  models.Audit
}

type ReconcileSource string

const (
	ReconcileWebhook ReconcileSource = "webhook"
	ReconcilePoll    ReconcileSource = "poll"
)

// ReconcileCommand asks for a pending deposit to be settled against the
// provider. AssertedAmount is what the caller claims was paid; it is only
// compared against the provider's verified amount for logging.
type ReconcileCommand struct {
	Reference        string
	RequestingUserID string
	AssertedAmount   *decimal.Decimal
	Source           ReconcileSource
}

type ChargeSavedCardCommand struct {
	UserID string
	Email  string
	CardID uuid.UUID
	Amount decimal.Decimal
	PIN    string
	Audit  models.Audit
}

type SetDefaultCardCommand struct {
	UserID string
	CardID uuid.UUID
}

type DeleteCardCommand struct {
	UserID string
	CardID uuid.UUID
}

type SetPINCommand struct {
	UserID     string
	PIN        string
	ConfirmPIN string
}

type AddBeneficiaryCommand struct {
	UserID      string
	PhoneNumber string
	Nickname    string
	IsFavorite  bool
}

// SetWalletStatusCommand changes the administrative flags on a wallet.
type SetWalletStatusCommand struct {
	UserID   string
	IsActive bool
	IsFrozen bool
}
