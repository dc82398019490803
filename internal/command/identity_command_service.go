package command

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/vay-dev/swift-wallet-be/shared/cqrs"
	"github.com/vay-dev/swift-wallet-be/shared/models"
	"github.com/vay-dev/swift-wallet-be/shared/utils"
	"go.uber.org/zap"
)

// IdentityCommandService registers users in the local directory and
// provisions their wallet in the same transaction.
type IdentityCommandService struct {
	ledger *LedgerCommandService
	stores Stores
	logger *zap.Logger
}

func NewIdentityCommandService(ledger *LedgerCommandService, stores Stores, logger *zap.Logger) *IdentityCommandService {
	return &IdentityCommandService{ledger: ledger, stores: stores, logger: logger}
}

func (s *IdentityCommandService) RegisterIdentity(ctx context.Context, cmd cqrs.RegisterIdentityCommand) (*models.Identity, *models.Wallet, error) {
	phone := utils.NormalizePhone(cmd.PhoneNumber)
	if phone == "" {
		return nil, nil, models.NewValidationError("phoneNumber", "phone number is required")
	}

	identity := &models.Identity{
		ID:            strings.TrimSpace(cmd.UserID),
		PhoneNumber:   phone,
		AccountNumber: strings.TrimSpace(cmd.AccountNumber),
		Email:         strings.TrimSpace(cmd.Email),
		FullName:      strings.TrimSpace(cmd.FullName),
		CreatedAt:     s.ledger.now(),
	}
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	if identity.AccountNumber == "" {
		identity.AccountNumber = utils.GenerateAccountNumber()
	}

	var wallet *models.Wallet
	var created bool
	err := s.stores.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.stores.Identities.Create(txCtx, identity); err != nil {
			return err
		}
		var err error
		wallet, created, err = s.ledger.provisionWallet(txCtx, identity.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if created {
		s.ledger.publishProvisioned(ctx, wallet)
	}
	s.logger.Info("identity registered",
		zap.String("user_id", identity.ID),
		zap.String("account_number", identity.AccountNumber))
	return identity, wallet, nil
}
