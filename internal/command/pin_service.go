package command

import (
	"context"
	"fmt"

	"github.com/vay-dev/swift-wallet-be/internal/config"
	"github.com/vay-dev/swift-wallet-be/shared/cqrs"
	"github.com/vay-dev/swift-wallet-be/shared/models"
	"github.com/vay-dev/swift-wallet-be/shared/utils"
	"go.uber.org/zap"
)

// PINAuthorizer gates debits behind the caller's transaction PIN.
type PINAuthorizer interface {
	Authorize(ctx context.Context, userID, pin string) error
}

// PINService manages transaction PINs and their lockout.
type PINService struct {
	pins   PINStore
	cfg    config.LedgerConfig
	logger *zap.Logger
	now    Clock
}

func NewPINService(pins PINStore, cfg config.LedgerConfig, logger *zap.Logger) *PINService {
	return &PINService{pins: pins, cfg: cfg, logger: logger, now: systemClock}
}

func (s *PINService) SetPIN(ctx context.Context, cmd cqrs.SetPINCommand) error {
	if !utils.ValidatePIN(cmd.PIN) {
		return models.NewValidationError("pin", "PIN must be exactly 4 digits")
	}
	if cmd.PIN != cmd.ConfirmPIN {
		return models.NewValidationError("confirmPin", "PINs do not match")
	}

	hash, err := utils.HashPIN(cmd.PIN)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}

	now := s.now()
	if err := s.pins.Save(ctx, &models.TransactionPIN{
		UserID:    cmd.UserID,
		PINHash:   hash,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return err
	}

	s.logger.Info("transaction pin set", zap.String("user_id", cmd.UserID))
	return nil
}

// Verify checks pin against the stored hash. Repeated failures lock the PIN
// for the configured duration.
func (s *PINService) Verify(ctx context.Context, userID, pin string) error {
	stored, err := s.pins.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !stored.IsActive {
		return models.ErrPINNotSet
	}

	now := s.now()
	if stored.IsLocked(now) {
		return fmt.Errorf("%w until %s", models.ErrPINLocked, stored.LockedUntil.Format("15:04 MST"))
	}

	if !utils.CheckPIN(pin, stored.PINHash) {
		updated, err := s.pins.RecordFailure(ctx, userID, s.cfg.PINMaxAttempts, now.Add(s.cfg.PINLockDuration), now)
		if err != nil {
			return err
		}
		if updated.IsLocked(now) {
			s.logger.Warn("transaction pin locked", zap.String("user_id", userID))
			return fmt.Errorf("%w: too many failed attempts", models.ErrPINLocked)
		}
		return models.ErrInvalidPIN
	}

	if stored.FailedAttempts > 0 || stored.LockedUntil != nil {
		if err := s.pins.ResetFailures(ctx, userID, now); err != nil {
			return err
		}
	}
	return nil
}

// Authorize applies the PIN policy to a PIN supplied with a debit. An empty
// PIN passes unless the policy requires one.
func (s *PINService) Authorize(ctx context.Context, userID, pin string) error {
	if pin == "" {
		if s.cfg.RequirePIN {
			return models.NewValidationError("pin", "transaction PIN is required")
		}
		return nil
	}
	return s.Verify(ctx, userID, pin)
}
