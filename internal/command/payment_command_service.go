package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vay-dev/swift-wallet-be/internal/config"
	"github.com/vay-dev/swift-wallet-be/internal/gateway"
	"github.com/vay-dev/swift-wallet-be/internal/metrics"
	"github.com/vay-dev/swift-wallet-be/shared/cqrs"
	"github.com/vay-dev/swift-wallet-be/shared/models"
	"go.uber.org/zap"
)

const (
	narrationTopUpPending      = "Initiated deposit via Paystack (Pending)"
	narrationTopUpInitFailed   = "Paystack initiation failed."
	narrationAmountMismatch    = "SECURITY WARNING: Amount mismatch after verification."
	narrationCardChargePending = "Quick top-up via saved card (Pending)"
	narrationCardCharge        = "Quick top-up via saved card"
	narrationCardChargeError   = "Payment processing error"
)

// PaymentCommandService funds wallets through the payment provider. Every
// external deposit starts as a pending transaction and is settled only after
// the provider confirms it.
type PaymentCommandService struct {
	ledger    *LedgerCommandService
	stores    Stores
	pins      PINAuthorizer
	provider  gateway.Provider
	ledgerCfg config.LedgerConfig
	payCfg    config.PaystackConfig
	logger    *zap.Logger
	now       Clock
}

func NewPaymentCommandService(
	ledger *LedgerCommandService,
	stores Stores,
	pins PINAuthorizer,
	provider gateway.Provider,
	ledgerCfg config.LedgerConfig,
	payCfg config.PaystackConfig,
	logger *zap.Logger,
) *PaymentCommandService {
	return &PaymentCommandService{
		ledger:    ledger,
		stores:    stores,
		pins:      pins,
		provider:  provider,
		ledgerCfg: ledgerCfg,
		payCfg:    payCfg,
		logger:    logger,
		now:       systemClock,
	}
}

type TopUpInitiation struct {
	Transaction      *models.Transaction
	AuthorizationURL string
}

// ReconcileOutcome reports what a reconciliation did. AlreadyProcessed is set
// when the transaction had reached a terminal status before this call.
type ReconcileOutcome struct {
	Reference        string
	Status           models.Status
	Transaction      *models.Transaction
	AlreadyProcessed bool
	ProviderStatus   string
}

// InitiateTopUp records a pending deposit and opens a hosted checkout for it.
func (s *PaymentCommandService) InitiateTopUp(ctx context.Context, cmd cqrs.InitiateTopUpCommand) (*TopUpInitiation, error) {
	if err := validateAmount(cmd.Amount, s.ledgerCfg.MinTopUp, decimal.Zero); err != nil {
		return nil, err
	}

	pending, err := s.ledger.CreatePending(ctx, PendingCredit{
		UserID:    cmd.UserID,
		Amount:    cmd.Amount,
		Narration: narrationTopUpPending,
		Audit:     cmd.Audit,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.provider.Initialize(ctx, gateway.InitializeRequest{
		Reference:   pending.Reference,
		Email:       cmd.Email,
		AmountMinor: models.ToMinorUnits(cmd.Amount),
		Currency:    pending.Currency,
		CallbackURL: s.payCfg.CallbackURL,
	})
	if err != nil {
		s.logger.Error("top-up initialization failed",
			zap.String("reference", pending.Reference),
			zap.Error(err))
		if _, failErr := s.ledger.FailPending(context.WithoutCancel(ctx), pending.Reference, narrationTopUpInitFailed); failErr != nil {
			s.logger.Error("failed to mark top-up failed", zap.String("reference", pending.Reference), zap.Error(failErr))
		}
		if errors.Is(err, models.ErrGatewayUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}

	s.logger.Info("top-up initiated",
		zap.String("reference", pending.Reference),
		zap.String("user_id", cmd.UserID),
		zap.String("amount", cmd.Amount.String()))

	return &TopUpInitiation{Transaction: pending, AuthorizationURL: resp.AuthorizationURL}, nil
}

// Reconcile settles a pending deposit from a provider notification or a
// client poll. The provider's verification response is the only source of
// truth; amounts asserted by the caller are never credited. Repeated calls for
// the same reference credit the wallet at most once.
func (s *PaymentCommandService) Reconcile(ctx context.Context, cmd cqrs.ReconcileCommand) (outcome *ReconcileOutcome, err error) {
	source := string(cmd.Source)
	defer func() {
		result := "error"
		if outcome != nil {
			result = string(outcome.Status)
			if outcome.AlreadyProcessed {
				result = "already_processed"
			}
		}
		if errors.Is(err, models.ErrAmountMismatch) {
			result = "amount_mismatch"
		}
		metrics.ObserveReconcile(source, result)
	}()

	t, err := s.stores.Transactions.GetByReference(ctx, cmd.Reference)
	if errors.Is(err, models.ErrTransactionNotFound) {
		return nil, models.ErrUnknownReference
	}
	if err != nil {
		return nil, err
	}
	if cmd.RequestingUserID != "" && t.UserID != cmd.RequestingUserID {
		return nil, models.ErrForbidden
	}
	if t.Direction != models.DirectionCredit || t.Category != models.CategoryDeposit {
		return nil, models.NewValidationError("reference", "transaction %s is not an external deposit", cmd.Reference)
	}
	if t.Status.IsTerminal() {
		return &ReconcileOutcome{Reference: t.Reference, Status: t.Status, Transaction: t, AlreadyProcessed: true}, nil
	}

	v, err := s.provider.Verify(ctx, cmd.Reference)
	if err != nil {
		s.logger.Warn("verification unavailable, leaving deposit pending",
			zap.String("reference", cmd.Reference),
			zap.String("source", source),
			zap.Error(err))
		return nil, err
	}

	log := s.logger.With(
		zap.String("reference", cmd.Reference),
		zap.String("source", source),
		zap.String("provider_status", v.Status))

	switch {
	case v.Succeeded():
		verified := models.FromMinorUnits(v.AmountMinor)
		if cmd.AssertedAmount != nil && !cmd.AssertedAmount.Equal(verified) {
			log.Warn("notification amount differs from verified amount",
				zap.String("asserted", cmd.AssertedAmount.String()),
				zap.String("verified", verified.String()))
		}
		if !verified.Equal(t.Amount) {
			log.Error("verified amount does not match pending deposit",
				zap.String("expected", t.Amount.String()),
				zap.String("verified", verified.String()))
			failed, err := s.ledger.FailPending(ctx, cmd.Reference, narrationAmountMismatch)
			if err != nil {
				return nil, err
			}
			return &ReconcileOutcome{Reference: failed.Reference, Status: failed.Status, Transaction: failed, ProviderStatus: v.Status},
				fmt.Errorf("%w: expected %s, provider verified %s", models.ErrAmountMismatch, t.Amount, verified)
		}

		res, settled, err := s.ledger.CompletePendingCredit(ctx, cmd.Reference,
			fmt.Sprintf("Deposit via Paystack. Ref: %s", cmd.Reference),
			func(txCtx context.Context, settledTx *models.Transaction) error {
				return s.saveAuthorization(txCtx, settledTx.UserID, v.Authorization)
			})
		if err != nil {
			return nil, err
		}
		return &ReconcileOutcome{
			Reference:        res.Transaction.Reference,
			Status:           res.Transaction.Status,
			Transaction:      res.Transaction,
			AlreadyProcessed: !settled,
			ProviderStatus:   v.Status,
		}, nil

	case gateway.IsInFlight(v.Status):
		log.Info("deposit still in flight at provider")
		return &ReconcileOutcome{Reference: t.Reference, Status: t.Status, Transaction: t, ProviderStatus: v.Status}, nil

	default:
		failed, err := s.ledger.FailPending(ctx, cmd.Reference, fmt.Sprintf("Verification Failed. Paystack Status: %s", v.Status))
		if err != nil {
			return nil, err
		}
		log.Info("deposit failed at provider")
		return &ReconcileOutcome{
			Reference:        failed.Reference,
			Status:           failed.Status,
			Transaction:      failed,
			AlreadyProcessed: failed.Status != models.StatusFailed,
			ProviderStatus:   v.Status,
		}, nil
	}
}

// saveAuthorization remembers a reusable card, restoring it if the user had
// deleted it. The user's first card becomes the default.
func (s *PaymentCommandService) saveAuthorization(ctx context.Context, userID string, auth *gateway.Authorization) error {
	if auth == nil || auth.AuthorizationCode == "" || !auth.Reusable {
		return nil
	}

	card := &models.SavedCard{
		ID:                uuid.New(),
		UserID:            userID,
		AuthorizationCode: auth.AuthorizationCode,
		CardType:          auth.CardType,
		Last4:             auth.Last4,
		ExpMonth:          auth.ExpMonth,
		ExpYear:           auth.ExpYear,
		Bank:              auth.Bank,
		IsActive:          true,
		CreatedAt:         s.now(),
	}
	saved, err := s.stores.Cards.Remember(ctx, card)
	if err != nil {
		return err
	}
	if saved {
		s.logger.Info("card saved",
			zap.String("user_id", userID),
			zap.String("card", card.Display()),
			zap.Bool("default", card.IsDefault))
	}
	return nil
}

// ChargeSavedCard tops up the wallet by charging a stored authorization.
func (s *PaymentCommandService) ChargeSavedCard(ctx context.Context, cmd cqrs.ChargeSavedCardCommand) (*PostingResult, error) {
	if err := validateAmount(cmd.Amount, s.ledgerCfg.MinTopUp, decimal.Zero); err != nil {
		return nil, err
	}
	if s.pins != nil {
		if err := s.pins.Authorize(ctx, cmd.UserID, cmd.PIN); err != nil {
			return nil, err
		}
	}

	card, err := s.stores.Cards.GetActive(ctx, cmd.UserID, cmd.CardID)
	if err != nil {
		return nil, err
	}

	pending, err := s.ledger.CreatePending(ctx, PendingCredit{
		UserID:    cmd.UserID,
		Amount:    cmd.Amount,
		Narration: narrationCardChargePending,
		Audit:     cmd.Audit,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.provider.ChargeAuthorization(ctx, gateway.ChargeRequest{
		Reference:         pending.Reference,
		AuthorizationCode: card.AuthorizationCode,
		Email:             cmd.Email,
		AmountMinor:       models.ToMinorUnits(cmd.Amount),
		Currency:          pending.Currency,
	})
	if errors.Is(err, models.ErrGatewayUnavailable) {
		// The provider may still have charged the card. Reconcile settles it.
		s.logger.Warn("card charge outcome unknown, leaving deposit pending",
			zap.String("reference", pending.Reference),
			zap.String("card_id", card.ID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w (reference %s)", err, pending.Reference)
	}
	if err != nil {
		s.logger.Error("card charge failed", zap.String("reference", pending.Reference), zap.Error(err))
		s.failQuietly(ctx, pending.Reference, narrationCardChargeError)
		return nil, err
	}
	if !resp.Succeeded() {
		message := resp.Message
		if message == "" {
			message = "Charge failed"
		}
		s.failQuietly(ctx, pending.Reference, message)
		return nil, fmt.Errorf("%w: %s", models.ErrChargeDeclined, message)
	}
	if resp.AmountMinor != 0 && resp.AmountMinor != models.ToMinorUnits(cmd.Amount) {
		s.logger.Error("charged amount does not match request",
			zap.String("reference", pending.Reference),
			zap.Int64("requested_minor", models.ToMinorUnits(cmd.Amount)),
			zap.Int64("charged_minor", resp.AmountMinor))
		s.failQuietly(ctx, pending.Reference, narrationAmountMismatch)
		return nil, models.ErrAmountMismatch
	}

	res, _, err := s.ledger.CompletePendingCredit(ctx, pending.Reference, narrationCardCharge,
		func(txCtx context.Context, _ *models.Transaction) error {
			return s.stores.Cards.Touch(txCtx, card.ID, s.now())
		})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *PaymentCommandService) failQuietly(ctx context.Context, reference, narration string) {
	if _, err := s.ledger.FailPending(context.WithoutCancel(ctx), reference, narration); err != nil {
		s.logger.Error("failed to mark transaction failed", zap.String("reference", reference), zap.Error(err))
	}
}

func (s *PaymentCommandService) SetDefaultCard(ctx context.Context, cmd cqrs.SetDefaultCardCommand) error {
	return s.stores.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.stores.Cards.GetActive(txCtx, cmd.UserID, cmd.CardID); err != nil {
			return err
		}
		return s.stores.Cards.SetDefault(txCtx, cmd.UserID, cmd.CardID)
	})
}

func (s *PaymentCommandService) DeleteCard(ctx context.Context, cmd cqrs.DeleteCardCommand) error {
	if err := s.stores.Cards.Deactivate(ctx, cmd.UserID, cmd.CardID); err != nil {
		return err
	}
	s.logger.Info("card removed", zap.String("user_id", cmd.UserID), zap.String("card_id", cmd.CardID.String()))
	return nil
}
