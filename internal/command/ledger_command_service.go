package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vay-dev/swift-wallet-be/internal/config"
	"github.com/vay-dev/swift-wallet-be/internal/metrics"
	"github.com/vay-dev/swift-wallet-be/shared/cqrs"
	"github.com/vay-dev/swift-wallet-be/shared/events"
	"github.com/vay-dev/swift-wallet-be/shared/models"
	"github.com/vay-dev/swift-wallet-be/shared/utils"
	"go.uber.org/zap"
)

// maxReferenceAttempts bounds reference regeneration after a collision.
const maxReferenceAttempts = 3

// LedgerCommandService owns every balance mutation. Each operation runs as a
// single database transaction holding row locks on the wallets it touches;
// wallets are always locked in ascending id order.
type LedgerCommandService struct {
	stores    Stores
	pins      PINAuthorizer
	publisher EventPublisher
	cfg       config.LedgerConfig
	logger    *zap.Logger
	now       Clock
}

func NewLedgerCommandService(
	stores Stores,
	pins PINAuthorizer,
	publisher EventPublisher,
	cfg config.LedgerConfig,
	logger *zap.Logger,
) *LedgerCommandService {
	return &LedgerCommandService{
		stores:    stores,
		pins:      pins,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       systemClock,
	}
}

type TransferResult struct {
	Debit     *models.Transaction
	Credit    *models.Transaction
	Recipient *models.Identity
}

type PostingResult struct {
	Transaction *models.Transaction
	Wallet      *models.Wallet
}

// PendingCredit describes an externally funded deposit awaiting settlement.
type PendingCredit struct {
	UserID    string
	Amount    decimal.Decimal
	Narration string
	Audit     models.Audit
}

// Transfer moves funds between two wallets as one paired debit and credit.
func (s *LedgerCommandService) Transfer(ctx context.Context, cmd cqrs.TransferCommand) (res *TransferResult, err error) {
	start := time.Now()
	defer func() { metrics.ObservePosting("transfer", start, err) }()

	if err := validateAmount(cmd.Amount, s.cfg.MinTransfer, s.cfg.MaxTransfer); err != nil {
		return nil, err
	}

	recipient, err := s.resolveRecipient(ctx, cmd.RecipientPhone, cmd.RecipientAccount)
	if err != nil {
		return nil, err
	}
	if recipient.ID == cmd.SenderUserID {
		return nil, models.ErrSelfTransfer
	}

	if err := s.authorize(ctx, cmd.SenderUserID, cmd.PIN); err != nil {
		return nil, err
	}

	senderWallet, err := s.stores.Wallets.GetByUserID(ctx, cmd.SenderUserID)
	if err != nil {
		return nil, err
	}
	recipientWallet, err := s.stores.Wallets.GetByUserID(ctx, recipient.ID)
	if errors.Is(err, models.ErrWalletNotFound) {
		return nil, models.ErrRecipientWalletInactive
	}
	if err != nil {
		return nil, err
	}

	senderPhone := ""
	if sender, err := s.stores.Identities.GetByID(ctx, cmd.SenderUserID); err == nil {
		senderPhone = sender.PhoneNumber
	} else if !errors.Is(err, models.ErrIdentityNotFound) {
		return nil, err
	}

	now := s.now()
	var debit, credit *models.Transaction
	var sw, rw *models.Wallet

	err = s.stores.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		sw, rw, err = s.lockPair(txCtx, senderWallet.ID, recipientWallet.ID)
		if err != nil {
			return err
		}
		if err := sw.CanDebit(cmd.Amount); err != nil {
			return err
		}
		if err := rw.CanReceive(); err != nil {
			return err
		}

		debit = s.newTransaction(sw, models.DirectionDebit, models.CategoryTransfer, cmd.Amount, now, cmd.Audit)
		debit.SenderID = cmd.SenderUserID
		debit.RecipientID = recipient.ID
		debit.Narration = narrationOr(cmd.Narration, "Transfer to "+recipient.PhoneNumber)
		debit.Description = "Transfer to " + displayName(recipient)

		credit = s.newTransaction(rw, models.DirectionCredit, models.CategoryTransfer, cmd.Amount, now, cmd.Audit)
		credit.SenderID = cmd.SenderUserID
		credit.RecipientID = recipient.ID
		credit.Narration = narrationOr(cmd.Narration, strings.TrimSpace("Transfer from "+senderPhone))
		credit.Description = debit.Narration

		if err := s.postNew(txCtx, sw, debit, now); err != nil {
			return err
		}
		if err := s.postNew(txCtx, rw, credit, now); err != nil {
			return err
		}
		return s.stores.Beneficiaries.Accumulate(txCtx, cmd.SenderUserID, recipient.ID, cmd.Amount, now)
	})
	if err != nil {
		s.logger.Warn("transfer rejected",
			zap.String("sender_id", cmd.SenderUserID),
			zap.String("recipient_id", recipient.ID),
			zap.String("amount", cmd.Amount.String()),
			zap.Error(err))
		return nil, err
	}

	s.publishPosted(ctx, debit, sw)
	s.publishPosted(ctx, credit, rw)

	s.logger.Info("transfer completed",
		zap.String("debit_reference", debit.Reference),
		zap.String("credit_reference", credit.Reference),
		zap.String("amount", debit.Amount.String()))

	return &TransferResult{Debit: debit, Credit: credit, Recipient: recipient}, nil
}

// Deposit credits a wallet from an internal source. Deposits skip the PIN
// and, unless configured otherwise, the frozen check.
func (s *LedgerCommandService) Deposit(ctx context.Context, cmd cqrs.DepositCommand) (res *PostingResult, err error) {
	start := time.Now()
	defer func() { metrics.ObservePosting("deposit", start, err) }()

	category := cmd.Category
	if category == "" {
		category = models.CategoryDeposit
	}
	if !category.IsCreditSource() {
		return nil, models.NewValidationError("category", "%q cannot be used for a deposit", category)
	}
	if err := validateAmount(cmd.Amount, decimal.Zero, decimal.Zero); err != nil {
		return nil, err
	}

	wallet, err := s.stores.Wallets.GetByUserID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var t *models.Transaction
	var w *models.Wallet
	err = s.stores.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if w, err = s.stores.Wallets.LockByID(txCtx, wallet.ID); err != nil {
			return err
		}
		if err := s.checkCreditable(w); err != nil {
			return err
		}
		t = s.newTransaction(w, models.DirectionCredit, category, cmd.Amount, now, cmd.Audit)
		t.Narration = narrationOr(cmd.Narration, defaultCreditNarration(category))
		t.Description = cmd.Description
		return s.postNew(txCtx, w, t, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishPosted(ctx, t, w)
	return &PostingResult{Transaction: t, Wallet: w}, nil
}

func (s *LedgerCommandService) Withdraw(ctx context.Context, cmd cqrs.WithdrawCommand) (res *PostingResult, err error) {
	start := time.Now()
	defer func() { metrics.ObservePosting("withdraw", start, err) }()

	if err := validateAmount(cmd.Amount, s.cfg.MinTransfer, s.cfg.MaxTransfer); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, cmd.UserID, cmd.PIN); err != nil {
		return nil, err
	}
	return s.debit(ctx, cmd.UserID, cmd.Amount, models.CategoryWithdrawal,
		narrationOr(cmd.Narration, "Withdrawal"), "", cmd.Audit)
}

// PayBill debits the wallet for an airtime, data, electricity or cable
// purchase.
func (s *LedgerCommandService) PayBill(ctx context.Context, cmd cqrs.BillPaymentCommand) (res *PostingResult, err error) {
	start := time.Now()
	defer func() { metrics.ObservePosting("bill_payment", start, err) }()

	if err := cmd.Bill.Validate(); err != nil {
		return nil, err
	}
	if err := validateAmount(cmd.Amount, s.cfg.MinTransfer, s.cfg.MaxTransfer); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, cmd.UserID, cmd.PIN); err != nil {
		return nil, err
	}
	return s.debit(ctx, cmd.UserID, cmd.Amount, cmd.Bill.Category(),
		cmd.Bill.Narration(), string(cmd.Bill.Type)+":"+cmd.Bill.Target(), cmd.Audit)
}

func (s *LedgerCommandService) debit(
	ctx context.Context,
	userID string,
	amount decimal.Decimal,
	category models.Category,
	narration, description string,
	audit models.Audit,
) (*PostingResult, error) {
	wallet, err := s.stores.Wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var t *models.Transaction
	var w *models.Wallet
	err = s.stores.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if w, err = s.stores.Wallets.LockByID(txCtx, wallet.ID); err != nil {
			return err
		}
		if err := w.CanDebit(amount); err != nil {
			return err
		}
		t = s.newTransaction(w, models.DirectionDebit, category, amount, now, audit)
		t.Narration = narration
		t.Description = description
		return s.postNew(txCtx, w, t, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishPosted(ctx, t, w)
	return &PostingResult{Transaction: t, Wallet: w}, nil
}

// CreatePending records a pending deposit with a balance snapshot and no
// balance change.
func (s *LedgerCommandService) CreatePending(ctx context.Context, p PendingCredit) (*models.Transaction, error) {
	wallet, err := s.stores.Wallets.GetByUserID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var t *models.Transaction
	err = s.stores.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		w, err := s.stores.Wallets.LockByID(txCtx, wallet.ID)
		if err != nil {
			return err
		}
		if err := s.checkCreditable(w); err != nil {
			return err
		}
		t = s.newTransaction(w, models.DirectionCredit, models.CategoryDeposit, p.Amount, now, p.Audit)
		t.Narration = p.Narration
		return s.insertTransaction(txCtx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CompletePendingCredit settles a pending deposit exactly once. within runs
// in the same transaction after the credit is applied. A transaction that is
// already completed is returned unchanged with settled set to false.
func (s *LedgerCommandService) CompletePendingCredit(
	ctx context.Context,
	reference, narration string,
	within func(ctx context.Context, t *models.Transaction) error,
) (res *PostingResult, settled bool, err error) {
	start := time.Now()
	defer func() { metrics.ObservePosting("settle_deposit", start, err) }()

	now := s.now()
	var t *models.Transaction
	var w *models.Wallet
	err = s.stores.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		t, err = s.stores.Transactions.LockByReference(txCtx, reference)
		if errors.Is(err, models.ErrTransactionNotFound) {
			return models.ErrUnknownReference
		}
		if err != nil {
			return err
		}
		if t.Status == models.StatusCompleted {
			return nil
		}
		if t.Status != models.StatusPending || t.Direction != models.DirectionCredit {
			return fmt.Errorf("%w: %s is %s", models.ErrTransactionNotPending, reference, t.Status)
		}

		if w, err = s.stores.Wallets.LockByID(txCtx, t.WalletID); err != nil {
			return err
		}
		if err := s.checkCreditable(w); err != nil {
			return err
		}
		if narration != "" {
			t.Narration = narration
		}
		if err := s.applyPosting(txCtx, w, t, now); err != nil {
			return err
		}
		if err := s.stores.Transactions.Update(txCtx, t); err != nil {
			return err
		}
		settled = true
		if within != nil {
			return within(txCtx, t)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if settled {
		s.publishPosted(ctx, t, w)
		s.logger.Info("deposit settled",
			zap.String("reference", t.Reference),
			zap.String("amount", t.Amount.String()),
			zap.String("balance_after", t.BalanceAfter.String()))
	}
	return &PostingResult{Transaction: t, Wallet: w}, settled, nil
}

// FailPending marks a pending transaction failed. Transactions that already
// reached a terminal status are returned unchanged.
func (s *LedgerCommandService) FailPending(ctx context.Context, reference, narration string) (*models.Transaction, error) {
	var t *models.Transaction
	failed := false
	err := s.stores.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		t, err = s.stores.Transactions.LockByReference(txCtx, reference)
		if errors.Is(err, models.ErrTransactionNotFound) {
			return models.ErrUnknownReference
		}
		if err != nil {
			return err
		}
		if t.Status != models.StatusPending {
			return nil
		}
		t.Fail(narration)
		failed = true
		return s.stores.Transactions.Update(txCtx, t)
	})
	if err != nil {
		return nil, err
	}

	if failed {
		s.publish(ctx, events.TransactionFailed, events.TransactionFailedEvent{
			Reference: t.Reference,
			UserID:    t.UserID,
			Category:  string(t.Category),
			Amount:    models.FormatMoney(t.Amount),
			Reason:    t.Narration,
		})
		s.logger.Info("pending transaction failed",
			zap.String("reference", t.Reference),
			zap.String("reason", t.Narration))
	}
	return t, nil
}

// ProvisionWallet creates the user's wallet, crediting the configured signup
// bonus. Provisioning an already provisioned user returns the existing wallet.
func (s *LedgerCommandService) ProvisionWallet(ctx context.Context, cmd cqrs.ProvisionWalletCommand) (*models.Wallet, error) {
	var w *models.Wallet
	var created bool
	err := s.stores.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		w, created, err = s.provisionWallet(txCtx, cmd.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.publishProvisioned(ctx, w)
	}
	return w, nil
}

func (s *LedgerCommandService) provisionWallet(ctx context.Context, userID string) (*models.Wallet, bool, error) {
	now := s.now()
	w := &models.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   decimal.Zero,
		Currency:  s.cfg.Currency,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.stores.Wallets.Create(ctx, w)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := s.stores.Wallets.GetByUserID(ctx, userID)
		return existing, false, err
	}

	if s.cfg.SignupBonus.IsPositive() {
		t := s.newTransaction(w, models.DirectionCredit, models.CategoryBonus, s.cfg.SignupBonus, now, models.Audit{})
		t.Narration = defaultCreditNarration(models.CategoryBonus)
		if err := s.postNew(ctx, w, t, now); err != nil {
			return nil, false, err
		}
	}

	s.logger.Info("wallet provisioned",
		zap.String("user_id", userID),
		zap.String("wallet_id", w.ID.String()),
		zap.String("balance", w.Balance.String()))
	return w, true, nil
}

func (s *LedgerCommandService) SetWalletStatus(ctx context.Context, cmd cqrs.SetWalletStatusCommand) (*models.Wallet, error) {
	wallet, err := s.stores.Wallets.GetByUserID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.stores.Wallets.SetStatus(ctx, wallet.ID, cmd.IsActive, cmd.IsFrozen, now); err != nil {
		return nil, err
	}
	wallet.IsActive, wallet.IsFrozen, wallet.UpdatedAt = cmd.IsActive, cmd.IsFrozen, now

	s.logger.Info("wallet status changed",
		zap.String("user_id", cmd.UserID),
		zap.Bool("is_active", cmd.IsActive),
		zap.Bool("is_frozen", cmd.IsFrozen))
	return wallet, nil
}

// AddBeneficiary saves a recipient by phone number, or renames an existing one.
func (s *LedgerCommandService) AddBeneficiary(ctx context.Context, cmd cqrs.AddBeneficiaryCommand) (*models.BeneficiaryContact, error) {
	identity, err := s.resolveRecipient(ctx, cmd.PhoneNumber, "")
	if err != nil {
		return nil, err
	}
	if identity.ID == cmd.UserID {
		return nil, models.NewValidationError("phoneNumber", "you cannot add yourself as a beneficiary")
	}

	contact := &models.BeneficiaryContact{
		ID:            uuid.New(),
		UserID:        cmd.UserID,
		BeneficiaryID: identity.ID,
		Nickname:      strings.TrimSpace(cmd.Nickname),
		IsFavorite:    cmd.IsFavorite,
		CreatedAt:     s.now(),
	}
	if err := s.stores.Beneficiaries.Save(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *LedgerCommandService) resolveRecipient(ctx context.Context, phone, accountNumber string) (*models.Identity, error) {
	var (
		identity *models.Identity
		err      error
	)
	switch {
	case strings.TrimSpace(phone) != "":
		identity, err = s.stores.Identities.FindByPhone(ctx, utils.NormalizePhone(phone))
	case strings.TrimSpace(accountNumber) != "":
		identity, err = s.stores.Identities.FindByAccountNumber(ctx, strings.TrimSpace(accountNumber))
	default:
		return nil, models.NewValidationError("recipient", "a recipient phone number or account number is required")
	}
	if errors.Is(err, models.ErrIdentityNotFound) {
		return nil, models.ErrRecipientNotFound
	}
	return identity, err
}

func (s *LedgerCommandService) authorize(ctx context.Context, userID, pin string) error {
	if s.pins == nil {
		return nil
	}
	return s.pins.Authorize(ctx, userID, pin)
}

// checkCreditable enforces the wallet flags on credits when deposits are not
// allowed to bypass them.
func (s *LedgerCommandService) checkCreditable(w *models.Wallet) error {
	if s.cfg.DepositsBypassFreeze {
		return nil
	}
	if !w.IsActive {
		return models.ErrWalletInactive
	}
	if w.IsFrozen {
		return models.ErrWalletFrozen
	}
	return nil
}

// lockPair locks both wallets in ascending id order and returns them in
// argument order.
func (s *LedgerCommandService) lockPair(ctx context.Context, a, b uuid.UUID) (*models.Wallet, *models.Wallet, error) {
	first, second := a, b
	if bytes.Compare(a[:], b[:]) > 0 {
		first, second = b, a
	}

	wFirst, err := s.stores.Wallets.LockByID(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	wSecond, err := s.stores.Wallets.LockByID(ctx, second)
	if err != nil {
		return nil, nil, err
	}

	if first == a {
		return wFirst, wSecond, nil
	}
	return wSecond, wFirst, nil
}

func (s *LedgerCommandService) newTransaction(
	w *models.Wallet,
	direction models.Direction,
	category models.Category,
	amount decimal.Decimal,
	at time.Time,
	audit models.Audit,
) *models.Transaction {
	return &models.Transaction{
		ID:            uuid.New(),
		WalletID:      w.ID,
		UserID:        w.UserID,
		Direction:     direction,
		Category:      category,
		Amount:        amount,
		Currency:      w.Currency,
		BalanceBefore: w.Balance,
		BalanceAfter:  w.Balance,
		Status:        models.StatusPending,
		IPAddress:     audit.IPAddress,
		UserAgent:     audit.UserAgent,
		CreatedAt:     at,
	}
}

// applyPosting completes t against the locked wallet w and persists the new
// balance and the daily rollup.
func (s *LedgerCommandService) applyPosting(ctx context.Context, w *models.Wallet, t *models.Transaction, at time.Time) error {
	t.Complete(w.Balance, at)
	w.Balance = t.BalanceAfter
	w.UpdatedAt = at
	if err := s.stores.Wallets.UpdateBalance(ctx, w.ID, w.Balance, at); err != nil {
		return err
	}
	return s.stores.Analytics.Apply(ctx, analyticsDelta(t, w.Balance), at)
}

func (s *LedgerCommandService) postNew(ctx context.Context, w *models.Wallet, t *models.Transaction, at time.Time) error {
	if err := s.applyPosting(ctx, w, t, at); err != nil {
		return err
	}
	return s.insertTransaction(ctx, t)
}

// insertTransaction assigns a fresh reference and inserts t, regenerating the
// reference on collision.
func (s *LedgerCommandService) insertTransaction(ctx context.Context, t *models.Transaction) error {
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		t.Reference = utils.GenerateReference(t.CreatedAt)
		err := s.stores.Transactions.Create(ctx, t)
		if !errors.Is(err, models.ErrDuplicateReference) {
			return err
		}
		s.logger.Warn("transaction reference collision", zap.String("reference", t.Reference), zap.Int("attempt", attempt))
	}
	return fmt.Errorf("%w: no unique reference after %d attempts", models.ErrDuplicateReference, maxReferenceAttempts)
}

func (s *LedgerCommandService) publishPosted(ctx context.Context, t *models.Transaction, w *models.Wallet) {
	s.publish(ctx, events.TransactionCompleted, events.TransactionCompletedEvent{
		Reference:    t.Reference,
		UserID:       t.UserID,
		WalletID:     t.WalletID.String(),
		Direction:    string(t.Direction),
		Category:     string(t.Category),
		Amount:       models.FormatMoney(t.Amount),
		BalanceAfter: models.FormatMoney(t.BalanceAfter),
	})
	s.publish(ctx, events.BalanceUpdated, events.BalanceUpdatedEvent{
		WalletID:   w.ID.String(),
		UserID:     w.UserID,
		NewBalance: models.FormatMoney(w.Balance),
		Change:     models.FormatMoney(t.SignedAmount()),
	})
}

func (s *LedgerCommandService) publishProvisioned(ctx context.Context, w *models.Wallet) {
	s.publish(ctx, events.WalletProvisioned, events.WalletProvisionedEvent{
		WalletID: w.ID.String(),
		UserID:   w.UserID,
		Currency: w.Currency,
	})
}

// publish emits an event after commit. Failures are logged and do not undo
// the committed posting.
func (s *LedgerCommandService) publish(ctx context.Context, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.WalletEventsStream, eventType, data); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

// validateAmount checks sign, scale and the inclusive [min, max] range. A
// zero min or max disables that bound.
func validateAmount(amount, min, max decimal.Decimal) error {
	if !amount.IsPositive() {
		return models.NewValidationError("amount", "amount must be greater than zero")
	}
	if !models.HasMoneyScale(amount) {
		return models.NewValidationError("amount", "amount must have at most %d decimal places", models.MoneyScale)
	}
	if min.IsPositive() && amount.LessThan(min) {
		return models.NewValidationError("amount", "minimum amount is %s", models.FormatMoney(min))
	}
	if max.IsPositive() && amount.GreaterThan(max) {
		return models.NewValidationError("amount", "maximum amount is %s", models.FormatMoney(max))
	}
	return nil
}

func narrationOr(narration, fallback string) string {
	if n := strings.TrimSpace(narration); n != "" {
		return n
	}
	return fallback
}

func defaultCreditNarration(category models.Category) string {
	switch category {
	case models.CategoryBonus:
		return "Welcome bonus"
	case models.CategoryRefund:
		return "Refund"
	default:
		return "Wallet funding"
	}
}

func displayName(i *models.Identity) string {
	if i.FullName != "" {
		return i.FullName
	}
	return i.PhoneNumber
}
