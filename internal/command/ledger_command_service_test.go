package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vay-dev/swift-wallet-be/internal/config"
	"github.com/vay-dev/swift-wallet-be/shared/cqrs"
	"github.com/vay-dev/swift-wallet-be/shared/events"
	"github.com/vay-dev/swift-wallet-be/shared/models"
	"github.com/vay-dev/swift-wallet-be/shared/utils"
	"go.uber.org/zap"
)

const (
	alicePhone = "08030000001"
	bobPhone   = "08030000002"
)

var fixedNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ---- helpers ----

func newTestLedger(store *memStore, cfg config.LedgerConfig) (*LedgerCommandService, *memPublisher) {
	pub := &memPublisher{}
	svc := NewLedgerCommandService(store.stores(), nil, pub, cfg, zap.NewNop())
	svc.now = fixedClock
	return svc, pub
}

func seedAliceBob(aliceBalance, bobBalance string) *memStore {
	store := newMemStore()
	store.addUser("alice", alicePhone, aliceBalance)
	store.addUser("bob", bobPhone, bobBalance)
	return store
}

// ---- transfer ----

func TestTransfer_MovesFundsAndRecordsBothLegs(t *testing.T) {
	store := seedAliceBob("100.00", "10.00")
	svc, pub := newTestLedger(store, config.DefaultLedgerConfig())

	res, err := svc.Transfer(context.Background(), cqrs.TransferCommand{
		SenderUserID:   "alice",
		RecipientPhone: bobPhone,
		Amount:         dec("30.00"),
		Narration:      "lunch",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.balance("alice"); !got.Equal(dec("70.00")) {
		t.Errorf("alice balance: want 70.00, got %s", got)
	}
	if got := store.balance("bob"); !got.Equal(dec("40.00")) {
		t.Errorf("bob balance: want 40.00, got %s", got)
	}

	debit, credit := res.Debit, res.Credit
	if debit.Direction != models.DirectionDebit || credit.Direction != models.DirectionCredit {
		t.Errorf("unexpected directions %s / %s", debit.Direction, credit.Direction)
	}
	if !debit.BalanceBefore.Equal(dec("100.00")) || !debit.BalanceAfter.Equal(dec("70.00")) {
		t.Errorf("debit snapshot: %s -> %s", debit.BalanceBefore, debit.BalanceAfter)
	}
	if !credit.BalanceBefore.Equal(dec("10.00")) || !credit.BalanceAfter.Equal(dec("40.00")) {
		t.Errorf("credit snapshot: %s -> %s", credit.BalanceBefore, credit.BalanceAfter)
	}
	if debit.Status != models.StatusCompleted || credit.Status != models.StatusCompleted {
		t.Errorf("legs should be completed, got %s / %s", debit.Status, credit.Status)
	}
	if debit.Reference == credit.Reference {
		t.Error("legs must carry distinct references")
	}
	for _, leg := range []*models.Transaction{debit, credit} {
		if !utils.ValidateReference(leg.Reference) {
			t.Errorf("malformed reference %q", leg.Reference)
		}
		if leg.SenderID != "alice" || leg.RecipientID != "bob" {
			t.Errorf("counterparties on %s: %s -> %s", leg.Reference, leg.SenderID, leg.RecipientID)
		}
		if leg.Narration != "lunch" {
			t.Errorf("narration: want lunch, got %q", leg.Narration)
		}
	}

	b := store.beneficiary("alice", "bob")
	if b == nil {
		t.Fatal("expected a beneficiary row for alice -> bob")
	}
	if !b.TotalSent.Equal(dec("30.00")) || b.TransactionCount != 1 {
		t.Errorf("beneficiary: total %s count %d", b.TotalSent, b.TransactionCount)
	}

	day := analyticsDate(fixedNow)
	if a := store.analyticsFor("alice", day); a == nil || a.TransfersSent != 1 || !a.TotalDebits.Equal(dec("30.00")) || !a.ClosingBalance.Equal(dec("70.00")) {
		t.Errorf("alice analytics: %+v", a)
	}
	if a := store.analyticsFor("bob", day); a == nil || a.TransfersReceived != 1 || !a.TotalCredits.Equal(dec("30.00")) {
		t.Errorf("bob analytics: %+v", a)
	}

	if n := pub.count(events.TransactionCompleted); n != 2 {
		t.Errorf("want 2 completion events, got %d", n)
	}
	if n := pub.count(events.BalanceUpdated); n != 2 {
		t.Errorf("want 2 balance events, got %d", n)
	}
}

func TestTransfer_DefaultNarrations(t *testing.T) {
	store := seedAliceBob("50.00", "0.00")
	svc, _ := newTestLedger(store, config.DefaultLedgerConfig())

	res, err := svc.Transfer(context.Background(), cqrs.TransferCommand{
		SenderUserID:   "alice",
		RecipientPhone: bobPhone,
		Amount:         dec("5.00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Debit.Narration != "Transfer to "+bobPhone {
		t.Errorf("debit narration %q", res.Debit.Narration)
	}
	if res.Credit.Narration != "Transfer from "+alicePhone {
		t.Errorf("credit narration %q", res.Credit.Narration)
	}
}

func TestTransfer_ByAccountNumber(t *testing.T) {
	store := seedAliceBob("50.00", "0.00")
	svc, _ := newTestLedger(store, config.DefaultLedgerConfig())

	bob, _ := memIdentities{store}.FindByPhone(context.Background(), bobPhone)
	_, err := svc.Transfer(context.Background(), cqrs.TransferCommand{
		SenderUserID:     "alice",
		RecipientAccount: bob.AccountNumber,
		Amount:           dec("20.00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.balance("bob"); !got.Equal(dec("20.00")) {
		t.Errorf("bob balance: want 20.00, got %s", got)
	}
}

func TestTransfer_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*memStore)
		cmd     cqrs.TransferCommand
		wantErr error
	}{
		{
			name:    "below minimum",
			cmd:     cqrs.TransferCommand{SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec("0.99")},
			wantErr: models.ErrValidation,
		},
		{
			name:    "above maximum",
			cmd:     cqrs.TransferCommand{SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec("100000.01")},
			wantErr: models.ErrValidation,
		},
		{
			name:    "too many decimal places",
			cmd:     cqrs.TransferCommand{SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec("1.005")},
			wantErr: models.ErrValidation,
		},
		{
			name:    "no recipient given",
			cmd:     cqrs.TransferCommand{SenderUserID: "alice", Amount: dec("5.00")},
			wantErr: models.ErrValidation,
		},
		{
			name:    "balance plus one kobo",
			cmd:     cqrs.TransferCommand{SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec("100.01")},
			wantErr: models.ErrInsufficientFunds,
		},
		{
			name:    "self transfer",
			cmd:     cqrs.TransferCommand{SenderUserID: "alice", RecipientPhone: alicePhone, Amount: dec("5.00")},
			wantErr: models.ErrSelfTransfer,
		},
		{
			name:    "unknown recipient",
			cmd:     cqrs.TransferCommand{SenderUserID: "alice", RecipientPhone: "08099999999", Amount: dec("5.00")},
			wantErr: models.ErrRecipientNotFound,
		},
		{
			name:    "sender frozen",
			setup:   func(s *memStore) { s.setFlags("alice", true, true) },
			cmd:     cqrs.TransferCommand{SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec("5.00")},
			wantErr: models.ErrWalletFrozen,
		},
		{
			name:    "sender inactive",
			setup:   func(s *memStore) { s.setFlags("alice", false, false) },
			cmd:     cqrs.TransferCommand{SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec("5.00")},
			wantErr: models.ErrWalletInactive,
		},
		{
			name:    "recipient inactive",
			setup:   func(s *memStore) { s.setFlags("bob", false, false) },
			cmd:     cqrs.TransferCommand{SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec("5.00")},
			wantErr: models.ErrRecipientWalletInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seedAliceBob("100.00", "10.00")
			if tt.setup != nil {
				tt.setup(store)
			}
			svc, pub := newTestLedger(store, config.DefaultLedgerConfig())

			_, err := svc.Transfer(context.Background(), tt.cmd)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
			if got := store.balance("alice"); !got.Equal(dec("100.00")) {
				t.Errorf("alice balance changed to %s", got)
			}
			if got := store.balance("bob"); !got.Equal(dec("10.00")) {
				t.Errorf("bob balance changed to %s", got)
			}
			if n := store.txnCount(); n != 0 {
				t.Errorf("want no transactions, got %d", n)
			}
			if n := len(pub.events); n != 0 {
				t.Errorf("want no events, got %d", n)
			}
		})
	}
}

func TestTransfer_ExactBalanceAndMinimumSucceed(t *testing.T) {
	store := seedAliceBob("101.00", "0.00")
	svc, _ := newTestLedger(store, config.DefaultLedgerConfig())

	for _, amount := range []string{"1.00", "100.00"} {
		if _, err := svc.Transfer(context.Background(), cqrs.TransferCommand{
			SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec(amount),
		}); err != nil {
			t.Fatalf("transfer of %s: %v", amount, err)
		}
	}
	if got := store.balance("alice"); !got.IsZero() {
		t.Errorf("alice balance: want 0, got %s", got)
	}
	if got := store.balance("bob"); !got.Equal(dec("101.00")) {
		t.Errorf("bob balance: want 101.00, got %s", got)
	}
}

func TestTransfer_RollsBackWhenALaterWriteFails(t *testing.T) {
	store := seedAliceBob("100.00", "10.00")
	// The second analytics write belongs to the credit leg.
	store.failAnalyticsOn = 2
	svc, pub := newTestLedger(store, config.DefaultLedgerConfig())

	_, err := svc.Transfer(context.Background(), cqrs.TransferCommand{
		SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec("30.00"),
	})
	if !errors.Is(err, errInjected) {
		t.Fatalf("want injected failure, got %v", err)
	}
	if got := store.balance("alice"); !got.Equal(dec("100.00")) {
		t.Errorf("alice balance: want 100.00, got %s", got)
	}
	if got := store.balance("bob"); !got.Equal(dec("10.00")) {
		t.Errorf("bob balance: want 10.00, got %s", got)
	}
	if n := store.txnCount(); n != 0 {
		t.Errorf("want no persisted transactions, got %d", n)
	}
	if store.beneficiary("alice", "bob") != nil {
		t.Error("beneficiary row should not survive a rollback")
	}
	if store.analyticsFor("alice", analyticsDate(fixedNow)) != nil {
		t.Error("analytics row should not survive a rollback")
	}
	if len(pub.events) != 0 {
		t.Errorf("want no events, got %d", len(pub.events))
	}
}

func TestTransfer_RetriesReferenceCollision(t *testing.T) {
	store := seedAliceBob("100.00", "0.00")
	store.collisions = 1
	svc, _ := newTestLedger(store, config.DefaultLedgerConfig())

	if _, err := svc.Transfer(context.Background(), cqrs.TransferCommand{
		SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec("10.00"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := store.txnCount(); n != 2 {
		t.Errorf("want 2 transactions, got %d", n)
	}
}

func TestTransfer_GivesUpAfterRepeatedCollisions(t *testing.T) {
	store := seedAliceBob("100.00", "0.00")
	store.collisions = maxReferenceAttempts
	svc, _ := newTestLedger(store, config.DefaultLedgerConfig())

	_, err := svc.Transfer(context.Background(), cqrs.TransferCommand{
		SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec("10.00"),
	})
	if !errors.Is(err, models.ErrDuplicateReference) {
		t.Fatalf("want duplicate reference error, got %v", err)
	}
	if got := store.balance("alice"); !got.Equal(dec("100.00")) {
		t.Errorf("alice balance changed to %s", got)
	}
}

func TestTransfer_OppositeDirectionsDoNotDeadlock(t *testing.T) {
	store := seedAliceBob("100.00", "100.00")
	svc, _ := newTestLedger(store, config.DefaultLedgerConfig())

	const rounds = 50
	var wg sync.WaitGroup
	transfer := func(from, toPhone string) {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := svc.Transfer(context.Background(), cqrs.TransferCommand{
				SenderUserID: from, RecipientPhone: toPhone, Amount: dec("3.00"),
			})
			if err != nil && !errors.Is(err, models.ErrInsufficientFunds) {
				t.Errorf("transfer from %s: %v", from, err)
				return
			}
		}
	}

	wg.Add(4)
	go transfer("alice", bobPhone)
	go transfer("bob", alicePhone)
	go transfer("alice", bobPhone)
	go transfer("bob", alicePhone)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent transfers did not finish")
	}

	if got := store.totalBalance(); !got.Equal(dec("200.00")) {
		t.Errorf("money not conserved: total %s", got)
	}
	if store.balance("alice").IsNegative() || store.balance("bob").IsNegative() {
		t.Error("balance went negative")
	}
}

func TestTransfer_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	store := seedAliceBob("100.00", "0.00")
	svc, _ := newTestLedger(store, config.DefaultLedgerConfig())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), cqrs.TransferCommand{
				SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec("30.00"),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Errorf("want exactly 3 successful transfers, got %d", succeeded)
	}
	if got := store.balance("alice"); !got.Equal(dec("10.00")) {
		t.Errorf("alice balance: want 10.00, got %s", got)
	}
}

// ---- PIN policy ----

func TestTransfer_PINPolicy(t *testing.T) {
	cfg := config.DefaultLedgerConfig()
	cfg.RequirePIN = true

	store := seedAliceBob("100.00", "0.00")
	pins := NewPINService(memPINs{store}, cfg, zap.NewNop())
	svc := NewLedgerCommandService(store.stores(), pins, &memPublisher{}, cfg, zap.NewNop())

	cmd := cqrs.TransferCommand{SenderUserID: "alice", RecipientPhone: bobPhone, Amount: dec("10.00")}

	if _, err := svc.Transfer(context.Background(), cmd); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("missing PIN: want validation error, got %v", err)
	}

	cmd.PIN = "1234"
	if _, err := svc.Transfer(context.Background(), cmd); !errors.Is(err, models.ErrPINNotSet) {
		t.Fatalf("unset PIN: want ErrPINNotSet, got %v", err)
	}

	if err := pins.SetPIN(context.Background(), cqrs.SetPINCommand{UserID: "alice", PIN: "1234", ConfirmPIN: "1234"}); err != nil {
		t.Fatalf("set pin: %v", err)
	}

	cmd.PIN = "9999"
	if _, err := svc.Transfer(context.Background(), cmd); !errors.Is(err, models.ErrInvalidPIN) {
		t.Fatalf("wrong PIN: want ErrInvalidPIN, got %v", err)
	}

	cmd.PIN = "1234"
	if _, err := svc.Transfer(context.Background(), cmd); err != nil {
		t.Fatalf("correct PIN: %v", err)
	}
	if got := store.balance("alice"); !got.Equal(dec("90.00")) {
		t.Errorf("alice balance: want 90.00, got %s", got)
	}
}

// ---- deposits, withdrawals and bills ----

func TestDeposit(t *testing.T) {
	tests := []struct {
		name        string
		cmd         cqrs.DepositCommand
		frozen      bool
		bypass      bool
		wantErr     error
		wantBalance string
		wantNarr    string
	}{
		{
			name:        "plain deposit",
			cmd:         cqrs.DepositCommand{UserID: "alice", Amount: dec("25.50")},
			bypass:      true,
			wantBalance: "125.50",
			wantNarr:    "Wallet funding",
		},
		{
			name:        "refund",
			cmd:         cqrs.DepositCommand{UserID: "alice", Amount: dec("5.00"), Category: models.CategoryRefund},
			bypass:      true,
			wantBalance: "105.00",
			wantNarr:    "Refund",
		},
		{
			name:    "debit category rejected",
			cmd:     cqrs.DepositCommand{UserID: "alice", Amount: dec("5.00"), Category: models.CategoryWithdrawal},
			bypass:  true,
			wantErr: models.ErrValidation,
		},
		{
			name:    "zero amount",
			cmd:     cqrs.DepositCommand{UserID: "alice", Amount: decimal.Zero},
			bypass:  true,
			wantErr: models.ErrValidation,
		},
		{
			name:        "frozen wallet with bypass",
			cmd:         cqrs.DepositCommand{UserID: "alice", Amount: dec("10.00")},
			frozen:      true,
			bypass:      true,
			wantBalance: "110.00",
			wantNarr:    "Wallet funding",
		},
		{
			name:    "frozen wallet without bypass",
			cmd:     cqrs.DepositCommand{UserID: "alice", Amount: dec("10.00")},
			frozen:  true,
			wantErr: models.ErrWalletFrozen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seedAliceBob("100.00", "0.00")
			if tt.frozen {
				store.setFlags("alice", true, true)
			}
			cfg := config.DefaultLedgerConfig()
			cfg.DepositsBypassFreeze = tt.bypass
			svc, _ := newTestLedger(store, cfg)

			res, err := svc.Deposit(context.Background(), tt.cmd)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				if got := store.balance("alice"); !got.Equal(dec("100.00")) {
					t.Errorf("balance changed to %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := store.balance("alice"); !got.Equal(dec(tt.wantBalance)) {
				t.Errorf("balance: want %s, got %s", tt.wantBalance, got)
			}
			if res.Transaction.Narration != tt.wantNarr {
				t.Errorf("narration: want %q, got %q", tt.wantNarr, res.Transaction.Narration)
			}
			if res.Transaction.Direction != models.DirectionCredit {
				t.Errorf("direction: %s", res.Transaction.Direction)
			}
		})
	}
}

func TestWithdraw(t *testing.T) {
	store := seedAliceBob("100.00", "0.00")
	svc, _ := newTestLedger(store, config.DefaultLedgerConfig())

	res, err := svc.Withdraw(context.Background(), cqrs.WithdrawCommand{UserID: "alice", Amount: dec("40.00")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Transaction.Category != models.CategoryWithdrawal || res.Transaction.Narration != "Withdrawal" {
		t.Errorf("unexpected transaction %+v", res.Transaction)
	}
	if !res.Wallet.Balance.Equal(dec("60.00")) {
		t.Errorf("wallet balance: want 60.00, got %s", res.Wallet.Balance)
	}

	if _, err := svc.Withdraw(context.Background(), cqrs.WithdrawCommand{UserID: "alice", Amount: dec("60.01")}); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Errorf("want insufficient funds, got %v", err)
	}
}

func TestPayBill(t *testing.T) {
	tests := []struct {
		name         string
		bill         models.BillDetails
		wantCategory models.Category
		wantNarr     string
		wantErr      error
		check        func(*testing.T, *models.DailyAnalytics)
	}{
		{
			name:         "airtime",
			bill:         models.BillDetails{Type: models.BillAirtime, PhoneNumber: "08031112222"},
			wantCategory: models.CategoryAirtime,
			wantNarr:     "Airtime payment for 08031112222",
			check: func(t *testing.T, a *models.DailyAnalytics) {
				if a.AirtimePurchases != 1 || a.BillPayments != 0 {
					t.Errorf("analytics counters %+v", a)
				}
			},
		},
		{
			name:         "electricity",
			bill:         models.BillDetails{Type: models.BillElectricity, MeterNumber: "45012345678"},
			wantCategory: models.CategoryBillPayment,
			wantNarr:     "Electricity payment for 45012345678",
			check: func(t *testing.T, a *models.DailyAnalytics) {
				if a.BillPayments != 1 || a.AirtimePurchases != 0 {
					t.Errorf("analytics counters %+v", a)
				}
			},
		},
		{
			name:    "cable without smartcard",
			bill:    models.BillDetails{Type: models.BillCableTV},
			wantErr: models.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seedAliceBob("100.00", "0.00")
			svc, _ := newTestLedger(store, config.DefaultLedgerConfig())

			res, err := svc.PayBill(context.Background(), cqrs.BillPaymentCommand{
				UserID: "alice", Amount: dec("15.00"), Bill: tt.bill,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Transaction.Category != tt.wantCategory {
				t.Errorf("category: want %s, got %s", tt.wantCategory, res.Transaction.Category)
			}
			if res.Transaction.Narration != tt.wantNarr {
				t.Errorf("narration: want %q, got %q", tt.wantNarr, res.Transaction.Narration)
			}
			if got := store.balance("alice"); !got.Equal(dec("85.00")) {
				t.Errorf("balance: want 85.00, got %s", got)
			}
			tt.check(t, store.analyticsFor("alice", analyticsDate(fixedNow)))
		})
	}
}

// ---- pending deposits ----

func TestPendingCredit_SettlesOnce(t *testing.T) {
	store := seedAliceBob("0.00", "0.00")
	svc, pub := newTestLedger(store, config.DefaultLedgerConfig())
	ctx := context.Background()

	pending, err := svc.CreatePending(ctx, PendingCredit{UserID: "alice", Amount: dec("500.00"), Narration: "pending"})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	if pending.Status != models.StatusPending {
		t.Fatalf("want pending, got %s", pending.Status)
	}
	if got := store.balance("alice"); !got.IsZero() {
		t.Fatalf("pending deposit moved the balance to %s", got)
	}

	withinCalls := 0
	within := func(context.Context, *models.Transaction) error {
		withinCalls++
		return nil
	}

	res, settled, err := svc.CompletePendingCredit(ctx, pending.Reference, "settled", within)
	if err != nil || !settled {
		t.Fatalf("first settle: settled=%v err=%v", settled, err)
	}
	if !res.Transaction.BalanceAfter.Equal(dec("500.00")) || res.Transaction.Narration != "settled" {
		t.Errorf("settled transaction %+v", res.Transaction)
	}

	_, settled, err = svc.CompletePendingCredit(ctx, pending.Reference, "settled", within)
	if err != nil || settled {
		t.Fatalf("second settle: settled=%v err=%v", settled, err)
	}
	if got := store.balance("alice"); !got.Equal(dec("500.00")) {
		t.Errorf("balance: want 500.00, got %s", got)
	}
	if withinCalls != 1 {
		t.Errorf("within hook ran %d times", withinCalls)
	}
	if n := pub.count(events.TransactionCompleted); n != 1 {
		t.Errorf("want 1 completion event, got %d", n)
	}
}

func TestPendingCredit_WithinFailureRollsBack(t *testing.T) {
	store := seedAliceBob("0.00", "0.00")
	svc, _ := newTestLedger(store, config.DefaultLedgerConfig())
	ctx := context.Background()

	pending, err := svc.CreatePending(ctx, PendingCredit{UserID: "alice", Amount: dec("200.00")})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}

	_, _, err = svc.CompletePendingCredit(ctx, pending.Reference, "", func(context.Context, *models.Transaction) error {
		return errInjected
	})
	if !errors.Is(err, errInjected) {
		t.Fatalf("want injected failure, got %v", err)
	}
	if got := store.balance("alice"); !got.IsZero() {
		t.Errorf("balance: want 0, got %s", got)
	}
	stored, _ := memTransactions{store}.GetByReference(ctx, pending.Reference)
	if stored.Status != models.StatusPending {
		t.Errorf("want transaction still pending, got %s", stored.Status)
	}
}

func TestFailPending(t *testing.T) {
	store := seedAliceBob("0.00", "0.00")
	svc, pub := newTestLedger(store, config.DefaultLedgerConfig())
	ctx := context.Background()

	pending, err := svc.CreatePending(ctx, PendingCredit{UserID: "alice", Amount: dec("200.00")})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}

	failed, err := svc.FailPending(ctx, pending.Reference, "declined")
	if err != nil {
		t.Fatalf("fail pending: %v", err)
	}
	if failed.Status != models.StatusFailed || failed.Narration != "declined" {
		t.Errorf("failed transaction %+v", failed)
	}

	// A failed deposit can no longer be settled.
	if _, _, err := svc.CompletePendingCredit(ctx, pending.Reference, "", nil); !errors.Is(err, models.ErrTransactionNotPending) {
		t.Errorf("settling a failed deposit: want ErrTransactionNotPending, got %v", err)
	}
	if _, err := svc.FailPending(ctx, "TXN-20260314103000-0000000000", "x"); !errors.Is(err, models.ErrUnknownReference) {
		t.Errorf("unknown reference: want ErrUnknownReference, got %v", err)
	}
	if n := pub.count(events.TransactionFailed); n != 1 {
		t.Errorf("want 1 failure event, got %d", n)
	}
}

// ---- provisioning and administration ----

func TestProvisionWallet(t *testing.T) {
	cfg := config.DefaultLedgerConfig()
	cfg.SignupBonus = dec("1000.00")
	store := newMemStore()
	svc, pub := newTestLedger(store, cfg)

	w, err := svc.ProvisionWallet(context.Background(), cqrs.ProvisionWalletCommand{UserID: "carol"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.Balance.Equal(dec("1000.00")) || w.Currency != "NGN" || !w.IsActive {
		t.Errorf("provisioned wallet %+v", w)
	}

	txns := store.transactionsFor("carol")
	if len(txns) != 1 || txns[0].Category != models.CategoryBonus || txns[0].Narration != "Welcome bonus" {
		t.Errorf("want one bonus transaction, got %+v", txns)
	}

	again, err := svc.ProvisionWallet(context.Background(), cqrs.ProvisionWalletCommand{UserID: "carol"})
	if err != nil {
		t.Fatalf("second provision: %v", err)
	}
	if again.ID != w.ID {
		t.Error("second provision should return the existing wallet")
	}
	if got := store.balance("carol"); !got.Equal(dec("1000.00")) {
		t.Errorf("bonus credited twice: %s", got)
	}
	if n := pub.count(events.WalletProvisioned); n != 1 {
		t.Errorf("want 1 provisioned event, got %d", n)
	}
}

func TestSetWalletStatus(t *testing.T) {
	store := seedAliceBob("100.00", "0.00")
	svc, _ := newTestLedger(store, config.DefaultLedgerConfig())

	w, err := svc.SetWalletStatus(context.Background(), cqrs.SetWalletStatusCommand{UserID: "alice", IsActive: true, IsFrozen: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.IsFrozen {
		t.Error("wallet should be frozen")
	}
	if _, err := svc.Withdraw(context.Background(), cqrs.WithdrawCommand{UserID: "alice", Amount: dec("5.00")}); !errors.Is(err, models.ErrWalletFrozen) {
		t.Errorf("want frozen wallet error, got %v", err)
	}
	if _, err := svc.SetWalletStatus(context.Background(), cqrs.SetWalletStatusCommand{UserID: "nobody"}); !errors.Is(err, models.ErrWalletNotFound) {
		t.Errorf("want wallet not found, got %v", err)
	}
}

func TestAddBeneficiary(t *testing.T) {
	store := seedAliceBob("100.00", "0.00")
	svc, _ := newTestLedger(store, config.DefaultLedgerConfig())
	ctx := context.Background()

	contact, err := svc.AddBeneficiary(ctx, cqrs.AddBeneficiaryCommand{UserID: "alice", PhoneNumber: bobPhone, Nickname: " Bobby ", IsFavorite: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contact.BeneficiaryID != "bob" || contact.Nickname != "Bobby" || !contact.IsFavorite {
		t.Errorf("contact %+v", contact)
	}

	if _, err := svc.AddBeneficiary(ctx, cqrs.AddBeneficiaryCommand{UserID: "alice", PhoneNumber: alicePhone}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("self beneficiary: want validation error, got %v", err)
	}
	if _, err := svc.AddBeneficiary(ctx, cqrs.AddBeneficiaryCommand{UserID: "alice", PhoneNumber: "08000000000"}); !errors.Is(err, models.ErrRecipientNotFound) {
		t.Errorf("unknown phone: want ErrRecipientNotFound, got %v", err)
	}
}

// ---- registration ----

func TestRegisterIdentity(t *testing.T) {
	store := newMemStore()
	ledger, pub := newTestLedger(store, config.DefaultLedgerConfig())
	svc := NewIdentityCommandService(ledger, store.stores(), zap.NewNop())
	ctx := context.Background()

	identity, wallet, err := svc.RegisterIdentity(ctx, cqrs.RegisterIdentityCommand{
		UserID: "dave", PhoneNumber: "0803 000 0009", FullName: "Dave",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.PhoneNumber != "08030000009" {
		t.Errorf("phone not normalized: %q", identity.PhoneNumber)
	}
	if len(identity.AccountNumber) != 10 {
		t.Errorf("account number %q", identity.AccountNumber)
	}
	if wallet.UserID != "dave" || !wallet.Balance.IsZero() {
		t.Errorf("wallet %+v", wallet)
	}
	if n := pub.count(events.WalletProvisioned); n != 1 {
		t.Errorf("want 1 provisioned event, got %d", n)
	}

	_, _, err = svc.RegisterIdentity(ctx, cqrs.RegisterIdentityCommand{UserID: "erin", PhoneNumber: "08030000009"})
	if !errors.Is(err, models.ErrIdentityExists) {
		t.Fatalf("duplicate phone: want ErrIdentityExists, got %v", err)
	}
	if _, err := (memWallets{store}).GetByUserID(ctx, "erin"); !errors.Is(err, models.ErrWalletNotFound) {
		t.Error("no wallet should exist for a rejected registration")
	}
}
