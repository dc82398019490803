package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

// memStore is an in-memory implementation of every store the command
// services use. Wallet and transaction reads taken with Lock* hold a
// per-row mutex until the surrounding memStore transaction ends, and writes
// made inside a failed transaction are undone.
type memStore struct {
	mu sync.Mutex

	wallets       map[uuid.UUID]*models.Wallet
	walletLocks   map[uuid.UUID]*sync.Mutex
	txns          map[string]*models.Transaction
	txnLocks      map[string]*sync.Mutex
	analytics     map[string]*models.DailyAnalytics
	beneficiaries map[string]*models.BeneficiaryContact
	cards         map[uuid.UUID]*models.SavedCard
	pins          map[string]*models.TransactionPIN
	identities    map[string]*models.Identity

	// failAnalyticsOn makes the nth analytics write fail.
	failAnalyticsOn int
	analyticsCalls  int
	collisions      int
}

func newMemStore() *memStore {
	return &memStore{
		wallets:       make(map[uuid.UUID]*models.Wallet),
		walletLocks:   make(map[uuid.UUID]*sync.Mutex),
		txns:          make(map[string]*models.Transaction),
		txnLocks:      make(map[string]*sync.Mutex),
		analytics:     make(map[string]*models.DailyAnalytics),
		beneficiaries: make(map[string]*models.BeneficiaryContact),
		cards:         make(map[uuid.UUID]*models.SavedCard),
		pins:          make(map[string]*models.TransactionPIN),
		identities:    make(map[string]*models.Identity),
	}
}

func (s *memStore) stores() Stores {
	return Stores{
		Tx:            s,
		Wallets:       memWallets{s},
		Transactions:  memTransactions{s},
		Analytics:     memAnalytics{s},
		Beneficiaries: memBeneficiaries{s},
		Cards:         memCards{s},
		PINs:          memPINs{s},
		Identities:    memIdentities{s},
	}
}

var errInjected = errors.New("injected failure")

type memTxKey struct{}

type memTx struct {
	undo []func()
	held map[*sync.Mutex]bool
}

func txFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	return tx
}

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	tx := &memTx{held: make(map[*sync.Mutex]bool)}
	err := fn(context.WithValue(ctx, memTxKey{}, tx))
	if err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
	}
	for l := range tx.held {
		l.Unlock()
	}
	return err
}

// onRollback registers an undo step. Callers hold s.mu.
func (s *memStore) onRollback(ctx context.Context, undo func()) {
	if tx := txFrom(ctx); tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

func (s *memStore) acquire(ctx context.Context, l *sync.Mutex) {
	tx := txFrom(ctx)
	if tx == nil {
		panic("row lock requested outside a transaction")
	}
	if tx.held[l] {
		return
	}
	l.Lock()
	tx.held[l] = true
}

// ---- seeding helpers ----

func (s *memStore) addUser(id, phone, balance string) *models.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[id] = &models.Identity{ID: id, PhoneNumber: phone, AccountNumber: "10" + phone[len(phone)-8:], FullName: "User " + id}
	w := &models.Wallet{
		ID:       uuid.New(),
		UserID:   id,
		Balance:  decimal.RequireFromString(balance),
		Currency: "NGN",
		IsActive: true,
	}
	s.wallets[w.ID] = w
	s.walletLocks[w.ID] = &sync.Mutex{}
	copied := *w
	return &copied
}

func (s *memStore) balance(userID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.UserID == userID {
			return w.Balance
		}
	}
	return decimal.Zero
}

func (s *memStore) totalBalance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, w := range s.wallets {
		total = total.Add(w.Balance)
	}
	return total
}

func (s *memStore) transactionsFor(userID string) []*models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Transaction
	for _, t := range s.txns {
		if t.UserID == userID {
			c := *t
			out = append(out, &c)
		}
	}
	return out
}

func (s *memStore) txnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txns)
}

func (s *memStore) setFlags(userID string, active, frozen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.UserID == userID {
			w.IsActive, w.IsFrozen = active, frozen
		}
	}
}

func (s *memStore) analyticsFor(userID string, day time.Time) *models.DailyAnalytics {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analytics[userID+"|"+day.Format("2006-01-02")]
	if !ok {
		return nil
	}
	c := *a
	return &c
}

// ---- wallets ----

type memWallets struct{ s *memStore }

func (m memWallets) Create(ctx context.Context, w *models.Wallet) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.wallets {
		if existing.UserID == w.UserID {
			return false, nil
		}
	}
	c := *w
	m.s.wallets[w.ID] = &c
	m.s.walletLocks[w.ID] = &sync.Mutex{}
	m.s.onRollback(ctx, func() { delete(m.s.wallets, w.ID) })
	return true, nil
}

func (m memWallets) GetByUserID(_ context.Context, userID string) (*models.Wallet, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, w := range m.s.wallets {
		if w.UserID == userID {
			c := *w
			return &c, nil
		}
	}
	return nil, models.ErrWalletNotFound
}

func (m memWallets) LockByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	m.s.mu.Lock()
	l, ok := m.s.walletLocks[id]
	m.s.mu.Unlock()
	if !ok {
		return nil, models.ErrWalletNotFound
	}
	m.s.acquire(ctx, l)

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c := *m.s.wallets[id]
	return &c, nil
}

func (m memWallets) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	w, ok := m.s.wallets[id]
	if !ok {
		return models.ErrWalletNotFound
	}
	if balance.IsNegative() {
		panic("negative balance written for wallet " + id.String())
	}
	prev, prevAt := w.Balance, w.UpdatedAt
	w.Balance, w.UpdatedAt = balance, at
	m.s.onRollback(ctx, func() { w.Balance, w.UpdatedAt = prev, prevAt })
	return nil
}

func (m memWallets) SetStatus(_ context.Context, id uuid.UUID, active, frozen bool, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	w, ok := m.s.wallets[id]
	if !ok {
		return models.ErrWalletNotFound
	}
	w.IsActive, w.IsFrozen, w.UpdatedAt = active, frozen, at
	return nil
}

// ---- transactions ----

type memTransactions struct{ s *memStore }

func (m memTransactions) Create(ctx context.Context, t *models.Transaction) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.collisions > 0 {
		m.s.collisions--
		return models.ErrDuplicateReference
	}
	if _, exists := m.s.txns[t.Reference]; exists {
		return models.ErrDuplicateReference
	}
	c := *t
	m.s.txns[t.Reference] = &c
	m.s.txnLocks[t.Reference] = &sync.Mutex{}
	ref := t.Reference
	m.s.onRollback(ctx, func() { delete(m.s.txns, ref) })
	return nil
}

func (m memTransactions) GetByReference(_ context.Context, reference string) (*models.Transaction, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.txns[reference]
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	c := *t
	return &c, nil
}

func (m memTransactions) LockByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	m.s.mu.Lock()
	l, ok := m.s.txnLocks[reference]
	m.s.mu.Unlock()
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	m.s.acquire(ctx, l)
	return m.GetByReference(ctx, reference)
}

func (m memTransactions) Update(ctx context.Context, t *models.Transaction) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.txns[t.Reference]
	if !ok || stored.Status != models.StatusPending {
		return models.ErrTransactionNotPending
	}
	prev := *stored
	c := *t
	m.s.txns[t.Reference] = &c
	m.s.onRollback(ctx, func() { m.s.txns[prev.Reference] = &prev })
	return nil
}

// ---- analytics ----

type memAnalytics struct{ s *memStore }

func (m memAnalytics) Apply(ctx context.Context, d models.AnalyticsDelta, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.analyticsCalls++
	if m.s.failAnalyticsOn > 0 && m.s.analyticsCalls == m.s.failAnalyticsOn {
		return errInjected
	}
	key := d.UserID + "|" + d.Date.Format("2006-01-02")
	a, ok := m.s.analytics[key]
	if !ok {
		a = &models.DailyAnalytics{UserID: d.UserID, Date: d.Date, CreatedAt: at}
		m.s.analytics[key] = a
	}
	prev := *a
	a.TotalCredits = a.TotalCredits.Add(d.Credits)
	a.TotalDebits = a.TotalDebits.Add(d.Debits)
	a.TotalTransactions++
	a.TransfersSent += d.TransfersSent
	a.TransfersReceived += d.TransfersReceived
	a.BillPayments += d.BillPayments
	a.AirtimePurchases += d.AirtimePurchases
	a.ClosingBalance = d.ClosingBalance
	a.UpdatedAt = at
	m.s.onRollback(ctx, func() {
		if !ok {
			delete(m.s.analytics, key)
			return
		}
		*a = prev
	})
	return nil
}

// ---- beneficiaries ----

type memBeneficiaries struct{ s *memStore }

func (m memBeneficiaries) Accumulate(ctx context.Context, userID, beneficiaryID string, amount decimal.Decimal, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := userID + "|" + beneficiaryID
	b, ok := m.s.beneficiaries[key]
	if !ok {
		b = &models.BeneficiaryContact{ID: uuid.New(), UserID: userID, BeneficiaryID: beneficiaryID, CreatedAt: at}
		m.s.beneficiaries[key] = b
	}
	prev := *b
	b.TotalSent = b.TotalSent.Add(amount)
	b.TransactionCount++
	last := at
	b.LastTransactionAt = &last
	m.s.onRollback(ctx, func() {
		if !ok {
			delete(m.s.beneficiaries, key)
			return
		}
		*b = prev
	})
	return nil
}

func (m memBeneficiaries) Save(_ context.Context, c *models.BeneficiaryContact) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := c.UserID + "|" + c.BeneficiaryID
	if b, ok := m.s.beneficiaries[key]; ok {
		b.Nickname, b.IsFavorite = c.Nickname, c.IsFavorite
		*c = *b
		return nil
	}
	stored := *c
	m.s.beneficiaries[key] = &stored
	return nil
}

func (s *memStore) beneficiary(userID, beneficiaryID string) *models.BeneficiaryContact {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.beneficiaries[userID+"|"+beneficiaryID]
	if !ok {
		return nil
	}
	c := *b
	return &c
}

// ---- cards ----

type memCards struct{ s *memStore }

func (m memCards) Remember(ctx context.Context, card *models.SavedCard) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	hasDefault := false
	for _, c := range m.s.cards {
		if c.UserID == card.UserID && c.IsActive && c.IsDefault {
			hasDefault = true
		}
	}

	for _, c := range m.s.cards {
		if c.AuthorizationCode != card.AuthorizationCode {
			continue
		}
		if c.UserID != card.UserID || c.IsActive {
			return false, nil
		}
		prev := *c
		c.IsActive, c.IsDefault = true, !hasDefault
		c.CardType, c.Last4, c.ExpMonth, c.ExpYear, c.Bank = card.CardType, card.Last4, card.ExpMonth, card.ExpYear, card.Bank
		m.s.onRollback(ctx, func() { *c = prev })
		card.ID, card.IsDefault, card.IsActive = c.ID, c.IsDefault, true
		return true, nil
	}

	card.IsDefault, card.IsActive = !hasDefault, true
	c := *card
	m.s.cards[card.ID] = &c
	m.s.onRollback(ctx, func() { delete(m.s.cards, card.ID) })
	return true, nil
}

func (m memCards) GetActive(_ context.Context, userID string, id uuid.UUID) (*models.SavedCard, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.cards[id]
	if !ok || c.UserID != userID || !c.IsActive {
		return nil, models.ErrCardNotFound
	}
	copied := *c
	return &copied, nil
}

func (m memCards) SetDefault(_ context.Context, userID string, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.cards {
		if c.UserID == userID && c.IsActive {
			c.IsDefault = c.ID == id
		}
	}
	return nil
}

func (m memCards) Deactivate(_ context.Context, userID string, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.cards[id]
	if !ok || c.UserID != userID || !c.IsActive {
		return models.ErrCardNotFound
	}
	c.IsActive, c.IsDefault = false, false
	return nil
}

func (m memCards) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c, ok := m.s.cards[id]; ok {
		used := at
		c.LastUsedAt = &used
	}
	return nil
}

func (s *memStore) cardsFor(userID string) []*models.SavedCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SavedCard
	for _, c := range s.cards {
		if c.UserID == userID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out
}

// ---- pins ----

type memPINs struct{ s *memStore }

func (m memPINs) Get(_ context.Context, userID string) (*models.TransactionPIN, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.pins[userID]
	if !ok {
		return nil, models.ErrPINNotSet
	}
	c := *p
	return &c, nil
}

func (m memPINs) Save(_ context.Context, p *models.TransactionPIN) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c := *p
	c.FailedAttempts, c.LockedUntil, c.IsActive = 0, nil, true
	m.s.pins[p.UserID] = &c
	return nil
}

func (m memPINs) RecordFailure(_ context.Context, userID string, maxAttempts int, lockUntil, at time.Time) (*models.TransactionPIN, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.pins[userID]
	if !ok {
		return nil, models.ErrPINNotSet
	}
	if p.FailedAttempts+1 >= maxAttempts {
		until := lockUntil
		p.LockedUntil = &until
		p.FailedAttempts = 0
	} else {
		p.FailedAttempts++
	}
	p.UpdatedAt = at
	c := *p
	return &c, nil
}

func (m memPINs) ResetFailures(_ context.Context, userID string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p, ok := m.s.pins[userID]; ok {
		p.FailedAttempts, p.LockedUntil, p.UpdatedAt = 0, nil, at
	}
	return nil
}

// ---- identities ----

type memIdentities struct{ s *memStore }

func (m memIdentities) Create(ctx context.Context, i *models.Identity) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.identities {
		if existing.ID == i.ID || existing.PhoneNumber == i.PhoneNumber || existing.AccountNumber == i.AccountNumber {
			return models.ErrIdentityExists
		}
	}
	c := *i
	m.s.identities[i.ID] = &c
	m.s.onRollback(ctx, func() { delete(m.s.identities, i.ID) })
	return nil
}

func (m memIdentities) GetByID(_ context.Context, id string) (*models.Identity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	i, ok := m.s.identities[id]
	if !ok {
		return nil, models.ErrIdentityNotFound
	}
	c := *i
	return &c, nil
}

func (m memIdentities) FindByPhone(_ context.Context, phone string) (*models.Identity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, i := range m.s.identities {
		if i.PhoneNumber == phone {
			c := *i
			return &c, nil
		}
	}
	return nil, models.ErrIdentityNotFound
}

func (m memIdentities) FindByAccountNumber(_ context.Context, accountNumber string) (*models.Identity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, i := range m.s.identities {
		if i.AccountNumber == accountNumber {
			c := *i
			return &c, nil
		}
	}
	return nil, models.ErrIdentityNotFound
}

// ---- publisher ----

type recordedEvent struct {
	Stream string
	Type   string
	Data   any
}

type memPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *memPublisher) Publish(_ context.Context, stream, eventType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Stream: stream, Type: eventType, Data: data})
	return nil
}

func (p *memPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}
