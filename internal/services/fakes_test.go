package services

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"cashless/internal/auth"
	"cashless/internal/models"
	"cashless/internal/policy"
	"cashless/internal/store"
	"cashless/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// memLedger is an in-memory store whose WithTx serialises closures and rolls
// state back when they fail, standing in for SERIALIZABLE PostgreSQL.
type memLedger struct {
	mu        sync.Mutex
	accounts  map[string]models.Account
	requests  map[string]models.CashRequest
	transfers []models.Transfer
	entries   []store.LedgerEntryInput
	audits    []string
}

type memSnapshot struct {
	accounts  map[string]models.Account
	requests  map[string]models.CashRequest
	transfers []models.Transfer
	entries   []store.LedgerEntryInput
	audits    []string
}

func newMemLedger() *memLedger {
	return &memLedger{
		accounts: map[string]models.Account{},
		requests: map[string]models.CashRequest{},
	}
}

func (m *memLedger) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(nil); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memLedger) snapshot() memSnapshot {
	snap := memSnapshot{
		accounts:  make(map[string]models.Account, len(m.accounts)),
		requests:  make(map[string]models.CashRequest, len(m.requests)),
		transfers: append([]models.Transfer(nil), m.transfers...),
		entries:   append([]store.LedgerEntryInput(nil), m.entries...),
		audits:    append([]string(nil), m.audits...),
	}
	for k, v := range m.accounts {
		snap.accounts[k] = v
	}
	for k, v := range m.requests {
		snap.requests[k] = v
	}
	return snap
}

func (m *memLedger) restore(snap memSnapshot) {
	m.accounts = snap.accounts
	m.requests = snap.requests
	m.transfers = snap.transfers
	m.entries = snap.entries
	m.audits = snap.audits
}

// seed adds an account with a ledger entry backing its opening balance.
func (m *memLedger) seed(t *testing.T, id, phone string, role models.Role, status models.Status, balance int64, pin string) {
	t.Helper()
	hash, err := auth.HashPIN(pin)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = models.Account{
		ID: id, Name: id, Phone: phone, Email: id + "@example.com",
		PINHash: hash, Role: role, Status: status, Balance: balance,
	}
	if balance != 0 {
		m.entries = append(m.entries, store.LedgerEntryInput{ID: "seed-" + id, Reference: "seed", AccountID: id, Amount: balance, Kind: "seed"})
	}
}

func (m *memLedger) balance(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Balance
}

func (m *memLedger) request(id string) models.CashRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[id]
}

// reconcile returns accounts whose balance differs from their entry sum.
func (m *memLedger) reconcile() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	sums := map[string]int64{}
	for _, e := range m.entries {
		sums[e.AccountID] += e.Amount
	}
	var bad []string
	for id, acc := range m.accounts {
		if acc.Balance != sums[id] {
			bad = append(bad, id)
		}
	}
	sort.Strings(bad)
	return bad
}

type memAccounts struct{ *memLedger }

func (m memAccounts) Create(_ context.Context, _ store.Execer, account models.Account) error {
	for _, acc := range m.accounts {
		if acc.Phone == account.Phone || acc.Email == account.Email {
			return store.ErrDuplicate
		}
	}
	m.accounts[account.ID] = account
	return nil
}

func (m memAccounts) GetByID(_ context.Context, id string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return models.Account{}, store.ErrNotFound
	}
	return acc, nil
}

func (m memAccounts) GetByContact(_ context.Context, contact string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contact = strings.TrimSpace(contact)
	for _, acc := range m.accounts {
		if acc.Phone == contact || acc.Email == contact {
			return acc, nil
		}
	}
	return models.Account{}, store.ErrNotFound
}

func (m memAccounts) GetForUpdate(_ context.Context, _ store.Getter, id string) (models.Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return models.Account{}, store.ErrNotFound
	}
	return acc, nil
}

func (m memAccounts) HasAdmin(_ context.Context, _ store.Getter) (bool, error) {
	for _, acc := range m.accounts {
		if acc.Role == models.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (m memAccounts) UpdateStatus(_ context.Context, _ store.Execer, id string, expected, next models.Status) (bool, error) {
	acc, ok := m.accounts[id]
	if !ok || acc.Status != expected {
		return false, nil
	}
	acc.Status = next
	m.accounts[id] = acc
	return true, nil
}

func (m memAccounts) MarkBonusGranted(_ context.Context, _ store.Execer, id string) (bool, error) {
	acc, ok := m.accounts[id]
	if !ok || acc.BonusGrantedAt != nil {
		return false, nil
	}
	now := time.Now()
	acc.BonusGrantedAt = &now
	m.accounts[id] = acc
	return true, nil
}

func (m memAccounts) AdjustBalance(_ context.Context, _ store.Getter, id string, delta int64) (int64, error) {
	if delta == 0 {
		return 0, store.ErrNonPositiveAmount
	}
	acc, ok := m.accounts[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	if acc.Balance+delta < 0 {
		return 0, store.ErrInsufficientFunds
	}
	acc.Balance += delta
	m.accounts[id] = acc
	return acc.Balance, nil
}

func (m memAccounts) CreditDebitPair(ctx context.Context, tx store.Getter, fromID, toID string, debit, credit int64) (int64, int64, error) {
	if debit <= 0 || credit <= 0 {
		return 0, 0, store.ErrNonPositiveAmount
	}
	from, err := m.AdjustBalance(ctx, tx, fromID, -debit)
	if err != nil {
		return 0, 0, err
	}
	to, err := m.AdjustBalance(ctx, tx, toID, credit)
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

func (m memAccounts) ListAll(_ context.Context, search string, _, _ int) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, acc := range m.accounts {
		if search == "" || strings.Contains(strings.ToLower(acc.Name), strings.ToLower(search)) {
			out = append(out, acc)
		}
	}
	return out, nil
}

type memRequests struct{ *memLedger }

func (m memRequests) Create(_ context.Context, _ store.Execer, req models.CashRequest) error {
	m.requests[req.ID] = req
	return nil
}

func (m memRequests) GetForUpdate(_ context.Context, _ store.Getter, id string) (models.CashRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return models.CashRequest{}, store.ErrNotFound
	}
	return req, nil
}

func (m memRequests) Resolve(_ context.Context, _ store.Execer, id string, next models.RequestStatus, agentID string, at time.Time) (bool, error) {
	req, ok := m.requests[id]
	if !ok || req.Status != models.RequestPending {
		return false, nil
	}
	req.Status = next
	req.ApprovedBy = &agentID
	if next == models.RequestApproved {
		req.ApprovedAt = &at
	} else {
		req.RejectedAt = &at
	}
	m.requests[id] = req
	return true, nil
}

func (m memRequests) List(_ context.Context, filter store.RequestFilter) ([]models.CashRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CashRequest
	for _, req := range m.requests {
		if filter.Direction != "" && req.Direction != filter.Direction {
			continue
		}
		if filter.RequesterID != "" && req.RequesterID != filter.RequesterID {
			continue
		}
		if filter.AgentPhone != "" && req.AgentPhone != filter.AgentPhone {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

type memTransfers struct{ *memLedger }

func (m memTransfers) Create(_ context.Context, _ store.Execer, transfer models.Transfer) error {
	m.transfers = append(m.transfers, transfer)
	return nil
}

func (m memTransfers) ListByAccount(_ context.Context, accountID string, _, _ int) ([]models.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transfer
	for _, tr := range m.transfers {
		if tr.SenderID == accountID || tr.RecipientID == accountID {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (m *memLedger) InsertEntries(_ context.Context, _ store.Execer, entries []store.LedgerEntryInput) error {
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memLedger) Log(_ context.Context, _ store.Execer, _, action, _, _, _ string) error {
	m.audits = append(m.audits, action)
	return nil
}

type recordingHub struct {
	mu      sync.Mutex
	updates map[string][]websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(accountID string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.updates == nil {
		h.updates = map[string][]websocket.BalanceUpdate{}
	}
	h.updates[accountID] = append(h.updates[accountID], update)
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return p.err
}

type fakeLimiter struct {
	mu       sync.Mutex
	limit    int
	attempts map[string]int
}

func (f *fakeLimiter) Reserve(_ context.Context, subject string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempts == nil {
		f.attempts = map[string]int{}
	}
	f.attempts[subject]++
	return f.attempts[subject] <= f.limit, nil
}

func (f *fakeLimiter) Reset(_ context.Context, subject string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.attempts, subject)
	return nil
}

type harness struct {
	ledger    *memLedger
	hub       *recordingHub
	publisher *recordingPublisher
	limiter   *fakeLimiter
	policy    policy.Policy
	transfers *TransferService
	requests  *RequestService
	accounts  *AccountService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ledger:    newMemLedger(),
		hub:       &recordingHub{},
		publisher: &recordingPublisher{},
		limiter:   &fakeLimiter{limit: 3},
		policy:    policy.Default(),
	}
	h.build()
	return h
}

func (h *harness) build() {
	log := zerolog.New(io.Discard)
	notify := NewNotifier(h.hub, h.publisher, log)
	accounts := memAccounts{h.ledger}
	h.transfers = NewTransferService(h.ledger, accounts, memTransfers{h.ledger}, h.ledger, h.ledger, h.policy, h.limiter, notify, log)
	h.requests = NewRequestService(h.ledger, accounts, memRequests{h.ledger}, h.ledger, h.ledger, h.policy, notify, log)
	h.accounts = NewAccountService(h.ledger, accounts, h.ledger, h.ledger, h.policy, h.limiter, notify, log)
}
