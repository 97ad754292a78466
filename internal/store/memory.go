package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Memory is an in-process Store. Users live in an arena indexed by id and the
// contact relation is an edge set keyed by user id. A unit of work holds the
// store mutex and operates on a copy of the arena that replaces the live one
// only when it commits.
type Memory struct {
	mu    sync.Mutex
	state *arena
}

type arena struct {
	nextUserID    int64
	nextAccountID int64
	nextTxID      int64

	users        map[int64]domain.User
	emails       map[string]int64
	contacts     map[int64]map[int64]struct{}
	accounts     map[int64]domain.Account
	transactions []domain.Transaction
	idempotency  map[string]domain.IdempotencyRecord
}

func NewMemory() *Memory {
	return &Memory{state: &arena{
		users:       make(map[int64]domain.User),
		emails:      make(map[string]int64),
		contacts:    make(map[int64]map[int64]struct{}),
		accounts:    make(map[int64]domain.Account),
		idempotency: make(map[string]domain.IdempotencyRecord),
	}}
}

func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memTx{a: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (a *arena) clone() *arena {
	c := &arena{
		nextUserID:    a.nextUserID,
		nextAccountID: a.nextAccountID,
		nextTxID:      a.nextTxID,
		users:         make(map[int64]domain.User, len(a.users)),
		emails:        make(map[string]int64, len(a.emails)),
		contacts:      make(map[int64]map[int64]struct{}, len(a.contacts)),
		accounts:      make(map[int64]domain.Account, len(a.accounts)),
		transactions:  make([]domain.Transaction, len(a.transactions)),
		idempotency:   make(map[string]domain.IdempotencyRecord, len(a.idempotency)),
	}
	for k, v := range a.users {
		c.users[k] = v
	}
	for k, v := range a.emails {
		c.emails[k] = v
	}
	for k, set := range a.contacts {
		cs := make(map[int64]struct{}, len(set))
		for id := range set {
			cs[id] = struct{}{}
		}
		c.contacts[k] = cs
	}
	for k, v := range a.accounts {
		c.accounts[k] = v
	}
	copy(c.transactions, a.transactions)
	for k, v := range a.idempotency {
		c.idempotency[k] = v
	}
	return c
}

type memTx struct {
	a *arena
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (t *memTx) CreateUser(ctx context.Context, u *domain.User) error {
	key := emailKey(u.Email)
	if _, exists := t.a.emails[key]; exists {
		return fmt.Errorf("email %q: %w", u.Email, domain.ErrConflict)
	}
	t.a.nextUserID++
	u.ID = t.a.nextUserID
	t.a.users[u.ID] = *u
	t.a.emails[key] = u.ID
	return nil
}

func (t *memTx) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, ok := t.a.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return &u, nil
}

func (t *memTx) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, ok := t.a.emails[emailKey(email)]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", email, domain.ErrNotFound)
	}
	u := t.a.users[id]
	return &u, nil
}

func (t *memTx) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	u, ok := t.a.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	u.PasswordHash = hash
	t.a.users[userID] = u
	return nil
}

func (t *memTx) ContactIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := make([]int64, 0, len(t.a.contacts[userID]))
	for id := range t.a.contacts[userID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *memTx) HasContact(ctx context.Context, userID, contactID int64) (bool, error) {
	_, ok := t.a.contacts[userID][contactID]
	return ok, nil
}

func (t *memTx) InsertContact(ctx context.Context, userID, contactID int64) error {
	if userID == contactID {
		return fmt.Errorf("contact %d of itself: %w", userID, domain.ErrSelfContact)
	}
	for _, id := range []int64{userID, contactID} {
		if _, ok := t.a.users[id]; !ok {
			return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
	}
	set, ok := t.a.contacts[userID]
	if !ok {
		set = make(map[int64]struct{})
		t.a.contacts[userID] = set
	}
	if _, exists := set[contactID]; exists {
		return fmt.Errorf("contact %d->%d: %w", userID, contactID, domain.ErrConflict)
	}
	set[contactID] = struct{}{}
	return nil
}

func (t *memTx) DeleteContact(ctx context.Context, userID, contactID int64) error {
	delete(t.a.contacts[userID], contactID)
	return nil
}

func (t *memTx) CreateAccount(ctx context.Context, acc *domain.Account) error {
	if _, ok := t.a.users[acc.OwnerID]; !ok {
		return fmt.Errorf("owner %d: %w", acc.OwnerID, domain.ErrNotFound)
	}
	if exists, _ := t.AccountNameExists(ctx, acc.OwnerID, acc.Name); exists {
		return fmt.Errorf("account name %q: %w", acc.Name, domain.ErrConflict)
	}
	t.a.nextAccountID++
	acc.ID = t.a.nextAccountID
	t.a.accounts[acc.ID] = *acc
	return nil
}

func (t *memTx) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	acc, ok := t.a.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
	}
	return &acc, nil
}

// LockAccounts needs no row locks here: the unit of work already holds the store mutex.
func (t *memTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]*domain.Account, error) {
	out := make(map[int64]*domain.Account, len(ids))
	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		acc, err := t.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = acc
	}
	return out, nil
}

func (t *memTx) AccountNameExists(ctx context.Context, ownerID int64, name string) (bool, error) {
	for _, acc := range t.a.accounts {
		if acc.OwnerID == ownerID && acc.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) ListAccountsByOwner(ctx context.Context, ownerID int64) ([]domain.Account, error) {
	var out []domain.Account
	for _, acc := range t.a.accounts {
		if acc.OwnerID == ownerID {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	acc, ok := t.a.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %d: %w", accountID, domain.ErrNotFound)
	}
	if balance.IsNegative() {
		return fmt.Errorf("account %d balance %s: %w", accountID, balance, domain.ErrInsufficientBalance)
	}
	acc.Balance = balance
	t.a.accounts[accountID] = acc
	return nil
}

func (t *memTx) DeleteAccount(ctx context.Context, id int64) error {
	if _, ok := t.a.accounts[id]; !ok {
		return fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
	}
	for _, tr := range t.a.transactions {
		if tr.SenderAccountID == id || tr.ReceiverAccountID == id {
			return fmt.Errorf("account %d is referenced by transactions: %w", id, domain.ErrConflict)
		}
	}
	delete(t.a.accounts, id)
	return nil
}

func (t *memTx) CountTransactionsForAccount(ctx context.Context, accountID int64) (int64, error) {
	var n int64
	for _, tr := range t.a.transactions {
		if tr.SenderAccountID == accountID || tr.ReceiverAccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) CreateTransaction(ctx context.Context, tr *domain.Transaction) error {
	for _, id := range []int64{tr.SenderAccountID, tr.ReceiverAccountID} {
		if _, ok := t.a.accounts[id]; !ok {
			return fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
		}
	}
	t.a.nextTxID++
	tr.ID = t.a.nextTxID
	t.a.transactions = append(t.a.transactions, *tr)
	return nil
}

func (t *memTx) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	for _, tr := range t.a.transactions {
		if tr.ID == id {
			tr := tr
			return &tr, nil
		}
	}
	return nil, fmt.Errorf("transaction %d: %w", id, domain.ErrNotFound)
}

func (t *memTx) ListTransactionsForUser(ctx context.Context, userID int64) ([]domain.TransactionView, error) {
	var out []domain.TransactionView
	for i := len(t.a.transactions) - 1; i >= 0; i-- {
		tr := t.a.transactions[i]
		sender := t.a.accounts[tr.SenderAccountID]
		receiver := t.a.accounts[tr.ReceiverAccountID]
		if sender.OwnerID != userID && receiver.OwnerID != userID {
			continue
		}
		out = append(out, domain.TransactionView{
			Transaction:         tr,
			SenderAccountName:   sender.Name,
			SenderID:            sender.OwnerID,
			SenderUsername:      t.a.users[sender.OwnerID].Username,
			ReceiverAccountName: receiver.Name,
			ReceiverID:          receiver.OwnerID,
			ReceiverUsername:    t.a.users[receiver.OwnerID].Username,
		})
	}
	return out, nil
}

func (t *memTx) ReserveIdempotencyKey(ctx context.Context, rec *domain.IdempotencyRecord) error {
	if _, exists := t.a.idempotency[rec.Key]; exists {
		return fmt.Errorf("idempotency key %q: %w", rec.Key, domain.ErrConflict)
	}
	t.a.idempotency[rec.Key] = *rec
	return nil
}

func (t *memTx) GetIdempotencyKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	rec, ok := t.a.idempotency[key]
	if !ok {
		return nil, fmt.Errorf("idempotency key %q: %w", key, domain.ErrNotFound)
	}
	return &rec, nil
}

func (t *memTx) CompleteIdempotencyKey(ctx context.Context, key string, transactionID int64) error {
	rec, ok := t.a.idempotency[key]
	if !ok {
		return fmt.Errorf("idempotency key %q: %w", key, domain.ErrNotFound)
	}
	rec.TransactionID = transactionID
	t.a.idempotency[key] = rec
	return nil
}
