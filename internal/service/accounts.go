package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/punchamoorthee/buddyledger/internal/events"
	"github.com/punchamoorthee/buddyledger/internal/store"
	"github.com/shopspring/decimal"
)

const (
	minAccountName = 2
	maxAccountName = 100
)

type AccountService struct {
	store  store.Store
	events events.Publisher
	now    func() time.Time
}

func NewAccountService(s store.Store, pub events.Publisher) *AccountService {
	return &AccountService{store: s, events: orNoop(pub), now: time.Now}
}

func normalizeAccountName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch n := utf8.RuneCountInString(name); {
	case n < minAccountName:
		return "", domain.Invalid("name", "min", "must be at least 2 characters")
	case n > maxAccountName:
		return "", domain.Invalid("name", "max", "must be at most 100 characters")
	}
	return name, nil
}

// CreateAccount opens a zero-balance account for ownerID. Names are unique per owner.
func (s *AccountService) CreateAccount(ctx context.Context, ownerID int64, name string) (*domain.Account, error) {
	name, err := normalizeAccountName(name)
	if err != nil {
		return nil, err
	}

	acc := &domain.Account{OwnerID: ownerID, Name: name, Balance: decimal.Zero, CreatedAt: s.now().UTC()}
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, ownerID); err != nil {
			return err
		}
		exists, err := tx.AccountNameExists(ctx, ownerID, name)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("account name %q: %w", name, domain.ErrConflict)
		}
		return tx.CreateAccount(ctx, acc)
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	publish(ctx, s.events, events.NewAccountCreated(acc))
	return acc, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	var acc *domain.Account
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		acc, err = tx.GetAccount(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Deposit credits amount to the account under a row lock.
func (s *AccountService) Deposit(ctx context.Context, id int64, amount decimal.Decimal) (*domain.Account, error) {
	if err := domain.CheckAmount("amount", amount, domain.MaxDeposit); err != nil {
		return nil, err
	}

	var acc *domain.Account
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		locked, err := tx.LockAccounts(ctx, id)
		if err != nil {
			return err
		}
		acc = locked[id]
		acc.Balance = acc.Balance.Add(amount)
		return tx.UpdateBalance(ctx, id, acc.Balance)
	})
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	depositsTotal.Inc()
	return acc, nil
}

// DeleteAccount removes an account that has a zero balance and no transaction history.
func (s *AccountService) DeleteAccount(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		locked, err := tx.LockAccounts(ctx, id)
		if err != nil {
			return err
		}
		if !locked[id].Balance.IsZero() {
			return fmt.Errorf("account %d holds %s: %w", id, locked[id].Balance.StringFixed(domain.MoneyScale), domain.ErrConflict)
		}
		n, err := tx.CountTransactionsForAccount(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("account %d has %d transactions: %w", id, n, domain.ErrConflict)
		}
		return tx.DeleteAccount(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func (s *AccountService) ListAccountsForUser(ctx context.Context, userID int64) ([]domain.Account, error) {
	var out []domain.Account
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListAccountsByOwner(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
