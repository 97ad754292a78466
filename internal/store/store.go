package store

import (
	"context"

	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Store runs units of work. Every write made through the Tx passed to fn is
// committed together when fn returns nil and rolled back otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of persistence operations available inside a unit of work.
// Lookups that miss return an error wrapping domain.ErrNotFound; unique
// constraint violations return an error wrapping domain.ErrConflict.
type Tx interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error

	// Contact edges are directed; callers keep them symmetric.
	ContactIDs(ctx context.Context, userID int64) ([]int64, error)
	HasContact(ctx context.Context, userID, contactID int64) (bool, error)
	InsertContact(ctx context.Context, userID, contactID int64) error
	DeleteContact(ctx context.Context, userID, contactID int64) error

	CreateAccount(ctx context.Context, a *domain.Account) error
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	// LockAccounts returns the accounts row-locked for the rest of the unit of
	// work, acquiring locks in ascending id order. Duplicate ids are locked once.
	LockAccounts(ctx context.Context, ids ...int64) (map[int64]*domain.Account, error)
	AccountNameExists(ctx context.Context, ownerID int64, name string) (bool, error)
	ListAccountsByOwner(ctx context.Context, ownerID int64) ([]domain.Account, error)
	UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	DeleteAccount(ctx context.Context, id int64) error
	CountTransactionsForAccount(ctx context.Context, accountID int64) (int64, error)

	CreateTransaction(ctx context.Context, t *domain.Transaction) error
	GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error)
	ListTransactionsForUser(ctx context.Context, userID int64) ([]domain.TransactionView, error)

	// ReserveIdempotencyKey inserts a pending record and fails with
	// domain.ErrConflict when the key is already present.
	ReserveIdempotencyKey(ctx context.Context, rec *domain.IdempotencyRecord) error
	GetIdempotencyKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	CompleteIdempotencyKey(ctx context.Context, key string, transactionID int64) error
}
