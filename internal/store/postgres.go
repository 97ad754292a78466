package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgNumericOutOfRange    = "22003"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// Postgres is the Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Migrate creates the schema if it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InTx runs fn at READ COMMITTED. Balance reads that feed a write go through
// LockAccounts, so row locks provide the isolation transfers need.
func (p *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", translate(err, "commit"))
	}
	return nil
}

// translate maps driver errors onto the domain sentinels.
func translate(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", what, domain.ErrConflict)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
		case pgCheckViolation:
			return fmt.Errorf("%s (%s): %w", what, pgErr.ConstraintName, domain.ErrValidation)
		case pgNumericOutOfRange:
			return fmt.Errorf("%s: %w", what, domain.Invalid("amount", "range", "value is out of range"))
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%s: concurrent update, retry: %w", what, domain.ErrConflict)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) CreateUser(ctx context.Context, u *domain.User) error {
	err := t.tx.QueryRow(ctx,
		"INSERT INTO users (username, email, password_hash, created_at) VALUES ($1, $2, $3, $4) RETURNING id",
		u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return translate(err, "insert user")
	}
	return nil
}

const userColumns = "id, username, email, password_hash, created_at"

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *pgTx) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(t.tx.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("user %d", id))
	}
	return u, nil
}

func (t *pgTx) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(t.tx.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(email) = lower(trim($1))", email))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("user %q", email))
	}
	return u, nil
}

func (t *pgTx) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	tag, err := t.tx.Exec(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", hash, userID)
	if err != nil {
		return translate(err, "update password")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) ContactIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx,
		"SELECT contact_id FROM user_contacts WHERE user_id = $1 ORDER BY contact_id", userID)
	if err != nil {
		return nil, translate(err, "list contacts")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, translate(err, "scan contacts")
	}
	return ids, nil
}

func (t *pgTx) HasContact(ctx context.Context, userID, contactID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM user_contacts WHERE user_id = $1 AND contact_id = $2)",
		userID, contactID,
	).Scan(&exists)
	if err != nil {
		return false, translate(err, "check contact")
	}
	return exists, nil
}

func (t *pgTx) InsertContact(ctx context.Context, userID, contactID int64) error {
	if userID == contactID {
		return fmt.Errorf("contact %d of itself: %w", userID, domain.ErrSelfContact)
	}
	_, err := t.tx.Exec(ctx,
		"INSERT INTO user_contacts (user_id, contact_id) VALUES ($1, $2)", userID, contactID)
	if err != nil {
		return translate(err, fmt.Sprintf("contact %d->%d", userID, contactID))
	}
	return nil
}

func (t *pgTx) DeleteContact(ctx context.Context, userID, contactID int64) error {
	_, err := t.tx.Exec(ctx,
		"DELETE FROM user_contacts WHERE user_id = $1 AND contact_id = $2", userID, contactID)
	if err != nil {
		return translate(err, "delete contact")
	}
	return nil
}

func (t *pgTx) CreateAccount(ctx context.Context, acc *domain.Account) error {
	err := t.tx.QueryRow(ctx,
		"INSERT INTO accounts (user_id, name, balance, created_at) VALUES ($1, $2, $3, $4) RETURNING id",
		acc.OwnerID, acc.Name, acc.Balance, acc.CreatedAt,
	).Scan(&acc.ID)
	if err != nil {
		return translate(err, fmt.Sprintf("account %q", acc.Name))
	}
	return nil
}

const accountColumns = "id, user_id, name, balance, created_at"

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Balance, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *pgTx) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("account %d", id))
	}
	return a, nil
}

// LockAccounts takes FOR UPDATE locks one row at a time in ascending id
// order so that two transfers over the same pair cannot deadlock.
func (t *pgTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]*domain.Account, error) {
	out := make(map[int64]*domain.Account, len(ids))
	for _, id := range sortedUnique(ids) {
		a, err := scanAccount(t.tx.QueryRow(ctx,
			"SELECT "+accountColumns+" FROM accounts WHERE id = $1 FOR UPDATE", id))
		if err != nil {
			return nil, translate(err, fmt.Sprintf("lock account %d", id))
		}
		out[id] = a
	}
	return out, nil
}

func (t *pgTx) AccountNameExists(ctx context.Context, ownerID int64, name string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM accounts WHERE user_id = $1 AND name = $2)", ownerID, name,
	).Scan(&exists)
	if err != nil {
		return false, translate(err, "check account name")
	}
	return exists, nil
}

func (t *pgTx) ListAccountsByOwner(ctx context.Context, ownerID int64) ([]domain.Account, error) {
	rows, err := t.tx.Query(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = $1 ORDER BY id", ownerID)
	if err != nil {
		return nil, translate(err, "list accounts")
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, translate(err, "scan account")
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list accounts")
	}
	return out, nil
}

func (t *pgTx) UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, "UPDATE accounts SET balance = $1 WHERE id = $2", balance, accountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
			return fmt.Errorf("account %d balance %s: %w", accountID, balance, domain.ErrInsufficientBalance)
		}
		return translate(err, "update balance")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", accountID, domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("account %d is referenced by transactions: %w", id, domain.ErrConflict)
		}
		return translate(err, "delete account")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) CountTransactionsForAccount(ctx context.Context, accountID int64) (int64, error) {
	var n int64
	err := t.tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM transactions WHERE sender_account_id = $1 OR receiver_account_id = $1",
		accountID,
	).Scan(&n)
	if err != nil {
		return 0, translate(err, "count transactions")
	}
	return n, nil
}

func (t *pgTx) CreateTransaction(ctx context.Context, tr *domain.Transaction) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO transactions (sender_account_id, receiver_account_id, amount, description, type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		tr.SenderAccountID, tr.ReceiverAccountID, tr.Amount, tr.Description, string(tr.Type), tr.CreatedAt,
	).Scan(&tr.ID)
	if err != nil {
		return translate(err, "insert transaction")
	}
	return nil
}

func (t *pgTx) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	var tr domain.Transaction
	var typ string
	err := t.tx.QueryRow(ctx,
		`SELECT id, sender_account_id, receiver_account_id, amount, description, type, created_at
		 FROM transactions WHERE id = $1`, id,
	).Scan(&tr.ID, &tr.SenderAccountID, &tr.ReceiverAccountID, &tr.Amount, &tr.Description, &typ, &tr.CreatedAt)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("transaction %d", id))
	}
	tr.Type = domain.TransactionType(typ)
	return &tr, nil
}

func (t *pgTx) ListTransactionsForUser(ctx context.Context, userID int64) ([]domain.TransactionView, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT t.id, t.sender_account_id, t.receiver_account_id, t.amount, t.description, t.type, t.created_at,
		       sa.name, su.id, su.username, ra.name, ru.id, ru.username
		FROM transactions t
		JOIN accounts sa ON sa.id = t.sender_account_id
		JOIN users su ON su.id = sa.user_id
		JOIN accounts ra ON ra.id = t.receiver_account_id
		JOIN users ru ON ru.id = ra.user_id
		WHERE sa.user_id = $1 OR ra.user_id = $1
		ORDER BY t.created_at DESC, t.id DESC`, userID)
	if err != nil {
		return nil, translate(err, "list transactions")
	}
	defer rows.Close()

	var out []domain.TransactionView
	for rows.Next() {
		var v domain.TransactionView
		var typ string
		if err := rows.Scan(
			&v.ID, &v.SenderAccountID, &v.ReceiverAccountID, &v.Amount, &v.Description, &typ, &v.CreatedAt,
			&v.SenderAccountName, &v.SenderID, &v.SenderUsername,
			&v.ReceiverAccountName, &v.ReceiverID, &v.ReceiverUsername,
		); err != nil {
			return nil, translate(err, "scan transaction")
		}
		v.Type = domain.TransactionType(typ)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list transactions")
	}
	return out, nil
}

func (t *pgTx) ReserveIdempotencyKey(ctx context.Context, rec *domain.IdempotencyRecord) error {
	_, err := t.tx.Exec(ctx,
		"INSERT INTO idempotency_keys (key, request_hash, created_at) VALUES ($1, $2, $3)",
		rec.Key, rec.RequestHash, rec.CreatedAt,
	)
	if err != nil {
		return translate(err, "reserve idempotency key")
	}
	return nil
}

func (t *pgTx) GetIdempotencyKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	var txID *int64
	err := t.tx.QueryRow(ctx,
		"SELECT key, request_hash, transaction_id, created_at FROM idempotency_keys WHERE key = $1", key,
	).Scan(&rec.Key, &rec.RequestHash, &txID, &rec.CreatedAt)
	if err != nil {
		return nil, translate(err, "idempotency key")
	}
	if txID != nil {
		rec.TransactionID = *txID
	}
	return &rec, nil
}

func (t *pgTx) CompleteIdempotencyKey(ctx context.Context, key string, transactionID int64) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE idempotency_keys SET transaction_id = $1 WHERE key = $2", transactionID, key)
	if err != nil {
		return translate(err, "complete idempotency key")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("idempotency key %q: %w", key, domain.ErrNotFound)
	}
	return nil
}

func sortedUnique(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
