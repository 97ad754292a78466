package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/shopspring/decimal"
)

func seedUser(t *testing.T, m *Memory, email string) *domain.User {
	t.Helper()
	u := &domain.User{Username: email, Email: email, CreatedAt: time.Now()}
	if err := m.InTx(context.Background(), func(tx Tx) error {
		return tx.CreateUser(context.Background(), u)
	}); err != nil {
		t.Fatalf("CreateUser(%s) err=%v", email, err)
	}
	return u
}

func TestMemoryRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	u := seedUser(t, m, "alice@example.com")

	boom := errors.New("boom")
	err := m.InTx(ctx, func(tx Tx) error {
		acc := &domain.Account{OwnerID: u.ID, Name: "Savings", Balance: decimal.Zero}
		if err := tx.CreateAccount(ctx, acc); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	_ = m.InTx(ctx, func(tx Tx) error {
		accs, _ := tx.ListAccountsByOwner(ctx, u.ID)
		if len(accs) != 0 {
			t.Fatalf("rolled back account still visible: %+v", accs)
		}
		return nil
	})
}

// constraintCases run inside a unit of work that has already created owner.
// Every case fails, so the unit of work always rolls back.
type constraintCase struct {
	name string
	fn   func(ctx context.Context, tx Tx, owner *domain.User) error
	want error
}

func constraintCases() []constraintCase {
	return []constraintCase{
		{
			name: "duplicate email is case insensitive",
			fn: func(ctx context.Context, tx Tx, owner *domain.User) error {
				return tx.CreateUser(ctx, &domain.User{Username: "other", Email: strings.ToUpper(owner.Email), CreatedAt: time.Now()})
			},
			want: domain.ErrConflict,
		},
		{
			name: "duplicate account name per owner",
			fn: func(ctx context.Context, tx Tx, owner *domain.User) error {
				if err := tx.CreateAccount(ctx, &domain.Account{OwnerID: owner.ID, Name: "Main", CreatedAt: time.Now()}); err != nil {
					return err
				}
				return tx.CreateAccount(ctx, &domain.Account{OwnerID: owner.ID, Name: "Main", CreatedAt: time.Now()})
			},
			want: domain.ErrConflict,
		},
		{
			name: "account for unknown owner",
			fn: func(ctx context.Context, tx Tx, owner *domain.User) error {
				return tx.CreateAccount(ctx, &domain.Account{OwnerID: 1 << 40, Name: "Main", CreatedAt: time.Now()})
			},
			want: domain.ErrNotFound,
		},
		{
			name: "contact with unknown user",
			fn: func(ctx context.Context, tx Tx, owner *domain.User) error {
				return tx.InsertContact(ctx, owner.ID, 1<<40)
			},
			want: domain.ErrNotFound,
		},
		{
			name: "self contact",
			fn: func(ctx context.Context, tx Tx, owner *domain.User) error {
				return tx.InsertContact(ctx, owner.ID, owner.ID)
			},
			want: domain.ErrSelfContact,
		},
		{
			name: "idempotency key reserved twice",
			fn: func(ctx context.Context, tx Tx, owner *domain.User) error {
				rec := &domain.IdempotencyRecord{Key: "k-" + owner.Email, RequestHash: "h", CreatedAt: time.Now()}
				if err := tx.ReserveIdempotencyKey(ctx, rec); err != nil {
					return err
				}
				return tx.ReserveIdempotencyKey(ctx, rec)
			},
			want: domain.ErrConflict,
		},
		{
			name: "negative balance",
			fn: func(ctx context.Context, tx Tx, owner *domain.User) error {
				acc := &domain.Account{OwnerID: owner.ID, Name: "Neg", CreatedAt: time.Now()}
				if err := tx.CreateAccount(ctx, acc); err != nil {
					return err
				}
				return tx.UpdateBalance(ctx, acc.ID, decimal.NewFromInt(-1))
			},
			want: domain.ErrInsufficientBalance,
		},
		{
			name: "delete account with history",
			fn: func(ctx context.Context, tx Tx, owner *domain.User) error {
				a := &domain.Account{OwnerID: owner.ID, Name: "A", CreatedAt: time.Now()}
				b := &domain.Account{OwnerID: owner.ID, Name: "B", CreatedAt: time.Now()}
				for _, acc := range []*domain.Account{a, b} {
					if err := tx.CreateAccount(ctx, acc); err != nil {
						return err
					}
				}
				tr := &domain.Transaction{SenderAccountID: a.ID, ReceiverAccountID: b.ID, Amount: decimal.NewFromInt(1),
					Type: domain.SelfTransfer, CreatedAt: time.Now()}
				if err := tx.CreateTransaction(ctx, tr); err != nil {
					return err
				}
				return tx.DeleteAccount(ctx, a.ID)
			},
			want: domain.ErrConflict,
		},
	}
}

func runConstraintCases(t *testing.T, s Store, email string) {
	t.Helper()
	ctx := context.Background()
	for _, tt := range constraintCases() {
		t.Run(tt.name, func(t *testing.T) {
			err := s.InTx(ctx, func(tx Tx) error {
				owner := &domain.User{Username: "owner", Email: email, CreatedAt: time.Now()}
				if err := tx.CreateUser(ctx, owner); err != nil {
					return err
				}
				return tt.fn(ctx, tx, owner)
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
}

func TestMemoryConstraints(t *testing.T) {
	runConstraintCases(t, NewMemory(), "alice@example.com")
}

func TestMemoryListTransactionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice := seedUser(t, m, "alice@example.com")
	bob := seedUser(t, m, "bob@example.com")
	carol := seedUser(t, m, "carol@example.com")

	var a, b, c domain.Account
	err := m.InTx(ctx, func(tx Tx) error {
		a = domain.Account{OwnerID: alice.ID, Name: "A"}
		b = domain.Account{OwnerID: bob.ID, Name: "B"}
		c = domain.Account{OwnerID: carol.ID, Name: "C"}
		for _, acc := range []*domain.Account{&a, &b, &c} {
			if err := tx.CreateAccount(ctx, acc); err != nil {
				return err
			}
		}
		for _, pair := range [][2]int64{{a.ID, b.ID}, {b.ID, c.ID}, {c.ID, a.ID}} {
			tr := &domain.Transaction{SenderAccountID: pair[0], ReceiverAccountID: pair[1], Amount: decimal.NewFromInt(1)}
			if err := tx.CreateTransaction(ctx, tr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	_ = m.InTx(ctx, func(tx Tx) error {
		views, err := tx.ListTransactionsForUser(ctx, alice.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(views) != 2 {
			t.Fatalf("len=%d want=2", len(views))
		}
		if views[0].SenderAccountID != c.ID || views[1].SenderAccountID != a.ID {
			t.Fatalf("unexpected order: %+v", views)
		}
		if views[0].SenderUsername != carol.Username || views[0].ReceiverAccountName != "A" {
			t.Fatalf("join fields not populated: %+v", views[0])
		}
		return nil
	})
}

func TestMemoryLockAccountsDeduplicates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	u := seedUser(t, m, "alice@example.com")

	_ = m.InTx(ctx, func(tx Tx) error {
		acc := &domain.Account{OwnerID: u.ID, Name: "Main"}
		if err := tx.CreateAccount(ctx, acc); err != nil {
			t.Fatal(err)
		}
		locked, err := tx.LockAccounts(ctx, acc.ID, acc.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(locked) != 1 {
			t.Fatalf("len=%d want=1", len(locked))
		}
		if _, err := tx.LockAccounts(ctx, acc.ID, 42); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
		return nil
	})
}

func TestSortedUnique(t *testing.T) {
	got := sortedUnique([]int64{5, 2, 5, 1})
	want := []int64{1, 2, 5}
	if len(got) != len(want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got=%v want=%v", got, want)
		}
	}
}
