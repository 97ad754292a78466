package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/punchamoorthee/buddyledger/internal/events"
	"github.com/punchamoorthee/buddyledger/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) count(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == kind {
			n++
		}
	}
	return n
}

// clock advances one second on every reading so CreatedAt values are strictly ordered.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	store     *store.Memory
	pub       *recordingPublisher
	clock     *clock
	accounts  *AccountService
	contacts  *ContactGraph
	transfers *TransferService
	queries   *QueryService
	users     *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewMemory(),
		pub:   &recordingPublisher{},
		clock: &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	f.accounts = NewAccountService(f.store, f.pub)
	f.contacts = NewContactGraph(f.store, f.pub)
	f.transfers = NewTransferService(f.store, f.pub)
	f.queries = NewQueryService(f.store)
	f.users = NewUserService(f.store, f.pub)
	f.users.HashCost = bcrypt.MinCost

	f.accounts.now = f.clock.now
	f.contacts.now = f.clock.now
	f.transfers.now = f.clock.now
	f.users.now = f.clock.now
	return f
}

func (f *fixture) register(t *testing.T, username string) *domain.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), domain.RegisterRequest{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	if err != nil {
		t.Fatalf("Register(%s) err=%v", username, err)
	}
	return u
}

func (f *fixture) account(t *testing.T, owner *domain.User, name, balance string) *domain.Account {
	t.Helper()
	ctx := context.Background()
	acc, err := f.accounts.CreateAccount(ctx, owner.ID, name)
	if err != nil {
		t.Fatalf("CreateAccount(%s) err=%v", name, err)
	}
	if amt := decimal.RequireFromString(balance); amt.IsPositive() {
		if acc, err = f.accounts.Deposit(ctx, acc.ID, amt); err != nil {
			t.Fatalf("Deposit(%s) err=%v", balance, err)
		}
	}
	return acc
}

func (f *fixture) link(t *testing.T, a, b *domain.User) {
	t.Helper()
	if _, err := f.contacts.AddContact(context.Background(), a.ID, b.Email); err != nil {
		t.Fatalf("AddContact(%s, %s) err=%v", a.Username, b.Username, err)
	}
}

func (f *fixture) balance(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	acc, err := f.accounts.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAccount(%d) err=%v", id, err)
	}
	return acc.Balance
}

func assertBalance(t *testing.T, f *fixture, id int64, want string) {
	t.Helper()
	if got := f.balance(t, id); !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("account %d balance=%s want=%s", id, got, want)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
