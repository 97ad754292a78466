package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/punchamoorthee/buddyledger/internal/auth"
	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/punchamoorthee/buddyledger/internal/events"
	"github.com/punchamoorthee/buddyledger/internal/store"
	"github.com/shopspring/decimal"
)

type UserService struct {
	store  store.Store
	events events.Publisher
	now    func() time.Time

	// HashCost is the bcrypt cost for new password hashes.
	HashCost int
}

func NewUserService(s store.Store, pub events.Publisher) *UserService {
	return &UserService{store: s, events: orNoop(pub), now: time.Now, HashCost: auth.DefaultCost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user together with the default account in one unit of work.
func (s *UserService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password, s.HashCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &domain.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		CreatedAt:    now,
	}
	acc := &domain.Account{Name: domain.DefaultAccountName, Balance: decimal.Zero, CreatedAt: now}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetUserByEmail(ctx, u.Email)
		switch {
		case err == nil:
			return fmt.Errorf("email %q: %w", u.Email, domain.ErrConflict)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		acc.OwnerID = u.ID
		return tx.CreateAccount(ctx, acc)
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	publish(ctx, s.events, events.NewAccountCreated(acc))
	return u, nil
}

// Authenticate returns the user whose credentials match. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	var u *domain.User
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.GetUserByEmail(ctx, normalizeEmail(email))
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.CheckPassword(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID int64) (*domain.Profile, error) {
	var p domain.Profile
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		p.User = *u
		if p.Accounts, err = tx.ListAccountsByOwner(ctx, userID); err != nil {
			return err
		}
		p.Contacts, err = contactsOf(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID int64, req domain.PasswordChangeRequest) error {
	if err := domain.Validate(req); err != nil {
		return err
	}
	hash, err := auth.HashPassword(req.NewPassword, s.HashCost)
	if err != nil {
		return err
	}

	return s.store.InTx(ctx, func(tx store.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		ok, err := auth.CheckPassword(u.PasswordHash, req.CurrentPassword)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Invalid("current_password", "mismatch", "Current password is incorrect")
		}
		return tx.UpdatePasswordHash(ctx, userID, hash)
	})
}
