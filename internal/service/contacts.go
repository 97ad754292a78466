package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/punchamoorthee/buddyledger/internal/events"
	"github.com/punchamoorthee/buddyledger/internal/store"
)

// ContactGraph keeps the contact relation symmetric: both directed edges are
// written or removed in the same unit of work.
type ContactGraph struct {
	store  store.Store
	events events.Publisher
	now    func() time.Time
}

func NewContactGraph(s store.Store, pub events.Publisher) *ContactGraph {
	return &ContactGraph{store: s, events: orNoop(pub), now: time.Now}
}

// AddContact links userID with the user registered under email and returns that user.
func (g *ContactGraph) AddContact(ctx context.Context, userID int64, email string) (*domain.User, error) {
	var contact *domain.User
	err := g.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		contact, err = tx.GetUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		if contact.ID == userID {
			return fmt.Errorf("user %d: %w", userID, domain.ErrSelfContact)
		}
		linked, err := tx.HasContact(ctx, userID, contact.ID)
		if err != nil {
			return err
		}
		if linked {
			return fmt.Errorf("users %d and %d: %w", userID, contact.ID, domain.ErrDuplicateContact)
		}
		// Lower id edge first so reciprocal adds lock rows in the same order.
		lo, hi := userID, contact.ID
		if lo > hi {
			lo, hi = hi, lo
		}
		for _, edge := range [][2]int64{{lo, hi}, {hi, lo}} {
			if err := tx.InsertContact(ctx, edge[0], edge[1]); err != nil {
				if errors.Is(err, domain.ErrConflict) {
					return fmt.Errorf("users %d and %d: %w", userID, contact.ID, domain.ErrDuplicateContact)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add contact: %w", err)
	}

	publish(ctx, g.events, events.NewContactAdded(userID, contact.ID, g.now()))
	return contact, nil
}

// RemoveContact unlinks both directions. Removing an absent link is a no-op.
func (g *ContactGraph) RemoveContact(ctx context.Context, userID, contactID int64) error {
	err := g.store.InTx(ctx, func(tx store.Tx) error {
		for _, id := range []int64{userID, contactID} {
			if _, err := tx.GetUser(ctx, id); err != nil {
				return err
			}
		}
		if err := tx.DeleteContact(ctx, userID, contactID); err != nil {
			return err
		}
		return tx.DeleteContact(ctx, contactID, userID)
	})
	if err != nil {
		return fmt.Errorf("remove contact: %w", err)
	}
	return nil
}

func (g *ContactGraph) ListContacts(ctx context.Context, userID int64) ([]domain.User, error) {
	var out []domain.User
	err := g.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = contactsOf(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *ContactGraph) IsContact(ctx context.Context, userID, otherID int64) (bool, error) {
	var linked bool
	err := g.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		linked, err = tx.HasContact(ctx, userID, otherID)
		return err
	})
	return linked, err
}

func contactsOf(ctx context.Context, tx store.Tx, userID int64) ([]domain.User, error) {
	if _, err := tx.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := tx.ContactIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}
