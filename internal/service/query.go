package service

import (
	"context"
	"sort"

	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/punchamoorthee/buddyledger/internal/store"
)

// QueryService answers read-only questions across accounts, contacts and transactions.
type QueryService struct {
	store store.Store
}

func NewQueryService(s store.Store) *QueryService {
	return &QueryService{store: s}
}

// ListTransactionsForUser returns every transaction touching an account the
// user owns, newest first. A non-positive limit returns all of them.
func (q *QueryService) ListTransactionsForUser(ctx context.Context, userID int64, limit int) ([]domain.TransactionView, error) {
	var out []domain.TransactionView
	err := q.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListTransactionsForUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListReachableAccounts groups the accounts a user may send money to: their own
// first, then one group per contact.
func (q *QueryService) ListReachableAccounts(ctx context.Context, userID int64) ([]domain.AccountGroup, error) {
	var groups []domain.AccountGroup
	err := q.store.InTx(ctx, func(tx store.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		own, err := tx.ListAccountsByOwner(ctx, userID)
		if err != nil {
			return err
		}
		groups = append(groups, domain.AccountGroup{OwnerID: u.ID, OwnerName: u.Username, Accounts: own})

		contacts, err := contactsOf(ctx, tx, userID)
		if err != nil {
			return err
		}
		for _, c := range contacts {
			accs, err := tx.ListAccountsByOwner(ctx, c.ID)
			if err != nil {
				return err
			}
			groups = append(groups, domain.AccountGroup{OwnerID: c.ID, OwnerName: c.Username, Accounts: accs})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}
