package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/punchamoorthee/buddyledger/internal/events"
	"github.com/punchamoorthee/buddyledger/internal/store"
	"github.com/shopspring/decimal"
)

const maxDescription = 255

type TransferService struct {
	store  store.Store
	events events.Publisher
	now    func() time.Time
}

func NewTransferService(s store.Store, pub events.Publisher) *TransferService {
	return &TransferService{store: s, events: orNoop(pub), now: time.Now}
}

func checkTransfer(req domain.TransferRequest) error {
	if err := domain.CheckAmount("amount", req.Amount, decimal.Zero); err != nil {
		return err
	}
	if utf8.RuneCountInString(req.Description) > maxDescription {
		return domain.Invalid("description", "max", "must be at most 255 characters")
	}
	return nil
}

// CreateTransfer moves req.Amount from the sender to the receiver account and
// records the Transaction. Either every write commits or none does.
func (s *TransferService) CreateTransfer(ctx context.Context, req domain.TransferRequest) (*domain.Transaction, error) {
	if err := checkTransfer(req); err != nil {
		transferFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	var out *domain.Transaction
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = s.execute(ctx, tx, req)
		return err
	})
	if err != nil {
		transferFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, fmt.Errorf("transfer: %w", err)
	}

	s.committed(ctx, out)
	return out, nil
}

// CreateTransferIdempotent behaves like CreateTransfer but binds the result to
// key. A retry with the same key and request hash returns the original
// Transaction with replayed set; a retry with a different hash is rejected.
func (s *TransferService) CreateTransferIdempotent(ctx context.Context, key, requestHash string, req domain.TransferRequest) (*domain.Transaction, bool, error) {
	if key == "" {
		t, err := s.CreateTransfer(ctx, req)
		return t, false, err
	}
	if err := checkTransfer(req); err != nil {
		transferFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, false, err
	}

	var (
		out      *domain.Transaction
		replayed bool
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		rec, err := tx.GetIdempotencyKey(ctx, key)
		switch {
		case err == nil:
			if rec.RequestHash != requestHash {
				return fmt.Errorf("key %q: %w", key, domain.ErrIdempotencyMismatch)
			}
			if rec.TransactionID == 0 {
				return fmt.Errorf("key %q: %w", key, domain.ErrIdempotencyConflict)
			}
			out, err = tx.GetTransaction(ctx, rec.TransactionID)
			replayed = true
			return err
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		rec = &domain.IdempotencyRecord{Key: key, RequestHash: requestHash, CreatedAt: s.now().UTC()}
		if err := tx.ReserveIdempotencyKey(ctx, rec); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return fmt.Errorf("key %q: %w", key, domain.ErrIdempotencyConflict)
			}
			return err
		}

		out, err = s.execute(ctx, tx, req)
		if err != nil {
			return err
		}
		return tx.CompleteIdempotencyKey(ctx, key, out.ID)
	})
	if err != nil {
		transferFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, false, fmt.Errorf("transfer: %w", err)
	}

	if replayed {
		log.Printf("level=info component=transfer msg=\"idempotent replay\" key=%s id=%d", key, out.ID)
		return out, true, nil
	}
	s.committed(ctx, out)
	return out, false, nil
}

// execute runs inside the caller's unit of work. Both rows are locked in
// ascending id order before any balance is read.
func (s *TransferService) execute(ctx context.Context, tx store.Tx, req domain.TransferRequest) (*domain.Transaction, error) {
	locked, err := tx.LockAccounts(ctx, req.SenderAccountID, req.ReceiverAccountID)
	if err != nil {
		return nil, err
	}
	sender, receiver := locked[req.SenderAccountID], locked[req.ReceiverAccountID]

	if sender.ID == receiver.ID {
		return nil, fmt.Errorf("account %d: %w", sender.ID, domain.ErrSelfTransfer)
	}
	if sender.Balance.LessThan(req.Amount) {
		return nil, fmt.Errorf("account %d has %s, needs %s: %w",
			sender.ID, sender.Balance.StringFixed(domain.MoneyScale), req.Amount.StringFixed(domain.MoneyScale), domain.ErrInsufficientBalance)
	}

	t := &domain.Transaction{
		SenderAccountID:   sender.ID,
		ReceiverAccountID: receiver.ID,
		Amount:            req.Amount,
		Description:       req.Description,
		Type:              domain.ClassifyTransfer(sender.OwnerID, receiver.OwnerID),
		CreatedAt:         s.now().UTC(),
	}
	if err := tx.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}
	if err := tx.UpdateBalance(ctx, sender.ID, sender.Balance.Sub(req.Amount)); err != nil {
		return nil, err
	}
	if err := tx.UpdateBalance(ctx, receiver.ID, receiver.Balance.Add(req.Amount)); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TransferService) committed(ctx context.Context, t *domain.Transaction) {
	transfersTotal.WithLabelValues(string(t.Type)).Inc()
	log.Printf("level=info component=transfer msg=\"transfer committed\" id=%d sender=%d receiver=%d amount=%s type=%s",
		t.ID, t.SenderAccountID, t.ReceiverAccountID, t.Amount.StringFixed(domain.MoneyScale), t.Type)
	publish(ctx, s.events, events.NewTransferCreated(t))
}
