package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Routing keys on the ledger exchange.
const (
	TransferCreated = "transfer.created"
	AccountCreated  = "account.created"
	ContactAdded    = "contact.added"
)

// Event is the envelope published for every committed state change.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type TransferPayload struct {
	TransactionID     int64                  `json:"transaction_id"`
	SenderAccountID   int64                  `json:"sender_account_id"`
	ReceiverAccountID int64                  `json:"receiver_account_id"`
	Amount            decimal.Decimal        `json:"amount"`
	Type              domain.TransactionType `json:"type"`
}

type AccountPayload struct {
	AccountID int64  `json:"account_id"`
	OwnerID   int64  `json:"owner_id"`
	Name      string `json:"name"`
}

type ContactPayload struct {
	UserID    int64 `json:"user_id"`
	ContactID int64 `json:"contact_id"`
}

func newEvent(kind string, at time.Time, payload any) Event {
	return Event{ID: uuid.New(), Type: kind, OccurredAt: at.UTC(), Payload: payload}
}

func NewTransferCreated(t *domain.Transaction) Event {
	return newEvent(TransferCreated, t.CreatedAt, TransferPayload{
		TransactionID:     t.ID,
		SenderAccountID:   t.SenderAccountID,
		ReceiverAccountID: t.ReceiverAccountID,
		Amount:            t.Amount,
		Type:              t.Type,
	})
}

func NewAccountCreated(a *domain.Account) Event {
	return newEvent(AccountCreated, a.CreatedAt, AccountPayload{AccountID: a.ID, OwnerID: a.OwnerID, Name: a.Name})
}

func NewContactAdded(userID, contactID int64, at time.Time) Event {
	return newEvent(ContactAdded, at, ContactPayload{UserID: userID, ContactID: contactID})
}

// Publisher delivers events after the unit of work that produced them has committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, e Event) error {
	log.Printf("level=debug component=events mode=noop msg=\"publish skipped\" type=%s id=%s", e.Type, e.ID)
	return nil
}

func (NoopPublisher) Close() {}
