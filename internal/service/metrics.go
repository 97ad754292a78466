package service

import (
	"context"
	"errors"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/punchamoorthee/buddyledger/internal/events"
)

var (
	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transfers_total",
		Help: "Committed transfers, labeled by transaction type",
	}, []string{"type"})

	transferFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transfer_failures_total",
		Help: "Rejected or failed transfers, labeled by reason",
	}, []string{"reason"})

	depositsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_deposits_total",
		Help: "Committed deposits",
	})
)

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrSelfTransfer):
		return "self_transfer"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrIdempotencyMismatch):
		return "idempotency_mismatch"
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return "idempotency_conflict"
	default:
		return "internal"
	}
}

// publish hands a committed event to the broker. Delivery failures are logged only.
func publish(ctx context.Context, pub events.Publisher, e events.Event) {
	if err := pub.Publish(ctx, e); err != nil {
		log.Printf("level=warn component=events msg=\"publish failed\" type=%s id=%s err=%v", e.Type, e.ID, err)
	}
}

func orNoop(pub events.Publisher) events.Publisher {
	if pub == nil {
		return events.NoopPublisher{}
	}
	return pub
}
