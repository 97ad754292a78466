package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"

	"github.com/punchamoorthee/buddyledger/internal/domain"
)

const idempotencyKeyHeader = "Idempotency-Key"

// authorizeTransfer requires the sender account to belong to the caller and the
// receiver account to belong to the caller or one of their contacts.
func (h *Handler) authorizeTransfer(ctx context.Context, req domain.TransferRequest) error {
	if _, err := h.ownedAccount(ctx, req.SenderAccountID); err != nil {
		return err
	}
	receiver, err := h.accounts.GetAccount(ctx, req.ReceiverAccountID)
	if err != nil {
		return err
	}
	caller := userIDFrom(ctx)
	if receiver.OwnerID == caller {
		return nil
	}
	linked, err := h.contacts.IsContact(ctx, caller, receiver.OwnerID)
	if err != nil {
		return err
	}
	if !linked {
		return fmt.Errorf("account %d is not reachable: %w", receiver.ID, domain.ErrForbidden)
	}
	return nil
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Unreadable request body")
		return
	}
	var req domain.TransferRequest
	if !decodeAndValidate(w, body, &req) {
		return
	}
	if err := h.authorizeTransfer(r.Context(), req); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	// The hash binds an Idempotency-Key to the caller and the exact payload.
	hash := sha256.Sum256(append([]byte(strconv.FormatInt(userIDFrom(r.Context()), 10)+":"), body...))
	key := r.Header.Get(idempotencyKeyHeader)

	t, replayed, err := h.transfers.CreateTransferIdempotent(r.Context(), key, hex.EncodeToString(hash[:]), req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/transactions/%d", t.ID))
	if replayed {
		respondWithJSON(w, http.StatusOK, newTransactionView(*t))
		return
	}
	respondWithJSON(w, http.StatusCreated, newTransactionView(*t))
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	views, err := h.queries.ListTransactionsForUser(r.Context(), userIDFrom(r.Context()), limit)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newHistoryViews(views))
}
