package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/punchamoorthee/buddyledger/internal/domain"
)

// ownedAccount loads an account and checks it belongs to the caller.
func (h *Handler) ownedAccount(ctx context.Context, id int64) (*domain.Account, error) {
	acc, err := h.accounts.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.OwnerID != userIDFrom(ctx) {
		return nil, fmt.Errorf("account %d: %w", id, domain.ErrForbidden)
	}
	return acc, nil
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accs, err := h.accounts.ListAccountsForUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newAccountViews(accs))
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	acc, err := h.accounts.CreateAccount(r.Context(), userIDFrom(r.Context()), req.Name)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/accounts/%d", acc.ID))
	respondWithJSON(w, http.StatusCreated, newAccountView(*acc))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acc, err := h.ownedAccount(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newAccountView(*acc))
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.ownedAccount(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if err := h.accounts.DeleteAccount(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.DepositRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if _, err := h.ownedAccount(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	acc, err := h.accounts.Deposit(r.Context(), id, req.Amount)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newAccountView(*acc))
}

func (h *Handler) ListReachableAccounts(w http.ResponseWriter, r *http.Request) {
	groups, err := h.queries.ListReachableAccounts(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newAccountGroupViews(groups))
}
