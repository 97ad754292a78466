package api

import (
	"net/http"

	"github.com/punchamoorthee/buddyledger/internal/domain"
)

func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	users, err := h.contacts.ListContacts(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newUserViews(users))
}

func (h *Handler) AddContact(w http.ResponseWriter, r *http.Request) {
	var req domain.ContactRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	u, err := h.contacts.AddContact(r.Context(), userIDFrom(r.Context()), req.Email)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, newUserView(*u))
}

func (h *Handler) RemoveContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.contacts.RemoveContact(r.Context(), userIDFrom(r.Context()), id); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
