package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/punchamoorthee/buddyledger/internal/domain"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	u, err := h.users.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			respondWithError(w, http.StatusConflict, "Email already registered")
			return
		}
		respondWithServiceError(w, r, err)
		return
	}
	log.Printf("level=info component=api msg=\"user registered\" user_id=%d", u.ID)
	respondWithJSON(w, http.StatusCreated, newUserView(*u))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	token, expires, err := h.tokens.Issue(u.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tokenView{AccessToken: token, TokenType: "Bearer", ExpiresAt: expires, User: newUserView(*u)})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.users.GetProfile(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newProfileView(p))
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordChangeRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := h.users.ChangePassword(r.Context(), userIDFrom(r.Context()), req); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
