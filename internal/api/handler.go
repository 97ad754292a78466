package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/buddyledger/internal/auth"
	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/punchamoorthee/buddyledger/internal/ratelimit"
	"github.com/punchamoorthee/buddyledger/internal/service"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	users     *service.UserService
	accounts  *service.AccountService
	contacts  *service.ContactGraph
	transfers *service.TransferService
	queries   *service.QueryService
	tokens    *auth.TokenIssuer
	limiter   *ratelimit.Limiter
	ping      func(ctx context.Context) error
}

// Deps are the collaborators a Handler serves. Limiter and Ping may be nil.
type Deps struct {
	Users     *service.UserService
	Accounts  *service.AccountService
	Contacts  *service.ContactGraph
	Transfers *service.TransferService
	Queries   *service.QueryService
	Tokens    *auth.TokenIssuer
	Limiter   *ratelimit.Limiter
	Ping      func(ctx context.Context) error
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		users:     d.Users,
		accounts:  d.Accounts,
		contacts:  d.Contacts,
		transfers: d.Transfers,
		queries:   d.Queries,
		tokens:    d.Tokens,
		limiter:   d.Limiter,
		ping:      d.Ping,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			log.Printf("level=error component=api msg=\"health check failed\" err=%v", err)
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondWithServiceError maps domain errors onto HTTP status codes.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: domain.ErrValidation.Error(), Fields: verr.Fields})
	case errors.Is(err, domain.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrDuplicateContact):
		respondWithError(w, http.StatusConflict, domain.ErrDuplicateContact.Error())
	case errors.Is(err, domain.ErrIdempotencyConflict):
		respondWithError(w, http.StatusConflict, "Request processing in progress")
	case errors.Is(err, domain.ErrConflict):
		respondWithError(w, http.StatusConflict, "Resource already exists or is in use")
	case errors.Is(err, domain.ErrSelfTransfer):
		respondWithError(w, http.StatusUnprocessableEntity, domain.ErrSelfTransfer.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		respondWithError(w, http.StatusUnprocessableEntity, "Insufficient funds")
	case errors.Is(err, domain.ErrSelfContact):
		respondWithError(w, http.StatusUnprocessableEntity, domain.ErrSelfContact.Error())
	case errors.Is(err, domain.ErrIdempotencyMismatch):
		respondWithError(w, http.StatusUnprocessableEntity, "Key reuse with mismatched payload")
	case errors.Is(err, domain.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "Forbidden")
	default:
		log.Printf("level=error component=api msg=\"request failed\" method=%s path=%s request_id=%s err=%v",
			r.Method, r.URL.Path, requestIDFrom(r.Context()), err)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// readBody returns the raw request body, bounded to maxBodyBytes.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}

// decodeAndValidate unmarshals body into dst and runs its validate tags.
// It writes the error response itself and reports whether the caller may continue.
func decodeAndValidate(w http.ResponseWriter, body []byte, dst interface{}) bool {
	if err := json.Unmarshal(body, dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return false
	}
	if err := domain.Validate(dst); err != nil {
		var verr *domain.ValidationError
		errors.As(err, &verr)
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: domain.ErrValidation.Error(), Fields: verr.Fields})
		return false
	}
	return true
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := readBody(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Unreadable request body")
		return false
	}
	return decodeAndValidate(w, body, dst)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}
