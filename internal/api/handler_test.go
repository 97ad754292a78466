package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/punchamoorthee/buddyledger/internal/auth"
	"github.com/punchamoorthee/buddyledger/internal/service"
	"github.com/punchamoorthee/buddyledger/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	t      *testing.T
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemory()
	users := service.NewUserService(st, nil)
	users.HashCost = bcrypt.MinCost
	h := NewHandler(Deps{
		Users:     users,
		Accounts:  service.NewAccountService(st, nil),
		Contacts:  service.NewContactGraph(st, nil),
		Transfers: service.NewTransferService(st, nil),
		Queries:   service.NewQueryService(st),
		Tokens:    auth.NewTokenIssuer("test-secret", time.Hour),
	})
	return &testServer{t: t, router: NewRouter(h)}
}

func (s *testServer) do(method, path, token string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				s.t.Fatal(err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, want, rr.Body.String())
	}
}

type session struct {
	token     string
	userID    int64
	email     string
	accountID int64
}

func (s *testServer) signUp(username string) session {
	s.t.Helper()
	email := username + "@example.com"
	rr := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "email": email, "password": "secret1", "confirm_password": "secret1",
	}, nil)
	expectStatus(s.t, rr, http.StatusCreated)

	rr = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "secret1"}, nil)
	expectStatus(s.t, rr, http.StatusOK)
	var tok tokenView
	decode(s.t, rr, &tok)

	rr = s.do(http.MethodGet, "/api/v1/accounts", tok.AccessToken, nil, nil)
	expectStatus(s.t, rr, http.StatusOK)
	var accs []accountView
	decode(s.t, rr, &accs)
	if len(accs) != 1 {
		s.t.Fatalf("expected default account, got %+v", accs)
	}
	return session{token: tok.AccessToken, userID: tok.User.ID, email: email, accountID: accs[0].ID}
}

func (s *testServer) deposit(sess session, amount string) {
	s.t.Helper()
	rr := s.do(http.MethodPost, fmt.Sprintf("/api/v1/accounts/%d/deposit", sess.accountID), sess.token,
		fmt.Sprintf(`{"amount": %q}`, amount), nil)
	expectStatus(s.t, rr, http.StatusOK)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(http.MethodGet, "/health", "", nil, nil)
	expectStatus(t, rr, http.StatusOK)
	if rr.Header().Get(requestIDHeader) == "" {
		t.Fatal("missing request id header")
	}

	rr = s.do(http.MethodGet, "/metrics", "", nil, nil)
	expectStatus(t, rr, http.StatusOK)
	if !bytes.Contains(rr.Body.Bytes(), []byte("ledger_http_requests_total")) {
		t.Fatal("http metrics not exported")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	s.signUp("alice")

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{
			name:   "duplicate email",
			path:   "/api/v1/auth/register",
			body:   map[string]string{"username": "alice2", "email": "Alice@example.com", "password": "secret1", "confirm_password": "secret1"},
			status: http.StatusConflict,
		},
		{
			name:   "invalid registration",
			path:   "/api/v1/auth/register",
			body:   map[string]string{"username": "a", "email": "nope", "password": "1", "confirm_password": "2"},
			status: http.StatusBadRequest,
		},
		{
			name:   "malformed json",
			path:   "/api/v1/auth/register",
			body:   "{",
			status: http.StatusBadRequest,
		},
		{
			name:   "wrong password",
			path:   "/api/v1/auth/login",
			body:   map[string]string{"email": "alice@example.com", "password": "wrong"},
			status: http.StatusUnauthorized,
		},
		{
			name:   "unknown user",
			path:   "/api/v1/auth/login",
			body:   map[string]string{"email": "nobody@example.com", "password": "secret1"},
			status: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do(http.MethodPost, tt.path, "", tt.body, nil), tt.status)
		})
	}
}

func TestValidationErrorFields(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "alice", "email": "bad", "password": "secret1", "confirm_password": "secret1"}, nil)
	expectStatus(t, rr, http.StatusBadRequest)

	var resp errorResponse
	decode(t, rr, &resp)
	if len(resp.Fields) != 1 || resp.Fields[0].Field != "email" || resp.Fields[0].Tag != "email" {
		t.Fatalf("unexpected fields: %+v", resp.Fields)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do(http.MethodGet, "/api/v1/me", tt.token, nil, nil), http.StatusUnauthorized)
		})
	}
}

func TestAccountOwnership(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice")
	bob := s.signUp("bob")

	expectStatus(t, s.do(http.MethodGet, fmt.Sprintf("/api/v1/accounts/%d", alice.accountID), alice.token, nil, nil), http.StatusOK)
	expectStatus(t, s.do(http.MethodGet, fmt.Sprintf("/api/v1/accounts/%d", alice.accountID), bob.token, nil, nil), http.StatusForbidden)
	expectStatus(t, s.do(http.MethodGet, "/api/v1/accounts/999", alice.token, nil, nil), http.StatusNotFound)
	expectStatus(t, s.do(http.MethodPost, fmt.Sprintf("/api/v1/accounts/%d/deposit", alice.accountID), bob.token, `{"amount":"5"}`, nil), http.StatusForbidden)

	rr := s.do(http.MethodPost, "/api/v1/accounts", alice.token, map[string]string{"name": "Savings"}, nil)
	expectStatus(t, rr, http.StatusCreated)
	var acc accountView
	decode(t, rr, &acc)
	if acc.Balance != "0.00" || acc.Name != "Savings" {
		t.Fatalf("unexpected account: %+v", acc)
	}
	expectStatus(t, s.do(http.MethodPost, "/api/v1/accounts", alice.token, map[string]string{"name": "Savings"}, nil), http.StatusConflict)
	expectStatus(t, s.do(http.MethodDelete, fmt.Sprintf("/api/v1/accounts/%d", acc.ID), alice.token, nil, nil), http.StatusNoContent)
}

func TestDepositValidation(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice")
	path := fmt.Sprintf("/api/v1/accounts/%d/deposit", alice.accountID)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "zero", body: `{"amount":"0"}`, status: http.StatusBadRequest},
		{name: "negative", body: `{"amount":-3}`, status: http.StatusBadRequest},
		{name: "three decimals", body: `{"amount":"1.234"}`, status: http.StatusBadRequest},
		{name: "over cap", body: `{"amount":"10000000.01"}`, status: http.StatusBadRequest},
		{name: "tiny exponent", body: `{"amount":"1e-100000000"}`, status: http.StatusBadRequest},
		{name: "huge exponent", body: `{"amount":"1e100000000"}`, status: http.StatusBadRequest},
		{name: "numeric literal", body: `{"amount":12.5}`, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do(http.MethodPost, path, alice.token, tt.body, nil), tt.status)
		})
	}

	rr := s.do(http.MethodGet, fmt.Sprintf("/api/v1/accounts/%d", alice.accountID), alice.token, nil, nil)
	var acc accountView
	decode(t, rr, &acc)
	if acc.Balance != "12.50" {
		t.Fatalf("balance=%s want=12.50", acc.Balance)
	}
}

func TestTransferFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice")
	bob := s.signUp("bob")
	s.deposit(alice, "100.00")

	transfer := func(body string, key string) *httptest.ResponseRecorder {
		var headers map[string]string
		if key != "" {
			headers = map[string]string{idempotencyKeyHeader: key}
		}
		return s.do(http.MethodPost, "/api/v1/transfers", alice.token, body, headers)
	}
	toBob := fmt.Sprintf(`{"sender_account_id":%d,"receiver_account_id":%d,"amount":"25.00","description":"dinner"}`, alice.accountID, bob.accountID)

	// Not a contact yet.
	expectStatus(t, transfer(toBob, ""), http.StatusForbidden)

	rr := s.do(http.MethodPost, "/api/v1/contacts", alice.token, map[string]string{"email": bob.email}, nil)
	expectStatus(t, rr, http.StatusCreated)
	expectStatus(t, s.do(http.MethodPost, "/api/v1/contacts", bob.token, map[string]string{"email": alice.email}, nil), http.StatusConflict)
	expectStatus(t, s.do(http.MethodPost, "/api/v1/contacts", alice.token, map[string]string{"email": alice.email}, nil), http.StatusUnprocessableEntity)

	rr = transfer(toBob, "k-1")
	expectStatus(t, rr, http.StatusCreated)
	var created transactionView
	decode(t, rr, &created)
	if created.Type != "BENEFICIARY_TRANSFER" || created.Amount != "25.00" {
		t.Fatalf("unexpected transaction: %+v", created)
	}

	rr = transfer(toBob, "k-1")
	expectStatus(t, rr, http.StatusOK)
	var replay transactionView
	decode(t, rr, &replay)
	if replay.ID != created.ID {
		t.Fatalf("replay id=%d want=%d", replay.ID, created.ID)
	}

	other := fmt.Sprintf(`{"sender_account_id":%d,"receiver_account_id":%d,"amount":"1.00"}`, alice.accountID, bob.accountID)
	expectStatus(t, transfer(other, "k-1"), http.StatusUnprocessableEntity)

	tooMuch := fmt.Sprintf(`{"sender_account_id":%d,"receiver_account_id":%d,"amount":"75.01"}`, alice.accountID, bob.accountID)
	expectStatus(t, transfer(tooMuch, ""), http.StatusUnprocessableEntity)

	self := fmt.Sprintf(`{"sender_account_id":%d,"receiver_account_id":%d,"amount":"1.00"}`, alice.accountID, alice.accountID)
	expectStatus(t, transfer(self, ""), http.StatusUnprocessableEntity)

	fromBob := fmt.Sprintf(`{"sender_account_id":%d,"receiver_account_id":%d,"amount":"1.00"}`, bob.accountID, alice.accountID)
	expectStatus(t, transfer(fromBob, ""), http.StatusForbidden)

	rr = s.do(http.MethodGet, "/api/v1/transactions?limit=10", bob.token, nil, nil)
	expectStatus(t, rr, http.StatusOK)
	var history []historyView
	decode(t, rr, &history)
	if len(history) != 1 || history[0].SenderUsername != "alice" || history[0].ReceiverUsername != "bob" {
		t.Fatalf("unexpected history: %+v", history)
	}
	expectStatus(t, s.do(http.MethodGet, "/api/v1/transactions?limit=x", bob.token, nil, nil), http.StatusBadRequest)

	rr = s.do(http.MethodGet, "/api/v1/accounts/reachable", alice.token, nil, nil)
	expectStatus(t, rr, http.StatusOK)
	var groups []accountGroupView
	decode(t, rr, &groups)
	if len(groups) != 2 || groups[0].OwnerName != "alice" || groups[1].OwnerName != "bob" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if groups[0].Accounts[0].Balance != "75.00" || groups[1].Accounts[0].Balance != "25.00" {
		t.Fatalf("unexpected balances: %+v", groups)
	}

	// History blocks deletion.
	expectStatus(t, s.do(http.MethodDelete, fmt.Sprintf("/api/v1/accounts/%d", bob.accountID), bob.token, nil, nil), http.StatusConflict)
}

func TestProfileAndContacts(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice")
	bob := s.signUp("bob")
	expectStatus(t, s.do(http.MethodPost, "/api/v1/contacts", alice.token, map[string]string{"email": bob.email}, nil), http.StatusCreated)

	rr := s.do(http.MethodGet, "/api/v1/me", bob.token, nil, nil)
	expectStatus(t, rr, http.StatusOK)
	var p profileView
	decode(t, rr, &p)
	if p.User.ID != bob.userID || len(p.Contacts) != 1 || p.Contacts[0].ID != alice.userID {
		t.Fatalf("unexpected profile: %+v", p)
	}

	expectStatus(t, s.do(http.MethodDelete, fmt.Sprintf("/api/v1/contacts/%d", alice.userID), bob.token, nil, nil), http.StatusNoContent)
	rr = s.do(http.MethodGet, "/api/v1/contacts", alice.token, nil, nil)
	expectStatus(t, rr, http.StatusOK)
	var contacts []userView
	decode(t, rr, &contacts)
	if len(contacts) != 0 {
		t.Fatalf("contact survived removal: %+v", contacts)
	}
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice")

	expectStatus(t, s.do(http.MethodPut, "/api/v1/me/password", alice.token, map[string]string{
		"current_password": "wrong", "new_password": "secret2", "confirm_new_password": "secret2",
	}, nil), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodPut, "/api/v1/me/password", alice.token, map[string]string{
		"current_password": "secret1", "new_password": "secret2", "confirm_new_password": "secret2",
	}, nil), http.StatusNoContent)
	expectStatus(t, s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": alice.email, "password": "secret2",
	}, nil), http.StatusOK)
}
