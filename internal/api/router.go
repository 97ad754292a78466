package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID, recoverer, instrument)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	apiV1.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)

	authed := apiV1.NewRoute().Subrouter()
	authed.Use(h.authenticate)

	authed.HandleFunc("/me", h.Me).Methods(http.MethodGet)
	authed.HandleFunc("/me/password", h.ChangePassword).Methods(http.MethodPut)

	authed.HandleFunc("/accounts", h.ListAccounts).Methods(http.MethodGet)
	authed.HandleFunc("/accounts", h.CreateAccount).Methods(http.MethodPost)
	authed.HandleFunc("/accounts/reachable", h.ListReachableAccounts).Methods(http.MethodGet)
	authed.HandleFunc("/accounts/{id:[0-9]+}", h.GetAccount).Methods(http.MethodGet)
	authed.HandleFunc("/accounts/{id:[0-9]+}", h.DeleteAccount).Methods(http.MethodDelete)
	authed.HandleFunc("/accounts/{id:[0-9]+}/deposit", h.Deposit).Methods(http.MethodPost)

	authed.HandleFunc("/contacts", h.ListContacts).Methods(http.MethodGet)
	authed.HandleFunc("/contacts", h.AddContact).Methods(http.MethodPost)
	authed.HandleFunc("/contacts/{id:[0-9]+}", h.RemoveContact).Methods(http.MethodDelete)

	authed.Handle("/transfers", h.rateLimited("transfers", http.HandlerFunc(h.CreateTransfer))).Methods(http.MethodPost)
	authed.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)

	return r
}
