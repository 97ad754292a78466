package api

import (
	"time"

	"github.com/punchamoorthee/buddyledger/internal/domain"
	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyScale)
}

type userView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserView(u domain.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

func newUserViews(us []domain.User) []userView {
	out := make([]userView, 0, len(us))
	for _, u := range us {
		out = append(out, newUserView(u))
	}
	return out
}

type accountView struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Name      string    `json:"name"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

func newAccountView(a domain.Account) accountView {
	return accountView{ID: a.ID, OwnerID: a.OwnerID, Name: a.Name, Balance: money(a.Balance), CreatedAt: a.CreatedAt}
}

func newAccountViews(as []domain.Account) []accountView {
	out := make([]accountView, 0, len(as))
	for _, a := range as {
		out = append(out, newAccountView(a))
	}
	return out
}

type transactionView struct {
	ID                int64     `json:"id"`
	SenderAccountID   int64     `json:"sender_account_id"`
	ReceiverAccountID int64     `json:"receiver_account_id"`
	Amount            string    `json:"amount"`
	Description       string    `json:"description"`
	Type              string    `json:"type"`
	CreatedAt         time.Time `json:"created_at"`
}

func newTransactionView(t domain.Transaction) transactionView {
	return transactionView{
		ID:                t.ID,
		SenderAccountID:   t.SenderAccountID,
		ReceiverAccountID: t.ReceiverAccountID,
		Amount:            money(t.Amount),
		Description:       t.Description,
		Type:              string(t.Type),
		CreatedAt:         t.CreatedAt,
	}
}

type historyView struct {
	transactionView
	SenderAccountName   string `json:"sender_account_name"`
	SenderID            int64  `json:"sender_id"`
	SenderUsername      string `json:"sender_username"`
	ReceiverAccountName string `json:"receiver_account_name"`
	ReceiverID          int64  `json:"receiver_id"`
	ReceiverUsername    string `json:"receiver_username"`
}

func newHistoryViews(vs []domain.TransactionView) []historyView {
	out := make([]historyView, 0, len(vs))
	for _, v := range vs {
		out = append(out, historyView{
			transactionView:     newTransactionView(v.Transaction),
			SenderAccountName:   v.SenderAccountName,
			SenderID:            v.SenderID,
			SenderUsername:      v.SenderUsername,
			ReceiverAccountName: v.ReceiverAccountName,
			ReceiverID:          v.ReceiverID,
			ReceiverUsername:    v.ReceiverUsername,
		})
	}
	return out
}

type accountGroupView struct {
	OwnerID   int64         `json:"owner_id"`
	OwnerName string        `json:"owner_name"`
	Accounts  []accountView `json:"accounts"`
}

func newAccountGroupViews(gs []domain.AccountGroup) []accountGroupView {
	out := make([]accountGroupView, 0, len(gs))
	for _, g := range gs {
		out = append(out, accountGroupView{OwnerID: g.OwnerID, OwnerName: g.OwnerName, Accounts: newAccountViews(g.Accounts)})
	}
	return out
}

type profileView struct {
	User     userView      `json:"user"`
	Accounts []accountView `json:"accounts"`
	Contacts []userView    `json:"contacts"`
}

func newProfileView(p *domain.Profile) profileView {
	return profileView{
		User:     newUserView(p.User),
		Accounts: newAccountViews(p.Accounts),
		Contacts: newUserViews(p.Contacts),
	}
}

type tokenView struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        userView  `json:"user"`
}
