package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a transfer by the owners of its two accounts.
type TransactionType string

const (
	SelfTransfer        TransactionType = "SELF_TRANSFER"
	BeneficiaryTransfer TransactionType = "BENEFICIARY_TRANSFER"
)

// DefaultAccountName is the account every user gets at registration.
const DefaultAccountName = "Pay My Buddy"

// ClassifyTransfer derives the transaction type from the two owner ids.
func ClassifyTransfer(senderOwnerID, receiverOwnerID int64) TransactionType {
	if senderOwnerID == receiverOwnerID {
		return SelfTransfer
	}
	return BeneficiaryTransfer
}

// User is a registered account holder. Contacts are held by the store as an
// edge set keyed by user id, not on this struct.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account is a named balance owned by exactly one user.
type Account struct {
	ID        int64           `json:"id"`
	OwnerID   int64           `json:"owner_id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Transaction is the immutable record of a committed transfer.
type Transaction struct {
	ID                int64           `json:"id"`
	SenderAccountID   int64           `json:"sender_account_id"`
	ReceiverAccountID int64           `json:"receiver_account_id"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description,omitempty"`
	Type              TransactionType `json:"type"`
	CreatedAt         time.Time       `json:"created_at"`
}

// TransactionView is a Transaction joined with both sides' account and owner names.
type TransactionView struct {
	Transaction
	SenderAccountName   string `json:"sender_account_name"`
	SenderID            int64  `json:"sender_id"`
	SenderUsername      string `json:"sender_username"`
	ReceiverAccountName string `json:"receiver_account_name"`
	ReceiverID          int64  `json:"receiver_id"`
	ReceiverUsername    string `json:"receiver_username"`
}

// AccountGroup lists the accounts of one owner, labelled with the owner's username.
type AccountGroup struct {
	OwnerID   int64     `json:"owner_id"`
	OwnerName string    `json:"owner_name"`
	Accounts  []Account `json:"accounts"`
}

// Profile is a user together with their accounts and contacts.
type Profile struct {
	User     User      `json:"user"`
	Accounts []Account `json:"accounts"`
	Contacts []User    `json:"contacts"`
}

// IdempotencyRecord binds a client-supplied key to the transfer it produced.
// TransactionID is zero while the key is reserved but not yet completed.
type IdempotencyRecord struct {
	Key           string    `json:"key"`
	RequestHash   string    `json:"request_hash"`
	TransactionID int64     `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}
