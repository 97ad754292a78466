package domain

import "github.com/shopspring/decimal"

// TransferRequest moves Amount from the sender account to the receiver account.
type TransferRequest struct {
	SenderAccountID   int64           `json:"sender_account_id" validate:"required,gt=0"`
	ReceiverAccountID int64           `json:"receiver_account_id" validate:"required,gt=0"`
	Amount            decimal.Decimal `json:"amount" validate:"money"`
	Description       string          `json:"description" validate:"max=255"`
}

type CreateAccountRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

type DepositRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"money,money_lte=10000000"`
}

type ContactRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type PasswordChangeRequest struct {
	CurrentPassword    string `json:"current_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required,min=6"`
	ConfirmNewPassword string `json:"confirm_new_password" validate:"required,eqfield=NewPassword"`
}
