package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrValidation          = errors.New("validation failed")
	ErrSelfTransfer        = errors.New("transfer to the same account is forbidden")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSelfContact         = errors.New("a user cannot add themselves as a contact")
	ErrDuplicateContact    = errors.New("contact already present")

	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrForbidden           = errors.New("forbidden")
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different payload")
	ErrIdempotencyConflict = errors.New("request with this idempotency key is in progress")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag"`
}

// ValidationError carries field-level details and matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a single-field ValidationError.
func Invalid(field, tag, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message, Tag: tag}}}
}
