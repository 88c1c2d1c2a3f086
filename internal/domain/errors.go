package domain

import "errors"

// Error categories. Services return *Error values that unwrap to one of these
// so handlers can pick a status code with errors.Is.
var (
	ErrNotFound            = errors.New("Record not found")
	ErrInvalidState        = errors.New("Invalid state")
	ErrInsufficientBalance = errors.New("Insufficient balance")
	ErrInvalidCredential   = errors.New("Invalid credentials")
	ErrRuleNotFound        = errors.New("Portfolio rule not found")
	ErrTransientStore      = errors.New("Store temporarily unavailable")
	ErrDataIntegrity       = errors.New("Investor data integrity error")
	ErrForbidden           = errors.New("Forbidden")
)

// Error pairs a user-facing message with its category.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// NewError returns an error whose message is shown to callers as-is.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
