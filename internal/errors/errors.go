package errors

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	InvalidInput         ErrorCode = "invalid_input"
	InvalidAmount        ErrorCode = "invalid_amount"
	SelfTransfer         ErrorCode = "self_transfer"
	AccountNotFound      ErrorCode = "account_not_found"
	AccessDenied         ErrorCode = "access_denied"
	AccountNotActive     ErrorCode = "account_not_active"
	InsufficientFunds    ErrorCode = "insufficient_funds"
	Timeout              ErrorCode = "timeout"
	DuplicateAccount     ErrorCode = "duplicate_account"
	DuplicateTransaction ErrorCode = "duplicate_transaction"
	StorageFailure       ErrorCode = "storage_failure"
	InternalError        ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy so the predefined errors stay untouched.
func (e *AppError) WithDetails(details string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// HTTPStatus maps an error code to the status returned by the HTTP layer.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case InvalidInput, InvalidAmount, SelfTransfer:
		return http.StatusBadRequest
	case AccessDenied:
		return http.StatusForbidden
	case AccountNotFound:
		return http.StatusNotFound
	case DuplicateAccount, DuplicateTransaction:
		return http.StatusConflict
	case AccountNotActive, InsufficientFunds:
		return http.StatusUnprocessableEntity
	case Timeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors for common cases
var (
	ErrInvalidAmount          = NewAppError(InvalidAmount, "amount must be positive and expressible in the currency's minor unit")
	ErrSelfTransfer           = NewAppError(SelfTransfer, "source and destination accounts must differ")
	ErrAccountNotFound        = NewAppError(AccountNotFound, "account not found")
	ErrAccessDenied           = NewAppError(AccessDenied, "requester does not own the source account")
	ErrInsufficientFunds      = NewAppError(InsufficientFunds, "insufficient funds on source account")
	ErrLockTimeout            = NewAppError(Timeout, "timed out waiting for account lock")
	ErrDuplicateAccount       = NewAppError(DuplicateAccount, "account already exists")
	ErrDuplicateTransaction   = NewAppError(DuplicateTransaction, "transaction already processed")
	ErrEntryImmutable         = NewAppError(InvalidInput, "ledger entry is no longer pending and cannot change status")
	ErrCannotBeginTransaction = NewAppError(InternalError, "executor cannot begin a transaction")
)
