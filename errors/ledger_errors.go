package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/mezonai/credits/jsonx"
)

// LedgerErrorCode represents standardized error codes for ledger operations
type LedgerErrorCode string

const (
	// General errors
	ErrCodeInternal LedgerErrorCode = "internal_error"

	// Validation errors
	ErrCodeInvalidOperation LedgerErrorCode = "invalid_operation"

	// Business logic errors
	ErrCodeInsufficientFunds LedgerErrorCode = "insufficient_funds"
	ErrCodeNotFound          LedgerErrorCode = "not_found"
	ErrCodeAlreadyExists     LedgerErrorCode = "already_exists"
	ErrCodeDuplicateRequest  LedgerErrorCode = "duplicate_request"

	// Transient errors
	ErrCodeConflict LedgerErrorCode = "conflict"
	ErrCodeBusy     LedgerErrorCode = "busy"
)

// LedgerError represents a standardized ledger error
type LedgerError struct {
	Code    LedgerErrorCode `json:"code"`
	Message string          `json:"message"`
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	err, _ := jsonx.Marshal(LedgerError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(err)
}

// Is matches on code only, so errors.Is(err, ErrNotFound) holds for any
// not_found error regardless of its message.
func (e *LedgerError) Is(target error) bool {
	var t *LedgerError
	if !stderrors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Error message constants - user-friendly and concise
const (
	ErrMsgInvalidAddress        = "Wallet address is invalid"
	ErrMsgInvalidAmount         = "Amount is invalid or zero"
	ErrMsgSelfTransfer          = "Cannot send credits to your own wallet"
	ErrMsgInvalidIdempotencyKey = "Idempotency key is missing or too long"
	ErrMsgInvalidPageSize       = "Page size is out of range"
	ErrMsgInvalidCursor         = "Page cursor is invalid"
	ErrMsgInvalidMemo           = "Memo is too long or contains invalid characters"
	ErrMsgKeyReused             = "Idempotency key was already used for a different request"
	ErrMsgInsufficientFunds     = "Not enough balance in your wallet"
	ErrMsgAccountNotFound       = "Account does not exist"
	ErrMsgAccountExists         = "Account already exists"
	ErrMsgTransactionNotFound   = "Transaction could not be found"
	ErrMsgConflict              = "Account was modified concurrently"
	ErrMsgBusy                  = "Ledger is busy, please retry with the same idempotency key"
	ErrMsgInternal              = "Server error, please try again"
)

var (
	ErrInvalidOperation  = &LedgerError{Code: ErrCodeInvalidOperation, Message: "invalid operation"}
	ErrInsufficientFunds = &LedgerError{Code: ErrCodeInsufficientFunds, Message: ErrMsgInsufficientFunds}
	ErrNotFound          = &LedgerError{Code: ErrCodeNotFound, Message: "not found"}
	ErrAlreadyExists     = &LedgerError{Code: ErrCodeAlreadyExists, Message: ErrMsgAccountExists}
	ErrDuplicateRequest  = &LedgerError{Code: ErrCodeDuplicateRequest, Message: "duplicate request"}
	ErrConflict          = &LedgerError{Code: ErrCodeConflict, Message: ErrMsgConflict}
	ErrBusy              = &LedgerError{Code: ErrCodeBusy, Message: ErrMsgBusy}
	ErrInternal          = &LedgerError{Code: ErrCodeInternal, Message: ErrMsgInternal}
)

// NewError creates a new LedgerError and returns it as error interface
func NewError(code LedgerErrorCode, message string) error {
	return &LedgerError{
		Code:    code,
		Message: message,
	}
}

func Errorf(code LedgerErrorCode, format string, args ...interface{}) error {
	return &LedgerError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Code returns the taxonomy code carried anywhere in err's chain, or
// internal_error for errors that did not originate in the ledger.
func Code(err error) LedgerErrorCode {
	if err == nil {
		return ""
	}
	var le *LedgerError
	if stderrors.As(err, &le) {
		return le.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether the caller may safely repeat the request
// with the same idempotency key.
func IsRetryable(err error) bool {
	switch Code(err) {
	case ErrCodeBusy, ErrCodeConflict:
		return true
	}
	return false
}

// Message returns the user-facing message. Internal failures are masked.
func Message(err error) string {
	var le *LedgerError
	if stderrors.As(err, &le) && le.Code != ErrCodeInternal {
		return le.Message
	}
	return ErrMsgInternal
}
