package domain

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error without a ledger code.
	CodeUnknown Code = "UNKNOWN"

	// Authorization errors
	CodeAccessDenied      Code = "ACCESS_DENIED"
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeNotAMember        Code = "NOT_A_MEMBER"

	// Ledger errors
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeIntegrityMismatch      Code = "INTEGRITY_MISMATCH"
	CodeUnknownItem            Code = "UNKNOWN_ITEM"

	// Escrow errors
	CodePriceMismatch     Code = "PRICE_MISMATCH"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeTransferFailed    Code = "TRANSFER_FAILED"
	CodeReentrantCall     Code = "REENTRANT_CALL"

	// Request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInternal        Code = "INTERNAL"
)

// Error is the ledger error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable reason
	Metadata map[string]string // Additional context for clients
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a ledger error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a ledger error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata creates a ledger error carrying client-visible metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a ledger error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the ledger code from err. Rule violations map to
// CodeInvalidStateTransition; anything else without a code is CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	var rv RuleViolationError
	if errors.As(err, &rv) {
		return CodeInvalidStateTransition
	}
	return CodeUnknown
}

// Sentinels for errors.Is comparisons; matching is by code only.
var (
	ErrAccessDenied           = New(CodeAccessDenied, "access denied")
	ErrAlreadyRegistered      = New(CodeAlreadyRegistered, "already registered")
	ErrNotAMember             = New(CodeNotAMember, "not a member")
	ErrInvalidStateTransition = New(CodeInvalidStateTransition, "invalid state transition")
	ErrIntegrityMismatch      = New(CodeIntegrityMismatch, "integrity mismatch")
	ErrPriceMismatch          = New(CodePriceMismatch, "price mismatch")
	ErrInsufficientFunds      = New(CodeInsufficientFunds, "insufficient funds")
	ErrTransferFailed         = New(CodeTransferFailed, "transfer failed")
	ErrReentrantCall          = New(CodeReentrantCall, "reentrant call")
	ErrUnknownItem            = New(CodeUnknownItem, "unknown item")
	ErrInvalidArgument        = New(CodeInvalidArgument, "invalid argument")
)
