package domain

import (
	"errors"
	"fmt"
)

// Code is the stable, caller-facing identifier of a failure class.
type Code string

const (
	CodeNotFound                Code = "NOT_FOUND"
	CodeForbidden               Code = "FORBIDDEN"
	CodeUnauthorized            Code = "UNAUTHORIZED"
	CodeInvalidInput            Code = "INVALID_INPUT"
	CodeInsufficientStock       Code = "INSUFFICIENT_STOCK"
	CodeInsufficientPayment     Code = "INSUFFICIENT_PAYMENT"
	CodePaymentExists           Code = "PAYMENT_EXISTS"
	CodeInvalidTransition       Code = "INVALID_TRANSITION"
	CodeNotCancellable          Code = "NOT_CANCELLABLE"
	CodeExternalProviderFailure Code = "EXTERNAL_PROVIDER_FAILURE"
	CodeConflict                Code = "CONFLICT"
)

// Error is a domain failure with a stable code. Two errors match under errors.Is
// when their codes are equal, so callers can compare against the sentinels below.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound                = &Error{Code: CodeNotFound, Message: "not found"}
	ErrForbidden               = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrUnauthorized            = &Error{Code: CodeUnauthorized, Message: "authentication required"}
	ErrInvalidInput            = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrInsufficientStock       = &Error{Code: CodeInsufficientStock, Message: "insufficient stock"}
	ErrInsufficientPayment     = &Error{Code: CodeInsufficientPayment, Message: "insufficient payment amount"}
	ErrPaymentExists           = &Error{Code: CodePaymentExists, Message: "payment already exists for this order"}
	ErrInvalidTransition       = &Error{Code: CodeInvalidTransition, Message: "invalid status transition"}
	ErrNotCancellable          = &Error{Code: CodeNotCancellable, Message: "order cannot be cancelled at this stage"}
	ErrExternalProviderFailure = &Error{Code: CodeExternalProviderFailure, Message: "payment provider failure"}
	ErrConflict                = &Error{Code: CodeConflict, Message: "conflict"}
)

// Errorf builds a coded error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first domain error in err's chain, or "" when there is none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// MessageOf returns the caller-safe message of a domain error; the cause is not included.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
