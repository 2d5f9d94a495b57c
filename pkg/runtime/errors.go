package runtime

import (
	"errors"
	"fmt"
)

// ErrorCode classifies runtime failures.
type ErrorCode int

const (
	ErrUnboundSymbol ErrorCode = iota + 1
	ErrNotAFunction
	ErrArityMismatch
	ErrWrongType
	ErrMalformedExpression
	ErrResourceExhausted
	ErrOutOfMemory
)

func (c ErrorCode) String() string {
	switch c {
	case ErrUnboundSymbol:
		return "unbound_symbol"
	case ErrNotAFunction:
		return "not_a_function"
	case ErrArityMismatch:
		return "arity_mismatch"
	case ErrWrongType:
		return "wrong_type"
	case ErrMalformedExpression:
		return "malformed_expression"
	case ErrResourceExhausted:
		return "resource_exhausted"
	case ErrOutOfMemory:
		return "out_of_memory"
	default:
		return fmt.Sprintf("error_code_%d", int(c))
	}
}

// Error is the typed failure every fallible runtime operation returns.
// Evaluation propagates the first Error encountered; nothing in the library
// terminates the process.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err, or 0 when err is not a runtime
// Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
