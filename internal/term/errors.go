package term

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes reasoning errors. The set is closed.
type ErrorCode string

const (
	// CodeParse indicates a malformed structured term or document.
	CodeParse ErrorCode = "PARSE_ERROR"

	// CodeUnification describes why two terms did not unify.
	// Ordinary unification failure is a "no", not an error; this code is
	// only produced by diagnostic helpers.
	CodeUnification ErrorCode = "UNIFICATION_FAILURE"

	// CodeTypeMismatch indicates an argument of the wrong kind, such as an
	// unbound operand in arithmetic or a malformed solver input.
	CodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// CodeUnknownPredicate indicates a call to a predicate with no clauses
	// in strict mode.
	CodeUnknownPredicate ErrorCode = "UNKNOWN_PREDICATE"

	// CodeArityMismatch indicates a name known only at another arity.
	CodeArityMismatch ErrorCode = "ARITY_MISMATCH"

	// CodeArithmetic indicates division by zero or a non-evaluable term.
	CodeArithmetic ErrorCode = "ARITHMETIC_ERROR"

	// CodeResourceExhausted indicates a depth, step, node or iteration bound
	// was exceeded.
	CodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"

	// CodeInternal indicates a broken engine invariant, never a user error.
	CodeInternal ErrorCode = "INTERNAL_INVARIANT"
)

// Error is the typed error returned by every reasoning package.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Predicate names the predicate involved, as name/arity, if any.
	Predicate string

	// Details contains additional context.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Predicate != "" {
		return fmt.Sprintf("%s: %s (predicate=%s)", e.Code, e.Message, e.Predicate)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf creates an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithPredicate returns e with the predicate indicator set.
func (e *Error) WithPredicate(name string, arity int) *Error {
	e.Predicate = fmt.Sprintf("%s/%d", name, arity)
	return e
}

// WithDetail returns e with one detail added.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Code, true
	}
	return "", false
}

// IsCode reports whether err carries code. Uses errors.As to handle
// wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsResourceExhausted reports whether err is a resource bound error.
func IsResourceExhausted(err error) bool {
	return IsCode(err, CodeResourceExhausted)
}

// IsInternal reports whether err is an internal invariant violation.
func IsInternal(err error) bool {
	return IsCode(err, CodeInternal)
}

// NewResourceExhausted creates a resource bound error for the named limit.
func NewResourceExhausted(limit string, max int64) *Error {
	return Errorf(CodeResourceExhausted, "%s limit of %d exceeded", limit, max).
		WithDetail("limit", limit)
}
