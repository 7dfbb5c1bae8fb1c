// Package apperr defines the coded error taxonomy surfaced by the IAM core.
// Errors are values: every failure a caller can act on carries a Kind, a
// stable short code (for example "COMMAND-LabelPolicy03"), a human message
// and optional structured context.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that dispatch on failure class
// rather than on the individual code.
type Kind int

const (
	KindUnknown Kind = iota

	// KindInvalidArgument marks syntactic input failures.
	KindInvalidArgument

	// KindPermissionDenied marks authorization and membership failures.
	KindPermissionDenied

	// KindFeatureDisabled marks feature-flag gates.
	KindFeatureDisabled

	// KindQuotaExceeded marks quota gates.
	KindQuotaExceeded

	// KindNotFound marks preconditions on missing or inactive aggregates.
	KindNotFound

	// KindAlreadyExists marks preconditions on active aggregates or held keys.
	KindAlreadyExists

	// KindPreconditionFailed marks a state that cannot legally accept the command.
	KindPreconditionFailed

	// KindConcurrency marks optimistic-concurrency mismatches.
	KindConcurrency

	// KindValidation marks event-store level constraint violations.
	KindValidation

	// KindUniqueConstraintViolation marks unique side-effect conflicts.
	KindUniqueConstraintViolation

	// KindInternal marks unexpected infrastructure failures.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindPermissionDenied:
		return "permission_denied"
	case KindFeatureDisabled:
		return "feature_disabled"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindConcurrency:
		return "concurrency"
	case KindValidation:
		return "validation"
	case KindUniqueConstraintViolation:
		return "unique_constraint_violation"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the concrete coded error. Wrap an underlying cause with Parent.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Context map[string]any
	Parent  error
}

func (e *Error) Error() string {
	if e.Parent != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Code, e.Kind, e.Message, e.Parent)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Parent
}

// Is matches either the same coded error or any error of the same kind,
// so callers can use errors.Is(err, apperr.ErrConcurrency)-style sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// With attaches structured context and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(kind Kind, parent error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Parent: parent}
}

// Constructors, one per taxonomy entry.

func InvalidArgument(parent error, code, message string) *Error {
	return newError(KindInvalidArgument, parent, code, message)
}

func PermissionDenied(parent error, code, message string) *Error {
	return newError(KindPermissionDenied, parent, code, message)
}

func FeatureDisabled(parent error, code, message string) *Error {
	return newError(KindFeatureDisabled, parent, code, message)
}

func QuotaExceeded(parent error, code, message string) *Error {
	return newError(KindQuotaExceeded, parent, code, message)
}

func NotFound(parent error, code, message string) *Error {
	return newError(KindNotFound, parent, code, message)
}

func AlreadyExists(parent error, code, message string) *Error {
	return newError(KindAlreadyExists, parent, code, message)
}

func PreconditionFailed(parent error, code, message string) *Error {
	return newError(KindPreconditionFailed, parent, code, message)
}

// Concurrency reports an optimistic-concurrency mismatch with the expected
// and actual aggregate versions attached as context.
func Concurrency(parent error, code, message string, expected, actual uint64) *Error {
	return newError(KindConcurrency, parent, code, message).
		With("expected", expected).
		With("actual", actual)
}

func Validation(parent error, code, message string) *Error {
	return newError(KindValidation, parent, code, message)
}

// UniqueConstraintViolation reports a unique side-effect conflict. The
// message key is resolved by the API layer; the core keeps it verbatim.
func UniqueConstraintViolation(parent error, code, uniqueType, uniqueField, messageKey string) *Error {
	return newError(KindUniqueConstraintViolation, parent, code, messageKey).
		With("unique_type", uniqueType).
		With("unique_field", uniqueField)
}

func Internal(parent error, code, message string) *Error {
	return newError(KindInternal, parent, code, message)
}

// IsKind reports whether err (or anything it wraps) is a coded error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Kind == kind
}

// Code returns the stable code of err, or "" when err is not a coded error.
func Code(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return ""
	}
	return appErr.Code
}

// Convenience predicates used throughout the command engine and tests.

func IsInvalidArgument(err error) bool     { return IsKind(err, KindInvalidArgument) }
func IsPermissionDenied(err error) bool    { return IsKind(err, KindPermissionDenied) }
func IsNotFound(err error) bool            { return IsKind(err, KindNotFound) }
func IsAlreadyExists(err error) bool       { return IsKind(err, KindAlreadyExists) }
func IsPreconditionFailed(err error) bool  { return IsKind(err, KindPreconditionFailed) }
func IsConcurrency(err error) bool         { return IsKind(err, KindConcurrency) }
func IsValidation(err error) bool          { return IsKind(err, KindValidation) }
func IsUniqueConstraintViolation(err error) bool {
	return IsKind(err, KindUniqueConstraintViolation)
}
