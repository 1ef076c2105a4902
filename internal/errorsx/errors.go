// Package errorsx defines the engine's error taxonomy (spec §7) on top of
// github.com/cockroachdb/errors, which the teacher repository already pulls
// in transitively. Using it directly gives every error here a stack trace
// and safe-detail wrapping for free, instead of bare fmt.Errorf.
package errorsx

import (
	"github.com/cockroachdb/errors"
)

// Kind is one of the ten error kinds of spec §7. Kept as a small closed
// enum rather than distinct types per kind, since call sites only ever
// need to branch on kind, not on a conformant typed-error hierarchy.
type Kind string

const (
	InvalidRequest      Kind = "invalid_request"
	NotFound            Kind = "not_found"
	DimensionMismatch   Kind = "dimension_mismatch"
	DurabilityError     Kind = "durability_error"
	ServiceUnavailable  Kind = "service_unavailable"
	Timeout             Kind = "timeout"
	TransactionAborted  Kind = "transaction_aborted"
	Overloaded          Kind = "overloaded"
	Corruption          Kind = "corruption"
	IncompatibleFormat  Kind = "incompatible_format"
)

type kindedError struct {
	kind  Kind
	cause error
}

func (e *kindedError) Error() string { return string(e.kind) + ": " + e.cause.Error() }
func (e *kindedError) Unwrap() error { return e.cause }

// New creates a kinded error with the given message.
func New(kind Kind, msg string) error {
	return &kindedError{kind: kind, cause: errors.New(msg)}
}

// Newf creates a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &kindedError{kind: kind, cause: errors.Newf(format, args...)}
}

// Wrap attaches a kind to an existing error, preserving its stack/cause
// chain via cockroachdb/errors.Wrap.
func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &kindedError{kind: kind, cause: errors.Wrap(cause, msg)}
}

// KindOf extracts the Kind tagged on err, if any, walking the cause chain.
func KindOf(err error) (Kind, bool) {
	var ke *kindedError
	if errors.As(err, &ke) {
		return ke.kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
