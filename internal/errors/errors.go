package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes pipeline errors by how callers must react to them.
type Kind int

const (
	// KindUpstreamUnavailable - forge network failure or 5xx, retryable
	KindUpstreamUnavailable Kind = iota
	// KindRateLimited - forge rate limit hit, retryable with backoff
	KindRateLimited
	// KindAuth - 401/403, not retryable without a credential refresh
	KindAuth
	// KindMalformedPayload - invalid webhook body, drop the unit of work
	KindMalformedPayload
	// KindLookupUnavailable - signature store unreachable, maps to an
	// unknown signature state and a pending verdict
	KindLookupUnavailable
	// KindAmbiguousAgreement - more than one agreement covers a repository;
	// a configuration error, never silently tie-broken
	KindAmbiguousAgreement
	// KindInternal - unexpected internal state
	KindInternal
)

// Error is a categorized pipeline error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind, so callers can branch with errors.Is
// against a sentinel of the kind they care about.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable, Message: "upstream unavailable"}
	ErrRateLimited         = &Error{Kind: KindRateLimited, Message: "rate limited"}
	ErrAuth                = &Error{Kind: KindAuth, Message: "authentication failed"}
	ErrMalformedPayload    = &Error{Kind: KindMalformedPayload, Message: "malformed payload"}
	ErrLookupUnavailable   = &Error{Kind: KindLookupUnavailable, Message: "signature lookup unavailable"}
	ErrAmbiguousAgreement  = &Error{Kind: KindAmbiguousAgreement, Message: "ambiguous agreement"}
)

// New creates a categorized error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a categorized error with formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a kind. Returns nil for a nil cause.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Wrapf wraps an existing error with a kind and formatting.
func Wrapf(err error, kind Kind, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Upstream wraps a forge network/5xx failure.
func Upstream(err error, message string) *Error {
	return Wrap(err, KindUpstreamUnavailable, message)
}

// RateLimited wraps a forge rate-limit response.
func RateLimited(err error, message string) *Error {
	return Wrap(err, KindRateLimited, message)
}

// Auth wraps a 401/403 response.
func Auth(err error, message string) *Error {
	return Wrap(err, KindAuth, message)
}

// Malformed creates a malformed-payload error.
func Malformed(err error, message string) *Error {
	return Wrap(err, KindMalformedPayload, message)
}

// LookupUnavailable wraps a signature store failure.
func LookupUnavailable(err error, message string) *Error {
	return Wrap(err, KindLookupUnavailable, message)
}

// Ambiguous creates an ambiguous-agreement configuration error.
func Ambiguous(message string) *Error {
	return New(KindAmbiguousAgreement, message)
}

// KindOf returns the kind of an error, or KindInternal for uncategorized
// errors anywhere in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether a later attempt may succeed without operator
// intervention. Reconciliation relies on this to decide what self-heals.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindUpstreamUnavailable, KindRateLimited, KindLookupUnavailable:
		return true
	default:
		return false
	}
}
