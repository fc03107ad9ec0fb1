// Package apierr defines the error taxonomy of §7: a fixed set of
// kinds mapped to HTTP status codes, independent of the concrete Go
// error type produced deep in the pipeline.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is one of the error kinds enumerated in §7.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindOriginTimeout      Kind = "origin_timeout"
	KindOriginUnreachable  Kind = "origin_unreachable"
	KindOriginBlocked      Kind = "origin_blocked"
	KindOriginClient4xx    Kind = "origin_client_error"
	KindOriginServer5xx    Kind = "origin_server_error"
	KindParseFailure       Kind = "parse_failure"
	KindNoArticles         Kind = "no_articles"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
)

// Error is a classified error carrying enough context to produce the
// client-visible shape of §7 without leaking internals in production
// mode.
type Error struct {
	Kind       Kind
	Message    string
	Status     int
	RetryAfter time.Duration
	cause      error
}

// New constructs a classified error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Status: statusFor(kind)}
}

// Wrap classifies an underlying error under the given kind, keeping
// it in the error chain for %w-style unwrapping and logging.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Status: statusFor(kind), cause: cause}
}

// WithRetryAfter attaches a retry-after hint (§6 "502 with
// retry-after") to a classified error, returning it for chaining.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// As reports whether err is (or wraps) an *Error, returning it.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func statusFor(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindOriginTimeout:
		return http.StatusRequestTimeout
	case KindOriginUnreachable, KindOriginBlocked, KindOriginClient4xx, KindOriginServer5xx:
		return http.StatusBadGateway
	case KindParseFailure:
		return http.StatusUnprocessableEntity
	case KindNoArticles:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Status returns the HTTP status this error maps to, defaulting to
// 500 for plain, unclassified errors.
func Status(err error) int {
	if e, ok := As(err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}
