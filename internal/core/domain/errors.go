package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	// The answer cache returns it on a miss or expiry.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfiguration indicates fatal misconfiguration
	// (chunking parameters, provider price tables). Not retryable.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrRetrievalFailed indicates the corpus index or embedding service
	// was unavailable. Recoverable when ungrounded answers are allowed.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrRetrievalTimeout indicates the retrieval stage exceeded its timeout.
	ErrRetrievalTimeout = errors.New("retrieval timeout")

	// ErrGenerationUnavailable indicates all configured providers were
	// exhausted. Retryable by the caller.
	ErrGenerationUnavailable = errors.New("all generation providers exhausted")

	// ErrDeadlineExceeded indicates the overall request deadline expired.
	// Retryable by the caller.
	ErrDeadlineExceeded = errors.New("request deadline exceeded")

	// ErrCancelled indicates the caller cancelled the request.
	ErrCancelled = errors.New("request cancelled")

	// ErrCacheUnavailable indicates an answer cache failure. Never fatal:
	// always swallowed after logging, a failed read is treated as a miss.
	ErrCacheUnavailable = errors.New("answer cache unavailable")

	// ErrRateLimited indicates a provider rejected the request for rate
	// limiting. Transient: the same provider is retried with backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderTransient marks provider failures worth retrying against
	// the same provider (timeouts, transient 5xx-equivalents).
	ErrProviderTransient = errors.New("transient provider failure")
)

// ErrorKind classifies a structured error for callers.
type ErrorKind string

// Error kinds crossing the public answer boundary.
const (
	KindInvalidConfiguration  ErrorKind = "invalid_configuration"
	KindRetrievalFailed       ErrorKind = "retrieval_failed"
	KindGenerationUnavailable ErrorKind = "generation_unavailable"
	KindDeadlineExceeded      ErrorKind = "deadline_exceeded"
	KindCancelled             ErrorKind = "cancelled"
	KindInternal              ErrorKind = "internal"
)

// StructuredError is the only error type returned from the public answer
// operation. It distinguishes retryable-by-caller conditions from
// non-retryable ones and carries provider attribution when relevant.
type StructuredError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// ProviderID identifies the last provider involved, when any.
	ProviderID string

	// Attempts is the total number of generation attempts made.
	Attempts int

	err error
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.ProviderID != "" {
		return fmt.Sprintf("%s: %s (provider %s, %d attempts)", e.Kind, e.Message, e.ProviderID, e.Attempts)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying sentinel for errors.Is checks.
func (e *StructuredError) Unwrap() error {
	return e.err
}

// Retryable reports whether the caller may reasonably retry the whole request.
func (e *StructuredError) Retryable() bool {
	return e.Kind == KindDeadlineExceeded || e.Kind == KindGenerationUnavailable
}

// NewStructuredError wraps a domain error with classification and context.
func NewStructuredError(err error, providerID string, attempts int) *StructuredError {
	se := &StructuredError{
		Kind:       classify(err),
		Message:    err.Error(),
		ProviderID: providerID,
		Attempts:   attempts,
		err:        err,
	}
	return se
}

// classify maps an error to its public kind.
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidConfiguration):
		return KindInvalidConfiguration
	case errors.Is(err, ErrRetrievalFailed), errors.Is(err, ErrRetrievalTimeout):
		return KindRetrievalFailed
	case errors.Is(err, ErrGenerationUnavailable):
		return KindGenerationUnavailable
	case errors.Is(err, ErrDeadlineExceeded):
		return KindDeadlineExceeded
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	default:
		return KindInternal
	}
}

// IsRetryableProviderError reports whether a provider failure should be
// retried against the same provider. Non-retryable failures skip straight
// to the next provider in the fallback chain.
func IsRetryableProviderError(err error) bool {
	return errors.Is(err, ErrProviderTransient) || errors.Is(err, ErrRateLimited)
}
