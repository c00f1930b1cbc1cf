package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCacheMiss indicates no cached entry was found.
var ErrCacheMiss = errors.New("cache miss")

// ErrRateLimited indicates the downstream service rejected the call for
// rate-limit reasons. Callers degrade gracefully instead of aborting.
var ErrRateLimited = errors.New("rate limited by downstream service")

// ErrSearchTimeout indicates a single search call exceeded its budget after
// the one allowed retry against a faster model.
var ErrSearchTimeout = errors.New("search timed out")

// ErrEmptyCompletion indicates a provider returned a response with no content.
var ErrEmptyCompletion = errors.New("provider returned empty completion")

// ValidationError reports malformed or empty input. Surfaced immediately,
// never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ProviderError aggregates the failures of every configured provider.
// It is produced only when all providers have been exhausted.
type ProviderError struct {
	Causes []error
}

func (e *ProviderError) Error() string {
	parts := make([]string, 0, len(e.Causes))
	for _, cause := range e.Causes {
		parts = append(parts, cause.Error())
	}
	return fmt.Sprintf("all providers failed: %s", strings.Join(parts, "; "))
}

// Unwrap exposes the underlying causes to errors.Is and errors.As.
func (e *ProviderError) Unwrap() []error {
	return e.Causes
}
