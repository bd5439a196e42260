package types

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds every operation maps its failures onto. Entity-specific
// errors wrap one of these so callers can match either the broad class or
// the exact condition.
var (
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness or state conflict.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor lacks the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited indicates a write was rejected by a rate window.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvariantViolation indicates internal state that should be
	// impossible, such as a sequence gap.
	ErrInvariantViolation = errors.New("invariant violation")
)

// RateLimitError carries how long the caller must wait before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

func (*RateLimitError) Unwrap() error {
	return ErrRateLimited
}
