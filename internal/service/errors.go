package service

import (
	"errors"
	"fmt"
)

// Domain errors surfaced to callers. These are business-rule outcomes,
// not faults, and are never retried internally.
var (
	// ErrNotFound is returned when a resource, booking or waitlist
	// entry does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a requested time range overlaps an
	// existing pending or confirmed booking.
	ErrConflict = errors.New("resource is unavailable for the requested window")
	// ErrNotBookable is returned when the resource is deactivated or
	// closed for booking.
	ErrNotBookable = errors.New("resource is not open for booking")
	// ErrNotConnected is returned when the user never connected the
	// calendar provider.
	ErrNotConnected = errors.New("no calendar connected")
	// ErrAuthExpired is returned when the stored calendar token is
	// expired and the single refresh attempt failed.
	ErrAuthExpired = errors.New("calendar authorization expired")
	// ErrInvalidGrant is returned when the provider rejects an
	// authorization code.
	ErrInvalidGrant = errors.New("authorization code rejected by provider")
	// ErrExpired is returned when a waitlist entry or offer is past its
	// deadline.
	ErrExpired = errors.New("offer has expired")
	// ErrInvalidState is returned when an operation is not valid for
	// the current status.
	ErrInvalidState = errors.New("operation not valid for current status")
	// ErrInvalidTransition is returned on an attempt to leave a
	// terminal booking status or skip a step in the state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyQueued is returned when the requester already holds a
	// pending waitlist entry for the resource.
	ErrAlreadyQueued = errors.New("requester is already on the waitlist for this resource")
)

// ExternalServiceError wraps a calendar provider failure unrelated to
// auth (network, rate limit). Sync paths log and swallow it; it never
// rolls back a booking decision.
type ExternalServiceError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("calendar provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
