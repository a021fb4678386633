package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrRateLimited    = errors.New("rate limited")
	ErrDispatchFailed = errors.New("dispatch failed")
)

// RateLimitedError reports how long the caller must wait before retrying.
type RateLimitedError struct {
	Cooldown int64 // seconds until the window resets
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %d seconds", e.Cooldown)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// OTPMismatchError reports a failed code comparison with the attempts left
// before the pending verification is invalidated.
type OTPMismatchError struct {
	RemainingAttempts int
}

func (e *OTPMismatchError) Error() string {
	return fmt.Sprintf("invalid code, %d attempts remaining", e.RemainingAttempts)
}

func (e *OTPMismatchError) Unwrap() error { return ErrUnauthorized }
