// Package common defines shared constants and sentinel errors used across
// client and server layers of GophVault. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")

	// Vlob store outcomes.
	ErrVersionConflict = errors.New("version conflict")
	ErrVersionNotFound = errors.New("version not found")

	// Enrollment outcomes.
	ErrIDAlreadyUsed               = errors.New("enrollment id already used")
	ErrCertificateAlreadySubmitted = errors.New("certificate already submitted")
	ErrAlreadyEnrolled             = errors.New("certificate already enrolled")
	ErrNoLongerAvailable           = errors.New("enrollment no longer available")

	// User/device creation outcomes.
	ErrAlreadyExists           = errors.New("already exists")
	ErrActiveUsersLimitReached = errors.New("active users limit reached")

	// ErrIntegrityViolation reports a broken store invariant (version gap,
	// duplicate terminal transition). It is never retried.
	ErrIntegrityViolation = errors.New("integrity violation")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// SubmittedOnError decorates an enrollment conflict with the submission time
// of the record that caused it.
type SubmittedOnError struct {
	Err         error
	SubmittedOn time.Time
}

func (e *SubmittedOnError) Error() string {
	return fmt.Sprintf("%v (submitted on %s)", e.Err, e.SubmittedOn.Format(time.RFC3339Nano))
}

func (e *SubmittedOnError) Unwrap() error { return e.Err }
