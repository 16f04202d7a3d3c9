package rpc

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

var statusErrors = []struct {
	status string
	err    error
}{
	{StatusBadVersion, common.ErrVersionConflict},
	{StatusVersionNotFound, common.ErrVersionNotFound},
	{StatusNotFound, common.ErrorNotFound},
	{StatusEnrollmentIDAlreadyUsed, common.ErrIDAlreadyUsed},
	{StatusAlreadySubmitted, common.ErrCertificateAlreadySubmitted},
	{StatusAlreadyEnrolled, common.ErrAlreadyEnrolled},
	{StatusNoLongerAvailable, common.ErrNoLongerAvailable},
	{StatusAlreadyExists, common.ErrAlreadyExists},
	{StatusActiveUsersLimitReached, common.ErrActiveUsersLimitReached},
	{StatusInvalidInput, common.ErrInvalidInput},
}

// StatusFromError maps a service outcome onto its wire status. The second
// return is false when err is not a typed outcome and must surface as a
// gRPC error instead.
func StatusFromError(err error) (string, bool) {
	if err == nil {
		return StatusOK, true
	}
	for _, se := range statusErrors {
		if errors.Is(err, se.err) {
			return se.status, true
		}
	}
	return "", false
}

// SubmittedOnFromError extracts the conflicting submission time, if any.
func SubmittedOnFromError(err error) *time.Time {
	var se *common.SubmittedOnError
	if errors.As(err, &se) {
		t := se.SubmittedOn
		return &t
	}
	return nil
}

// ErrorFromStatus is the inverse of StatusFromError. submittedOn, when
// non-nil, is reattached as a SubmittedOnError.
func ErrorFromStatus(status string, submittedOn *time.Time) error {
	if status == StatusOK {
		return nil
	}
	for _, se := range statusErrors {
		if se.status == status {
			if submittedOn != nil {
				return &common.SubmittedOnError{Err: se.err, SubmittedOn: *submittedOn}
			}
			return se.err
		}
	}
	return fmt.Errorf("%w: unknown status %q", common.ErrorInternal, status)
}
