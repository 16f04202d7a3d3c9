package models

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentState is stored as text. Lexical order puts terminal states
// (ACCEPTED, CANCELLED, REJECTED) before SUBMITTED.
type EnrollmentState string

const (
	EnrollmentSubmitted EnrollmentState = "SUBMITTED"
	EnrollmentCancelled EnrollmentState = "CANCELLED"
	EnrollmentRejected  EnrollmentState = "REJECTED"
	EnrollmentAccepted  EnrollmentState = "ACCEPTED"
)

func (s EnrollmentState) IsTerminal() bool { return s != EnrollmentSubmitted }

// Enrollment is a pki_enrollment row.
type Enrollment struct {
	OrganizationID           string
	EnrollmentID             uuid.UUID
	SubmitterCertificate     []byte
	SubmitterCertificateSHA1 []byte
	SubmitPayloadSignature   []byte
	SubmitPayload            []byte
	State                    EnrollmentState
	SubmittedOn              time.Time
	CancelledOn              *time.Time
	RejectedOn               *time.Time
	AcceptedOn               *time.Time
	AccepterCertificate      []byte
	AcceptPayloadSignature   []byte
	AcceptPayload            []byte
	AccepterDevice           *string
	AcceptedDevice           *string
}

// Acceptance carries the accepter side of an ACCEPTED transition.
type Acceptance struct {
	AcceptedOn             time.Time
	AccepterCertificate    []byte
	AcceptPayloadSignature []byte
	AcceptPayload          []byte
	AccepterDevice         string
	AcceptedDevice         string
}

// EnrollmentInfo is the read-only projection of an enrollment: exactly one
// of the state-specific pointers is set, matching State.
type EnrollmentInfo struct {
	EnrollmentID uuid.UUID
	State        EnrollmentState
	Submitted    *SubmittedInfo
	Cancelled    *CancelledInfo
	Rejected     *RejectedInfo
	Accepted     *AcceptedInfo
}

type SubmittedInfo struct {
	SubmittedOn time.Time
}

type CancelledInfo struct {
	SubmittedOn time.Time
	CancelledOn time.Time
}

type RejectedInfo struct {
	SubmittedOn time.Time
	RejectedOn  time.Time
}

type AcceptedInfo struct {
	SubmittedOn            time.Time
	AcceptedOn             time.Time
	AccepterCertificate    []byte
	AcceptPayloadSignature []byte
	AcceptPayload          []byte
}

// SubmittedEnrollment is an item of the pending enrollments list.
type SubmittedEnrollment struct {
	EnrollmentID           uuid.UUID
	SubmittedOn            time.Time
	SubmitterCertificate   []byte
	SubmitPayloadSignature []byte
	SubmitPayload          []byte
}

// Info projects e according to its current state.
func (e *Enrollment) Info() *EnrollmentInfo {
	info := &EnrollmentInfo{EnrollmentID: e.EnrollmentID, State: e.State}
	switch e.State {
	case EnrollmentSubmitted:
		info.Submitted = &SubmittedInfo{SubmittedOn: e.SubmittedOn}
	case EnrollmentCancelled:
		info.Cancelled = &CancelledInfo{SubmittedOn: e.SubmittedOn, CancelledOn: derefTime(e.CancelledOn)}
	case EnrollmentRejected:
		info.Rejected = &RejectedInfo{SubmittedOn: e.SubmittedOn, RejectedOn: derefTime(e.RejectedOn)}
	case EnrollmentAccepted:
		info.Accepted = &AcceptedInfo{
			SubmittedOn:            e.SubmittedOn,
			AcceptedOn:             derefTime(e.AcceptedOn),
			AccepterCertificate:    e.AccepterCertificate,
			AcceptPayloadSignature: e.AcceptPayloadSignature,
			AcceptPayload:          e.AcceptPayload,
		}
	}
	return info
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
