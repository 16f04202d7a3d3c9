// Package models holds the client-side data shapes exchanged with the
// backend and the local cache.
package models

import (
	"time"

	"github.com/google/uuid"
)

// RemoteVlob is one version of a vlob as returned by the backend. Version 0
// with an empty blob means nothing was ever uploaded.
type RemoteVlob struct {
	ID        uuid.UUID
	Version   uint64
	Blob      []byte
	Author    string
	CreatedOn time.Time
}

func (v *RemoteVlob) IsPlaceholder() bool { return v.Version == 0 }

type EnrollmentSubmission struct {
	EnrollmentID     uuid.UUID
	Certificate      []byte
	CertificateSHA1  []byte
	PayloadSignature []byte
	Payload          []byte
	Force            bool
}

// EnrollmentStatus is what a prospective device can learn about its own
// enrollment. Only the timestamps of the current state are set.
type EnrollmentStatus struct {
	EnrollmentID  uuid.UUID
	State         string
	SubmittedOn   *time.Time
	CancelledOn   *time.Time
	RejectedOn    *time.Time
	AcceptedOn    *time.Time
	AcceptPayload []byte
}

type OrganizationConfig struct {
	ActiveUsersLimit *int64
}
