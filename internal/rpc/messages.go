package rpc

import (
	"time"

	"github.com/google/uuid"
)

// Response statuses. Everything other than StatusOK is a typed outcome of
// the operation; authentication and transport failures are gRPC status
// codes instead.
const (
	StatusOK                      = "ok"
	StatusBadVersion              = "bad_version"
	StatusVersionNotFound         = "version_not_found"
	StatusNotFound                = "not_found"
	StatusEnrollmentIDAlreadyUsed = "enrollment_id_already_used"
	StatusAlreadySubmitted        = "already_submitted"
	StatusAlreadyEnrolled         = "already_enrolled"
	StatusNoLongerAvailable       = "no_longer_available"
	StatusAlreadyExists           = "already_exists"
	StatusActiveUsersLimitReached = "active_users_limit_reached"
	StatusInvalidInput            = "invalid_input"
)

type PingRequest struct {
	Ping string `cbor:"ping"`
}

type PingResponse struct {
	Status     string `cbor:"status"`
	Pong       string `cbor:"pong"`
	APIVersion string `cbor:"api_version"`
}

type VlobReadRequest struct {
	VlobID uuid.UUID `cbor:"vlob_id"`
	// Version is nil for "latest".
	Version *uint64 `cbor:"version,omitempty"`
}

type VlobReadResponse struct {
	Status    string    `cbor:"status"`
	Version   uint64    `cbor:"version"`
	Blob      []byte    `cbor:"blob"`
	Author    string    `cbor:"author"`
	CreatedOn time.Time `cbor:"created_on"`
}

type VlobUpdateRequest struct {
	VlobID  uuid.UUID `cbor:"vlob_id"`
	Version uint64    `cbor:"version"`
	Blob    []byte    `cbor:"blob"`
}

type VlobUpdateResponse struct {
	Status string `cbor:"status"`
}

type PkiSubmitRequest struct {
	OrganizationID   string    `cbor:"organization_id"`
	EnrollmentID     uuid.UUID `cbor:"enrollment_id"`
	Certificate      []byte    `cbor:"submitter_der_x509_certificate"`
	CertificateSHA1  []byte    `cbor:"submitter_der_x509_certificate_sha1"`
	PayloadSignature []byte    `cbor:"submit_payload_signature"`
	Payload          []byte    `cbor:"submit_payload"`
	Force            bool      `cbor:"force"`
}

type PkiSubmitResponse struct {
	Status string `cbor:"status"`
	// SubmittedOn is set for already_submitted and already_enrolled.
	SubmittedOn *time.Time `cbor:"submitted_on,omitempty"`
}

type PkiInfoRequest struct {
	OrganizationID string    `cbor:"organization_id"`
	EnrollmentID   uuid.UUID `cbor:"enrollment_id"`
}

type PkiInfoResponse struct {
	Status                 string     `cbor:"status"`
	EnrollmentState        string     `cbor:"enrollment_status,omitempty"`
	SubmittedOn            *time.Time `cbor:"submitted_on,omitempty"`
	CancelledOn            *time.Time `cbor:"cancelled_on,omitempty"`
	RejectedOn             *time.Time `cbor:"rejected_on,omitempty"`
	AcceptedOn             *time.Time `cbor:"accepted_on,omitempty"`
	AccepterCertificate    []byte     `cbor:"accepter_der_x509_certificate,omitempty"`
	AcceptPayloadSignature []byte     `cbor:"accept_payload_signature,omitempty"`
	AcceptPayload          []byte     `cbor:"accept_payload,omitempty"`
}

type PkiListRequest struct{}

type PkiListItem struct {
	EnrollmentID     uuid.UUID `cbor:"enrollment_id"`
	SubmittedOn      time.Time `cbor:"submitted_on"`
	Certificate      []byte    `cbor:"submitter_der_x509_certificate"`
	PayloadSignature []byte    `cbor:"submit_payload_signature"`
	Payload          []byte    `cbor:"submit_payload"`
}

type PkiListResponse struct {
	Status      string        `cbor:"status"`
	Enrollments []PkiListItem `cbor:"enrollments"`
}

type PkiRejectRequest struct {
	EnrollmentID uuid.UUID `cbor:"enrollment_id"`
}

type PkiRejectResponse struct {
	Status string `cbor:"status"`
}

type PkiAcceptRequest struct {
	EnrollmentID        uuid.UUID `cbor:"enrollment_id"`
	AccepterCertificate []byte    `cbor:"accepter_der_x509_certificate"`
	PayloadSignature    []byte    `cbor:"accept_payload_signature"`
	Payload             []byte    `cbor:"accept_payload"`
	UserID              string    `cbor:"user_id"`
	Profile             string    `cbor:"profile"`
	UserCertificate     []byte    `cbor:"user_certificate"`
	DeviceID            string    `cbor:"device_id"`
	DeviceCertificate   []byte    `cbor:"device_certificate"`
}

type PkiAcceptResponse struct {
	Status string `cbor:"status"`
}

type BlockURLRequest struct {
	BlockID uuid.UUID `cbor:"block_id"`
}

type BlockURLResponse struct {
	Status string `cbor:"status"`
	URL    string `cbor:"url"`
}

type OrganizationConfigRequest struct{}

type OrganizationConfigResponse struct {
	Status           string `cbor:"status"`
	ActiveUsersLimit *int64 `cbor:"active_users_limit"`
}
