// Package events defines the typed change notifications emitted by the
// backend and the registry that fans them out to subscribers.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/google/uuid"
)

// Kind discriminates events on the wire.
type Kind string

const (
	KindVlobUpdated          Kind = "vlob.updated"
	KindPkiEnrollmentUpdated Kind = "pki_enrollment.updated"
)

// Event is one of VlobUpdated or PkiEnrollmentUpdated.
type Event interface {
	Kind() Kind
	Organization() string
}

// VlobUpdated is emitted after a new vlob version is committed.
type VlobUpdated struct {
	OrganizationID string    `json:"organization_id"`
	VlobID         uuid.UUID `json:"vlob_id"`
	Version        uint64    `json:"version"`
	Author         string    `json:"author"`
}

func (VlobUpdated) Kind() Kind             { return KindVlobUpdated }
func (e VlobUpdated) Organization() string { return e.OrganizationID }

// PkiEnrollmentUpdated is emitted on every enrollment state change.
type PkiEnrollmentUpdated struct {
	OrganizationID string `json:"organization_id"`
}

func (PkiEnrollmentUpdated) Kind() Kind             { return KindPkiEnrollmentUpdated }
func (e PkiEnrollmentUpdated) Organization() string { return e.OrganizationID }

type wireEvent struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes an event with its kind discriminant.
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEvent{Kind: e.Kind(), Payload: payload})
}

// Decode parses a payload produced by Encode.
func Decode(b []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: malformed event: %v", common.ErrInvalidInput, err)
	}
	switch w.Kind {
	case KindVlobUpdated:
		var e VlobUpdated
		if err := json.Unmarshal(w.Payload, &e); err != nil {
			return nil, fmt.Errorf("%w: malformed %s: %v", common.ErrInvalidInput, w.Kind, err)
		}
		return e, nil
	case KindPkiEnrollmentUpdated:
		var e PkiEnrollmentUpdated
		if err := json.Unmarshal(w.Payload, &e); err != nil {
			return nil, fmt.Errorf("%w: malformed %s: %v", common.ErrInvalidInput, w.Kind, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: unknown event kind %q", common.ErrInvalidInput, w.Kind)
	}
}
