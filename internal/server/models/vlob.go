package models

import (
	"time"

	"github.com/google/uuid"
)

// Vlob is one persisted version of a versioned blob.
type Vlob struct {
	OrganizationID string
	VlobID         uuid.UUID
	Version        uint64
	Blob           []byte
	Author         string
	CreatedOn      time.Time
}

// IsPlaceholder reports whether v stands for "no manifest yet".
func (v *Vlob) IsPlaceholder() bool { return v.Version == 0 }

// PlaceholderVlob is returned for reads of version 0 and of keys that were
// never written.
func PlaceholderVlob(org string, id uuid.UUID) *Vlob {
	return &Vlob{OrganizationID: org, VlobID: id}
}
