package models

import (
	"time"

	"github.com/google/uuid"
)

// Block records who registered a block id. The encrypted content itself
// lives in object storage under the same id.
type Block struct {
	OrganizationID string
	BlockID        uuid.UUID
	Author         string
	CreatedOn      time.Time
}
