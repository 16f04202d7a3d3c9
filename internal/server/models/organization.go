// Package models contains the rows persisted by the backend repositories and
// the read-only projections handed to callers.
package models

import "time"

type Organization struct {
	ID string
	// ActiveUsersLimit is nil when the organization is unbounded.
	ActiveUsersLimit *int64
	CreatedOn        time.Time
}
