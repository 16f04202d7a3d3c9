package models

import (
	"time"

	"github.com/dmitrijs2005/gophvault/internal/manifest"
)

// StoredManifest is a row of the local manifest cache. Sealed holds the
// encrypted local manifest; the other columns are kept in clear for
// queries.
type StoredManifest struct {
	EntryID     manifest.EntryID
	Kind        manifest.Kind
	BaseVersion uint64
	NeedSync    bool
	Updated     time.Time
	Sealed      []byte
}
