// Package manifest is the value model of the synchronized filesystem tree:
// immutable remote manifests as persisted by the vlob store, and the local
// manifests a client session edits offline before syncing them.
//
// Every value in this package is immutable once constructed. Changes are
// expressed with Evolve* methods that return a modified copy.
package manifest

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/google/uuid"
)

// EntryID identifies a filesystem entry. It doubles as the vlob id the
// entry is stored under.
type EntryID uuid.UUID

// NewEntryID returns a random EntryID.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

// ParseEntryID parses the canonical textual form of an EntryID.
func ParseEntryID(s string) (EntryID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EntryID{}, fmt.Errorf("%w: entry id %q", common.ErrInvalidInput, s)
	}
	return EntryID(u), nil
}

func (id EntryID) String() string { return uuid.UUID(id).String() }

// UUID exposes the id as a uuid.UUID (vlob keys, SQL arguments).
func (id EntryID) UUID() uuid.UUID { return uuid.UUID(id) }

// Compare orders ids by their byte representation.
func (id EntryID) Compare(other EntryID) int { return bytes.Compare(id[:], other[:]) }

func (id EntryID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *EntryID) UnmarshalText(b []byte) error {
	parsed, err := ParseEntryID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

var (
	namePartRe = regexp.MustCompile(`^[\w\-]{1,32}$`)
)

// OrganizationID names a tenant.
type OrganizationID string

func ParseOrganizationID(s string) (OrganizationID, error) {
	if !namePartRe.MatchString(s) {
		return "", fmt.Errorf("%w: organization id %q", common.ErrInvalidInput, s)
	}
	return OrganizationID(s), nil
}

func (o OrganizationID) String() string { return string(o) }

// UserID names a user inside an organization.
type UserID string

func ParseUserID(s string) (UserID, error) {
	if !namePartRe.MatchString(s) {
		return "", fmt.Errorf("%w: user id %q", common.ErrInvalidInput, s)
	}
	return UserID(s), nil
}

// DeviceID is "<user>@<device name>".
type DeviceID string

func ParseDeviceID(s string) (DeviceID, error) {
	user, device, ok := strings.Cut(s, "@")
	if !ok || !namePartRe.MatchString(user) || !namePartRe.MatchString(device) {
		return "", fmt.Errorf("%w: device id %q", common.ErrInvalidInput, s)
	}
	return DeviceID(s), nil
}

// NewDeviceID joins a user id and a device name.
func NewDeviceID(user UserID, name string) (DeviceID, error) {
	return ParseDeviceID(string(user) + "@" + name)
}

func (d DeviceID) String() string { return string(d) }

func (d DeviceID) UserID() UserID {
	user, _, _ := strings.Cut(string(d), "@")
	return UserID(user)
}

func (d DeviceID) DeviceName() string {
	_, name, _ := strings.Cut(string(d), "@")
	return name
}

// MaxEntryNameLength is counted in code points.
const MaxEntryNameLength = 256

// EntryName is a child name inside a folder or workspace.
type EntryName string

// ParseEntryName validates a child name: 1 to 256 code points, valid UTF-8,
// no path separator or NUL, and not "." or "..".
func ParseEntryName(s string) (EntryName, error) {
	n := utf8.RuneCountInString(s)
	switch {
	case n == 0 || n > MaxEntryNameLength,
		!utf8.ValidString(s),
		strings.ContainsAny(s, "/\x00"),
		s == "." || s == "..":
		return "", fmt.Errorf("%w: entry name %q", common.ErrInvalidInput, s)
	}
	return EntryName(s), nil
}

func (n EntryName) String() string { return string(n) }
