package models

import "time"

type UserProfile string

const (
	UserProfileAdmin    UserProfile = "ADMIN"
	UserProfileStandard UserProfile = "STANDARD"
	UserProfileOutsider UserProfile = "OUTSIDER"
)

func (p UserProfile) Valid() bool {
	switch p {
	case UserProfileAdmin, UserProfileStandard, UserProfileOutsider:
		return true
	}
	return false
}

type User struct {
	OrganizationID  string
	UserID          string
	Profile         UserProfile
	UserCertificate []byte
	// UserCertifier is the device that certified this user, empty for the
	// bootstrap user.
	UserCertifier string
	CreatedOn     time.Time
	RevokedOn     *time.Time
}

// IsRevoked reports whether the user was revoked at or before now.
func (u *User) IsRevoked(now time.Time) bool {
	return u.RevokedOn != nil && !u.RevokedOn.After(now)
}

type Device struct {
	OrganizationID    string
	DeviceID          string
	DeviceCertificate []byte
	DeviceCertifier   string
	CreatedOn         time.Time
}
