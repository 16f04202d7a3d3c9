// Package auth mints and verifies device access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is what an access token vouches for.
type Identity struct {
	OrganizationID string
	DeviceID       string
	Profile        string
}

// Claims carries the identity next to the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	Org     string `json:"org"`
	Device  string `json:"device"`
	Profile string `json:"profile"`
}

func GenerateToken(id Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.DeviceID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Org:     id.OrganizationID,
		Device:  id.DeviceID,
		Profile: id.Profile,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// ParseToken verifies tokenString and returns its identity. Expired tokens
// yield common.ErrTokenExpired; anything else wrong is common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Org == "" || claims.Device == "" {
		return nil, common.ErrInvalidToken
	}

	return &Identity{OrganizationID: claims.Org, DeviceID: claims.Device, Profile: claims.Profile}, nil
}
