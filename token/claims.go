package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded payload of a server-issued access token. Only
// expiry is interpreted by this core; signature validation belongs to
// the issuing server.
type Claims struct {
	DeviceID string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

// ErrNoExpiry is returned when a token carries no exp claim. Such a
// token is always treated as expired.
var ErrNoExpiry = errors.New("token has no expiry claim")

// Decode parses tok without verifying its signature and returns the
// claims. Any structural decode failure yields an error.
func Decode(tok string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Expired reports whether tok expires at or before now+buffer. Tokens
// that fail to decode or lack an expiry claim are always expired.
func Expired(tok string, buffer time.Duration, now time.Time) bool {
	claims, err := Decode(tok)
	if err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return !now.Add(buffer).Before(claims.ExpiresAt.Time)
}
