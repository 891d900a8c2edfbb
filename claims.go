package authz

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is what the pipeline reads from a verified token. Only the
// principal id drives authorization, everything else is informational.
type AuthClaims interface {
	UserID() string
	TokenID() string
	Role() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the payload issued by TokenService
type JWTClaims struct {
	jwt.RegisteredClaims
	PrincipalID string `json:"pid,omitempty"`
	IssuedRole  string `json:"role,omitempty"`
	Email       string `json:"email,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

// UserID returns the pid claim or sub when pid is absent, so tokens minted
// by other issuers sharing the key still resolve.
func (c *JWTClaims) UserID() string {
	if c.PrincipalID != "" {
		return c.PrincipalID
	}
	return c.Subject
}

// TokenID returns the jti claim
func (c *JWTClaims) TokenID() string {
	return c.ID
}

// Role returns the role stamped at issue time. Guards never read it.
func (c *JWTClaims) Role() string {
	return c.IssuedRole
}

func (c *JWTClaims) Expires() time.Time {
	return numericTime(c.ExpiresAt)
}

func (c *JWTClaims) IssuedAt() time.Time {
	return numericTime(c.RegisteredClaims.IssuedAt)
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}
