package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlibekovAA/videotube/backend/internal/auth/domain"
)

// Claims is implemented by the two token shapes this package signs.
type Claims interface {
	jwt.Claims
	stamp(issuedAt, expiresAt time.Time)
	validate() error
	reset()
}

// AccessClaims is serialized as {id, email, handle, displayName, iat, exp}.
type AccessClaims struct {
	IdentityID  string `json:"id"`
	Email       string `json:"email"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}

func NewAccessClaims(identity domain.Identity) *AccessClaims {
	return &AccessClaims{
		IdentityID:  string(identity.ID),
		Email:       identity.Email,
		Handle:      identity.Handle,
		DisplayName: identity.FullName,
	}
}

func (c *AccessClaims) stamp(issuedAt, expiresAt time.Time) {
	c.IssuedAt = jwt.NewNumericDate(issuedAt)
	c.ExpiresAt = jwt.NewNumericDate(expiresAt)
}

func (c *AccessClaims) validate() error {
	if c.IdentityID == "" || c.Handle == "" {
		return errors.New("access token is missing id or handle")
	}
	return nil
}

func (c *AccessClaims) reset() {
	*c = AccessClaims{}
}

// RefreshClaims is serialized as {id, jti, iat, exp}. The jti keeps two
// refresh tokens issued within the same second distinct.
type RefreshClaims struct {
	IdentityID string `json:"id"`
	jwt.RegisteredClaims
}

func NewRefreshClaims(identity domain.Identity, jti string) *RefreshClaims {
	c := &RefreshClaims{IdentityID: string(identity.ID)}
	c.ID = jti
	return c
}

func (c *RefreshClaims) stamp(issuedAt, expiresAt time.Time) {
	c.IssuedAt = jwt.NewNumericDate(issuedAt)
	c.ExpiresAt = jwt.NewNumericDate(expiresAt)
}

func (c *RefreshClaims) validate() error {
	if c.IdentityID == "" {
		return errors.New("refresh token is missing id")
	}
	return nil
}

func (c *RefreshClaims) reset() {
	*c = RefreshClaims{}
}

func expiresAt(c Claims) time.Time {
	exp, err := c.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
