package token

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlibekovAA/videotube/backend/internal/common/clock"
	commonerrors "github.com/AlibekovAA/videotube/backend/internal/common/errors"
	"github.com/AlibekovAA/videotube/backend/internal/observability/metrics"
)

var (
	ErrExpired = commonerrors.NewDomainError(
		"TOKEN_EXPIRED",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"token expired",
	)

	ErrBadSignature = commonerrors.NewDomainError(
		"TOKEN_BAD_SIGNATURE",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"token signature is invalid",
	)

	ErrMalformed = commonerrors.NewDomainError(
		"TOKEN_MALFORMED",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"token is malformed",
	)
)

var signingMethod = jwt.SigningMethodHS256

// Codec signs and verifies HS256 tokens against a caller-supplied secret.
// Expiry is enforced with no leeway: a token is expired once now >= exp.
type Codec struct {
	clock clock.Clock
}

func NewCodec(clk clock.Clock) *Codec {
	return &Codec{clock: clk}
}

// Sign stamps iat and exp on claims and returns the compact token.
func (c *Codec) Sign(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	if ttl < 0 {
		return "", errors.New("token ttl must not be negative")
	}

	now := c.clock.Now()
	claims.stamp(now, now.Add(ttl))

	return jwt.NewWithClaims(signingMethod, claims).SignedString(secret)
}

// Verify fills claims from raw when the signature, structure and expiry all
// check out. On any failure claims is left zeroed.
func (c *Codec) Verify(raw string, secret []byte, claims Claims) error {
	metrics.JWTValidationsTotal.Inc()

	if err := c.verify(raw, secret, claims); err != nil {
		claims.reset()
		metrics.JWTValidationsFailed.Inc()
		return err
	}
	return nil
}

func (c *Codec) verify(raw string, secret []byte, claims Claims) error {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return ErrMalformed
	}

	// The signature is checked over the raw segments before anything is
	// decoded, so any altered byte surfaces as a signature failure.
	sig, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil || len(sig) == 0 {
		return ErrBadSignature
	}
	if err := signingMethod.Verify(parts[0]+"."+parts[1], sig, secret); err != nil {
		return ErrBadSignature.WithCause(err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
	)
	_, err = parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature.WithCause(err)
	default:
		return ErrMalformed.WithCause(err)
	}

	if err := claims.validate(); err != nil {
		return ErrMalformed.WithCause(err)
	}
	return nil
}

// ExpiresAt reports the exp claim of already signed or verified claims.
func ExpiresAt(claims Claims) time.Time {
	return expiresAt(claims)
}
