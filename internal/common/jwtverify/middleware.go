package jwtverify

import (
	"context"
	"net/http"
	"strings"

	"github.com/AlibekovAA/videotube/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/videotube/backend/internal/common/errors"
	commonhttp "github.com/AlibekovAA/videotube/backend/internal/common/http"
	"github.com/AlibekovAA/videotube/backend/internal/common/logger"
)

type Claims struct {
	IdentityID  string
	Handle      string
	Email       string
	DisplayName string
}

// VerifyFunc checks a raw access token and returns its claims.
type VerifyFunc func(raw string) (Claims, error)

type contextKey string

const claimsKey contextKey = "jwt_claims"

// Middleware authenticates the request with an access token taken from the
// Authorization bearer header or, failing that, the access token cookie.
func Middleware(verify VerifyFunc, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := commonhttp.TraceIDFromContext(r.Context())

			raw := TokenFromRequest(r)
			if raw == "" {
				log.WithFields(r.Context(), logger.Fields{
					"path":   r.URL.Path,
					"action": "jwt_missing",
				}).Warn("jwt auth failed: missing access token")
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization, "unauthorized request", nil, traceID)
				return
			}

			claims, err := verify(raw)
			if err == nil {
				err = commonhttp.ValidateUUID(claims.IdentityID)
			}
			if err != nil {
				log.WithFields(r.Context(), logger.Fields{
					"path":   r.URL.Path,
					"action": "jwt_invalid",
				}).Warnf("jwt auth failed: %v", err)

				code, message := commonhttp.CodeInvalidToken, "invalid access token"
				if de, ok := commonerrors.AsDomainError(err); ok {
					code, message = de.Code(), de.Message()
				}
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, code, message, nil, traceID)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(constants.AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func FromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(Claims)
	return claims, ok
}

// WithClaims stores claims the way Middleware does.
func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}
