package service

import (
	"errors"

	"github.com/AlibekovAA/videotube/backend/internal/auth/token"
	"github.com/AlibekovAA/videotube/backend/internal/observability/metrics"
)

func incrementTokensIssued() {
	metrics.AccessTokensIssued.Inc()
	metrics.RefreshTokensIssued.Inc()
}

func incrementRefreshTokensRotated() {
	metrics.RefreshTokensRotated.Inc()
}

func incrementRefreshTokensRejected(err error) {
	metrics.RefreshTokensRejected.WithLabelValues(rejectReason(err)).Inc()
}

func incrementReuseDetected() {
	metrics.RefreshTokenReuseDetected.Inc()
}

func incrementLoginAttempts(result string) {
	metrics.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

func incrementSessionsRevoked(reason string) {
	metrics.SessionsRevoked.WithLabelValues(reason).Inc()
}

func incrementPasswordChanges(result string) {
	metrics.PasswordChangesTotal.WithLabelValues(result).Inc()
}

func incrementRegistrations() {
	metrics.RegistrationsTotal.Inc()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "expired"
	case errors.Is(err, token.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, token.ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenMismatch):
		return "mismatch"
	case errors.Is(err, ErrInvalidToken):
		return "unknown_identity"
	default:
		return "error"
	}
}
