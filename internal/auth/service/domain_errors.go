package service

import (
	"errors"
	"net/http"

	"github.com/AlibekovAA/videotube/backend/internal/auth/repository"
	commonerrors "github.com/AlibekovAA/videotube/backend/internal/common/errors"
)

var (
	ErrInvalidCredentials = commonerrors.NewDomainError(
		"INVALID_CREDENTIALS",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid credentials",
	)

	ErrInvalidToken = commonerrors.NewDomainError(
		"INVALID_TOKEN",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid token",
	)

	ErrTokenMismatch = commonerrors.NewDomainError(
		"TOKEN_MISMATCH",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"refresh token is expired or used",
	)

	ErrPasswordMismatch = commonerrors.NewDomainError(
		"PASSWORD_MISMATCH",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"new password and confirmation do not match",
	)

	ErrStoreUnavailable = commonerrors.NewDomainError(
		"STORE_UNAVAILABLE",
		commonerrors.CategoryExternal,
		http.StatusServiceUnavailable,
		"session store unavailable",
	)

	ErrValidation = commonerrors.NewDomainError(
		"VALIDATION_FAILED",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"validation failed",
	)

	ErrIdentityExists = commonerrors.NewDomainError(
		"IDENTITY_EXISTS",
		commonerrors.CategoryConflict,
		http.StatusConflict,
		"user with this handle or email already exists",
	)

	ErrAvatarRequired = commonerrors.NewDomainError(
		"AVATAR_REQUIRED",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"avatar file is required",
	)

	ErrMediaUnavailable = commonerrors.NewDomainError(
		"MEDIA_UNAVAILABLE",
		commonerrors.CategoryExternal,
		http.StatusBadGateway,
		"failed to store media",
	)
)

// storeError converts store failures that are not business outcomes into
// ErrStoreUnavailable. Circuit breaker rejections land here too.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrHandleTaken) || errors.Is(err, repository.ErrEmailTaken) {
		return ErrIdentityExists.WithCause(err)
	}
	if errors.Is(err, repository.ErrAmbiguousLogin) {
		return commonerrors.ErrInternalError.WithCause(err)
	}
	if commonerrors.IsDomainError(err) && !errors.Is(err, commonerrors.ErrCircuitOpen) {
		return err
	}
	return ErrStoreUnavailable.WithCause(err)
}

// StoreOutcomes are the store errors that describe data rather than failure;
// they never count against the circuit breaker.
var StoreOutcomes = []error{
	repository.ErrIdentityNotFound,
	repository.ErrRefreshTokenConflict,
	repository.ErrHandleTaken,
	repository.ErrEmailTaken,
	repository.ErrAmbiguousLogin,
}
