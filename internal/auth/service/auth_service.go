package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/AlibekovAA/videotube/backend/internal/auth/domain"
	"github.com/AlibekovAA/videotube/backend/internal/auth/replay"
	"github.com/AlibekovAA/videotube/backend/internal/auth/repository"
	"github.com/AlibekovAA/videotube/backend/internal/auth/token"
	"github.com/AlibekovAA/videotube/backend/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/videotube/backend/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/videotube/backend/internal/common/errors"
	"github.com/AlibekovAA/videotube/backend/internal/common/logger"
	"github.com/AlibekovAA/videotube/backend/internal/media"
)

const (
	avatarFolder = "avatars"
	coverFolder  = "covers"
)

// Breaker guards store calls; *db.DBCircuitBreaker satisfies it.
type Breaker interface {
	Call(ctx context.Context, fn func(context.Context) error) error
}

type Config struct {
	AccessTokenSecret              string
	RefreshTokenSecret             string
	AccessTokenTTL                 time.Duration
	RefreshTokenTTL                time.Duration
	RevokeSessionsOnPasswordChange bool
	ReplayAlertThreshold           int
}

type AuthService struct {
	store            repository.SessionStore
	hasher           commoncrypto.PasswordHasher
	tokens           *TokenIssuer
	media            media.Store
	replay           replay.Tracker
	breaker          Breaker
	idGenerator      commoncrypto.IDGenerator
	log              *logger.Logger
	revokeOnPassword bool
	replayThreshold  int64

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	store repository.SessionStore,
	hasher commoncrypto.PasswordHasher,
	mediaStore media.Store,
	tracker replay.Tracker,
	breaker Breaker,
	idGenerator commoncrypto.IDGenerator,
	clk clock.Clock,
	cfg Config,
	log *logger.Logger,
) *AuthService {
	if tracker == nil {
		tracker = replay.NoopTracker{}
	}
	return &AuthService{
		store:  store,
		hasher: hasher,
		tokens: NewTokenIssuer(
			token.NewCodec(clk),
			cfg.AccessTokenSecret,
			cfg.RefreshTokenSecret,
			cfg.AccessTokenTTL,
			cfg.RefreshTokenTTL,
			idGenerator,
		),
		media:            mediaStore,
		replay:           tracker,
		breaker:          breaker,
		idGenerator:      idGenerator,
		log:              log,
		revokeOnPassword: cfg.RevokeSessionsOnPasswordChange,
		replayThreshold:  int64(cfg.ReplayAlertThreshold),
	}
}

type LoginInput struct {
	Login    string
	Password string
}

type LoginResult struct {
	Tokens  domain.TokenPair
	Profile domain.Profile
}

type RegisterInput struct {
	Handle     string
	Email      string
	FullName   string
	Password   string
	Avatar     *media.Upload
	CoverImage *media.Upload
}

type ChangePasswordInput struct {
	IdentityID      domain.ID
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

type UpdateAccountInput struct {
	IdentityID domain.ID
	FullName   string
	Email      string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	login := normalizeLogin(input.Login)
	s.log.WithFields(ctx, logger.Fields{
		"login":  login,
		"action": "login_attempt",
	}).Info("login attempt")

	if login == "" || input.Password == "" {
		return LoginResult{}, validationError("login and password are required")
	}

	var identity domain.Identity
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		identity, err = s.store.FindByLogin(ctx, login)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			s.hasher.Verify(input.Password, s.timingHash())
			incrementLoginAttempts("invalid_credentials")
			s.log.WithFields(ctx, logger.Fields{
				"login":  login,
				"action": "login_invalid_credentials",
			}).Warn("login failed: invalid credentials")
			return LoginResult{}, ErrInvalidCredentials
		}
		s.log.WithFields(ctx, logger.Fields{
			"login":  login,
			"action": "login_lookup_failed",
		}).Errorf("login failed: %v", err)
		return LoginResult{}, storeError(err)
	}

	if !s.hasher.Verify(input.Password, identity.PasswordHash) {
		incrementLoginAttempts("invalid_credentials")
		s.log.WithFields(ctx, logger.Fields{
			"login":  login,
			"action": "login_invalid_credentials",
		}).Warn("login failed: invalid credentials")
		return LoginResult{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(identity)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(identity.ID),
			"action":  "login_token_issue_failed",
		}).Errorf("login failed: token issue error: %v", err)
		return LoginResult{}, commonerrors.ErrInternalError.WithCause(err)
	}

	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		return s.store.SetRefreshToken(ctx, identity.ID, pair.RefreshToken)
	})
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(identity.ID),
			"action":  "login_session_store_failed",
		}).Errorf("login failed: %v", err)
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, storeError(err)
	}

	incrementLoginAttempts("success")
	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(identity.ID),
		"action":  "login_success",
	}).Info("login success")

	return LoginResult{Tokens: pair, Profile: identity.Profile()}, nil
}

func (s *AuthService) Refresh(ctx context.Context, presented string) (LoginResult, error) {
	s.log.WithFields(ctx, logger.Fields{
		"action": "refresh_token_attempt",
	}).Debug("refresh token attempt")

	claims, err := s.tokens.VerifyRefresh(presented)
	if err != nil {
		incrementRefreshTokensRejected(err)
		s.log.WithFields(ctx, logger.Fields{
			"action": "refresh_token_rejected",
		}).Warnf("refresh token rejected: %v", err)
		return LoginResult{}, err
	}
	id := domain.ID(claims.IdentityID)

	identity, err := s.load(ctx, id)
	if err != nil {
		incrementRefreshTokensRejected(err)
		return LoginResult{}, err
	}

	if !sameToken(presented, identity.RefreshToken) {
		s.reportReuse(ctx, id, identity.RefreshToken == "")
		incrementRefreshTokensRejected(ErrTokenMismatch)
		return LoginResult{}, ErrTokenMismatch
	}

	pair, err := s.tokens.IssuePair(identity)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(id),
			"action":  "refresh_token_issue_failed",
		}).Errorf("refresh failed: token issue error: %v", err)
		return LoginResult{}, commonerrors.ErrInternalError.WithCause(err)
	}

	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		return s.store.SwapRefreshToken(ctx, id, presented, pair.RefreshToken)
	})
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenConflict) || errors.Is(err, repository.ErrIdentityNotFound) {
			s.reportReuse(ctx, id, false)
			incrementRefreshTokensRejected(ErrTokenMismatch)
			return LoginResult{}, ErrTokenMismatch
		}
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(id),
			"action":  "refresh_token_swap_failed",
		}).Errorf("refresh failed: %v", err)
		return LoginResult{}, storeError(err)
	}

	incrementRefreshTokensRotated()
	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(id),
		"action":  "refresh_token_success",
	}).Info("refresh token rotated")

	return LoginResult{Tokens: pair, Profile: identity.Profile()}, nil
}

func (s *AuthService) Logout(ctx context.Context, id domain.ID) error {
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		return s.store.SetRefreshToken(ctx, id, "")
	})
	if err != nil && !errors.Is(err, repository.ErrIdentityNotFound) {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(id),
			"action":  "logout_failed",
		}).Errorf("logout failed: %v", err)
		return storeError(err)
	}

	incrementSessionsRevoked("logout")
	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(id),
		"action":  "logout_success",
	}).Info("logout success")
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	identity, err := s.load(ctx, input.IdentityID)
	if err != nil {
		incrementPasswordChanges("error")
		return err
	}

	if !s.hasher.Verify(input.OldPassword, identity.PasswordHash) {
		incrementPasswordChanges("invalid_credentials")
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(identity.ID),
			"action":  "change_password_invalid_old",
		}).Warn("change password failed: old password does not match")
		return ErrInvalidCredentials
	}

	if input.NewPassword != input.ConfirmPassword {
		incrementPasswordChanges("mismatch")
		return ErrPasswordMismatch
	}

	if err := validateStruct(passwordRules{Password: input.NewPassword}); err != nil {
		incrementPasswordChanges("invalid")
		return err
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		incrementPasswordChanges("error")
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(identity.ID),
			"action":  "change_password_hash_failed",
		}).Errorf("change password failed: hash error: %v", err)
		return commonerrors.ErrInternalError.WithCause(err)
	}

	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		if s.revokeOnPassword {
			return s.store.ResetCredentials(ctx, identity.ID, hash)
		}
		return s.store.SetPasswordHash(ctx, identity.ID, hash)
	})
	if err != nil {
		incrementPasswordChanges("error")
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(identity.ID),
			"action":  "change_password_store_failed",
		}).Errorf("change password failed: %v", err)
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return ErrInvalidToken
		}
		return storeError(err)
	}

	incrementPasswordChanges("success")
	if s.revokeOnPassword {
		incrementSessionsRevoked("password_change")
	}
	s.log.WithFields(ctx, logger.Fields{
		"user_id":          string(identity.ID),
		"sessions_revoked": s.revokeOnPassword,
		"action":           "change_password_success",
	}).Info("password changed")
	return nil
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (domain.Profile, error) {
	input.Handle = normalizeLogin(input.Handle)
	input.Email = normalizeLogin(input.Email)
	input.FullName = strings.TrimSpace(input.FullName)

	s.log.WithFields(ctx, logger.Fields{
		"handle": input.Handle,
		"action": "register_attempt",
	}).Info("register attempt")

	err := validateStruct(registerRules{
		Handle:   input.Handle,
		Email:    input.Email,
		FullName: input.FullName,
		Password: input.Password,
	})
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"handle": input.Handle,
			"action": "register_validation_failed",
		}).Warnf("register validation failed: %v", err)
		return domain.Profile{}, err
	}

	var exists bool
	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		exists, err = s.store.Exists(ctx, input.Handle, input.Email)
		return err
	})
	if err != nil {
		return domain.Profile{}, storeError(err)
	}
	if exists {
		s.log.WithFields(ctx, logger.Fields{
			"handle": input.Handle,
			"action": "register_identity_exists",
		}).Warn("register failed: already exists")
		return domain.Profile{}, ErrIdentityExists
	}

	if input.Avatar == nil {
		return domain.Profile{}, ErrAvatarRequired
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"handle": input.Handle,
			"action": "register_hash_failed",
		}).Errorf("register failed: password hash error: %v", err)
		return domain.Profile{}, commonerrors.ErrInternalError.WithCause(err)
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		return domain.Profile{}, commonerrors.ErrInternalError.WithCause(err)
	}

	avatarURL, err := s.upload(ctx, avatarFolder, *input.Avatar)
	if err != nil {
		return domain.Profile{}, err
	}
	uploaded := []string{avatarURL}

	var coverURL string
	if input.CoverImage != nil {
		coverURL, err = s.upload(ctx, coverFolder, *input.CoverImage)
		if err != nil {
			s.discard(ctx, uploaded...)
			return domain.Profile{}, err
		}
		uploaded = append(uploaded, coverURL)
	}

	var created domain.Identity
	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.store.Create(ctx, domain.Identity{
			ID:           domain.ID(id),
			Handle:       input.Handle,
			Email:        input.Email,
			FullName:     input.FullName,
			Avatar:       avatarURL,
			CoverImage:   coverURL,
			PasswordHash: hash,
		})
		return err
	})
	if err != nil {
		s.discard(ctx, uploaded...)
		s.log.WithFields(ctx, logger.Fields{
			"handle": input.Handle,
			"action": "register_create_failed",
		}).Errorf("register failed: %v", err)
		return domain.Profile{}, storeError(err)
	}

	incrementRegistrations()
	s.log.WithFields(ctx, logger.Fields{
		"handle":  created.Handle,
		"user_id": string(created.ID),
		"action":  "register_success",
	}).Info("register success")

	return created.Profile(), nil
}

func (s *AuthService) CurrentUser(ctx context.Context, id domain.ID) (domain.Profile, error) {
	identity, err := s.load(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	return identity.Profile(), nil
}

func (s *AuthService) UpdateAccount(ctx context.Context, input UpdateAccountInput) (domain.Profile, error) {
	input.Email = normalizeLogin(input.Email)
	input.FullName = strings.TrimSpace(input.FullName)

	if err := validateStruct(accountRules{Email: input.Email, FullName: input.FullName}); err != nil {
		return domain.Profile{}, err
	}

	var updated domain.Identity
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.store.UpdateAccount(ctx, input.IdentityID, input.FullName, input.Email)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return domain.Profile{}, ErrInvalidToken
		}
		return domain.Profile{}, storeError(err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(updated.ID),
		"action":  "update_account_success",
	}).Info("account details updated")
	return updated.Profile(), nil
}

func (s *AuthService) UpdateAvatar(ctx context.Context, id domain.ID, file *media.Upload) (domain.Profile, error) {
	if file == nil {
		return domain.Profile{}, ErrAvatarRequired
	}
	return s.replaceImage(ctx, id, avatarFolder, *file, func(identity domain.Identity) string {
		return identity.Avatar
	}, s.store.SetAvatar)
}

func (s *AuthService) UpdateCoverImage(ctx context.Context, id domain.ID, file *media.Upload) (domain.Profile, error) {
	if file == nil {
		return domain.Profile{}, validationError("cover image file is required")
	}
	return s.replaceImage(ctx, id, coverFolder, *file, func(identity domain.Identity) string {
		return identity.CoverImage
	}, s.store.SetCoverImage)
}

// VerifyAccessToken checks an access token presented to a protected route.
func (s *AuthService) VerifyAccessToken(raw string) (*token.AccessClaims, error) {
	return s.tokens.VerifyAccess(raw)
}

func (s *AuthService) replaceImage(
	ctx context.Context,
	id domain.ID,
	folder string,
	file media.Upload,
	current func(domain.Identity) string,
	set func(context.Context, domain.ID, string) (domain.Identity, error),
) (domain.Profile, error) {
	identity, err := s.load(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	previous := current(identity)

	url, err := s.upload(ctx, folder, file)
	if err != nil {
		return domain.Profile{}, err
	}

	var updated domain.Identity
	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		updated, err = set(ctx, id, url)
		return err
	})
	if err != nil {
		s.discard(ctx, url)
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return domain.Profile{}, ErrInvalidToken
		}
		return domain.Profile{}, storeError(err)
	}

	if previous != "" {
		s.discard(ctx, previous)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(id),
		"folder":  folder,
		"action":  "image_replaced",
	}).Info("image replaced")
	return updated.Profile(), nil
}

func (s *AuthService) load(ctx context.Context, id domain.ID) (domain.Identity, error) {
	var identity domain.Identity
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		identity, err = s.store.Load(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return domain.Identity{}, ErrInvalidToken
		}
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(id),
			"action":  "identity_load_failed",
		}).Errorf("identity load failed: %v", err)
		return domain.Identity{}, storeError(err)
	}
	return identity, nil
}

func (s *AuthService) upload(ctx context.Context, folder string, file media.Upload) (string, error) {
	url, err := s.media.Upload(ctx, folder, file)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedType) {
			return "", validationError("only jpeg, png, gif or webp images are accepted").WithCause(err)
		}
		s.log.WithFields(ctx, logger.Fields{
			"folder": folder,
			"action": "media_upload_failed",
		}).Errorf("media upload failed: %v", err)
		return "", ErrMediaUnavailable.WithCause(err)
	}
	return url, nil
}

// discard removes uploaded objects that are no longer referenced. Failures
// are logged and otherwise ignored.
func (s *AuthService) discard(ctx context.Context, urls ...string) {
	for _, url := range urls {
		if err := s.media.Delete(ctx, url); err != nil {
			s.log.WithFields(ctx, logger.Fields{
				"url":    url,
				"action": "media_delete_failed",
			}).Warnf("media delete failed: %v", err)
		}
	}
}

// reportReuse records a refresh token that was presented after it stopped
// being the current one. loggedOut distinguishes a token replayed after
// logout from one replayed after rotation.
func (s *AuthService) reportReuse(ctx context.Context, id domain.ID, loggedOut bool) {
	incrementReuseDetected()

	count, err := s.replay.Record(ctx, id)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(id),
			"action":  "refresh_token_replay_track_failed",
		}).Warnf("replay tracking failed: %v", err)
	}

	entry := s.log.WithFields(ctx, logger.Fields{
		"user_id":    string(id),
		"logged_out": loggedOut,
		"count":      count,
		"action":     "refresh_token_reuse_detected",
	})
	if s.replayThreshold > 0 && count >= s.replayThreshold {
		entry.Critical("repeated refresh token reuse")
		return
	}
	entry.Warn("refresh token reuse detected")
}

// timingHash is compared against when the login names no identity so the
// response takes as long as a wrong password would.
func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("timing-equalizer-password")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func sameToken(presented, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
