package http

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/AlibekovAA/videotube/backend/internal/auth/domain"
	"github.com/AlibekovAA/videotube/backend/internal/auth/service"
	"github.com/AlibekovAA/videotube/backend/internal/auth/service/mapper"
	"github.com/AlibekovAA/videotube/backend/internal/auth/token"
	"github.com/AlibekovAA/videotube/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/videotube/backend/internal/common/errors"
	commonhttp "github.com/AlibekovAA/videotube/backend/internal/common/http"
	"github.com/AlibekovAA/videotube/backend/internal/common/jwtverify"
	"github.com/AlibekovAA/videotube/backend/internal/common/logger"
	"github.com/AlibekovAA/videotube/backend/internal/media"
)

const routePrefix = "/api/v1/users"

var (
	errInvalidJSON = commonerrors.NewDomainError(
		commonhttp.CodeInvalidJSON,
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"invalid json",
	)

	errInvalidMultipart = commonerrors.NewDomainError(
		commonhttp.CodeInvalidMultipart,
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"invalid multipart form",
	)

	errPayloadTooLarge = commonerrors.NewDomainError(
		commonhttp.CodePayloadTooLarge,
		commonerrors.CategoryValidation,
		http.StatusRequestEntityTooLarge,
		"file exceeds the upload limit",
	)

	errMissingRefreshToken = commonerrors.NewDomainError(
		commonhttp.CodeMissingRefreshToken,
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"unauthorized request",
	)
)

// AuthService is implemented by *service.AuthService.
type AuthService interface {
	Register(ctx context.Context, input service.RegisterInput) (domain.Profile, error)
	Login(ctx context.Context, input service.LoginInput) (service.LoginResult, error)
	Refresh(ctx context.Context, presented string) (service.LoginResult, error)
	Logout(ctx context.Context, id domain.ID) error
	ChangePassword(ctx context.Context, input service.ChangePasswordInput) error
	CurrentUser(ctx context.Context, id domain.ID) (domain.Profile, error)
	UpdateAccount(ctx context.Context, input service.UpdateAccountInput) (domain.Profile, error)
	UpdateAvatar(ctx context.Context, id domain.ID, file *media.Upload) (domain.Profile, error)
	UpdateCoverImage(ctx context.Context, id domain.ID, file *media.Upload) (domain.Profile, error)
	VerifyAccessToken(raw string) (*token.AccessClaims, error)
}

type Config struct {
	RequestTimeout         time.Duration
	MaxUploadBytes         int64
	CookieSecure           bool
	ClearCookiesOnPassword bool
}

type loginRequest struct {
	Handle   string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type Handler struct {
	auth   AuthService
	cfg    Config
	log    *logger.Logger
	errors *commonhttp.ErrorHandler
}

func NewHandler(auth AuthService, cfg Config, log *logger.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = constants.DefaultAuthRequestTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = constants.DefaultMaxUploadBytes
	}

	h := &Handler{
		auth:   auth,
		cfg:    cfg,
		log:    log,
		errors: commonhttp.NewErrorHandler(log),
	}

	timeout := commonhttp.WithTimeout(cfg.RequestTimeout)
	authenticated := jwtverify.Middleware(h.verifyAccess, log)
	protected := func(fn http.HandlerFunc) http.Handler {
		return authenticated(timeout(fn))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", commonhttp.HealthHandler(log))
	mux.Handle("POST "+routePrefix+"/register", timeout(h.register))
	mux.Handle("POST "+routePrefix+"/login", timeout(h.login))
	mux.Handle("POST "+routePrefix+"/refresh-token", timeout(h.refresh))
	mux.Handle("POST "+routePrefix+"/logout", protected(h.logout))
	mux.Handle("POST "+routePrefix+"/change-password", protected(h.changePassword))
	mux.Handle("GET "+routePrefix+"/current-user", protected(h.currentUser))
	mux.Handle("PATCH "+routePrefix+"/update-account", protected(h.updateAccount))
	mux.Handle("PATCH "+routePrefix+"/avatar", protected(h.updateAvatar))
	mux.Handle("PATCH "+routePrefix+"/cover-image", protected(h.updateCoverImage))
	return mux
}

func (h *Handler) verifyAccess(raw string) (jwtverify.Claims, error) {
	claims, err := h.auth.VerifyAccessToken(raw)
	if err != nil {
		return jwtverify.Claims{}, err
	}
	return jwtverify.Claims{
		IdentityID:  claims.IdentityID,
		Handle:      claims.Handle,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	}, nil
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.multipartLimit(2))
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		h.log.WithFields(r.Context(), logger.Fields{
			"action": "register_invalid_form",
		}).Warnf("register failed: invalid multipart form: %v", err)
		h.errors.HandleError(w, r, h.formError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	avatar, err := h.formFile(r, "avatar")
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	defer closeUpload(avatar)

	cover, err := h.formFile(r, "coverImage")
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	defer closeUpload(cover)

	profile, err := h.auth.Register(r.Context(), service.RegisterInput{
		Handle:     r.FormValue("userName"),
		Email:      r.FormValue("email"),
		FullName:   r.FormValue("fullName"),
		Password:   r.FormValue("password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, mapper.ProfileToDTO(profile))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := commonhttp.DecodeJSON(w, r, &req); err != nil {
		h.errors.HandleError(w, r, h.jsonError(err))
		return
	}

	login := req.Handle
	if login == "" {
		login = req.Email
	}

	result, err := h.auth.Login(r.Context(), service.LoginInput{
		Login:    login,
		Password: req.Password,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	h.setSessionCookies(w, result.Tokens)
	commonhttp.WriteJSON(w, http.StatusOK, mapper.SessionToDTO(result.Profile, result.Tokens))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	presented := ""
	if cookie, err := r.Cookie(constants.RefreshTokenCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req refreshRequest
		if err := commonhttp.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			h.errors.HandleError(w, r, h.jsonError(err))
			return
		}
		presented = req.RefreshToken
	}
	if presented == "" {
		h.errors.HandleError(w, r, errMissingRefreshToken)
		return
	}

	result, err := h.auth.Refresh(r.Context(), presented)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	h.setSessionCookies(w, result.Tokens)
	commonhttp.WriteJSON(w, http.StatusOK, mapper.SessionToDTO(result.Profile, result.Tokens))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := jwtverify.FromContext(r.Context())

	if err := h.auth.Logout(r.Context(), domain.ID(claims.IdentityID)); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	h.clearSessionCookies(w)
	commonhttp.WriteJSON(w, http.StatusOK, messageResponse{Message: "User logged out"})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	claims, _ := jwtverify.FromContext(r.Context())

	var req changePasswordRequest
	if err := commonhttp.DecodeJSON(w, r, &req); err != nil {
		h.errors.HandleError(w, r, h.jsonError(err))
		return
	}

	err := h.auth.ChangePassword(r.Context(), service.ChangePasswordInput{
		IdentityID:      domain.ID(claims.IdentityID),
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	if h.cfg.ClearCookiesOnPassword {
		h.clearSessionCookies(w)
	}
	commonhttp.WriteJSON(w, http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := jwtverify.FromContext(r.Context())

	profile, err := h.auth.CurrentUser(r.Context(), domain.ID(claims.IdentityID))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, mapper.ProfileToDTO(profile))
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	claims, _ := jwtverify.FromContext(r.Context())

	var req updateAccountRequest
	if err := commonhttp.DecodeJSON(w, r, &req); err != nil {
		h.errors.HandleError(w, r, h.jsonError(err))
		return
	}

	profile, err := h.auth.UpdateAccount(r.Context(), service.UpdateAccountInput{
		IdentityID: domain.ID(claims.IdentityID),
		FullName:   req.FullName,
		Email:      req.Email,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, mapper.ProfileToDTO(profile))
}

func (h *Handler) updateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "avatar", h.auth.UpdateAvatar)
}

func (h *Handler) updateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "coverImage", h.auth.UpdateCoverImage)
}

func (h *Handler) replaceImage(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	replace func(context.Context, domain.ID, *media.Upload) (domain.Profile, error),
) {
	claims, _ := jwtverify.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.multipartLimit(1))
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		h.errors.HandleError(w, r, h.formError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, err := h.formFile(r, field)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	defer closeUpload(file)

	profile, err := replace(r.Context(), domain.ID(claims.IdentityID), file)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, mapper.ProfileToDTO(profile))
}

// formFile returns nil when the field is absent.
func (h *Handler) formFile(r *http.Request, field string) (*media.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errInvalidMultipart.WithCause(err)
	}
	if header.Size > h.cfg.MaxUploadBytes {
		_ = file.Close()
		return nil, errPayloadTooLarge
	}

	return &media.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, nil
}

func closeUpload(upload *media.Upload) {
	if upload == nil {
		return
	}
	if f, ok := upload.Body.(multipart.File); ok {
		_ = f.Close()
	}
}

// multipartLimit bounds a form carrying the given number of files plus its text fields.
func (h *Handler) multipartLimit(files int64) int64 {
	return files*h.cfg.MaxUploadBytes + constants.MaxJSONBodySize
}

func (h *Handler) formError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return errPayloadTooLarge.WithCause(err)
	}
	return errInvalidMultipart.WithCause(err)
}

func (h *Handler) jsonError(err error) error {
	if errors.Is(err, commonhttp.ErrBodyTooLarge) {
		return errPayloadTooLarge.WithCause(err)
	}
	return errInvalidJSON.WithCause(err)
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, tokens domain.TokenPair) {
	http.SetCookie(w, h.cookie(constants.AccessTokenCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, h.cookie(constants.RefreshTokenCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{constants.AccessTokenCookie, constants.RefreshTokenCookie} {
		cookie := h.cookie(name, "", time.Unix(0, 0))
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

func (h *Handler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
