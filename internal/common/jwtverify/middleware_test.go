package jwtverify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AlibekovAA/videotube/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/videotube/backend/internal/common/errors"
	commonhttp "github.com/AlibekovAA/videotube/backend/internal/common/http"
	"github.com/AlibekovAA/videotube/backend/internal/common/logger"
)

const testID = "8d5c8c0e-4a3e-4f43-9c61-1f1b2b0c2a11"

func verifier(valid string) VerifyFunc {
	return func(raw string) (Claims, error) {
		if raw != valid {
			return Claims{}, commonerrors.NewDomainError("TOKEN_EXPIRED", commonerrors.CategoryUnauthorized, http.StatusUnauthorized, "token expired")
		}
		return Claims{IdentityID: testID, Handle: "alice"}, nil
	}
}

func newHandler(t *testing.T, verify VerifyFunc) (http.Handler, *Claims) {
	t.Helper()

	seen := &Claims{}
	log := logger.NewWithWriter(io.Discard, "jwt-test", "DEBUG")
	handler := Middleware(verify, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if !ok {
			t.Error("expected claims in context")
		}
		*seen = claims
		w.WriteHeader(http.StatusNoContent)
	}))
	return handler, seen
}

func TestMiddleware_BearerHeader(t *testing.T) {
	handler, seen := newHandler(t, verifier("good"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if seen.IdentityID != testID || seen.Handle != "alice" {
		t.Errorf("unexpected claims %+v", seen)
	}
}

func TestMiddleware_CookieFallback(t *testing.T) {
	handler, _ := newHandler(t, verifier("good"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: constants.AccessTokenCookie, Value: "good"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		verify   VerifyFunc
		wantCode string
	}{
		{name: "missing", verify: verifier("good"), wantCode: commonhttp.CodeMissingAuthorization},
		{name: "not bearer", header: "Basic abc", verify: verifier("good"), wantCode: commonhttp.CodeMissingAuthorization},
		{name: "domain failure keeps code", header: "Bearer stale", verify: verifier("good"), wantCode: "TOKEN_EXPIRED"},
		{
			name:   "plain failure",
			header: "Bearer x",
			verify: func(string) (Claims, error) {
				return Claims{}, errors.New("boom")
			},
			wantCode: commonhttp.CodeInvalidToken,
		},
		{
			name:   "non uuid identity",
			header: "Bearer x",
			verify: func(string) (Claims, error) {
				return Claims{IdentityID: "root"}, nil
			},
			wantCode: commonhttp.CodeInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newHandler(t, tt.verify)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			var env commonhttp.ErrorEnvelope
			if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, env.Code)
			}
		})
	}
}
