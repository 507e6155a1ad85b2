package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/AlibekovAA/videotube/backend/internal/auth/domain"
	"github.com/AlibekovAA/videotube/backend/internal/common/clock"
)

var (
	accessSecret  = []byte("access-secret-access-secret-access-secret")
	refreshSecret = []byte("refresh-secret-refresh-secret-refresh-secret")
)

func testIdentity() domain.Identity {
	return domain.Identity{
		ID:       "8d5c8c0e-4a3e-4f43-9c61-1f1b2b0c2a11",
		Handle:   "alice",
		Email:    "alice@example.com",
		FullName: "Alice Liddell",
	}
}

func newTestCodec() (*Codec, *clock.MockClock) {
	clk := clock.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewCodec(clk), clk
}

func TestCodec_AccessRoundTrip(t *testing.T) {
	codec, clk := newTestCodec()

	raw, err := codec.Sign(NewAccessClaims(testIdentity()), accessSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	var got AccessClaims
	if err := codec.Verify(raw, accessSecret, &got); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	want := AccessClaims{
		IdentityID:  "8d5c8c0e-4a3e-4f43-9c61-1f1b2b0c2a11",
		Email:       "alice@example.com",
		Handle:      "alice",
		DisplayName: "Alice Liddell",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(clk.Now()),
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(15 * time.Minute)),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("claims mismatch (-want +got):\n%s", diff)
	}
}

func TestCodec_RefreshClaimsCarryJTI(t *testing.T) {
	codec, _ := newTestCodec()

	first, err := codec.Sign(NewRefreshClaims(testIdentity(), "jti-1"), refreshSecret, time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	second, err := codec.Sign(NewRefreshClaims(testIdentity(), "jti-2"), refreshSecret, time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if first == second {
		t.Fatal("expected tokens issued in the same second to differ")
	}

	var got RefreshClaims
	if err := codec.Verify(second, refreshSecret, &got); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.IdentityID != string(testIdentity().ID) || got.ID != "jti-2" {
		t.Errorf("unexpected claims: %+v", got)
	}
}

func TestCodec_ZeroTTLIsExpired(t *testing.T) {
	codec, _ := newTestCodec()

	raw, err := codec.Sign(NewAccessClaims(testIdentity()), accessSecret, 0)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	var got AccessClaims
	if err := codec.Verify(raw, accessSecret, &got); !errors.Is(err, ErrExpired) {
		t.Fatalf("Verify() error = %v, want %v", err, ErrExpired)
	}
	if got.IdentityID != "" {
		t.Error("expected claims to be reset on failure")
	}
}

func TestCodec_ExpiresAtBoundary(t *testing.T) {
	codec, clk := newTestCodec()

	raw, err := codec.Sign(NewAccessClaims(testIdentity()), accessSecret, time.Minute)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	clk.Advance(59 * time.Second)
	if err := codec.Verify(raw, accessSecret, &AccessClaims{}); err != nil {
		t.Fatalf("Verify() before exp error = %v", err)
	}

	clk.Advance(time.Second)
	if err := codec.Verify(raw, accessSecret, &AccessClaims{}); !errors.Is(err, ErrExpired) {
		t.Fatalf("Verify() at exp error = %v, want %v", err, ErrExpired)
	}
}

func TestCodec_TamperedTokenHasBadSignature(t *testing.T) {
	codec, _ := newTestCodec()

	raw, err := codec.Sign(NewAccessClaims(testIdentity()), accessSecret, time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	parts := strings.Split(raw, ".")

	tests := []struct {
		name    string
		segment int
	}{
		{name: "header", segment: 0},
		{name: "payload", segment: 1},
		{name: "signature", segment: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := make([]string, len(parts))
			copy(tampered, parts)
			tampered[tt.segment] = flipChar(tampered[tt.segment], 2)

			err := codec.Verify(strings.Join(tampered, "."), accessSecret, &AccessClaims{})
			if !errors.Is(err, ErrBadSignature) {
				t.Fatalf("Verify() error = %v, want %v", err, ErrBadSignature)
			}
		})
	}
}

func TestCodec_WrongSecret(t *testing.T) {
	codec, _ := newTestCodec()

	raw, err := codec.Sign(NewAccessClaims(testIdentity()), accessSecret, time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if err := codec.Verify(raw, refreshSecret, &AccessClaims{}); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("Verify() error = %v, want %v", err, ErrBadSignature)
	}
}

func TestCodec_Malformed(t *testing.T) {
	codec, _ := newTestCodec()

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "empty", raw: "", want: ErrMalformed},
		{name: "garbage", raw: "not-a-token", want: ErrMalformed},
		{name: "two segments", raw: "abc.def", want: ErrMalformed},
		{name: "four segments", raw: "a.b.c.d", want: ErrMalformed},
		{name: "signature not base64url", raw: "abc.def.!!!", want: ErrBadSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := codec.Verify(tt.raw, accessSecret, &AccessClaims{}); !errors.Is(err, tt.want) {
				t.Fatalf("Verify() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCodec_SignedGarbagePayloadIsMalformed(t *testing.T) {
	codec, _ := newTestCodec()

	// Correctly signed but missing the id claim.
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
	}).SignedString(accessSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if err := codec.Verify(raw, accessSecret, &RefreshClaims{}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Verify() error = %v, want %v", err, ErrMalformed)
	}
}

func TestCodec_MissingExpirationIsMalformed(t *testing.T) {
	codec, _ := newTestCodec()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id": "someone",
	}).SignedString(refreshSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if err := codec.Verify(raw, refreshSecret, &RefreshClaims{}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Verify() error = %v, want %v", err, ErrMalformed)
	}
}

func TestCodec_NegativeTTL(t *testing.T) {
	codec, _ := newTestCodec()

	if _, err := codec.Sign(NewAccessClaims(testIdentity()), accessSecret, -time.Second); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}

func TestExpiresAt(t *testing.T) {
	codec, clk := newTestCodec()

	claims := NewRefreshClaims(testIdentity(), "jti")
	if _, err := codec.Sign(claims, refreshSecret, time.Hour); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if got, want := ExpiresAt(claims), clk.Now().Add(time.Hour); !got.Equal(want) {
		t.Errorf("ExpiresAt() = %v, want %v", got, want)
	}
}

func flipChar(s string, i int) string {
	b := []byte(s)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}
