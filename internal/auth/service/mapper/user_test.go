package mapper

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/AlibekovAA/videotube/backend/internal/auth/domain"
)

func TestSessionToDTO_OmitsSecrets(t *testing.T) {
	identity := domain.Identity{
		ID:           "id-1",
		Handle:       "alice",
		Email:        "alice@example.com",
		FullName:     "Alice",
		PasswordHash: "$2a$10$secret-hash",
		RefreshToken: "stored-refresh",
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	session := SessionToDTO(identity.Profile(), domain.TokenPair{AccessToken: "a", RefreshToken: "r"})
	if session.User.Handle != "alice" || session.AccessToken != "a" || session.RefreshToken != "r" {
		t.Fatalf("unexpected session: %+v", session)
	}

	body, err := json.Marshal(session.User)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, secret := range []string{"secret-hash", "stored-refresh", "password", "refreshToken"} {
		if strings.Contains(string(body), secret) {
			t.Errorf("user payload leaks %q: %s", secret, body)
		}
	}
}
