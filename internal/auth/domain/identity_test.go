package domain

import "testing"

func TestIdentity_ProjectionsHideSecrets(t *testing.T) {
	identity := Identity{
		ID:           "id-1",
		Handle:       "alice",
		Email:        "alice@example.com",
		FullName:     "Alice Liddell",
		Avatar:       "https://cdn.example/avatars/a.png",
		PasswordHash: "$2a$10$hash",
		RefreshToken: "refresh",
	}

	session := identity.Session()
	if session.IdentityID != "id-1" || session.PasswordHash != "$2a$10$hash" || !session.Active() {
		t.Errorf("unexpected session record %+v", session)
	}

	profile := identity.Profile()
	if profile.Handle != "alice" || profile.Avatar != identity.Avatar {
		t.Errorf("unexpected profile %+v", profile)
	}

	identity.RefreshToken = ""
	if identity.Session().Active() {
		t.Error("expected empty refresh token to mean no active session")
	}
}
