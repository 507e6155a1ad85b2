package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AlibekovAA/videotube/backend/internal/auth/service"
	"github.com/AlibekovAA/videotube/backend/internal/auth/token"
)

func login(t *testing.T, f *fixture, handle string) service.LoginResult {
	t.Helper()

	result, err := f.svc.Login(context.Background(), service.LoginInput{Login: handle, Password: testPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return result
}

func TestAuthService_Refresh_RotatesToken(t *testing.T) {
	f := setupAuthService(t)
	alice := f.seedIdentity(t, "alice", "alice@example.com", testPassword)
	session := login(t, f, "alice")

	rotated, err := f.svc.Refresh(context.Background(), session.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if rotated.Tokens.RefreshToken == session.Tokens.RefreshToken {
		t.Fatal("expected a new refresh token")
	}
	if got := f.store.get(alice.ID).RefreshToken; got != rotated.Tokens.RefreshToken {
		t.Error("expected stored token to be the rotated one")
	}
	if rotated.Profile.ID != alice.ID {
		t.Errorf("unexpected profile %+v", rotated.Profile)
	}
}

func TestAuthService_Refresh_ReplayAfterRotation(t *testing.T) {
	f := setupAuthService(t)
	alice := f.seedIdentity(t, "alice", "alice@example.com", testPassword)
	session := login(t, f, "alice")
	ctx := context.Background()

	rotated, err := f.svc.Refresh(ctx, session.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("rotation failed: %v", err)
	}

	_, err = f.svc.Refresh(ctx, session.Tokens.RefreshToken)
	if !errors.Is(err, service.ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch, got %v", err)
	}
	if got := f.store.get(alice.ID).RefreshToken; got != rotated.Tokens.RefreshToken {
		t.Error("rejected refresh must leave the stored token untouched")
	}
	if f.tracker.count(alice.ID) != 1 {
		t.Errorf("expected replay to be recorded once, got %d", f.tracker.count(alice.ID))
	}

	if _, err := f.svc.Refresh(ctx, rotated.Tokens.RefreshToken); err != nil {
		t.Fatalf("current token should still rotate, got %v", err)
	}
}

func TestAuthService_Refresh_AfterLogout(t *testing.T) {
	f := setupAuthService(t)
	alice := f.seedIdentity(t, "alice", "alice@example.com", testPassword)
	session := login(t, f, "alice")
	ctx := context.Background()

	if err := f.svc.Logout(ctx, alice.ID); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	_, err := f.svc.Refresh(ctx, session.Tokens.RefreshToken)
	if !errors.Is(err, service.ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch, got %v", err)
	}
	if f.store.get(alice.ID).RefreshToken != "" {
		t.Error("rejected refresh must not restore a session")
	}
}

func TestAuthService_Refresh_Expired(t *testing.T) {
	f := setupAuthService(t)
	f.seedIdentity(t, "alice", "alice@example.com", testPassword)
	session := login(t, f, "alice")

	f.clock.Advance(time.Hour)

	_, err := f.svc.Refresh(context.Background(), session.Tokens.RefreshToken)
	if !errors.Is(err, token.ErrExpired) {
		t.Fatalf("expected token.ErrExpired, got %v", err)
	}
}

func TestAuthService_Refresh_RejectsAccessToken(t *testing.T) {
	f := setupAuthService(t)
	f.seedIdentity(t, "alice", "alice@example.com", testPassword)
	session := login(t, f, "alice")

	_, err := f.svc.Refresh(context.Background(), session.Tokens.AccessToken)
	if !errors.Is(err, token.ErrBadSignature) {
		t.Fatalf("expected token.ErrBadSignature, got %v", err)
	}
}

func TestAuthService_Refresh_Malformed(t *testing.T) {
	f := setupAuthService(t)

	_, err := f.svc.Refresh(context.Background(), "garbage")
	if !errors.Is(err, token.ErrMalformed) {
		t.Fatalf("expected token.ErrMalformed, got %v", err)
	}
}

func TestAuthService_Refresh_UnknownIdentity(t *testing.T) {
	f := setupAuthService(t)
	alice := f.seedIdentity(t, "alice", "alice@example.com", testPassword)
	session := login(t, f, "alice")

	f.store.remove(alice.ID)

	_, err := f.svc.Refresh(context.Background(), session.Tokens.RefreshToken)
	if !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthService_Refresh_ConcurrentSingleWinner(t *testing.T) {
	f := setupAuthService(t)
	alice := f.seedIdentity(t, "alice", "alice@example.com", testPassword)
	session := login(t, f, "alice")

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []string
		failures int
	)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			result, err := f.svc.Refresh(context.Background(), session.Tokens.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !errors.Is(err, service.ErrTokenMismatch) {
					t.Errorf("unexpected error %v", err)
				}
				failures++
				return
			}
			winners = append(winners, result.Tokens.RefreshToken)
		}()
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}
	if failures != workers-1 {
		t.Errorf("expected %d failures, got %d", workers-1, failures)
	}
	if got := f.store.get(alice.ID).RefreshToken; got != winners[0] {
		t.Error("expected the winner's token to be stored")
	}
}

func TestAuthService_Logout_Idempotent(t *testing.T) {
	f := setupAuthService(t)
	alice := f.seedIdentity(t, "alice", "alice@example.com", testPassword)
	login(t, f, "alice")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := f.svc.Logout(ctx, alice.ID); err != nil {
			t.Fatalf("logout %d failed: %v", i+1, err)
		}
		if f.store.get(alice.ID).RefreshToken != "" {
			t.Fatalf("expected empty session after logout %d", i+1)
		}
	}

	if err := f.svc.Logout(ctx, "00000000-0000-0000-0000-000000000000"); err != nil {
		t.Fatalf("expected logout of unknown identity to be a no-op, got %v", err)
	}
}

func TestAuthService_Logout_StoreUnavailable(t *testing.T) {
	f := setupAuthService(t)
	alice := f.seedIdentity(t, "alice", "alice@example.com", testPassword)
	f.store.failFunc = func(op string) error { return errors.New("timeout") }

	if err := f.svc.Logout(context.Background(), alice.ID); !errors.Is(err, service.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
