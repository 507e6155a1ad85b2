package service_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/AlibekovAA/videotube/backend/internal/auth/domain"
	"github.com/AlibekovAA/videotube/backend/internal/auth/repository"
	"github.com/AlibekovAA/videotube/backend/internal/auth/service"
	"github.com/AlibekovAA/videotube/backend/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/videotube/backend/internal/common/crypto"
	"github.com/AlibekovAA/videotube/backend/internal/common/db"
	"github.com/AlibekovAA/videotube/backend/internal/common/logger"
	"github.com/AlibekovAA/videotube/backend/internal/media"
)

const (
	testAccessSecret  = "access-secret-access-secret-access-secret"
	testRefreshSecret = "refresh-secret-refresh-secret-refresh-secret"
	testPassword      = "correct-horse-1"
)

// memoryStore is an in-memory SessionStore with the same compare-and-swap
// semantics as the Postgres store. failFunc, when set, can fail any call.
type memoryStore struct {
	mu         sync.Mutex
	identities map[domain.ID]domain.Identity
	failFunc   func(op string) error
	calls      map[string]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		identities: make(map[domain.ID]domain.Identity),
		calls:      make(map[string]int),
	}
}

func (m *memoryStore) enter(op string) error {
	m.calls[op]++
	if m.failFunc != nil {
		return m.failFunc(op)
	}
	return nil
}

func (m *memoryStore) put(identity domain.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[identity.ID] = identity
}

func (m *memoryStore) remove(id domain.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.identities, id)
}

func (m *memoryStore) get(id domain.ID) domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identities[id]
}

func (m *memoryStore) callCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *memoryStore) Load(_ context.Context, id domain.ID) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Load"); err != nil {
		return domain.Identity{}, err
	}
	identity, ok := m.identities[id]
	if !ok {
		return domain.Identity{}, repository.ErrIdentityNotFound
	}
	return identity, nil
}

func (m *memoryStore) FindByLogin(_ context.Context, login string) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindByLogin"); err != nil {
		return domain.Identity{}, err
	}
	for _, identity := range m.identities {
		if identity.Handle == login || identity.Email == login {
			return identity, nil
		}
	}
	return domain.Identity{}, repository.ErrIdentityNotFound
}

func (m *memoryStore) Exists(_ context.Context, handle, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Exists"); err != nil {
		return false, err
	}
	for _, identity := range m.identities {
		if identity.Handle == handle || identity.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) Create(_ context.Context, identity domain.Identity) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Create"); err != nil {
		return domain.Identity{}, err
	}
	for _, existing := range m.identities {
		if existing.Handle == identity.Handle {
			return domain.Identity{}, repository.ErrHandleTaken
		}
		if existing.Email == identity.Email {
			return domain.Identity{}, repository.ErrEmailTaken
		}
	}
	identity.RefreshToken = ""
	m.identities[identity.ID] = identity
	return identity, nil
}

func (m *memoryStore) SetRefreshToken(_ context.Context, id domain.ID, token string) error {
	return m.update("SetRefreshToken", id, func(identity *domain.Identity) error {
		identity.RefreshToken = token
		return nil
	})
}

func (m *memoryStore) SwapRefreshToken(_ context.Context, id domain.ID, expected, next string) error {
	return m.update("SwapRefreshToken", id, func(identity *domain.Identity) error {
		if identity.RefreshToken == "" || identity.RefreshToken != expected {
			return repository.ErrRefreshTokenConflict
		}
		identity.RefreshToken = next
		return nil
	})
}

func (m *memoryStore) SetPasswordHash(_ context.Context, id domain.ID, hash string) error {
	return m.update("SetPasswordHash", id, func(identity *domain.Identity) error {
		identity.PasswordHash = hash
		return nil
	})
}

func (m *memoryStore) ResetCredentials(_ context.Context, id domain.ID, hash string) error {
	return m.update("ResetCredentials", id, func(identity *domain.Identity) error {
		identity.PasswordHash = hash
		identity.RefreshToken = ""
		return nil
	})
}

func (m *memoryStore) UpdateAccount(_ context.Context, id domain.ID, fullName, email string) (domain.Identity, error) {
	var updated domain.Identity
	err := m.update("UpdateAccount", id, func(identity *domain.Identity) error {
		for otherID, other := range m.identities {
			if otherID != id && other.Email == email {
				return repository.ErrEmailTaken
			}
		}
		identity.FullName = fullName
		identity.Email = email
		updated = *identity
		return nil
	})
	return updated, err
}

func (m *memoryStore) SetAvatar(_ context.Context, id domain.ID, url string) (domain.Identity, error) {
	var updated domain.Identity
	err := m.update("SetAvatar", id, func(identity *domain.Identity) error {
		identity.Avatar = url
		updated = *identity
		return nil
	})
	return updated, err
}

func (m *memoryStore) SetCoverImage(_ context.Context, id domain.ID, url string) (domain.Identity, error) {
	var updated domain.Identity
	err := m.update("SetCoverImage", id, func(identity *domain.Identity) error {
		identity.CoverImage = url
		updated = *identity
		return nil
	})
	return updated, err
}

func (m *memoryStore) update(op string, id domain.ID, fn func(*domain.Identity) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(op); err != nil {
		return err
	}
	identity, ok := m.identities[id]
	if !ok {
		return repository.ErrIdentityNotFound
	}
	if err := fn(&identity); err != nil {
		return err
	}
	m.identities[id] = identity
	return nil
}

type mockMedia struct {
	mu         sync.Mutex
	uploadFunc func(ctx context.Context, folder string, file media.Upload) (string, error)
	deleteFunc func(ctx context.Context, url string) error
	uploaded   []string
	deleted    []string
}

func (m *mockMedia) Upload(ctx context.Context, folder string, file media.Upload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, folder, file)
	}
	url := "https://cdn.example.com/" + folder + "/" + file.Filename
	m.uploaded = append(m.uploaded, url)
	return url, nil
}

func (m *mockMedia) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, url)
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, url)
	}
	return nil
}

type mockTracker struct {
	mu     sync.Mutex
	counts map[domain.ID]int64
}

func (m *mockTracker) Record(_ context.Context, id domain.ID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[domain.ID]int64)
	}
	m.counts[id]++
	return m.counts[id], nil
}

func (m *mockTracker) count(id domain.ID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[id]
}

type fixture struct {
	svc     *service.AuthService
	store   *memoryStore
	media   *mockMedia
	tracker *mockTracker
	clock   *clock.MockClock
	hasher  *commoncrypto.BcryptHasher
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "auth-test", "DEBUG")
}

func setupAuthService(t *testing.T, opts ...func(*service.Config)) *fixture {
	t.Helper()

	hasher, err := commoncrypto.NewBcryptHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcryptHasher() error = %v", err)
	}

	cfg := service.Config{
		AccessTokenSecret:              testAccessSecret,
		RefreshTokenSecret:             testRefreshSecret,
		AccessTokenTTL:                 15 * time.Minute,
		RefreshTokenTTL:                time.Hour,
		RevokeSessionsOnPasswordChange: true,
		ReplayAlertThreshold:           3,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := testLogger()
	f := &fixture{
		store:   newMemoryStore(),
		media:   &mockMedia{},
		tracker: &mockTracker{},
		clock:   clock.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		hasher:  hasher,
	}
	breaker := db.NewDBCircuitBreaker(3, time.Second, time.Minute, log).Ignore(service.StoreOutcomes...)

	f.svc = service.NewAuthService(
		f.store,
		hasher,
		f.media,
		f.tracker,
		breaker,
		commoncrypto.NewUUIDGenerator(),
		f.clock,
		cfg,
		log,
	)
	return f
}

func (f *fixture) seedIdentity(t *testing.T, handle, email, password string) domain.Identity {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	identity := domain.Identity{
		ID:           domain.ID(uuid.NewString()),
		Handle:       handle,
		Email:        email,
		FullName:     "Test " + handle,
		Avatar:       "https://cdn.example.com/avatars/" + handle + ".png",
		PasswordHash: hash,
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
	}
	f.store.put(identity)
	return identity
}
