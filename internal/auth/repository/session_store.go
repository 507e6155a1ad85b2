package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/videotube/backend/internal/auth/domain"
	"github.com/AlibekovAA/videotube/backend/internal/common/db"
)

var (
	ErrIdentityNotFound     = errors.New("identity not found")
	ErrHandleTaken          = errors.New("handle already exists")
	ErrEmailTaken           = errors.New("email already exists")
	ErrRefreshTokenConflict = errors.New("stored refresh token changed")
	ErrAmbiguousLogin       = errors.New("login matches more than one identity")
)

const (
	handleConstraint = "users_handle_key"
	emailConstraint  = "users_email_key"
)

// SessionStore persists identities together with their session record
// (password hash and the single current refresh token).
type SessionStore interface {
	Load(ctx context.Context, id domain.ID) (domain.Identity, error)
	FindByLogin(ctx context.Context, login string) (domain.Identity, error)
	Exists(ctx context.Context, handle, email string) (bool, error)
	Create(ctx context.Context, identity domain.Identity) (domain.Identity, error)
	SetRefreshToken(ctx context.Context, id domain.ID, token string) error
	// SwapRefreshToken replaces expected with next only while expected is
	// still the stored, non-empty token.
	SwapRefreshToken(ctx context.Context, id domain.ID, expected, next string) error
	SetPasswordHash(ctx context.Context, id domain.ID, hash string) error
	// ResetCredentials stores hash and clears the refresh token in one write.
	ResetCredentials(ctx context.Context, id domain.ID, hash string) error
	UpdateAccount(ctx context.Context, id domain.ID, fullName, email string) (domain.Identity, error)
	SetAvatar(ctx context.Context, id domain.ID, url string) (domain.Identity, error)
	SetCoverImage(ctx context.Context, id domain.ID, url string) (domain.Identity, error)
}

// DBTX is the subset of *pgxpool.Pool the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type PgSessionStore struct {
	db DBTX
}

func NewPgSessionStore(conn DBTX) *PgSessionStore {
	return &PgSessionStore{db: conn}
}

const identityColumns = `id, handle, email, full_name, avatar, cover_image, password_hash, refresh_token, created_at, updated_at`

func scanIdentity(row pgx.Row) (domain.Identity, error) {
	var identity domain.Identity
	var id string
	err := row.Scan(
		&id,
		&identity.Handle,
		&identity.Email,
		&identity.FullName,
		&identity.Avatar,
		&identity.CoverImage,
		&identity.PasswordHash,
		&identity.RefreshToken,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	identity.ID = domain.ID(id)
	return identity, err
}

// validID keeps non-UUID ids from reaching Postgres as a type error.
func validID(id domain.ID) bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

func (s *PgSessionStore) Load(ctx context.Context, id domain.ID) (domain.Identity, error) {
	if !validID(id) {
		return domain.Identity{}, ErrIdentityNotFound
	}

	start := time.Now()
	row := s.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE id = $1`, string(id))
	identity, err := scanIdentity(row)
	if err := db.HandleQueryError(err, ErrIdentityNotFound, "load identity", start); err != nil {
		return domain.Identity{}, err
	}
	return identity, nil
}

func (s *PgSessionStore) FindByLogin(ctx context.Context, login string) (domain.Identity, error) {
	start := time.Now()
	rows, err := s.db.Query(
		ctx,
		`SELECT `+identityColumns+` FROM users WHERE handle = $1 OR email = $1 LIMIT 2`,
		login,
	)
	if err != nil {
		return domain.Identity{}, db.HandleQueryError(err, nil, "find identity by login", start)
	}
	defer rows.Close()

	var found []domain.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return domain.Identity{}, db.HandleQueryError(err, nil, "scan identity", start)
		}
		found = append(found, identity)
	}
	if err := rows.Err(); err != nil {
		return domain.Identity{}, db.HandleQueryError(err, nil, "find identity by login", start)
	}
	db.MeasureQueryDuration("find identity by login", start)

	switch len(found) {
	case 0:
		return domain.Identity{}, ErrIdentityNotFound
	case 1:
		return found[0], nil
	default:
		return domain.Identity{}, ErrAmbiguousLogin
	}
}

func (s *PgSessionStore) Exists(ctx context.Context, handle, email string) (bool, error) {
	start := time.Now()
	var exists bool
	err := s.db.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE handle = $1 OR email = $2)`,
		handle,
		email,
	).Scan(&exists)
	if err := db.HandleQueryError(err, nil, "check identity exists", start); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PgSessionStore) Create(ctx context.Context, identity domain.Identity) (domain.Identity, error) {
	start := time.Now()
	row := s.db.QueryRow(
		ctx,
		`INSERT INTO users (id, handle, email, full_name, avatar, cover_image, password_hash, refresh_token)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, '')
		 RETURNING `+identityColumns,
		string(identity.ID),
		identity.Handle,
		identity.Email,
		identity.FullName,
		identity.Avatar,
		identity.CoverImage,
		identity.PasswordHash,
	)
	created, err := scanIdentity(row)
	if err != nil {
		if conflict := conflictError(err); conflict != nil {
			db.MeasureQueryDuration("create identity", start)
			return domain.Identity{}, conflict
		}
		return domain.Identity{}, db.HandleQueryError(err, nil, "create identity", start)
	}
	db.MeasureQueryDuration("create identity", start)
	return created, nil
}

func (s *PgSessionStore) SetRefreshToken(ctx context.Context, id domain.ID, token string) error {
	if !validID(id) {
		return ErrIdentityNotFound
	}

	start := time.Now()
	tag, err := s.db.Exec(
		ctx,
		`UPDATE users SET refresh_token = $2,
		     refresh_issued_at = CASE WHEN $2 = '' THEN NULL ELSE NOW() END,
		     updated_at = NOW()
		 WHERE id = $1`,
		string(id),
		token,
	)
	if err := db.HandleExecError(err, "set session token", start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func (s *PgSessionStore) SwapRefreshToken(ctx context.Context, id domain.ID, expected, next string) error {
	if !validID(id) {
		return ErrIdentityNotFound
	}

	start := time.Now()
	tag, err := s.db.Exec(
		ctx,
		`UPDATE users SET refresh_token = $3, refresh_issued_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND refresh_token = $2 AND refresh_token <> ''`,
		string(id),
		expected,
		next,
	)
	if err := db.HandleExecError(err, "swap session token", start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRefreshTokenConflict
	}
	return nil
}

// ClearStaleSessions empties refresh tokens issued before issuedBefore.
// Such tokens can no longer verify, so clearing them only drops dead secrets.
func (s *PgSessionStore) ClearStaleSessions(ctx context.Context, issuedBefore time.Time) (int64, error) {
	start := time.Now()
	tag, err := s.db.Exec(
		ctx,
		`UPDATE users SET refresh_token = '', refresh_issued_at = NULL
		 WHERE refresh_token <> '' AND refresh_issued_at < $1`,
		issuedBefore,
	)
	if err := db.HandleExecError(err, "clear stale sessions", start); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PgSessionStore) SetPasswordHash(ctx context.Context, id domain.ID, hash string) error {
	return s.execByID(ctx, id, "set identity password",
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, hash)
}

func (s *PgSessionStore) ResetCredentials(ctx context.Context, id domain.ID, hash string) error {
	return s.execByID(ctx, id, "reset session credentials",
		`UPDATE users SET password_hash = $2, refresh_token = '', refresh_issued_at = NULL, updated_at = NOW() WHERE id = $1`, hash)
}

func (s *PgSessionStore) UpdateAccount(ctx context.Context, id domain.ID, fullName, email string) (domain.Identity, error) {
	identity, err := s.updateReturning(ctx, id, "update identity account",
		`UPDATE users SET full_name = $2, email = $3, updated_at = NOW() WHERE id = $1 RETURNING `+identityColumns,
		fullName, email)
	if conflict := conflictError(err); conflict != nil {
		return domain.Identity{}, conflict
	}
	return identity, err
}

func (s *PgSessionStore) SetAvatar(ctx context.Context, id domain.ID, url string) (domain.Identity, error) {
	return s.updateReturning(ctx, id, "set identity avatar",
		`UPDATE users SET avatar = $2, updated_at = NOW() WHERE id = $1 RETURNING `+identityColumns, url)
}

func (s *PgSessionStore) SetCoverImage(ctx context.Context, id domain.ID, url string) (domain.Identity, error) {
	return s.updateReturning(ctx, id, "set identity cover image",
		`UPDATE users SET cover_image = $2, updated_at = NOW() WHERE id = $1 RETURNING `+identityColumns, url)
}

func (s *PgSessionStore) execByID(ctx context.Context, id domain.ID, operation, sql string, args ...interface{}) error {
	if !validID(id) {
		return ErrIdentityNotFound
	}

	start := time.Now()
	tag, err := s.db.Exec(ctx, sql, append([]interface{}{string(id)}, args...)...)
	if err := db.HandleExecError(err, operation, start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func (s *PgSessionStore) updateReturning(ctx context.Context, id domain.ID, operation, sql string, args ...interface{}) (domain.Identity, error) {
	if !validID(id) {
		return domain.Identity{}, ErrIdentityNotFound
	}

	start := time.Now()
	row := s.db.QueryRow(ctx, sql, append([]interface{}{string(id)}, args...)...)
	identity, err := scanIdentity(row)
	if err != nil {
		if conflict := conflictError(err); conflict != nil {
			db.MeasureQueryDuration(operation, start)
			return domain.Identity{}, err
		}
	}
	if err := db.HandleQueryError(err, ErrIdentityNotFound, operation, start); err != nil {
		return domain.Identity{}, err
	}
	return identity, nil
}

// conflictError maps unique violations on handle or email to store errors.
func conflictError(err error) error {
	if err == nil {
		return nil
	}
	constraint, ok := db.UniqueViolation(err)
	if !ok {
		return nil
	}
	switch constraint {
	case handleConstraint:
		return ErrHandleTaken
	case emailConstraint:
		return ErrEmailTaken
	default:
		return ErrHandleTaken
	}
}
