package domain

import "time"

type ID string

// Identity is one user principal. PasswordHash and RefreshToken form its
// session record; RefreshToken is empty while no session is active.
type Identity struct {
	ID           ID
	Handle       string
	Email        string
	FullName     string
	Avatar       string
	CoverImage   string
	PasswordHash string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type SessionRecord struct {
	IdentityID   ID
	PasswordHash string
	RefreshToken string
}

func (i Identity) Session() SessionRecord {
	return SessionRecord{
		IdentityID:   i.ID,
		PasswordHash: i.PasswordHash,
		RefreshToken: i.RefreshToken,
	}
}

func (s SessionRecord) Active() bool {
	return s.RefreshToken != ""
}

// Profile is the public projection of an Identity.
type Profile struct {
	ID         ID
	Handle     string
	Email      string
	FullName   string
	Avatar     string
	CoverImage string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (i Identity) Profile() Profile {
	return Profile{
		ID:         i.ID,
		Handle:     i.Handle,
		Email:      i.Email,
		FullName:   i.FullName,
		Avatar:     i.Avatar,
		CoverImage: i.CoverImage,
		CreatedAt:  i.CreatedAt,
		UpdatedAt:  i.UpdatedAt,
	}
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
