package mapper

import (
	"github.com/AlibekovAA/videotube/backend/internal/auth/domain"
	authdto "github.com/AlibekovAA/videotube/backend/internal/auth/service/dto"
)

func ProfileToDTO(profile domain.Profile) authdto.User {
	return authdto.User{
		ID:         string(profile.ID),
		Handle:     profile.Handle,
		Email:      profile.Email,
		FullName:   profile.FullName,
		Avatar:     profile.Avatar,
		CoverImage: profile.CoverImage,
		CreatedAt:  profile.CreatedAt,
		UpdatedAt:  profile.UpdatedAt,
	}
}

func SessionToDTO(profile domain.Profile, tokens domain.TokenPair) authdto.Session {
	return authdto.Session{
		User:         ProfileToDTO(profile),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}
}
