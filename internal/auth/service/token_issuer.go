package service

import (
	"time"

	"github.com/AlibekovAA/videotube/backend/internal/auth/domain"
	"github.com/AlibekovAA/videotube/backend/internal/auth/token"
	commoncrypto "github.com/AlibekovAA/videotube/backend/internal/common/crypto"
)

// TokenIssuer binds the codec to the access and refresh secrets.
type TokenIssuer struct {
	codec         *token.Codec
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	idGenerator   commoncrypto.IDGenerator
}

func NewTokenIssuer(
	codec *token.Codec,
	accessSecret string,
	refreshSecret string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
	idGenerator commoncrypto.IDGenerator,
) *TokenIssuer {
	return &TokenIssuer{
		codec:         codec,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		idGenerator:   idGenerator,
	}
}

func (ti *TokenIssuer) IssuePair(identity domain.Identity) (domain.TokenPair, error) {
	accessClaims := token.NewAccessClaims(identity)
	access, err := ti.codec.Sign(accessClaims, ti.accessSecret, ti.accessTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}

	jti, err := ti.idGenerator.NewID()
	if err != nil {
		return domain.TokenPair{}, err
	}
	refreshClaims := token.NewRefreshClaims(identity, jti)
	refresh, err := ti.codec.Sign(refreshClaims, ti.refreshSecret, ti.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}

	incrementTokensIssued()
	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  token.ExpiresAt(accessClaims),
		RefreshExpiresAt: token.ExpiresAt(refreshClaims),
	}, nil
}

func (ti *TokenIssuer) VerifyAccess(raw string) (*token.AccessClaims, error) {
	claims := &token.AccessClaims{}
	if err := ti.codec.Verify(raw, ti.accessSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (ti *TokenIssuer) VerifyRefresh(raw string) (*token.RefreshClaims, error) {
	claims := &token.RefreshClaims{}
	if err := ti.codec.Verify(raw, ti.refreshSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
