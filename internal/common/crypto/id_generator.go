package crypto

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator produces identity ids and refresh token jti values.
type IDGenerator interface {
	NewID() (string, error)
}

// UUIDGenerator emits time-ordered UUIDv7 strings so new users rows append
// to the primary key index.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}
