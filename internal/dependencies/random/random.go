package random

import (
	"github.com/google/uuid"
)

// Random provides identifier generation that can be mocked for testing
type Random interface {
	// UUID returns a new random (version 4) UUID
	UUID() uuid.UUID
}

// CryptoRandom implements Random using crypto/rand via the uuid package
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// UUID returns a new random UUID
func (r *CryptoRandom) UUID() uuid.UUID {
	return uuid.New()
}
