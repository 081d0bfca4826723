package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrKeyRejected is returned when a client presents the wrong access key.
var ErrKeyRejected = errors.New("access key rejected")

// Gate checks the optional shared access key clients present on auth.
// A nil Gate admits everyone.
type Gate struct {
	hash string
}

// NewGate builds a gate from a bcrypt hash. An empty hash disables the gate
// and returns nil.
func NewGate(hash string) (*Gate, error) {
	if hash == "" {
		return nil, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid access key hash: %w", err)
	}
	return &Gate{hash: hash}, nil
}

// Check returns ErrKeyRejected unless key matches.
func (g *Gate) Check(key string) error {
	if g == nil {
		return nil
	}
	if err := CompareKey(g.hash, key); err != nil {
		return ErrKeyRejected
	}
	return nil
}
