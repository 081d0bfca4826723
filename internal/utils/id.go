package utils

import "github.com/google/uuid"

// NewID returns a random UUID used to tag connections in logs.
func NewID() string {
	return uuid.NewString()
}
