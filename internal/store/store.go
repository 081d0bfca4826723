package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when no file is stored under the requested name.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidFilename is returned for names that cannot be used as storage keys.
	ErrInvalidFilename = errors.New("invalid filename")
)

// MaxFilenameBytes bounds a sanitized filename.
const MaxFilenameBytes = 255

// FileStore persists uploaded file contents keyed by sanitized filename.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Put creates or overwrites the content stored under name.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the content stored under name, or an error wrapping ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)

	// List returns all stored names in lexical order.
	List(ctx context.Context) ([]string, error)

	// Close releases the underlying resources.
	Close() error
}

// SanitizeFilename validates a client-supplied filename for use as a storage key.
// Directory components are never stripped silently: a name carrying any path
// separator is rejected outright.
func SanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: empty name", ErrInvalidFilename)
	case name == "." || name == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	case len(name) > MaxFilenameBytes:
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidFilename, MaxFilenameBytes)
	case strings.ContainsAny(name, "/\\"):
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidFilename, name)
	case strings.ContainsRune(name, 0):
		return "", fmt.Errorf("%w: contains NUL byte", ErrInvalidFilename)
	case strings.Contains(name, ".."):
		return "", fmt.Errorf("%w: %q contains \"..\"", ErrInvalidFilename, name)
	case filepath.IsAbs(name) || filepath.VolumeName(name) != "":
		return "", fmt.Errorf("%w: %q is an absolute path", ErrInvalidFilename, name)
	}
	return name, nil
}
