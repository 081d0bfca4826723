// Package dir stores uploaded files as plain files in a directory.
package dir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/vovakirdan/wirerelay/internal/store"
)

// Store keeps each file under <root>/files/<name>. Writes go to <root>/tmp
// first and are renamed into place, so a reader sees either the old or the
// new content, never a partial write.
type Store struct {
	files string
	tmp   string
}

// New prepares root and returns a store rooted there.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", root, err)
	}
	s := &Store{
		files: filepath.Join(abs, "files"),
		tmp:   filepath.Join(abs, "tmp"),
	}
	for _, d := range []string{s.files, s.tmp} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create %q: %w", d, err)
		}
	}
	return s, nil
}

func (s *Store) path(name string) (string, error) {
	clean, err := store.SanitizeFilename(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.files, clean), nil
}

// Put atomically replaces the file stored under name.
func (s *Store) Put(_ context.Context, name string, data []byte) error {
	target, err := s.path(name)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(s.tmp, "upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := f.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Get reads the file stored under name.
func (s *Store) Get(_ context.Context, name string) ([]byte, error) {
	target, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("get %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("read %q: %w", name, err)
	}
	return data, nil
}

// List returns the regular files in the store, sorted by name.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.files)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
