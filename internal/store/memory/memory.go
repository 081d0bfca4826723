package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vovakirdan/wirerelay/internal/store"
)

// Store keeps files in a mutex-guarded map. Contents are lost on restart.
type Store struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{files: make(map[string][]byte)}
}

// Put stores a private copy of data under name.
func (s *Store) Put(_ context.Context, name string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.files[name] = buf
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the content stored under name.
func (s *Store) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.files[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("get %q: %w", name, store.ErrNotFound)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// List returns stored names sorted lexically.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
