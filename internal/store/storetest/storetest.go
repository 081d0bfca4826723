// Package storetest holds behaviour checks shared by every store.FileStore backend.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/vovakirdan/wirerelay/internal/store"
)

// Factory returns a fresh, empty store. Cleanup is the factory's responsibility.
type Factory func(t *testing.T) store.FileStore

// Run exercises the FileStore contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(context.Background(), "nope.txt"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		data := []byte{0x00, 0x68, 0x69, 0xff, '\n'}

		if err := s.Put(ctx, "a.txt", data); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, err := s.Get(ctx, "a.txt")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("got %v, want %v", got, data)
		}
	})

	t.Run("LastWriteWins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Put(ctx, "a.txt", []byte("first")); err != nil {
			t.Fatalf("put first: %v", err)
		}
		if err := s.Put(ctx, "a.txt", []byte("second")); err != nil {
			t.Fatalf("put second: %v", err)
		}
		got, err := s.Get(ctx, "a.txt")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(got) != "second" {
			t.Fatalf("got %q, want %q", got, "second")
		}
	})

	t.Run("EmptyContent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Put(ctx, "empty", nil); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, err := s.Get(ctx, "empty")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty content, got %d bytes", len(got))
		}
	})

	t.Run("List", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, name := range []string{"b.txt", "a.txt", "c.txt", "a.txt"} {
			if err := s.Put(ctx, name, []byte(name)); err != nil {
				t.Fatalf("put %s: %v", name, err)
			}
		}
		names, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []string{"a.txt", "b.txt", "c.txt"}
		if fmt.Sprint(names) != fmt.Sprint(want) {
			t.Fatalf("got %v, want %v", names, want)
		}
	})

	t.Run("ConcurrentPut", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := fmt.Sprintf("f%d", i%4)
				if err := s.Put(ctx, name, []byte(name)); err != nil {
					t.Errorf("put %s: %v", name, err)
				}
			}(i)
		}
		wg.Wait()

		for i := 0; i < 4; i++ {
			name := fmt.Sprintf("f%d", i)
			got, err := s.Get(ctx, name)
			if err != nil {
				t.Fatalf("get %s: %v", name, err)
			}
			if string(got) != name {
				t.Fatalf("got %q, want %q", got, name)
			}
		}
	})
}
