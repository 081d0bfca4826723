package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/vovakirdan/wirerelay/internal/store"
	"github.com/vovakirdan/wirerelay/internal/store/storetest"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("WIRERELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WIRERELAY_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.FileStore {
		ctx := context.Background()
		s, err := New(ctx, dsn)
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		if err := s.Truncate(ctx); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
