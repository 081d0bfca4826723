package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vovakirdan/wirerelay/internal/store"
)

// DefaultPrefix namespaces file keys when none is configured.
const DefaultPrefix = "wirerelay:file:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store keeps each file as a single Redis string value. SET replaces the
// whole value atomically, which gives last-write-wins per key.
type Store struct {
	client *goredis.Client
	prefix string
}

// New connects and pings the server.
func New(ctx context.Context, opts Options) (*Store, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client, prefix: prefix}, nil
}

// Put stores data under name.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+name, data, 0).Err(); err != nil {
		return fmt.Errorf("set %q: %w", name, err)
	}
	return nil
}

// Get returns the content stored under name.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+name).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("get %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get %q: %w", name, err)
	}
	return data, nil
}

// List scans the key space under the prefix.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan keys: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Clear deletes every key under the prefix. Used by tests.
func (s *Store) Clear(ctx context.Context) error {
	names, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.client.Del(ctx, s.prefix+name).Err(); err != nil {
			return fmt.Errorf("del %q: %w", name, err)
		}
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
