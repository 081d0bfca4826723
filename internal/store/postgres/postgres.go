package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/vovakirdan/wirerelay/internal/store"
)

// Store implements store.FileStore on PostgreSQL through the pgx driver.
type Store struct {
	db *sql.DB
}

// New connects to dsn, verifies the connection and creates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS relay_files (
		name       TEXT PRIMARY KEY,
		content    BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Put creates or replaces the file stored under name.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	query := `
		INSERT INTO relay_files (name, content, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, name, data); err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}
	return nil
}

// Get returns the content stored under name.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM relay_files WHERE name = $1`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query file: %w", err)
	}
	return data, nil
}

// List returns all stored names ordered by name.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM relay_files ORDER BY name COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan file name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Truncate removes every stored file. Used by tests sharing one database.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE relay_files`)
	return err
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
