// Package snippets persists named code snippets in a local SQLite database.
// It uses modernc.org/sqlite for pure-Go, CGO-free database access.
package snippets

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS snippets (
	name       TEXT PRIMARY KEY,
	code       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Snippet is one saved piece of code.
type Snippet struct {
	Name      string
	Code      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the snippet database. Saving under an existing name overwrites
// the previous code, matching map-assignment semantics.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the snippet database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// Save stores code under name, overwriting any existing snippet.
func (s *Store) Save(ctx context.Context, name, code string) error {
	if name == "" {
		return fmt.Errorf("snippet name must not be empty")
	}
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snippets (name, code, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET code = excluded.code, updated_at = excluded.updated_at`,
		name, code, now, now,
	)
	if err != nil {
		return fmt.Errorf("save snippet %q: %w", name, err)
	}
	return nil
}

// Get returns the snippet stored under name.
func (s *Store) Get(ctx context.Context, name string) (*Snippet, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT name, code, created_at, updated_at FROM snippets WHERE name = ?", name)

	var sn Snippet
	var created, updated int64
	if err := row.Scan(&sn.Name, &sn.Code, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("snippet %q not found", name)
		}
		return nil, fmt.Errorf("get snippet %q: %w", name, err)
	}
	sn.CreatedAt = time.Unix(created, 0)
	sn.UpdatedAt = time.Unix(updated, 0)
	return &sn, nil
}

// List returns all snippets ordered by name.
func (s *Store) List(ctx context.Context) ([]Snippet, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, code, created_at, updated_at FROM snippets ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer rows.Close()

	var out []Snippet
	for rows.Next() {
		var sn Snippet
		var created, updated int64
		if err := rows.Scan(&sn.Name, &sn.Code, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		sn.CreatedAt = time.Unix(created, 0)
		sn.UpdatedAt = time.Unix(updated, 0)
		out = append(out, sn)
	}
	return out, rows.Err()
}

// Delete removes the snippet stored under name. Deleting a name that does
// not exist is not an error, same as deleting a missing map key.
func (s *Store) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM snippets WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete snippet %q: %w", name, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
