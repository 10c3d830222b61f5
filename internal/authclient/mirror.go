package authclient

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abduss/memorylane/internal/authclient/migrations"
	"github.com/abduss/memorylane/internal/user"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Mirror caches the last known user for display while the server is
// unreachable. It is never proof of authentication.
type Mirror interface {
	Load(ctx context.Context) (*user.Public, error)
	Store(ctx context.Context, u user.Public) error
	Clear(ctx context.Context) error
}

const mirrorUserKey = "user"

// SQLiteMirror keeps the mirror in a local SQLite key/value table.
type SQLiteMirror struct {
	db *sql.DB
}

// OpenSQLiteMirror opens dsn and applies the mirror migrations.
func OpenSQLiteMirror(ctx context.Context, dsn string) (*SQLiteMirror, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if err := runMirrorMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteMirror{db: db}, nil
}

// The provider is not closed here; closing it would close db.
func runMirrorMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("create mirror migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate mirror: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}

// Load returns the cached user, or nil when nothing is cached.
func (m *SQLiteMirror) Load(ctx context.Context) (*user.Public, error) {
	var value []byte
	err := m.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, mirrorUserKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", mirrorUserKey, err)
	}

	var cached user.Public
	if err := json.Unmarshal(value, &cached); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &cached, nil
}

// Store replaces the cached user.
func (m *SQLiteMirror) Store(ctx context.Context, u user.Public) error {
	value, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode cached user: %w", err)
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, mirrorUserKey, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", mirrorUserKey, err)
	}
	return nil
}

// Clear drops the cached user.
func (m *SQLiteMirror) Clear(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, mirrorUserKey); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", mirrorUserKey, err)
	}
	return nil
}
