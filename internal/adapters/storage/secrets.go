package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetSecret returns the stored value for a key.
func (s *SQLiteStorage) GetSecret(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("storage.GetSecret: %q: not found", key)
	}
	if err != nil {
		return "", fmt.Errorf("storage.GetSecret: %q: %w", key, err)
	}
	return value, nil
}

// PutSecret upserts a key's value, overwriting any previous one.
func (s *SQLiteStorage) PutSecret(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO secrets (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("storage.PutSecret: %q: %w", key, err)
	}
	return nil
}
