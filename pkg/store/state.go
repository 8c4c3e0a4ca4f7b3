package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetState reads one agent state entry. The second return value reports
// whether the key exists.
func (s *DB) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM agent_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read state: %w", err)
	}
	return value, true, nil
}

// SetState stores one agent state entry, replacing any previous value.
func (s *DB) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store state: %w", err)
	}
	return nil
}
