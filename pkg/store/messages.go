package store

import (
	"context"
	"fmt"
	"time"

	"monarch/pkg/llm"

	"github.com/google/uuid"
)

// StoredMessage is one persisted chat turn. AgentAction and ToolDetails
// record how the assistant produced the turn, mirroring the engine Result.
type StoredMessage struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chat_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	AgentAction string    `json:"agent_action,omitempty"`
	ToolDetails string    `json:"tool_details,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SaveMessage appends one chat turn. Missing ID and CreatedAt are filled in.
func (s *DB) SaveMessage(ctx context.Context, m StoredMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, role, content, agent_action, tool_details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.Role, m.Content, m.AgentAction, m.ToolDetails, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// RecentHistory returns the last limit user/assistant turns for a chat in
// chronological order, shaped for direct use as engine history.
func (s *DB) RecentHistory(ctx context.Context, chatID string, limit int) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM (
			SELECT role, content, created_at FROM messages
			WHERE chat_id = ? AND role IN (?, ?)
			ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`,
		chatID, llm.RoleUser, llm.RoleAssistant, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var msgs []llm.Message
	for rows.Next() {
		var role, content string
		var created time.Time
		if err := rows.Scan(&role, &content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		msgs = append(msgs, llm.Message{Role: role, Content: content, Timestamp: created.Unix()})
	}
	return msgs, rows.Err()
}

// ChatMessages returns the most recent limit rows for a chat, newest first.
// Used by the web history API.
func (s *DB) ChatMessages(ctx context.Context, chatID string, limit int) ([]StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, role, content, agent_action, tool_details, created_at
		FROM messages WHERE chat_id = ?
		ORDER BY created_at DESC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.AgentAction, &m.ToolDetails, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
