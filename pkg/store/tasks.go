package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Background task statuses.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// Task is one background job tracked by the agent.
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateTask inserts a new pending task and returns it.
func (s *DB) CreateTask(ctx context.Context, description string) (Task, error) {
	now := time.Now().UTC()
	task := Task{
		ID:          uuid.NewString(),
		Description: description,
		Status:      TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO background_tasks (id, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		task.ID, task.Description, task.Status, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// UpdateTaskStatus moves a task to a new status.
func (s *DB) UpdateTaskStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE background_tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// ListTasks returns the most recent limit tasks, newest first.
func (s *DB) ListTasks(ctx context.Context, limit int) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, status, created_at, updated_at
		FROM background_tasks ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
