package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"monarch/pkg/store"
)

// Runner executes background tasks asynchronously and records their
// lifecycle in the store. Task work is simulated by a fixed duration;
// the interesting part is the pending -> running -> terminal state flow
// visible over the task API.
type Runner struct {
	store    *store.DB
	duration time.Duration
	wg       sync.WaitGroup
}

// NewRunner creates a runner whose tasks take roughly duration to finish.
// A non-positive duration falls back to 3 seconds.
func NewRunner(db *store.DB, duration time.Duration) *Runner {
	if duration <= 0 {
		duration = 3 * time.Second
	}
	return &Runner{store: db, duration: duration}
}

// Submit records a new pending task and starts working on it in the
// background. The returned task reflects the pending state.
func (r *Runner) Submit(ctx context.Context, description string) (store.Task, error) {
	task, err := r.store.CreateTask(ctx, description)
	if err != nil {
		return store.Task{}, err
	}

	r.wg.Add(1)
	go r.run(task)
	return task, nil
}

func (r *Runner) run(task store.Task) {
	defer r.wg.Done()

	// Lifecycle updates use a background context so an expired request
	// context cannot strand the task in a stale state.
	ctx := context.Background()
	if err := r.store.UpdateTaskStatus(ctx, task.ID, store.TaskRunning); err != nil {
		slog.Warn("Failed to mark task running", "task_id", task.ID, "error", err)
	}

	time.Sleep(r.duration)

	if err := r.store.UpdateTaskStatus(ctx, task.ID, store.TaskCompleted); err != nil {
		slog.Warn("Failed to mark task completed", "task_id", task.ID, "error", err)
		return
	}
	slog.Info("Background task completed", "task_id", task.ID, "description", task.Description)
}

// Wait blocks until every submitted task has finished. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}
