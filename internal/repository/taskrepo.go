package repository

import (
	"context"
	"time"

	"github.com/and161185/otpguard/internal/model"
	"github.com/gofrs/uuid/v5"
)

// TaskRepository records script executions reported by devices.
type TaskRepository interface {
	// Create inserts a running task and fills ID and Timestamp.
	Create(ctx context.Context, t *model.Task) error
	// Get loads a task by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Task, error)

	// CloseIfRunning moves a running task to a terminal state.
	// Returns errs.ErrConflict when the task exists but is no longer running,
	// errs.ErrNotFound when it does not exist.
	CloseIfRunning(ctx context.Context, id uuid.UUID, rep model.TaskReport) (*model.Task, error)

	// ListEnriched returns all tasks joined with display names, newest first.
	ListEnriched(ctx context.Context) ([]model.EnrichedTask, error)

	// Stats counts catalog rows and tasks with timestamp in [from, to).
	Stats(ctx context.Context, from, to time.Time) (model.Stats, error)
}
