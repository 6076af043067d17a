package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/and161185/otpguard/internal/errs"
	"github.com/and161185/otpguard/internal/model"
	"github.com/and161185/otpguard/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// TaskService records dispatches and device outcomes.
type TaskService interface {
	// Open creates a running task.
	Open(ctx context.Context, userID, scriptID, countryID uuid.UUID) (model.Task, error)
	// Close finalizes a running task exactly once.
	Close(ctx context.Context, taskID uuid.UUID, rep model.TaskReport) (model.Task, error)
	// Report is Close restricted to tasks owned by userID.
	Report(ctx context.Context, userID, taskID uuid.UUID, rep model.TaskReport) (model.Task, error)
	// ListEnriched returns all tasks with display names, newest first.
	ListEnriched(ctx context.Context) ([]model.EnrichedTask, error)
	// Stats returns dashboard counts; tasksToday uses the UTC calendar day.
	Stats(ctx context.Context) (model.Stats, error)
}

type TaskServiceImpl struct {
	tasks repository.TaskRepository
	now   func() time.Time
}

// NewTaskService constructs TaskService.
func NewTaskService(tasks repository.TaskRepository) *TaskServiceImpl {
	return &TaskServiceImpl{tasks: tasks, now: time.Now}
}

// Open inserts a task in the running state.
func (s *TaskServiceImpl) Open(ctx context.Context, userID, scriptID, countryID uuid.UUID) (model.Task, error) {
	t := model.Task{UserID: userID, ScriptID: scriptID, CountryID: countryID, Status: model.TaskRunning}
	if err := s.tasks.Create(ctx, &t); err != nil {
		return model.Task{}, fmt.Errorf("open task: %w", err)
	}
	return t, nil
}

// Close validates rep and moves the task out of running.
func (s *TaskServiceImpl) Close(ctx context.Context, taskID uuid.UUID, rep model.TaskReport) (model.Task, error) {
	if !rep.Status.Terminal() {
		return model.Task{}, errs.ErrInvalidStatus
	}
	if rep.OTPProcessed < 0 {
		return model.Task{}, fmt.Errorf("otpProcessed must be >= 0: %w", errs.ErrValidation)
	}
	// stored as a Postgres integer
	if rep.OTPProcessed > math.MaxInt32 {
		return model.Task{}, fmt.Errorf("otpProcessed must be <= %d: %w", math.MaxInt32, errs.ErrValidation)
	}
	t, err := s.tasks.CloseIfRunning(ctx, taskID, rep)
	switch {
	case err == nil:
		return *t, nil
	case errors.Is(err, errs.ErrConflict):
		return model.Task{}, errs.ErrTaskFinalized
	case errors.Is(err, errs.ErrNotFound):
		return model.Task{}, errs.ErrTaskNotFound
	default:
		return model.Task{}, fmt.Errorf("close task: %w", err)
	}
}

// Report hides tasks of other users behind errs.ErrTaskNotFound.
func (s *TaskServiceImpl) Report(ctx context.Context, userID, taskID uuid.UUID, rep model.TaskReport) (model.Task, error) {
	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Task{}, errs.ErrTaskNotFound
		}
		return model.Task{}, fmt.Errorf("load task: %w", err)
	}
	if t.UserID != userID {
		return model.Task{}, errs.ErrTaskNotFound
	}
	return s.Close(ctx, taskID, rep)
}

// ListEnriched returns the reporting projection.
func (s *TaskServiceImpl) ListEnriched(ctx context.Context) ([]model.EnrichedTask, error) {
	list, err := s.tasks.ListEnriched(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return list, nil
}

// Stats counts tasks in [00:00 UTC today, 00:00 UTC tomorrow).
func (s *TaskServiceImpl) Stats(ctx context.Context) (model.Stats, error) {
	from, to := utcDay(s.now())
	st, err := s.tasks.Stats(ctx, from, to)
	if err != nil {
		return model.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

func utcDay(t time.Time) (time.Time, time.Time) {
	y, m, d := t.UTC().Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}
