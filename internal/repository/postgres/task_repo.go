package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/otpguard/internal/errs"
	"github.com/and161185/otpguard/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// TaskRepo implements TaskRepository using PostgreSQL.
type TaskRepo struct{ db *DB }

// NewTaskRepo constructs a task repository.
func NewTaskRepo(db *DB) *TaskRepo { return &TaskRepo{db: db} }

const taskCols = `id, user_id, script_id, country_id, status, otp_processed, error_message, timestamp`

// scanTask scans taskCols followed by extra destinations.
func scanTask(row pgx.Row, extra ...any) (*model.Task, error) {
	var t model.Task
	var status string
	var msg pgtype.Text
	dest := append([]any{&t.ID, &t.UserID, &t.ScriptID, &t.CountryID, &status, &t.OTPProcessed, &msg, &t.Timestamp}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	t.Status = model.TaskStatus(status)
	if msg.Valid {
		s := msg.String
		t.ErrorMessage = &s
	}
	return &t, nil
}

// Create inserts a running task.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	const q = `
INSERT INTO tasks (user_id, script_id, country_id, status)
VALUES ($1, $2, $3, 'running')
RETURNING id, timestamp`
	if err := r.db.Pool.QueryRow(ctx, q, t.UserID, t.ScriptID, t.CountryID).Scan(&t.ID, &t.Timestamp); err != nil {
		return mapErr(err, errs.ErrTaskNotFound)
	}
	t.Status = model.TaskRunning
	t.OTPProcessed = 0
	t.ErrorMessage = nil
	return nil
}

// Get selects a task by ID.
func (r *TaskRepo) Get(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	const q = `SELECT ` + taskCols + ` FROM tasks WHERE id=$1`
	t, err := scanTask(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, mapErr(err, errs.ErrTaskNotFound)
	}
	return t, nil
}

// CloseIfRunning applies rep only while the task is still running.
func (r *TaskRepo) CloseIfRunning(ctx context.Context, id uuid.UUID, rep model.TaskReport) (*model.Task, error) {
	const q = `
UPDATE tasks
SET status = $2, otp_processed = $3, error_message = $4
WHERE id = $1 AND status = 'running'
RETURNING ` + taskCols
	t, err := scanTask(r.db.Pool.QueryRow(ctx, q, id, string(rep.Status), rep.OTPProcessed, rep.ErrorMessage))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapErr(err, errs.ErrTaskNotFound)
	}

	// Nothing updated: either unknown or already terminal.
	var exists bool
	const chk = `SELECT EXISTS (SELECT 1 FROM tasks WHERE id=$1)`
	if err := r.db.Pool.QueryRow(ctx, chk, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.ErrTaskNotFound
	}
	return nil, errs.ErrConflict
}

// ListEnriched joins display names; dangling references read "Unknown".
func (r *TaskRepo) ListEnriched(ctx context.Context) ([]model.EnrichedTask, error) {
	const q = `
SELECT t.id, t.user_id, t.script_id, t.country_id, t.status, t.otp_processed, t.error_message, t.timestamp,
       COALESCE(u.email, 'Unknown'), COALESCE(s.app_name, 'Unknown'), COALESCE(c.name, 'Unknown')
FROM tasks t
LEFT JOIN users u ON u.id = t.user_id
LEFT JOIN scripts s ON s.id = t.script_id
LEFT JOIN countries c ON c.id = t.country_id
ORDER BY t.timestamp DESC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.EnrichedTask, 0)
	for rows.Next() {
		var et model.EnrichedTask
		t, err := scanTask(rows, &et.UserEmail, &et.ScriptName, &et.CountryName)
		if err != nil {
			return nil, err
		}
		et.Task = *t
		out = append(out, et)
	}
	return out, rows.Err()
}

// Stats counts users, scripts, countries and tasks created in [from, to).
func (r *TaskRepo) Stats(ctx context.Context, from, to time.Time) (model.Stats, error) {
	const q = `
SELECT
  (SELECT COUNT(*) FROM users),
  (SELECT COUNT(*) FROM scripts),
  (SELECT COUNT(*) FROM countries),
  (SELECT COUNT(*) FROM tasks WHERE timestamp >= $1 AND timestamp < $2)`
	var s model.Stats
	err := r.db.Pool.QueryRow(ctx, q, from, to).Scan(&s.TotalUsers, &s.ActiveScripts, &s.Countries, &s.TasksToday)
	return s, err
}
