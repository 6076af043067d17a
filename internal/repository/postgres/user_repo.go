package postgres

import (
	"context"

	"github.com/and161185/otpguard/internal/errs"
	"github.com/and161185/otpguard/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, email, password, mac_address, is_active, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var mac pgtype.Text
	if err := row.Scan(&u.ID, &u.Email, &u.PwdHash, &mac, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.MACAddress = mac.String
	return &u, nil
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (email, password, is_active)
VALUES ($1, $2, $3)
RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, q, u.Email, u.PwdHash, u.IsActive).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, mapErr(err, errs.ErrUserNotFound)
	}
	return u, nil
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email=$1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, email))
	if err != nil {
		return nil, mapErr(err, errs.ErrUserNotFound)
	}
	return u, nil
}

// List returns all users, newest first.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of upd.
func (r *UserRepo) Update(ctx context.Context, id uuid.UUID, upd model.UserUpdate) (*model.User, error) {
	const q = `
UPDATE users SET
  email     = COALESCE($2, email),
  password  = COALESCE($3, password),
  is_active = COALESCE($4, is_active)
WHERE id=$1
RETURNING ` + userCols
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, id, upd.Email, upd.PwdHash, upd.IsActive))
	if err != nil {
		return nil, mapErr(err, errs.ErrUserNotFound)
	}
	return u, nil
}

// Delete removes a user; their tasks cascade.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

// BindMACIfEmpty sets mac_address only if it is currently NULL.
func (r *UserRepo) BindMACIfEmpty(ctx context.Context, id uuid.UUID, mac string) error {
	const q = `
UPDATE users
SET mac_address = $2
WHERE id = $1 AND mac_address IS NULL`
	tag, err := r.db.Pool.Exec(ctx, q, id, mac)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrConflict
	}
	return nil
}

// ResetMAC clears the device binding.
func (r *UserRepo) ResetMAC(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE users SET mac_address = NULL WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}
