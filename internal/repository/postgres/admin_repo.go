package postgres

import (
	"context"

	"github.com/and161185/otpguard/internal/errs"
	"github.com/and161185/otpguard/internal/model"
)

// AdminRepo implements AdminRepository using PostgreSQL.
type AdminRepo struct{ db *DB }

// NewAdminRepo constructs an admin repository.
func NewAdminRepo(db *DB) *AdminRepo { return &AdminRepo{db: db} }

// GetByEmail selects an admin by email.
func (r *AdminRepo) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	const q = `SELECT id, email, password, created_at FROM admins WHERE email=$1`
	var a model.Admin
	err := r.db.Pool.QueryRow(ctx, q, email).Scan(&a.ID, &a.Email, &a.PwdHash, &a.CreatedAt)
	if err != nil {
		return nil, mapErr(err, errs.ErrNotFound)
	}
	return &a, nil
}

// Create inserts an admin row.
func (r *AdminRepo) Create(ctx context.Context, a *model.Admin) error {
	const q = `INSERT INTO admins (email, password) VALUES ($1, $2) RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, q, a.Email, a.PwdHash).Scan(&a.ID, &a.CreatedAt)
	return mapErr(err, errs.ErrNotFound)
}
