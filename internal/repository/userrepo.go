// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/otpguard/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to desktop-client accounts.
type UserRepository interface {
	// Create inserts a new user and fills generated fields.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// List returns all users, newest first.
	List(ctx context.Context) ([]model.User, error)
	// Update applies non-nil fields of upd and returns the new row.
	Update(ctx context.Context, id uuid.UUID, upd model.UserUpdate) (*model.User, error)
	// Delete removes a user.
	Delete(ctx context.Context, id uuid.UUID) error
	// BindMACIfEmpty stores mac only if no device is bound yet.
	// Returns errs.ErrConflict when another device already holds the binding.
	BindMACIfEmpty(ctx context.Context, id uuid.UUID, mac string) error
	// ResetMAC clears the device binding.
	ResetMAC(ctx context.Context, id uuid.UUID) error
}

// AdminRepository provides access to portal operators.
type AdminRepository interface {
	// GetByEmail loads an admin by email.
	GetByEmail(ctx context.Context, email string) (*model.Admin, error)
	// Create inserts an admin; errs.ErrAlreadyExists if the email is taken.
	Create(ctx context.Context, a *model.Admin) error
}
