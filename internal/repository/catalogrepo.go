package repository

import (
	"context"

	"github.com/and161185/otpguard/internal/model"
	"github.com/gofrs/uuid/v5"
)

// CountryRepository stores phone-number format records.
type CountryRepository interface {
	Create(ctx context.Context, c *model.Country) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Country, error)
	List(ctx context.Context) ([]model.Country, error)
	Update(ctx context.Context, c *model.Country) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ScriptRepository stores metadata of uploaded script templates.
type ScriptRepository interface {
	Create(ctx context.Context, s *model.Script) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Script, error)
	List(ctx context.Context) ([]model.Script, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
