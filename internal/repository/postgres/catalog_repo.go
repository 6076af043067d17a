package postgres

import (
	"context"

	"github.com/and161185/otpguard/internal/errs"
	"github.com/and161185/otpguard/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// CountryRepo implements CountryRepository using PostgreSQL.
type CountryRepo struct{ db *DB }

// NewCountryRepo constructs a country repository.
func NewCountryRepo(db *DB) *CountryRepo { return &CountryRepo{db: db} }

const countryCols = `id, name, code, number_length, created_at`

func scanCountry(row pgx.Row) (*model.Country, error) {
	var c model.Country
	if err := row.Scan(&c.ID, &c.Name, &c.DialingCode, &c.NumberLength, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a country row.
func (r *CountryRepo) Create(ctx context.Context, c *model.Country) error {
	const q = `
INSERT INTO countries (name, code, number_length)
VALUES ($1, $2, $3)
RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, q, c.Name, c.DialingCode, c.NumberLength).Scan(&c.ID, &c.CreatedAt)
	return mapErr(err, errs.ErrCountryNotFound)
}

// GetByID selects a country by ID.
func (r *CountryRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Country, error) {
	const q = `SELECT ` + countryCols + ` FROM countries WHERE id=$1`
	c, err := scanCountry(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, mapErr(err, errs.ErrCountryNotFound)
	}
	return c, nil
}

// List returns all countries ordered by name.
func (r *CountryRepo) List(ctx context.Context) ([]model.Country, error) {
	const q = `SELECT ` + countryCols + ` FROM countries ORDER BY name`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Country, 0)
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Update overwrites name, code and number length.
func (r *CountryRepo) Update(ctx context.Context, c *model.Country) error {
	const q = `
UPDATE countries SET name=$2, code=$3, number_length=$4
WHERE id=$1
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, c.ID, c.Name, c.DialingCode, c.NumberLength).Scan(&c.CreatedAt)
	return mapErr(err, errs.ErrCountryNotFound)
}

// Delete removes a country; its tasks cascade.
func (r *CountryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM countries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrCountryNotFound
	}
	return nil
}

// ScriptRepo implements ScriptRepository using PostgreSQL.
type ScriptRepo struct{ db *DB }

// NewScriptRepo constructs a script repository.
func NewScriptRepo(db *DB) *ScriptRepo { return &ScriptRepo{db: db} }

const scriptCols = `id, app_name, file_name, file_path, file_size, uploaded_at`

func scanScript(row pgx.Row) (*model.Script, error) {
	var s model.Script
	if err := row.Scan(&s.ID, &s.AppName, &s.FileName, &s.FilePath, &s.FileSize, &s.UploadedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts script metadata. ID is chosen by the caller since it is part of the file path.
func (r *ScriptRepo) Create(ctx context.Context, s *model.Script) error {
	const q = `
INSERT INTO scripts (id, app_name, file_name, file_path, file_size)
VALUES ($1, $2, $3, $4, $5)
RETURNING uploaded_at`
	err := r.db.Pool.QueryRow(ctx, q, s.ID, s.AppName, s.FileName, s.FilePath, s.FileSize).Scan(&s.UploadedAt)
	return mapErr(err, errs.ErrScriptNotFound)
}

// GetByID selects a script by ID.
func (r *ScriptRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Script, error) {
	const q = `SELECT ` + scriptCols + ` FROM scripts WHERE id=$1`
	s, err := scanScript(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, mapErr(err, errs.ErrScriptNotFound)
	}
	return s, nil
}

// List returns all scripts, most recent upload first.
func (r *ScriptRepo) List(ctx context.Context) ([]model.Script, error) {
	const q = `SELECT ` + scriptCols + ` FROM scripts ORDER BY uploaded_at DESC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Script, 0)
	for rows.Next() {
		s, err := scanScript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Delete removes script metadata; its tasks cascade.
func (r *ScriptRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM scripts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrScriptNotFound
	}
	return nil
}
