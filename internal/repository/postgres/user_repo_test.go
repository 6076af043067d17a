package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/otpguard/internal/errs"
	"github.com/and161185/otpguard/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return &DB{Pool: mock}, mock
}

var userColumns = []string{"id", "email", "password", "mac_address", "is_active", "created_at"}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now()
	u := &model.User{Email: "a@x.io", PwdHash: "h", IsActive: true}

	mock.ExpectQuery(`INSERT INTO users \(email, password, is_active\) VALUES \(\$1, \$2, \$3\) RETURNING id, created_at`).
		WithArgs("a@x.io", "h", true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(id, now))
	require.NoError(t, r.Create(ctx, u))
	require.Equal(t, id, u.ID)
	require.Equal(t, now, u.CreatedAt)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("a@x.io", "h", true).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, email, password, mac_address, is_active, created_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow(id, "a@x.io", "h", "AA:BB:CC:DD:EE:FF", true, time.Now()))
	u, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "AA:BB:CC:DD:EE:FF", u.MACAddress)
	require.True(t, u.Bound())

	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrUserNotFound)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByEmail_NullMAC_and_DriverError(t *testing.T) {
	db, mock := newDB(t)
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`FROM users WHERE email=\$1`).
		WithArgs("a@x.io").
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow(id, "a@x.io", "h", nil, true, time.Now()))
	u, err := r.GetByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	require.Empty(t, u.MACAddress)
	require.False(t, u.Bound())

	boom := errors.New("conn reset")
	mock.ExpectQuery(`FROM users WHERE email=\$1`).
		WithArgs("a@x.io").
		WillReturnError(boom)
	_, err = r.GetByEmail(ctx, "a@x.io")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_List(t *testing.T) {
	db, mock := newDB(t)
	r := NewUserRepo(db)

	mock.ExpectQuery(`FROM users ORDER BY created_at DESC`).
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(uuid.Must(uuid.NewV4()), "b@x.io", "h", nil, false, time.Now()).
			AddRow(uuid.Must(uuid.NewV4()), "a@x.io", "h", "11:22:33:44:55:66", true, time.Now()))
	list, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b@x.io", list[0].Email)
	require.False(t, list[0].IsActive)
	require.Equal(t, "11:22:33:44:55:66", list[1].MACAddress)
}

func TestUserRepo_Update(t *testing.T) {
	db, mock := newDB(t)
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	active := false

	mock.ExpectQuery(`UPDATE users SET email = COALESCE\(\$2, email\)`).
		WithArgs(id, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow(id, "a@x.io", "h", nil, false, time.Now()))
	u, err := r.Update(ctx, id, model.UserUpdate{IsActive: &active})
	require.NoError(t, err)
	require.False(t, u.IsActive)

	mock.ExpectQuery(`UPDATE users SET`).
		WithArgs(id, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Update(ctx, id, model.UserUpdate{IsActive: &active})
	require.ErrorIs(t, err, errs.ErrUserNotFound)

	mock.ExpectQuery(`UPDATE users SET`).
		WithArgs(id, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = r.Update(ctx, id, model.UserUpdate{IsActive: &active})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestUserRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, id))

	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, id), errs.ErrUserNotFound)
}

func TestUserRepo_BindMACIfEmpty(t *testing.T) {
	db, mock := newDB(t)
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	mac := "AA:BB:CC:DD:EE:FF"

	mock.ExpectExec(`UPDATE users SET mac_address = \$2 WHERE id = \$1 AND mac_address IS NULL`).
		WithArgs(id, mac).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.BindMACIfEmpty(ctx, id, mac))

	mock.ExpectExec(`UPDATE users SET mac_address = \$2 WHERE id = \$1 AND mac_address IS NULL`).
		WithArgs(id, mac).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.BindMACIfEmpty(ctx, id, mac), errs.ErrConflict)
}

func TestUserRepo_ResetMAC(t *testing.T) {
	db, mock := newDB(t)
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE users SET mac_address = NULL WHERE id = \$1`).WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.ResetMAC(ctx, id))

	mock.ExpectExec(`UPDATE users SET mac_address = NULL`).WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.ResetMAC(ctx, id), errs.ErrUserNotFound)
}

func TestAdminRepo(t *testing.T) {
	db, mock := newDB(t)
	r := NewAdminRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, email, password, created_at FROM admins WHERE email=\$1`).
		WithArgs("root@x.io").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password", "created_at"}).
			AddRow(id, "root@x.io", "h", time.Now()))
	a, err := r.GetByEmail(ctx, "root@x.io")
	require.NoError(t, err)
	require.Equal(t, id, a.ID)

	mock.ExpectQuery(`FROM admins WHERE email=\$1`).WithArgs("nobody@x.io").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmail(ctx, "nobody@x.io")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`INSERT INTO admins \(email, password\)`).WithArgs("root@x.io", "h").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, &model.Admin{Email: "root@x.io", PwdHash: "h"}), errs.ErrAlreadyExists)
}
