package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	pkgcrypto "github.com/and161185/otpguard/internal/crypto"
	"github.com/and161185/otpguard/internal/errs"
	"github.com/and161185/otpguard/internal/filestore"
	"github.com/and161185/otpguard/internal/model"
	"github.com/and161185/otpguard/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// CatalogService is the admin CRUD surface over users, countries and scripts.
type CatalogService interface {
	CreateUser(ctx context.Context, email, password string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, ch UserChanges) (model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	// ResetDevice clears the bound MAC so the next device login rebinds.
	ResetDevice(ctx context.Context, id uuid.UUID) error

	CreateCountry(ctx context.Context, c model.Country) (model.Country, error)
	ListCountries(ctx context.Context) ([]model.Country, error)
	UpdateCountry(ctx context.Context, c model.Country) (model.Country, error)
	DeleteCountry(ctx context.Context, id uuid.UUID) error

	// UploadScript stores a .py template and its metadata.
	UploadScript(ctx context.Context, appName, fileName string, data []byte) (model.Script, error)
	ListScripts(ctx context.Context) ([]model.Script, error)
	// DeleteScript removes the stored file, then the record.
	DeleteScript(ctx context.Context, id uuid.UUID) error

	// EnsureAdmin creates the bootstrap admin if the email is unknown.
	EnsureAdmin(ctx context.Context, email, password string) error
}

// UserChanges is an admin edit; nil fields are kept.
type UserChanges struct {
	Email    *string
	Password *string
	IsActive *bool
}

type CatalogServiceImpl struct {
	users     repository.UserRepository
	admins    repository.AdminRepository
	countries repository.CountryRepository
	scripts   repository.ScriptRepository
	store     filestore.Store
	log       *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(
	users repository.UserRepository, admins repository.AdminRepository,
	countries repository.CountryRepository, scripts repository.ScriptRepository,
	store filestore.Store, log *zap.Logger,
) *CatalogServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogServiceImpl{users: users, admins: admins, countries: countries, scripts: scripts, store: store, log: log}
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

func invalid(msg string) error { return fmt.Errorf("%s: %w", msg, errs.ErrValidation) }

// --- Users ---

// CreateUser hashes password and stores an active, unbound user.
func (s *CatalogServiceImpl) CreateUser(ctx context.Context, email, password string) (model.User, error) {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return model.User{}, invalid("invalid email")
	}
	if password == "" {
		return model.User{}, invalid("empty password")
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return model.User{}, invalid(err.Error())
	}
	u := model.User{Email: email, PwdHash: hash, IsActive: true}
	if err := s.users.Create(ctx, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// ListUsers returns every user.
func (s *CatalogServiceImpl) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// UpdateUser re-hashes a changed password.
func (s *CatalogServiceImpl) UpdateUser(ctx context.Context, id uuid.UUID, ch UserChanges) (model.User, error) {
	var upd model.UserUpdate
	if ch.Email != nil {
		e := strings.TrimSpace(*ch.Email)
		if !validEmail(e) {
			return model.User{}, invalid("invalid email")
		}
		upd.Email = &e
	}
	if ch.Password != nil {
		if *ch.Password == "" {
			return model.User{}, invalid("empty password")
		}
		h, err := pkgcrypto.HashPassword(*ch.Password)
		if err != nil {
			return model.User{}, invalid(err.Error())
		}
		upd.PwdHash = &h
	}
	upd.IsActive = ch.IsActive

	u, err := s.users.Update(ctx, id, upd)
	if err != nil {
		return model.User{}, lookupErr(err, errs.ErrUserNotFound)
	}
	return *u, nil
}

// DeleteUser removes a user and, through the store's cascade, their tasks.
func (s *CatalogServiceImpl) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return lookupErr(s.users.Delete(ctx, id), errs.ErrUserNotFound)
}

// ResetDevice unbinds the user's device.
func (s *CatalogServiceImpl) ResetDevice(ctx context.Context, id uuid.UUID) error {
	return lookupErr(s.users.ResetMAC(ctx, id), errs.ErrUserNotFound)
}

// --- Countries ---

func validateCountry(c *model.Country) error {
	c.Name = strings.TrimSpace(c.Name)
	c.DialingCode = strings.TrimSpace(c.DialingCode)
	switch {
	case c.Name == "":
		return invalid("empty name")
	case c.DialingCode == "":
		return invalid("empty code")
	case c.NumberLength <= 0:
		return invalid("numberLength must be positive")
	}
	return nil
}

// CreateCountry stores a new format record.
func (s *CatalogServiceImpl) CreateCountry(ctx context.Context, c model.Country) (model.Country, error) {
	if err := validateCountry(&c); err != nil {
		return model.Country{}, err
	}
	if err := s.countries.Create(ctx, &c); err != nil {
		return model.Country{}, err
	}
	return c, nil
}

// ListCountries returns every country.
func (s *CatalogServiceImpl) ListCountries(ctx context.Context) ([]model.Country, error) {
	return s.countries.List(ctx)
}

// UpdateCountry overwrites name, code and length of c.ID.
func (s *CatalogServiceImpl) UpdateCountry(ctx context.Context, c model.Country) (model.Country, error) {
	if err := validateCountry(&c); err != nil {
		return model.Country{}, err
	}
	if err := s.countries.Update(ctx, &c); err != nil {
		return model.Country{}, lookupErr(err, errs.ErrCountryNotFound)
	}
	return c, nil
}

// DeleteCountry removes a country.
func (s *CatalogServiceImpl) DeleteCountry(ctx context.Context, id uuid.UUID) error {
	return lookupErr(s.countries.Delete(ctx, id), errs.ErrCountryNotFound)
}

// --- Scripts ---

// UploadScript accepts only .py files.
func (s *CatalogServiceImpl) UploadScript(ctx context.Context, appName, fileName string, data []byte) (model.Script, error) {
	appName = strings.TrimSpace(appName)
	fileName = path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if appName == "" {
		return model.Script{}, invalid("appName is required")
	}
	if !strings.EqualFold(path.Ext(fileName), ".py") {
		return model.Script{}, invalid("only .py files are allowed")
	}

	id, err := uuid.NewV4()
	if err != nil {
		return model.Script{}, err
	}
	key := filestore.ScriptKey(id.String(), fileName)
	if err := s.store.Put(ctx, key, data); err != nil {
		return model.Script{}, fmt.Errorf("store script: %w", err)
	}

	sc := model.Script{ID: id, AppName: appName, FileName: fileName, FilePath: key, FileSize: int64(len(data))}
	if err := s.scripts.Create(ctx, &sc); err != nil {
		if derr := s.store.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.log.Warn("remove orphaned script file", zap.String("key", key), zap.Error(derr))
		}
		return model.Script{}, err
	}
	return sc, nil
}

// ListScripts returns every script.
func (s *CatalogServiceImpl) ListScripts(ctx context.Context) ([]model.Script, error) {
	return s.scripts.List(ctx)
}

// DeleteScript tolerates an already missing file.
func (s *CatalogServiceImpl) DeleteScript(ctx context.Context, id uuid.UUID) error {
	sc, err := s.scripts.GetByID(ctx, id)
	if err != nil {
		return lookupErr(err, errs.ErrScriptNotFound)
	}
	if err := s.store.Delete(ctx, sc.FilePath); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("delete script file: %w", err)
	}
	return lookupErr(s.scripts.Delete(ctx, id), errs.ErrScriptNotFound)
}

// --- Admins ---

// EnsureAdmin never overwrites an existing admin's password.
func (s *CatalogServiceImpl) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if !validEmail(email) || password == "" {
		return invalid("admin email and password are required")
	}
	_, err := s.admins.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("load admin: %w", err)
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return invalid(err.Error())
	}
	err = s.admins.Create(ctx, &model.Admin{Email: email, PwdHash: hash})
	if errors.Is(err, errs.ErrAlreadyExists) {
		return nil
	}
	if err == nil {
		s.log.Info("bootstrap admin created", zap.String("email", email))
	}
	return err
}
