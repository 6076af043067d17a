// Package service contains application services for device authentication,
// script dispatch, task reporting and catalog administration.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pkgcrypto "github.com/and161185/otpguard/internal/crypto"
	"github.com/and161185/otpguard/internal/errs"
	"github.com/and161185/otpguard/internal/limiter"
	"github.com/and161185/otpguard/internal/model"
	"github.com/and161185/otpguard/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// AuthService defines admin and device authentication.
type AuthService interface {
	// LoginDevice authenticates a desktop client and binds its MAC on first use.
	LoginDevice(ctx context.Context, email, password, mac, ip string) (model.Session, model.User, error)
	// RegisterDevice is LoginDevice with device-conflict wording on mismatch.
	RegisterDevice(ctx context.Context, email, password, mac, ip string) (model.Session, model.User, error)
	// LoginAdmin authenticates a portal operator.
	LoginAdmin(ctx context.Context, email, password, ip string) (model.Session, model.Admin, error)
	// VerifyDevice checks that a device token still matches the account's binding.
	VerifyDevice(ctx context.Context, p Principal) error
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	admins    repository.AdminRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository, admins repository.AdminRepository,
	signKey []byte, accessTTL time.Duration, lim limiter.Limiter,
) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	return &AuthServiceImpl{users: users, admins: admins, signKey: signKey, accessTTL: accessTTL, lim: lim}
}

// NormalizeMAC upper-cases a MAC address and uses ':' as the separator.
func NormalizeMAC(mac string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(mac), "-", ":"))
}

// LoginDevice fails with errs.ErrDeviceNotAuthorized when another MAC is bound.
func (s *AuthServiceImpl) LoginDevice(ctx context.Context, email, password, mac, ip string) (model.Session, model.User, error) {
	return s.deviceLogin(ctx, email, password, mac, ip, errs.ErrDeviceNotAuthorized)
}

// RegisterDevice fails with errs.ErrDeviceConflict when another MAC is bound.
func (s *AuthServiceImpl) RegisterDevice(ctx context.Context, email, password, mac, ip string) (model.Session, model.User, error) {
	return s.deviceLogin(ctx, email, password, mac, ip, errs.ErrDeviceConflict)
}

func (s *AuthServiceImpl) deviceLogin(
	ctx context.Context, email, password, mac, ip string, mismatch error,
) (model.Session, model.User, error) {
	email = strings.TrimSpace(email)
	mac = NormalizeMAC(mac)
	if email == "" || password == "" || mac == "" {
		return model.Session{}, model.User{}, fmt.Errorf("email, password and macAddress are required: %w", errs.ErrValidation)
	}
	ipHash := pkgcrypto.HashIP(ip)
	if err := s.allow(ctx, email, ipHash); err != nil {
		return model.Session{}, model.User{}, err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Session{}, model.User{}, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		verifyDummy(password)
		return model.Session{}, model.User{}, s.fail(ctx, email, ipHash)
	}
	if !pkgcrypto.VerifyPassword(password, u.PwdHash) {
		return model.Session{}, model.User{}, s.fail(ctx, email, ipHash)
	}
	if !u.IsActive {
		return model.Session{}, model.User{}, errs.ErrAccountDisabled
	}

	if !u.Bound() {
		err := s.users.BindMACIfEmpty(ctx, u.ID, mac)
		switch {
		case err == nil:
			u.MACAddress = mac
		case errors.Is(err, errs.ErrConflict):
			// A concurrent login bound first; whoever won decides.
			if u, err = s.users.GetByID(ctx, u.ID); err != nil {
				return model.Session{}, model.User{}, fmt.Errorf("reload user: %w", err)
			}
		default:
			return model.Session{}, model.User{}, fmt.Errorf("bind device: %w", err)
		}
	}
	if u.MACAddress != mac {
		return model.Session{}, model.User{}, mismatch
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, email, ipHash)

	sess, err := s.session(u.ID, RoleDevice, mac)
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	return sess, *u, nil
}

// LoginAdmin authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) LoginAdmin(ctx context.Context, email, password, ip string) (model.Session, model.Admin, error) {
	email = strings.TrimSpace(email)
	key := "admin:" + email
	ipHash := pkgcrypto.HashIP(ip)
	if err := s.allow(ctx, key, ipHash); err != nil {
		return model.Session{}, model.Admin{}, err
	}

	a, err := s.admins.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Session{}, model.Admin{}, fmt.Errorf("load admin: %w", err)
	}
	if a == nil {
		verifyDummy(password)
		return model.Session{}, model.Admin{}, s.fail(ctx, key, ipHash)
	}
	if !pkgcrypto.VerifyPassword(password, a.PwdHash) {
		return model.Session{}, model.Admin{}, s.fail(ctx, key, ipHash)
	}
	_ = s.lim.Success(ctx, key, ipHash)

	sess, err := s.session(a.ID, RoleAdmin, "")
	if err != nil {
		return model.Session{}, model.Admin{}, err
	}
	return sess, *a, nil
}

// VerifyDevice rejects tokens of deleted or disabled users and of devices
// whose binding was reset or replaced after the token was issued.
func (s *AuthServiceImpl) VerifyDevice(ctx context.Context, p Principal) error {
	u, err := s.users.GetByID(ctx, p.ID)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return errs.ErrAccountDisabled
	}
	if u.MACAddress != p.MAC {
		return errs.ErrDeviceNotAuthorized
	}
	return nil
}

func (s *AuthServiceImpl) allow(ctx context.Context, key string, ipHash []byte) error {
	allowed, _, err := s.lim.Allow(ctx, key, ipHash)
	if err != nil {
		return fmt.Errorf("limiter: %w", err)
	}
	if !allowed {
		return errs.ErrRateLimited
	}
	return nil
}

// fail records a failed attempt and picks the error the caller sees.
func (s *AuthServiceImpl) fail(ctx context.Context, key string, ipHash []byte) error {
	if blocked, _, ferr := s.lim.Failure(ctx, key, ipHash); ferr == nil && blocked {
		return errs.ErrRateLimited
	}
	return errs.ErrInvalidCredentials
}

func (s *AuthServiceImpl) session(id uuid.UUID, role, mac string) (model.Session, error) {
	tok, exp, err := issueAccessToken(s.signKey, s.accessTTL, id, role, mac)
	if err != nil {
		return model.Session{}, fmt.Errorf("sign token: %w", err)
	}
	return model.Session{AccessToken: tok, ExpiresAt: exp}, nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// verifyDummy spends a bcrypt comparison so unknown emails take as long as wrong passwords.
func verifyDummy(password string) {
	dummyOnce.Do(func() { dummyHash, _ = pkgcrypto.HashPassword("otpguard-dummy") })
	_ = pkgcrypto.VerifyPassword(password, dummyHash)
}
