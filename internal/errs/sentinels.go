// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict indicates a conditional update matched no row.
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// Authentication outcomes. Unknown email and wrong password share ErrInvalidCredentials.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrDeviceNotAuthorized = errors.New("device not authorized for this account")
	ErrDeviceConflict      = errors.New("device already registered to a different MAC address")
	ErrAccountDisabled     = errors.New("account disabled")
)

// Script dispatch and task reporting outcomes.
var (
	ErrScriptNotFound  = fmt.Errorf("script %w", ErrNotFound)
	ErrCountryNotFound = fmt.Errorf("country %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrTaskNotFound    = fmt.Errorf("task %w", ErrNotFound)

	ErrNoValidNumbers  = errors.New("no valid phone numbers found")
	ErrTemplateInvalid = errors.New("script has no phone number placeholder")
	ErrInvalidStatus   = fmt.Errorf("%w: status must be success or failed", ErrValidation)
	ErrTaskFinalized   = fmt.Errorf("task already finalized: %w", ErrConflict)
)
