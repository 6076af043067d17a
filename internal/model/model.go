// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Admin is a web portal operator.
type Admin struct {
	ID        uuid.UUID
	Email     string
	PwdHash   string // bcrypt
	CreatedAt time.Time
}

// User is a desktop-client account. MACAddress is empty until the first device login.
type User struct {
	ID         uuid.UUID
	Email      string // unique
	PwdHash    string // bcrypt
	MACAddress string
	IsActive   bool
	CreatedAt  time.Time
}

// Bound reports whether a device is already bound to the account.
func (u *User) Bound() bool { return u.MACAddress != "" }

// UserUpdate carries optional changes applied by an admin. Nil fields are left untouched.
type UserUpdate struct {
	Email    *string
	PwdHash  *string
	IsActive *bool
}

// Country is a phone-number formatting rule.
type Country struct {
	ID           uuid.UUID
	Name         string
	DialingCode  string // "+91" or "91"
	NumberLength int    // significant digits after the dialing code, > 0
	CreatedAt    time.Time
}

// Script is an uploaded automation template.
type Script struct {
	ID         uuid.UUID
	AppName    string
	FileName   string // original upload name
	FilePath   string // opaque file store locator
	FileSize   int64
	UploadedAt time.Time
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "failed"
)

// Terminal reports whether s is a final state a device may report.
func (s TaskStatus) Terminal() bool { return s == TaskSuccess || s == TaskFailed }

// Task is one execution attempt of a script by a device.
type Task struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ScriptID     uuid.UUID
	CountryID    uuid.UUID
	Status       TaskStatus
	OTPProcessed int
	ErrorMessage *string
	Timestamp    time.Time
}

// TaskReport is the device's self-reported outcome for a task.
type TaskReport struct {
	Status       TaskStatus
	OTPProcessed int
	ErrorMessage *string
}

// EnrichedTask is a task joined with display names; unresolved references read "Unknown".
type EnrichedTask struct {
	Task
	UserEmail   string
	ScriptName  string
	CountryName string
}

// Stats is the admin dashboard snapshot.
type Stats struct {
	TotalUsers    int
	ActiveScripts int
	Countries     int
	TasksToday    int
}

// Dispatch is a personalized script handed to a device together with its task.
type Dispatch struct {
	Content  string
	Artifact string // disposable file store locator
	TaskID   uuid.UUID
	Numbers  []string
}

// Session is an issued bearer token.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
}
