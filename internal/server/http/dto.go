package httpserver

import (
	"time"

	"github.com/and161185/otpguard/internal/model"
)

type credentialsRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	MACAddress string `json:"macAddress"`
}

type userDTO struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	MACAddress *string    `json:"macAddress"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

func toUserDTO(u model.User) userDTO {
	d := userDTO{ID: u.ID.String(), Email: u.Email, IsActive: u.IsActive}
	if u.Bound() {
		mac := u.MACAddress
		d.MACAddress = &mac
	}
	if !u.CreatedAt.IsZero() {
		t := u.CreatedAt
		d.CreatedAt = &t
	}
	return d
}

type adminDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type deviceLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userDTO   `json:"user"`
}

type adminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Admin     adminDTO  `json:"admin"`
}

type countryDTO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	NumberLength int       `json:"numberLength"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toCountryDTO(c model.Country) countryDTO {
	return countryDTO{ID: c.ID.String(), Name: c.Name, Code: c.DialingCode, NumberLength: c.NumberLength, CreatedAt: c.CreatedAt}
}

type countryRequest struct {
	Name         string `json:"name"`
	Code         string `json:"code"`
	NumberLength int    `json:"numberLength"`
}

// scriptDTO omits the storage locator.
type scriptDTO struct {
	ID         string    `json:"id"`
	AppName    string    `json:"appName"`
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func toScriptDTO(s model.Script) scriptDTO {
	return scriptDTO{ID: s.ID.String(), AppName: s.AppName, FileName: s.FileName, FileSize: s.FileSize, UploadedAt: s.UploadedAt}
}

type downloadRequest struct {
	ScriptID     string   `json:"scriptId"`
	CountryID    string   `json:"countryId"`
	PhoneNumbers []string `json:"phoneNumbers"`
}

type downloadResponse struct {
	Script     string `json:"script"`
	TaskID     string `json:"taskId"`
	ValidCount int    `json:"validCount"`
}

type reportRequest struct {
	TaskID       string  `json:"taskId"`
	Status       string  `json:"status"`
	OTPProcessed *int    `json:"otpProcessed"`
	ErrorMessage *string `json:"errorMessage"`
}

type userCreateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userUpdateRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	IsActive *bool   `json:"isActive"`
}

type taskDTO struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ScriptID     string    `json:"scriptId"`
	CountryID    string    `json:"countryId"`
	Status       string    `json:"status"`
	OTPProcessed int       `json:"otpProcessed"`
	ErrorMessage *string   `json:"errorMessage"`
	Timestamp    time.Time `json:"timestamp"`
	UserEmail    string    `json:"userEmail"`
	ScriptName   string    `json:"scriptName"`
	CountryName  string    `json:"countryName"`
}

func toTaskDTO(t model.EnrichedTask) taskDTO {
	return taskDTO{
		ID: t.ID.String(), UserID: t.UserID.String(), ScriptID: t.ScriptID.String(), CountryID: t.CountryID.String(),
		Status: string(t.Status), OTPProcessed: t.OTPProcessed, ErrorMessage: t.ErrorMessage, Timestamp: t.Timestamp,
		UserEmail: t.UserEmail, ScriptName: t.ScriptName, CountryName: t.CountryName,
	}
}

type statsDTO struct {
	TotalUsers    int `json:"totalUsers"`
	ActiveScripts int `json:"activeScripts"`
	Countries     int `json:"countries"`
	TasksToday    int `json:"tasksToday"`
}
