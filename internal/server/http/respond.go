package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/and161185/otpguard/internal/errs"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondWithError sends a JSON error response. The text goes under both
// "error" and "message"; desktop clients in the field read the latter.
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message, "message": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// statusOf maps service errors to an HTTP status and a client-safe message.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, errs.ErrDeviceNotAuthorized):
		return http.StatusForbidden, errs.ErrDeviceNotAuthorized.Error()
	case errors.Is(err, errs.ErrDeviceConflict):
		return http.StatusConflict, errs.ErrDeviceConflict.Error()
	case errors.Is(err, errs.ErrAccountDisabled):
		return http.StatusForbidden, "account disabled"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "too many attempts, try again later"

	case errors.Is(err, errs.ErrScriptNotFound):
		return http.StatusNotFound, errs.ErrScriptNotFound.Error()
	case errors.Is(err, errs.ErrCountryNotFound):
		return http.StatusNotFound, errs.ErrCountryNotFound.Error()
	case errors.Is(err, errs.ErrUserNotFound):
		return http.StatusNotFound, errs.ErrUserNotFound.Error()
	case errors.Is(err, errs.ErrTaskNotFound):
		return http.StatusNotFound, errs.ErrTaskNotFound.Error()
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not found"

	case errors.Is(err, errs.ErrNoValidNumbers):
		return http.StatusUnprocessableEntity, errs.ErrNoValidNumbers.Error()
	case errors.Is(err, errs.ErrTemplateInvalid):
		return http.StatusUnprocessableEntity, errs.ErrTemplateInvalid.Error()
	case errors.Is(err, errs.ErrTaskFinalized):
		return http.StatusConflict, "task already finalized"
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, validationMessage(err)
	}
	return http.StatusInternalServerError, "internal error"
}

// validationMessage strips the sentinel text from a wrapped validation error.
func validationMessage(err error) string {
	msg := err.Error()
	msg = strings.TrimSuffix(msg, ": "+errs.ErrValidation.Error())
	msg = strings.TrimPrefix(msg, errs.ErrValidation.Error()+": ")
	if msg == "" || msg == errs.ErrValidation.Error() {
		return "invalid request"
	}
	return msg
}

// fail writes the mapped error. Only unexpected errors are logged; their details never reach the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	respondWithError(w, status, msg)
}
