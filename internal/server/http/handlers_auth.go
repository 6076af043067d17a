package httpserver

import (
	"context"
	"net/http"

	"github.com/and161185/otpguard/internal/model"
	"go.uber.org/zap"
)

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, admin, err := s.auth.LoginAdmin(r.Context(), req.Email, req.Password, s.clientIP(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adminLoginResponse{
		Token:     sess.AccessToken,
		ExpiresAt: sess.ExpiresAt,
		Admin:     adminDTO{ID: admin.ID.String(), Email: admin.Email},
	})
}

func (s *Server) handleDeviceLogin(w http.ResponseWriter, r *http.Request) {
	s.deviceAuth(w, r, s.auth.LoginDevice)
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	s.deviceAuth(w, r, s.auth.RegisterDevice)
}

type deviceAuthFunc func(ctx context.Context, email, password, mac, ip string) (model.Session, model.User, error)

func (s *Server) deviceAuth(w http.ResponseWriter, r *http.Request, fn deviceAuthFunc) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, user, err := fn(r.Context(), req.Email, req.Password, req.MACAddress, s.clientIP(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("device login", zap.String("user_id", user.ID.String()))
	writeJSON(w, http.StatusOK, deviceLoginResponse{
		Token:     sess.AccessToken,
		ExpiresAt: sess.ExpiresAt,
		User:      toUserDTO(user),
	})
}
