package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/and161185/otpguard/internal/model"
	"github.com/and161185/otpguard/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// pathID parses the {id} URL parameter and answers 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.tasks.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsDTO(st))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	list, err := s.tasks.ListEnriched(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]taskDTO, 0, len(list))
	for _, t := range list {
		out = append(out, toTaskDTO(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// users

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.ListUsers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]userDTO, 0, len(list))
	for _, u := range list {
		out = append(out, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.catalog.CreateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req userUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.catalog.UpdateUser(r.Context(), id, service.UserChanges{
		Email: req.Email, Password: req.Password, IsActive: req.IsActive,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.catalog.DeleteUser(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.catalog.ResetDevice(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("device binding reset", zap.String("user_id", id.String()))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// countries

func (s *Server) handleCreateCountry(w http.ResponseWriter, r *http.Request) {
	var req countryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.catalog.CreateCountry(r.Context(), model.Country{
		Name: req.Name, DialingCode: req.Code, NumberLength: req.NumberLength,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCountryDTO(c))
}

func (s *Server) handleUpdateCountry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req countryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.catalog.UpdateCountry(r.Context(), model.Country{
		ID: id, Name: req.Name, DialingCode: req.Code, NumberLength: req.NumberLength,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCountryDTO(c))
}

func (s *Server) handleDeleteCountry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.catalog.DeleteCountry(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// scripts

func (s *Server) handleUploadScript(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sc, err := s.catalog.UploadScript(r.Context(), r.FormValue("appName"), hdr.Filename, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("script uploaded",
		zap.String("script_id", sc.ID.String()),
		zap.String("app", sc.AppName),
		zap.Int64("size", sc.FileSize),
	)
	writeJSON(w, http.StatusCreated, toScriptDTO(sc))
}

func (s *Server) handleDeleteScript(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.catalog.DeleteScript(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
