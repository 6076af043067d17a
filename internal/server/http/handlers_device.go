package httpserver

import (
	"net/http"

	"github.com/and161185/otpguard/internal/errs"
	"github.com/and161185/otpguard/internal/model"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

func (s *Server) handleListCountries(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.ListCountries(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]countryDTO, 0, len(list))
	for _, c := range list {
		out = append(out, toCountryDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.ListScripts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]scriptDTO, 0, len(list))
	for _, sc := range list {
		out = append(out, toScriptDTO(sc))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromCtx(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req downloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ScriptID == "" || req.CountryID == "" {
		respondWithError(w, http.StatusBadRequest, "scriptId and countryId are required")
		return
	}
	scriptID, err := uuid.FromString(req.ScriptID)
	if err != nil {
		s.fail(w, r, errs.ErrScriptNotFound)
		return
	}
	countryID, err := uuid.FromString(req.CountryID)
	if err != nil {
		s.fail(w, r, errs.ErrCountryNotFound)
		return
	}

	d, err := s.dispatch.PrepareDownload(r.Context(), p.ID, scriptID, countryID, req.PhoneNumbers)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("script dispatched",
		zap.String("user_id", p.ID.String()),
		zap.String("task_id", d.TaskID.String()),
		zap.Int("numbers", len(d.Numbers)),
	)
	writeJSON(w, http.StatusOK, downloadResponse{Script: d.Content, TaskID: d.TaskID.String(), ValidCount: len(d.Numbers)})
}

func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromCtx(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req reportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TaskID == "" || req.Status == "" {
		respondWithError(w, http.StatusBadRequest, "taskId and status are required")
		return
	}
	taskID, err := uuid.FromString(req.TaskID)
	if err != nil {
		s.fail(w, r, errs.ErrTaskNotFound)
		return
	}
	rep := model.TaskReport{Status: model.TaskStatus(req.Status), ErrorMessage: req.ErrorMessage}
	if req.OTPProcessed != nil {
		rep.OTPProcessed = *req.OTPProcessed
	}
	if _, err := s.tasks.Report(r.Context(), p.ID, taskID, rep); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
