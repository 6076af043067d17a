// Package httpserver exposes the admin portal and desktop client JSON API.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/and161185/otpguard/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Options tunes the transport.
type Options struct {
	// IPRatePerMin caps requests per client IP; 0 disables the cap.
	IPRatePerMin int
	// MaxUploadBytes caps script uploads.
	MaxUploadBytes int64
	// TrustProxy makes the client IP come from X-Forwarded-For.
	// Enable only when every request passes through a proxy that sets it.
	TrustProxy bool
	// Ready reports backend health for /health.
	Ready func(ctx context.Context) error
}

// Server wires services into HTTP handlers.
type Server struct {
	auth     service.AuthService
	dispatch service.DispatchService
	tasks    service.TaskService
	catalog  service.CatalogService
	signKey  []byte
	log      *zap.Logger
	opts     Options

	ipLim     *ipLimiters
	stopSweep context.CancelFunc
}

// New constructs a Server with injected services.
func New(
	auth service.AuthService, dispatch service.DispatchService, tasks service.TaskService,
	catalog service.CatalogService, signKey []byte, log *zap.Logger, opts Options,
) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	s := &Server{auth: auth, dispatch: dispatch, tasks: tasks, catalog: catalog, signKey: signKey, log: log, opts: opts}
	s.stopSweep = func() {}
	if s.ipLim = newIPLimiters(opts.IPRatePerMin); s.ipLim != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopSweep = cancel
		go s.ipLim.run(ctx, time.Minute)
	}
	return s
}

// Close stops background work. It is safe to call more than once.
func (s *Server) Close() {
	s.stopSweep()
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(Recover(s.log))
	r.Use(Logging(s.log))
	r.Use(ipRateLimit(s.ipLim, s.clientIP, s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/admin-login", s.handleAdminLogin)
			r.Post("/login", s.handleDeviceLogin)
			r.Post("/register-device", s.handleRegisterDevice)
		})

		// Catalog lists for both the portal and the desktop client.
		r.Group(func(r chi.Router) {
			r.Use(s.RequireRole(service.RoleAdmin, service.RoleDevice))
			r.Get("/countries", s.handleListCountries)
			r.Get("/scripts", s.handleListScripts)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.RequireRole(service.RoleDevice))
			r.Post("/scripts/download", s.handleDownload)
			r.Post("/tasks/report-status", s.handleReportStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.RequireRole(service.RoleAdmin))
			r.Get("/stats", s.handleStats)

			r.Get("/users", s.handleListUsers)
			r.Post("/users", s.handleCreateUser)
			r.Put("/users/{id}", s.handleUpdateUser)
			r.Delete("/users/{id}", s.handleDeleteUser)
			r.Post("/users/{id}/reset-device", s.handleResetDevice)

			r.Get("/countries", s.handleListCountries)
			r.Post("/countries", s.handleCreateCountry)
			r.Put("/countries/{id}", s.handleUpdateCountry)
			r.Delete("/countries/{id}", s.handleDeleteCountry)

			r.Get("/scripts", s.handleListScripts)
			r.Post("/scripts", s.handleUploadScript)
			r.Delete("/scripts/{id}", s.handleDeleteScript)

			r.Get("/tasks", s.handleListTasks)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondWithError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
