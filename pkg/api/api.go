package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/beacon/internal/metrics"
	"github.com/harun/beacon/internal/tracing"
	"github.com/harun/beacon/pkg/auth"
	"github.com/harun/beacon/pkg/directory"
	"github.com/harun/beacon/pkg/tracking"
)

// maxBodyBytes caps request bodies; every request here is a small JSON object
const maxBodyBytes = 64 << 10

// Config holds the collaborators of the HTTP API
type Config struct {
	Auth     *auth.Service
	Users    *directory.Directory
	Tracking *tracking.Service
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Handler serves the JSON API under /api
type Handler struct {
	auth     *auth.Service
	users    *directory.Directory
	tracking *tracking.Service
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	requireAuth func(http.Handler) http.Handler
	mux         *http.ServeMux
	root        http.Handler
}

// NewHandler wires the routes
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if cfg.Users == nil {
		return nil, fmt.Errorf("user directory is required")
	}
	if cfg.Tracking == nil {
		return nil, fmt.Errorf("tracking service is required")
	}

	h := &Handler{
		auth:     cfg.Auth,
		users:    cfg.Users,
		tracking: cfg.Tracking,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With().Str("component", "api").Logger(),
		mux:      http.NewServeMux(),
	}
	h.requireAuth = auth.Middleware(cfg.Auth.Tokens(), func(r *http.Request, err error) {
		h.metrics.RecordAuthFailure(tracking.SurfaceHTTP)
		l := tracing.LoggerFromContext(r.Context(), h.logger)
		l.Debug().Err(err).Msg("Rejected credentials")
	})

	h.public("POST /api/auth/register", h.register)
	h.public("POST /api/auth/login", h.login)

	h.private("GET /api/users/profile", h.getProfile)
	h.private("PUT /api/users/profile", h.updateProfile)
	h.private("GET /api/users/list", h.listUsers)

	h.private("GET /api/location/initialize", h.initialize)
	h.private("GET /api/location/generate", h.generate)
	h.private("POST /api/location/update", h.update)
	h.private("GET /api/location/current", h.current)
	h.private("GET /api/location/history", h.history)
	h.private("POST /api/location/sharing/start", h.startSharing)
	h.private("POST /api/location/sharing/stop", h.stopSharing)
	h.private("POST /api/location/sharing/allow/{userId}", h.allow)
	h.private("POST /api/location/sharing/remove/{userId}", h.remove)
	h.private("GET /api/location/shared", h.shared)

	h.root = tracing.Middleware(h.mux)
	return h, nil
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Handler) public(pattern string, fn http.HandlerFunc) {
	h.mux.Handle(pattern, h.instrument(pattern, fn))
}

func (h *Handler) private(pattern string, fn http.HandlerFunc) {
	h.mux.Handle(pattern, h.instrument(pattern, h.requireAuth(withCaller(fn))))
}

// withCaller copies the authenticated identity into the tracing context
func withCaller(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := auth.IdentityFromContext(r.Context()); ok {
			r = r.WithContext(tracing.WithUserID(r.Context(), id))
		}
		next(w, r)
	})
}

// statusRecorder captures the response status for metrics and logs
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *Handler) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		r = r.WithContext(tracing.WithRoute(r.Context(), route))
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		h.metrics.RecordHTTPRequest(route, rec.status, duration)
		l := tracing.LoggerFromContext(r.Context(), h.logger)
		l.Debug().
			Int("status", rec.status).
			Dur("duration", duration).
			Msg("Request handled")
	})
}
