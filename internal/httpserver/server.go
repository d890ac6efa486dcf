package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/radiusdt/adinsights/internal/config"
	"github.com/radiusdt/adinsights/internal/graphapi"
	"github.com/radiusdt/adinsights/internal/insights"
	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/middleware"
	"github.com/radiusdt/adinsights/internal/models"
	"github.com/radiusdt/adinsights/internal/reporting"
	"github.com/radiusdt/adinsights/internal/tools"
	"go.uber.org/zap"
)

const maxArgsBytes = 1 << 20

// HealthChecker is a backing store that can report its reachability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Registry *tools.Registry
	Checks   map[string]HealthChecker
}

// Server wraps HTTP handlers around the tool registry.
type Server struct {
	registry *tools.Registry
	checks   map[string]HealthChecker
	logger   *zap.Logger
	config   *config.Config
	metrics  *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes and middleware registered.
func NewServer(deps *Dependencies) http.Handler {
	s := &Server{
		registry: deps.Registry,
		checks:   deps.Checks,
		logger:   deps.Logger,
		config:   deps.Config,
		metrics:  deps.Metrics,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	cfg := deps.Config
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(s.logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(s.logger, "/health", cfg.Metrics.Path).Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.AuthHeaderName},
		ExposedHeaders:   []string{middleware.RunIDHeader, chimw.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(cfg.Auth, s.logger).Handler)
		r.Use(middleware.NewRateLimitMiddleware(cfg.RateLimit, s.logger, s.metrics).Handler)

		r.Get("/tools", s.handleListTools)
		r.Post("/tools/{name}", s.handleInvoke)
		r.Get("/runs", s.handleRuns)
	})

	return r
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.Health(ctx); err != nil {
			s.logger.Warn("health check failed", zap.String("component", name), zap.Error(err))
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	s.writeJSON(w, code, map[string]any{"status": status, "components": components})
}

// ---- Tools ----

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]any{"tools": s.registry.Definitions()})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.registry.Has(name) {
		s.errorResponse(w, "unknown tool: "+name, http.StatusNotFound)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxArgsBytes))
	if err != nil {
		s.errorResponse(w, "failed to read body", http.StatusBadRequest)
		return
	}

	res, err := s.registry.Invoke(r.Context(), name, json.RawMessage(raw))
	if err != nil {
		s.errorResponse(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set(middleware.RunIDHeader, res.RunID)
	s.jsonResponse(w, res)
}

// ---- Runs ----

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.errorResponse(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.registry.Runs(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		s.errorResponse(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, map[string]any{"runs": runs})
}

// statusFor maps a tool error to an HTTP status.
func statusFor(err error) int {
	if apiErr, ok := graphapi.AsAPIError(err); ok {
		if apiErr.IsRateLimited() {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	}

	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, tools.ErrInvalidArguments),
		errors.Is(err, reporting.ErrMissingAccountID),
		errors.Is(err, reporting.ErrInvalidBreakdown),
		errors.Is(err, reporting.ErrInvalidLevel),
		errors.Is(err, reporting.ErrNoThresholds),
		errors.Is(err, models.ErrInvalidDateRange),
		errors.Is(err, insights.ErrUnknownMetric):
		return http.StatusBadRequest
	case errors.Is(err, reporting.ErrExportDisabled),
		errors.Is(err, reporting.ErrAsyncDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, graphapi.ErrJobTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, graphapi.ErrJobFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data any) {
	s.writeJSON(w, http.StatusOK, data)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, tools.ErrorResult{Error: message})
}
