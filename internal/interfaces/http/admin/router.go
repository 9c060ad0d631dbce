// Package admin serves the operational endpoints: liveness, readiness and
// Prometheus metrics.
package admin

import (
	"context"
	"net/http"
	"time"

	"workbench-backend/internal/middleware"
	"workbench-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MetricsSource exposes the metrics handler and records request metrics.
type MetricsSource interface {
	middleware.HTTPRecorder
	Handler() http.Handler
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]HealthCheck `json:"checks,omitempty"`
}

// HealthCheck is the result of one dependency check.
type HealthCheck struct {
	Status   string `json:"status"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// Options configures the router.
type Options struct {
	Version      string
	CheckTimeout time.Duration
}

type handler struct {
	checks  map[string]Pinger
	version string
	timeout time.Duration
	started time.Time
	logger  *zap.Logger
}

// NewRouter builds the admin router. Every entry of checks is pinged by
// /readyz; the table is normally registered as "database".
func NewRouter(checks map[string]Pinger, metrics MetricsSource, logger *zap.Logger, opts Options) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 5 * time.Second
	}
	h := &handler{
		checks:  checks,
		version: opts.Version,
		timeout: opts.CheckTimeout,
		started: time.Now(),
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	if metrics != nil {
		r.Use(middleware.Metrics(metrics))
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Get("/healthz", h.liveness)
	r.Get("/readyz", h.readiness)
	return r
}

func (h *handler) liveness(w http.ResponseWriter, _ *http.Request) {
	api.Success(w, http.StatusOK, HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *handler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Checks:    make(map[string]HealthCheck, len(h.checks)),
	}
	for name, p := range h.checks {
		start := time.Now()
		check := HealthCheck{Status: StatusHealthy}
		if err := p.Ping(ctx); err != nil {
			check.Status = StatusUnhealthy
			check.Error = err.Error()
			resp.Status = StatusUnhealthy
			h.logger.Warn("readiness check failed",
				zap.String("check", name),
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.Error(err))
		}
		check.Duration = time.Since(start).String()
		resp.Checks[name] = check
	}

	status := http.StatusOK
	if resp.Status != StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	api.Success(w, status, resp)
}

// Server runs the admin router until its context is cancelled.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// NewServer wraps handler in an http.Server listening on addr.
func NewServer(addr string, handler http.Handler, shutdownTimeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info("admin server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
