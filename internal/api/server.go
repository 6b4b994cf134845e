// Package api serves copilot turns, approvals and the audit trail over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/riskpilot/riskpilot/internal/compliance"
	"github.com/riskpilot/riskpilot/internal/cost"
	"github.com/riskpilot/riskpilot/internal/gates"
	"github.com/riskpilot/riskpilot/internal/loop"
	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/storage"
	"github.com/riskpilot/riskpilot/internal/types"
)

const (
	defaultTimeout = 60 * time.Second
	// Turns may make several model calls; they get a longer deadline
	askTimeout      = 3 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// Copilot is the approval gate as seen by the HTTP handlers
type Copilot interface {
	Run(ctx context.Context, req gates.Request) (*gates.Result, error)
	Resolve(ctx context.Context, id string, decision types.Decision, reviewer, reason string) (*gates.Result, error)
	Pending(ctx context.Context) ([]*types.PendingApproval, error)
	Get(ctx context.Context, id string) (*types.PendingApproval, error)
}

// Config holds the server's collaborators
type Config struct {
	Copilot Copilot
	Store   storage.Storage
	Context riskctx.Provider
	Auditor *compliance.Auditor
	Global  compliance.GlobalLimits

	// Optional, enable GET /v1/metrics
	Metrics loop.MetricsCollector
	Cost    *cost.Tracker

	Logger *slog.Logger
}

// Server holds all dependencies for the HTTP API
type Server struct {
	router    *chi.Mux
	copilot   Copilot
	store     storage.Storage
	context   riskctx.Provider
	auditor   *compliance.Auditor
	global    compliance.GlobalLimits
	metrics   loop.MetricsCollector
	cost      *cost.Tracker
	logger    *slog.Logger
	startTime time.Time
}

// New builds a Server
func New(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Copilot == nil {
		return nil, fmt.Errorf("copilot is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Context == nil {
		return nil, fmt.Errorf("risk context provider is required")
	}
	if cfg.Auditor == nil {
		return nil, fmt.Errorf("auditor is required")
	}
	s := &Server{
		router:    chi.NewRouter(),
		copilot:   cfg.Copilot,
		store:     cfg.Store,
		context:   cfg.Context,
		auditor:   cfg.Auditor,
		global:    cfg.Global,
		metrics:   cfg.Metrics,
		cost:      cfg.Cost,
		logger:    cfg.Logger,
		startTime: time.Now(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Routes returns the chi router with all middleware and routes
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/v1/health", s.handleHealth)

	r.With(middleware.Timeout(askTimeout)).Post("/v1/ask", s.handleAsk)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(defaultTimeout))

		r.Get("/v1/approvals", s.handleApprovalsList)
		r.Get("/v1/approvals/{id}", s.handleApprovalGet)
		r.Post("/v1/approvals/{id}/approve", s.handleApprove)
		r.Post("/v1/approvals/{id}/reject", s.handleReject)

		r.Get("/v1/runs", s.handleRunsList)
		r.Get("/v1/runs/{id}", s.handleRunGet)
		r.Get("/v1/events", s.handleEventsList)

		r.Get("/v1/limits", s.handleLimits)
		r.Get("/v1/context", s.handleContext)

		r.Get("/v1/scenarios", s.handleScenariosList)
		r.Post("/v1/scenarios/run", s.handleScenariosRun)
		r.Post("/v1/stress", s.handleStress)

		r.Get("/v1/metrics", s.handleMetrics)
	})
	return r
}

// requestLogger logs one line per request at debug level, or warn for 5xx
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	s.logger.Info("api stopped")
	return nil
}
