package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/obutuz/swarmshield-sub004/pkg/config"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/telemetry/health"
	"github.com/obutuz/swarmshield-sub004/pkg/telemetry/tracing"
)

// Evaluator produces verdicts.
type Evaluator interface {
	Evaluate(ctx context.Context, event *policy.Event) (*policy.Verdict, error)
}

// DetectionRefresher reloads one workspace's detection rules.
type DetectionRefresher interface {
	RefreshWorkspace(ctx context.Context, workspaceID string) error
}

// Dependencies are the components the HTTP surface exposes. Optional
// fields may be nil: the matching endpoint then answers 404 or is not
// mounted.
type Dependencies struct {
	// Evaluator is required.
	Evaluator Evaluator

	// Detection backs POST /v1/workspaces/{id}/detection-rules/refresh.
	Detection DetectionRefresher

	// Reload backs POST /v1/rules/reload. It reloads rules from the store
	// and refreshes every dependent cache.
	Reload func(ctx context.Context) error

	// Verdicts backs GET /v1/workspaces/{id}/verdicts.
	Verdicts evidence.Storage

	// Health backs /health and /ready.
	Health *health.Checker

	// Metrics is mounted at MetricsPath.
	Metrics     http.Handler
	MetricsPath string

	// Tracer wraps every request in a server span.
	Tracer *tracing.Tracer

	// Version is served at /version.
	Version health.VersionInfo
}

// Server is the SwarmShield HTTP API.
type Server struct {
	config     *config.ServerConfig
	deps       Dependencies
	logger     *slog.Logger
	httpServer *http.Server

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server. logger defaults to slog.Default().
func New(cfg *config.ServerConfig, deps Dependencies, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config is nil")
	}
	if deps.Evaluator == nil {
		return nil, errors.New("server requires an evaluator")
	}
	if deps.Health == nil {
		deps.Health = health.New(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		deps:   deps,
		logger: logger.With("component", "server"),
	}, nil
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown closes the readiness gate and drains in-flight requests within
// the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		s.mu.Unlock()
		if !running {
			return
		}

		s.deps.Health.SetReady(false)
		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/events/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /v1/workspaces/{id}/detection-rules/refresh", s.handleRefreshDetection)
	mux.HandleFunc("POST /v1/rules/reload", s.handleReload)
	mux.HandleFunc("GET /v1/workspaces/{id}/verdicts", s.handleQueryVerdicts)

	mux.Handle("/health", s.deps.Health.LivenessHandler())
	mux.Handle("/ready", s.deps.Health.ReadinessHandler())
	mux.Handle("/version", health.VersionHandler(s.deps.Version.Version, s.deps.Version.Commit, s.deps.Version.BuildTime))
	if s.deps.Metrics != nil {
		path := s.deps.MetricsPath
		if path == "" {
			path = config.DefaultMetricsPath
		}
		mux.Handle(path, s.deps.Metrics)
	}

	var handler http.Handler = mux
	handler = MaxBodyMiddleware(s.config.MaxBodyBytes)(handler)
	if s.deps.Tracer != nil {
		handler = tracing.HTTPMiddleware(s.deps.Tracer)(handler)
	}
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware(handler)

	return handler
}
