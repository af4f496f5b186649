package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"lantern-hq/lantern/pkg/config"
	"lantern-hq/lantern/pkg/flags/evaluator"
	"lantern-hq/lantern/pkg/flags/management"
	"lantern-hq/lantern/pkg/telemetry/metrics"
)

// Server is the HTTP API server for flag evaluation and management.
type Server struct {
	config       *config.ServerConfig
	evaluator    *evaluator.Evaluator
	management   *management.Service
	metrics      *metrics.Collector
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates an API server. The metrics collector may be nil, which
// leaves /metrics unmounted.
func NewServer(cfg *config.ServerConfig, eval *evaluator.Evaluator, mgmt *management.Service, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:       cfg,
		evaluator:    eval,
		management:   mgmt,
		metrics:      collector,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown, which is
// triggered by context cancellation, SIGINT/SIGTERM, or Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server",
			"address", s.config.ListenAddress,
			"environment", s.evaluator.Environment(),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return nil
	}
}

// Shutdown gracefully stops the server, bounded by the configured shutdown
// timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		defer close(s.shutdownChan)

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		if s.httpServer == nil {
			return
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down API server")
		err = s.httpServer.Shutdown(shutdownCtx)
	})
	return err
}

// routes builds the request multiplexer with the logging middleware applied.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/evaluate", s.handleEvaluate)

	mux.HandleFunc("GET /v1/flags", s.handleListFlags)
	mux.HandleFunc("POST /v1/flags", s.handleCreateFlag)
	mux.HandleFunc("GET /v1/flags/{key}", s.handleGetFlag)
	mux.HandleFunc("PATCH /v1/flags/{key}", s.handleUpdateFlag)
	mux.HandleFunc("DELETE /v1/flags/{key}", s.handleDeleteFlag)

	mux.HandleFunc("PUT /v1/tenants/{tenant}/overrides/{key}", s.handleSetOverride)
	mux.HandleFunc("DELETE /v1/tenants/{tenant}/overrides/{key}", s.handleRemoveOverride)

	mux.HandleFunc("PUT /v1/kill-switch", s.handleSetKillSwitch)
	mux.HandleFunc("PUT /v1/kill-switch/{key}", s.handleSetKillSwitch)

	mux.HandleFunc("POST /v1/cache/invalidate", s.handleInvalidateCache)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.logRequests(mux)
}

// logRequests logs each request with its status and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := timeNow()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", timeNow().Sub(started).Milliseconds(),
		)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
