package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aggregator-io/aggregator/internal/api/middleware"
	"github.com/aggregator-io/aggregator/internal/ingestion"
	"github.com/aggregator-io/aggregator/internal/metrics"
)

// Server represents the HTTP API server. It also owns the worker pool
// lifecycle so that one Start/shutdown sequence covers the whole pipeline:
// ingress stops accepting before the consumers drain.
type Server struct {
	httpServer     *http.Server
	logger         *slog.Logger
	config         *ServerConfig
	startTime      time.Time
	store          EventStore
	queue          EventQueue
	pool           WorkerPool
	counters       *ingestion.Counters
	validator      *ingestion.Validator
	metricsHandler http.Handler
}

// NewServer creates a new HTTP server instance with structured logging and
// middleware stack.
//
// Dependencies are injected explicitly rather than being part of ServerConfig:
// configuration (what) is separated from dependencies (how). The pool may be
// nil in tests that only exercise handlers.
func NewServer(cfg *ServerConfig, store EventStore, queue EventQueue, pool WorkerPool, counters *ingestion.Counters) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	mux := http.NewServeMux()

	server := &Server{
		logger:         logger,
		config:         cfg,
		store:          store,
		queue:          queue,
		pool:           pool,
		counters:       counters,
		validator:      ingestion.NewValidator(),
		metricsHandler: newMetricsHandler(counters, queue),
	}

	server.setupRoutes(mux)

	var rateLimiter *middleware.GlobalRateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

		logger.Info("Rate limiting middleware enabled",
			slog.Int("rps", cfg.RateLimitRPS),
			slog.Int("burst", cfg.RateLimitBurst),
		)
	}

	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - tag every request and response
	//   2. Recovery - catch panics in all downstream middleware
	//   3. RateLimit - block requests before expensive operations (optional)
	//   4. RequestLogger - log only legitimate requests (not rate-limited spam)
	//   5. CORS - lightweight header manipulation
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRateLimit(rateLimiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// newMetricsHandler builds a Prometheus registry holding the pipeline
// collector plus the standard Go runtime collectors.
func newMetricsHandler(counters *ingestion.Counters, queue EventQueue) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewPipelineCollector(counters, queue),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Start starts the worker pool and the HTTP server, then blocks until
// shutdown. It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	if s.pool != nil {
		s.pool.Start(context.Background())
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting aggregator API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("Received shutdown signal",
			slog.String("signal", sig.String()),
		)

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the pipeline: first the HTTP server stops
// accepting publishes, then the worker pool drains in-flight items, then the
// broker connection is released.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.pool != nil {
		s.logger.Info("Stopping worker pool")
		s.pool.Stop()
	}

	if closer, ok := s.queue.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error("Failed to close broker connection", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("Server shutdown completed successfully")

	return nil
}
