package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aggregator-io/aggregator/internal/api/middleware"
)

const (
	healthCheckTimeout     = 2 * time.Second
	serviceName            = "aggregator"
	contentTypeProblemJSON = "application/problem+json"
)

type (
	// LivenessStatus is the GET / response body.
	LivenessStatus struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}

	// HealthStatus is the GET /health response body.
	HealthStatus struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Uptime  string `json:"uptime,omitempty"`
	}
)

// setupRoutes sets up all HTTP routes for the API server.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Health endpoints
	mux.HandleFunc("GET /{$}", s.handleLiveness) // Liveness only, no dependency checks
	mux.HandleFunc("GET /ready", s.handleReady)  // K8s readiness probe
	mux.HandleFunc("GET /health", s.handleHealth)

	// Pipeline endpoints
	mux.HandleFunc("POST /publish", s.handlePublishEvent)
	mux.HandleFunc("GET /events", s.handleListEvents)
	mux.HandleFunc("GET /stats", s.handleStats)

	// Prometheus exposition
	mux.Handle("GET /metrics", s.metricsHandler)

	// Catch-all handler for 404 responses
	mux.HandleFunc("/", s.handleNotFound)
}

// handleLiveness responds to liveness probes. It reports only that the
// process is serving; broker and database health belong to /ready.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, LivenessStatus{
		Status:  "alive",
		Service: serviceName,
	})
}

// handleReady responds to readiness probes with dependency health checks.
//
// Response codes:
//   - 200 OK: database and broker are reachable
//   - 503 Service Unavailable: a dependency is unhealthy or unreachable
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Error("Database health check failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, ServiceUnavailable("database unavailable"))

		return
	}

	if err := s.queue.Ping(ctx); err != nil {
		s.logger.Error("Broker health check failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, ServiceUnavailable("broker unavailable"))

		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("ready")); err != nil {
		s.logger.Error("Failed to write ready response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

// handleHealth returns basic health status with process uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var uptime string

	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	s.writeJSON(w, r, http.StatusOK, HealthStatus{
		Status:  "healthy",
		Service: serviceName,
		Uptime:  uptime,
	})
}

// handleNotFound returns RFC 7807 compliant 404 responses for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("The requested resource was not found"))
}

// writeJSON marshals v and writes it with the given status. Marshal failures
// become 500 problem responses; write failures after headers are logged only.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	correlationID := middleware.GetCorrelationID(r.Context())

	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

