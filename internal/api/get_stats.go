package api

import (
	"log/slog"
	"net/http"

	"github.com/aggregator-io/aggregator/internal/api/middleware"
)

type (
	// StatsResponse is the GET /stats response body.
	StatsResponse struct {
		UptimeStats UptimeStats `json:"uptime_stats"`
		SystemState SystemState `json:"system_state"`
	}

	// UptimeStats holds the in-memory counters since process start.
	UptimeStats struct {
		ReceivedAPI      int64 `json:"received_api"`
		UniqueProcessed  int64 `json:"unique_processed"`
		DuplicateDropped int64 `json:"duplicate_dropped"`
	}

	// SystemState holds point-in-time readings of the durable state.
	SystemState struct {
		DatabaseRows int64 `json:"database_rows"`
		QueueDepth   int64 `json:"queue_depth"`
	}
)

// handleStats handles GET /stats.
// Uptime counters reset with the process; database_rows survives restarts.
// The two sections are read at different instants and are not a consistent
// snapshot of each other.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	rows, err := s.store.CountEvents(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to count events",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to read database state"))

		return
	}

	// Depth is best-effort: an unreachable broker reads as 0 rather than
	// failing the whole stats call.
	depth, err := s.queue.Length(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read queue depth",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		depth = 0
	}

	s.writeJSON(w, r, http.StatusOK, StatsResponse{
		UptimeStats: UptimeStats{
			ReceivedAPI:      s.counters.Received(),
			UniqueProcessed:  s.counters.UniqueProcessed(),
			DuplicateDropped: s.counters.DuplicateDropped(),
		},
		SystemState: SystemState{
			DatabaseRows: rows,
			QueueDepth:   depth,
		},
	})
}
