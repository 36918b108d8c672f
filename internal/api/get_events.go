package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aggregator-io/aggregator/internal/api/middleware"
)

// Pagination defaults for the events listing.
const defaultEventsLimit = 20

// handleListEvents handles GET /events.
// Returns the most recently processed events, newest first by id.
//
// Query Parameters:
//   - topic: optional exact-match topic filter
//   - limit: maximum rows to return (default: 20). A non-positive limit
//     returns an empty list; an unparseable limit is a 422.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	limit := defaultEventsLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			WriteErrorResponse(w, r, s.logger, UnprocessableEntity("Invalid parameter 'limit': must be an integer"))

			return
		}

		limit = parsed
	}

	topic := r.URL.Query().Get("topic")

	events, err := s.store.ListEvents(ctx, topic, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list events",
			slog.String("correlation_id", correlationID),
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to list events"))

		return
	}

	s.writeJSON(w, r, http.StatusOK, events)
}
