package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aggregator-io/aggregator/internal/api/middleware"
	"github.com/aggregator-io/aggregator/internal/ingestion"
)

// PublishResponse is the POST /publish success body.
type PublishResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// handlePublishEvent handles POST /publish: validate, count, enqueue.
//
// Request validation (returns 4xx):
//   - 413 Payload Too Large: request body exceeds MaxRequestSize
//   - 422 Unprocessable Entity: empty body, malformed JSON, or missing
//     required fields. Rejected requests touch no counter and enqueue nothing.
//
// The Content-Type header is not inspected; the body alone decides.
//
// Success response:
//   - 202 Accepted: the event passed validation and was pushed to the broker.
//     Acceptance means queued, not persisted; deduplication happens later in
//     the worker pool.
//
// Broker failure after validation returns 500 with a generic body. The
// received counter is already incremented at that point: it counts attempts
// accepted by validation.
func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	event, problem := s.parsePublishRequest(r)
	if problem != nil {
		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	if err := s.validator.ValidateEvent(event); err != nil {
		WriteErrorResponse(w, r, s.logger, UnprocessableEntity(err.Error()))

		return
	}

	s.counters.IncReceived()

	item, err := event.Encode()
	if err != nil {
		s.logger.Error("Failed to encode event for queue",
			slog.String("correlation_id", correlationID),
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Internal Broker Error"))

		return
	}

	if err := s.queue.PushLeft(r.Context(), item); err != nil {
		s.logger.Error("Failed to enqueue event",
			slog.String("correlation_id", correlationID),
			slog.String("event_id", event.EventID),
			slog.String("topic", event.Topic),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Internal Broker Error"))

		return
	}

	s.writeJSON(w, r, http.StatusAccepted, PublishResponse{
		Status: "queued",
		ID:     event.EventID,
	})
}

// parsePublishRequest reads and decodes the request body into an Event.
// Returns a problem detail on empty, oversized, or malformed bodies.
func (s *Server) parsePublishRequest(r *http.Request) (*ingestion.Event, *ProblemDetail) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, s.config.MaxRequestSize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, NewProblemDetail(
				http.StatusRequestEntityTooLarge,
				"Payload Too Large",
				"Request body exceeds the configured size limit",
			)
		}

		return nil, UnprocessableEntity("Failed to read request body")
	}

	if len(body) == 0 {
		return nil, UnprocessableEntity("Request body cannot be empty")
	}

	var event ingestion.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, UnprocessableEntity("Request body is not a valid JSON event: " + err.Error())
	}

	return &event, nil
}
