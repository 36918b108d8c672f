// Package ingestion provides the event domain model, validation, counters,
// and the worker pool that drains the broker queue into the store.
//
// This package defines the Store and Queue interfaces which represent what
// the domain needs for persistence and transport, following the Dependency
// Inversion Principle. Concrete implementations (PostgreSQL, Redis) live in
// the internal/storage and internal/broker packages.
package ingestion

import (
	"encoding/json"
	"fmt"
	"time"
)

// QueueName is the fixed broker list the ingress pushes to and workers pop from.
const QueueName = "events_queue"

// Event is the client-submitted record, identified by (topic, event_id).
//
// The payload is an arbitrary JSON tree; it is carried verbatim as
// json.RawMessage and never projected into a fixed schema. The timestamp is
// an ISO-8601 string kept verbatim; it is parsed only for best-effort
// latency accounting.
type Event struct {
	Topic     string          `json:"topic"`
	EventID   string          `json:"event_id"`
	Timestamp string          `json:"timestamp"`
	Source    *string         `json:"source,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ProcessedEvent is a persisted Event row in the store.
// Rows are created by the worker insert path and never updated or deleted.
type ProcessedEvent struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	EventID   string          `json:"event_id"`
	Timestamp string          `json:"timestamp"`
	Source    *string         `json:"source,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Encode serializes the event to its queue wire form: a UTF-8 JSON object
// with the event fields, no framing, no envelope.
func (e *Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s/%s: %w", e.Topic, e.EventID, err)
	}

	return data, nil
}

// DecodeEvent parses a queue item back into an Event.
func DecodeEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode queue item: %w", err)
	}

	return &event, nil
}

// eventTimeLayouts are the accepted timestamp forms, tried in order.
// The zoneless layouts cover producers that emit local ISO-8601 timestamps
// without an offset; those are interpreted in local time.
var eventTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseEventTime parses the event timestamp string. Latency accounting is
// best-effort: callers ignore the error and skip accounting on failure.
func ParseEventTime(value string) (time.Time, error) {
	for _, layout := range eventTimeLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", value)
}
