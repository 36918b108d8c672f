package ingestion

import "errors"

// Sentinel errors for validation failures.
var (
	ErrNilEvent         = errors.New("event cannot be nil")
	ErrMissingTopic     = errors.New("topic is required")
	ErrMissingEventID   = errors.New("event_id is required")
	ErrMissingTimestamp = errors.New("timestamp is required")
)

// Validator performs semantic validation of submitted events.
//
// Validation strategy is unmarshal + business rules: the JSON decoder already
// rejects shape mismatches (non-string topic, non-object body), so the
// validator only enforces presence of the required fields. The timestamp is
// deliberately not parsed here; it is informational and only used for
// best-effort latency accounting in the worker.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateEvent validates that an Event contains all required fields.
//
// Required fields:
//   - topic: Must not be empty
//   - event_id: Must not be empty
//   - timestamp: Must not be empty
//
// Optional fields:
//   - source: May be absent
//   - payload: May be absent or any JSON value
//
// Returns nil if valid, a sentinel error if validation fails.
func (v *Validator) ValidateEvent(event *Event) error {
	if event == nil {
		return ErrNilEvent
	}

	if event.Topic == "" {
		return ErrMissingTopic
	}

	if event.EventID == "" {
		return ErrMissingEventID
	}

	if event.Timestamp == "" {
		return ErrMissingTimestamp
	}

	return nil
}
