package ingestion

import (
	"context"
	"time"
)

// InsertResult reports the outcome of an insert-if-absent attempt.
type InsertResult int

const (
	// Inserted means a new row was written.
	Inserted InsertResult = iota
	// Skipped means the uniqueness constraint on (topic, event_id) rejected
	// the row. Not an error: duplicates are normal operation and counted as
	// dropped.
	Skipped
)

// String returns a human-readable form for logging.
func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Store defines the interface for processed event persistence.
//
// The domain package defines this interface to specify what it needs for
// event storage, without depending on concrete implementations.
//
// Implementations must realize InsertIfAbsent as a single round-trip that
// leans on the store's native conflict resolution (INSERT ... ON CONFLICT DO
// NOTHING or equivalent). A select-then-insert implementation would race two
// workers onto a duplicate insert and corrupt the counter semantics.
type Store interface {
	// InsertIfAbsent attempts to persist the event. Returns Inserted if a
	// new row was written, Skipped if the uniqueness constraint on
	// (topic, event_id) rejected it. Any other failure (connectivity,
	// payload serialization) is returned as an error.
	InsertIfAbsent(ctx context.Context, event *Event) (InsertResult, error)

	// CountEvents returns the total row count.
	CountEvents(ctx context.Context) (int64, error)

	// ListEvents returns up to limit rows ordered by id descending.
	// If topic is non-empty, only matching rows are returned.
	ListEvents(ctx context.Context, topic string, limit int) ([]ProcessedEvent, error)

	// HealthCheck verifies the storage backend is reachable.
	HealthCheck(ctx context.Context) error
}

// Queue defines the interface for the FIFO broker between ingress and workers.
//
// The broker is treated as a black box FIFO: PushLeft plus BlockingPopRight
// give first-in-first-out delivery per enqueuer, and each item is delivered
// exactly once to exactly one worker. Depth is best-effort and not
// transactional with push/pop.
type Queue interface {
	// PushLeft prepends an item to the FIFO head.
	PushLeft(ctx context.Context, item []byte) error

	// BlockingPopRight pops from the tail, waiting up to timeout. Returns
	// (nil, nil) if the timeout elapses with no item. Must not busy-wait.
	// Context cancellation unblocks the wait.
	BlockingPopRight(ctx context.Context, timeout time.Duration) ([]byte, error)

	// Length returns the current queue depth.
	Length(ctx context.Context) (int64, error)
}
