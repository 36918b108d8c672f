package ingestion

import (
	"sync/atomic"
	"time"
)

// Counters holds the process-wide monotonic counters shared by the ingress
// and the workers. All updates are atomic single-address adds; there is no
// lock and no read-modify-write across a blocking call.
//
// A snapshot read is allowed to be field-wise inconsistent: each field
// reflects some real past value, but the four fields are not sampled at the
// same instant.
type Counters struct {
	received         atomic.Int64
	uniqueProcessed  atomic.Int64
	duplicateDropped atomic.Int64
	totalLatency     atomic.Int64 // nanoseconds
}

// NewCounters creates a zeroed counter set. A single value is shared by the
// ingress handlers and all workers; it lives for the process lifetime and is
// never persisted.
func NewCounters() *Counters {
	return &Counters{}
}

// IncReceived records an event accepted by ingress validation.
func (c *Counters) IncReceived() {
	c.received.Add(1)
}

// IncUniqueProcessed records a worker insert that created a new row.
func (c *Counters) IncUniqueProcessed() {
	c.uniqueProcessed.Add(1)
}

// IncDuplicateDropped records a worker insert skipped by the uniqueness constraint.
func (c *Counters) IncDuplicateDropped() {
	c.duplicateDropped.Add(1)
}

// AddLatency accumulates the delta between an event's timestamp and its
// arrival at a worker. Callers only pass positive deltas.
func (c *Counters) AddLatency(d time.Duration) {
	c.totalLatency.Add(int64(d))
}

// Received returns the number of events accepted by ingress validation.
func (c *Counters) Received() int64 {
	return c.received.Load()
}

// UniqueProcessed returns the number of rows actually created by workers.
func (c *Counters) UniqueProcessed() int64 {
	return c.uniqueProcessed.Load()
}

// DuplicateDropped returns the number of inserts skipped as duplicates.
func (c *Counters) DuplicateDropped() int64 {
	return c.duplicateDropped.Load()
}

// TotalLatency returns the accumulated ingest latency.
func (c *Counters) TotalLatency() time.Duration {
	return time.Duration(c.totalLatency.Load())
}
