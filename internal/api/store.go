package api

import (
	"context"

	"github.com/aggregator-io/aggregator/internal/ingestion"
)

type (
	// EventStore is the read-side store surface the API needs. The ingress
	// never writes to the database directly; inserts happen in the worker
	// pool, so this interface carries only queries and health.
	EventStore interface {
		CountEvents(ctx context.Context) (int64, error)
		ListEvents(ctx context.Context, topic string, limit int) ([]ingestion.ProcessedEvent, error)
		HealthCheck(ctx context.Context) error
	}

	// EventQueue is the queue surface the API needs: enqueue on publish and
	// depth for the stats endpoint.
	EventQueue interface {
		PushLeft(ctx context.Context, item []byte) error
		Length(ctx context.Context) (int64, error)
		Ping(ctx context.Context) error
	}

	// WorkerPool is the consumer-side lifecycle the server drives during
	// startup and shutdown.
	WorkerPool interface {
		Start(ctx context.Context)
		Stop()
	}
)
