package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aggregator-io/aggregator/internal/ingestion"
)

// ErrBroker is returned when a broker operation fails (connection loss,
// protocol error). Callers treat it as transient.
var ErrBroker = errors.New("broker operation failed")

// Queue implements ingestion.Queue (FIFO transport for events).
var _ ingestion.Queue = (*Queue)(nil)

const expectedPopReplyLen = 2 // BRPOP replies with [key, value]

// Queue is a thin wrapper over a Redis list used as a FIFO: LPUSH at the
// head, BRPOP at the tail, LLEN for depth. The Redis server is the
// concurrency arbiter; the client is safe for concurrent use, but each
// worker still opens its own Queue so consumer loops never share the
// ingress handle.
type Queue struct {
	client *redis.Client
	key    string
}

// NewQueue opens a Redis client for the configured broker URL. The queue
// key is fixed to the events queue; it is not configurable.
func NewQueue(cfg *Config) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts, err := redis.ParseURL(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid broker URL: %w", ErrBroker, err)
	}

	return &Queue{
		client: redis.NewClient(opts),
		key:    ingestion.QueueName,
	}, nil
}

// PushLeft prepends the item to the FIFO head.
func (q *Queue) PushLeft(ctx context.Context, item []byte) error {
	if err := q.client.LPush(ctx, q.key, item).Err(); err != nil {
		return fmt.Errorf("%w: push: %w", ErrBroker, err)
	}

	return nil
}

// BlockingPopRight pops from the FIFO tail, waiting up to timeout. Returns
// (nil, nil) when the timeout elapses with no item. The server-side BRPOP
// does the blocking; there is no client-side busy-wait. Context
// cancellation unblocks the call.
func (q *Queue) BlockingPopRight(ctx context.Context, timeout time.Duration) ([]byte, error) {
	reply, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: pop: %w", ErrBroker, err)
	}

	if len(reply) != expectedPopReplyLen {
		return nil, fmt.Errorf("%w: unexpected BRPOP reply of %d elements", ErrBroker, len(reply))
	}

	return []byte(reply[1]), nil
}

// Length returns the queue depth. Best-effort: not transactional with
// concurrent push/pop.
func (q *Queue) Length(ctx context.Context) (int64, error) {
	depth, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: length: %w", ErrBroker, err)
	}

	return depth, nil
}

// Ping verifies the broker connection is alive.
func (q *Queue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrBroker, err)
	}

	return nil
}

// Close releases the underlying client connection pool.
func (q *Queue) Close() error {
	return q.client.Close()
}
