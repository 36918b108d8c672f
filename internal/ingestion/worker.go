package ingestion

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// WorkerCount is the number of consumer workers the pipeline runs.
	// The pipeline contract is exactly 5 workers; it is deliberately not
	// configurable.
	WorkerCount = 5

	// popTimeout bounds each blocking pop so a cancelled worker exits at
	// its next loop boundary; it also bounds shutdown latency per worker.
	popTimeout = 1 * time.Second

	// retryDelay is the back-off after a transient broker failure in the
	// worker loop.
	retryDelay = 1 * time.Second

	// poolStopTimeout is the maximum time Stop waits for workers to exit.
	poolStopTimeout = 5 * time.Second
)

// Worker is a long-running consumer: it pops an encoded event from the
// queue, decodes it, accumulates best-effort latency, and persists it via
// the store's insert-if-absent primitive.
//
// Workers are stateless and interchangeable; any worker may process any
// item, and no ordering between topics or event IDs is promised. Per-item
// errors never kill a worker: decode failures and transient store failures
// are logged and the item is dropped, never re-enqueued (re-enqueueing
// would introduce duplicates).
type Worker struct {
	id       int
	queue    Queue
	store    Store
	counters *Counters
	logger   *slog.Logger
}

// NewWorker creates a worker with its own queue connection. Workers must not
// share the ingress queue handle; each owns its connection for the lifetime
// of the loop.
func NewWorker(id int, queue Queue, store Store, counters *Counters, logger *slog.Logger) *Worker {
	return &Worker{
		id:       id,
		queue:    queue,
		store:    store,
		counters: counters,
		logger:   logger,
	}
}

// Run executes the consume loop until ctx is cancelled. Cancellation
// unblocks an in-progress pop; an insert already started is allowed to
// finish before the worker observes cancellation at the loop boundary.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", slog.Int("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped", slog.Int("worker_id", w.id))

			return
		default:
		}

		item, err := w.queue.BlockingPopRight(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopped", slog.Int("worker_id", w.id))

				return
			}

			w.logger.Error("queue pop failed",
				slog.Int("worker_id", w.id),
				slog.String("error", err.Error()),
			)

			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}

			continue
		}

		if item == nil {
			// Pop timeout with an empty queue; go around.
			continue
		}

		// The in-flight item is processed to completion even if shutdown
		// begins mid-insert; the loop boundary above observes cancellation.
		w.process(context.WithoutCancel(ctx), item)
	}
}

// process takes one popped item through decode, latency accounting, and the
// idempotent insert. Terminal in all cases: the item is never returned to
// the queue.
func (w *Worker) process(ctx context.Context, item []byte) {
	event, err := DecodeEvent(item)
	if err != nil {
		w.logger.Warn("dropping undecodable queue item",
			slog.Int("worker_id", w.id),
			slog.String("error", err.Error()),
		)

		return
	}

	// Latency accounting is best-effort: parse failures and negative
	// deltas (clock skew) are silently ignored.
	if ts, parseErr := ParseEventTime(event.Timestamp); parseErr == nil {
		if latency := time.Since(ts); latency > 0 {
			w.counters.AddLatency(latency)
		}
	}

	result, err := w.store.InsertIfAbsent(ctx, event)
	if err != nil {
		// Transient store failure: log and drop. The producer is expected
		// to retry at the application layer if it cares.
		w.logger.Error("insert failed, dropping event",
			slog.Int("worker_id", w.id),
			slog.String("topic", event.Topic),
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)

		return
	}

	switch result {
	case Inserted:
		w.counters.IncUniqueProcessed()
	case Skipped:
		w.counters.IncDuplicateDropped()
	}

	w.logger.Debug("event processed",
		slog.Int("worker_id", w.id),
		slog.String("topic", event.Topic),
		slog.String("event_id", event.EventID),
		slog.String("result", result.String()),
	)
}

// WorkerPool owns the worker goroutines and their lifecycle.
type WorkerPool struct {
	workers  []*Worker
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewWorkerPool creates one worker per queue connection. The caller provides
// one queue handle per worker so connections are never shared across loops.
func NewWorkerPool(store Store, counters *Counters, queues []Queue, logger *slog.Logger) *WorkerPool {
	workers := make([]*Worker, len(queues))
	for i, queue := range queues {
		workers[i] = NewWorker(i, queue, store, counters, logger)
	}

	return &WorkerPool{
		workers: workers,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches all worker loops. It returns immediately; the loops run
// until Stop is called or the parent context is cancelled.
func (p *WorkerPool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	var wg sync.WaitGroup

	for _, worker := range p.workers {
		wg.Add(1)

		go func(w *Worker) {
			defer wg.Done()
			w.Run(runCtx)
		}(worker)
	}

	go func() {
		wg.Wait()
		close(p.done)
	}()

	p.logger.Info("worker pool started", slog.Int("workers", len(p.workers)))
}

// Stop signals cancellation to all workers and waits for them to exit.
// The 1-second pop timeout bounds how long each worker can take to observe
// cancellation. Safe to call multiple times.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel == nil {
			return
		}

		p.cancel()

		select {
		case <-p.done:
			p.logger.Info("worker pool stopped")
		case <-time.After(poolStopTimeout):
			p.logger.Warn("worker pool did not stop within timeout")
		}
	})
}
