package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/aggregator-io/aggregator/internal/ingestion"
)

type (
	// stubStore scripts the read-side store surface for handler tests.
	stubStore struct {
		mu         sync.Mutex
		events     []ingestion.ProcessedEvent
		countErr   error
		listErr    error
		healthErr  error
		lastTopic  string
		lastLimit  int
	}

	// stubQueue records pushed items and scripts failures.
	stubQueue struct {
		mu      sync.Mutex
		items   [][]byte
		pushErr error
		lenErr  error
		pingErr error
	}
)

func (s *stubStore) CountEvents(_ context.Context) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}

	return int64(len(s.events)), nil
}

func (s *stubStore) ListEvents(_ context.Context, topic string, limit int) ([]ingestion.ProcessedEvent, error) {
	s.mu.Lock()
	s.lastTopic = topic
	s.lastLimit = limit
	s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	result := make([]ingestion.ProcessedEvent, 0)

	for _, e := range s.events {
		if topic != "" && e.Topic != topic {
			continue
		}

		if len(result) == limit {
			break
		}

		result = append(result, e)
	}

	return result, nil
}

func (s *stubStore) HealthCheck(_ context.Context) error {
	return s.healthErr
}

func (q *stubQueue) PushLeft(_ context.Context, item []byte) error {
	if q.pushErr != nil {
		return q.pushErr
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, item)

	return nil
}

func (q *stubQueue) Length(_ context.Context) (int64, error) {
	if q.lenErr != nil {
		return 0, q.lenErr
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return int64(len(q.items)), nil
}

func (q *stubQueue) Ping(_ context.Context) error {
	return q.pingErr
}

func (q *stubQueue) pushed() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([][]byte(nil), q.items...)
}

// newTestServer builds a server over stub dependencies, without starting it.
func newTestServer(store *stubStore, queue *stubQueue) (*Server, *ingestion.Counters) {
	counters := ingestion.NewCounters()
	server := NewServer(LoadServerConfig(), store, queue, nil, counters)

	return server, counters
}

// serve routes a request through the full middleware chain.
func serve(server *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)

	return rec
}

var errStub = errors.New("stub failure")
