package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aggregator-io/aggregator/internal/ingestion"
)

func seededStore() *stubStore {
	return &stubStore{
		events: []ingestion.ProcessedEvent{
			{ID: 3, Topic: "orders", EventID: "c", Timestamp: "2025-01-01T00:00:02"},
			{ID: 2, Topic: "payments", EventID: "b", Timestamp: "2025-01-01T00:00:01"},
			{ID: 1, Topic: "orders", EventID: "a", Timestamp: "2025-01-01T00:00:00"},
		},
	}
}

func TestHandleListEvents_ReturnsEvents(t *testing.T) {
	server, _ := newTestServer(seededStore(), &stubQueue{})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/events", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var events []ingestion.ProcessedEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 3)
	assert.Equal(t, "c", events[0].EventID)
}

func TestHandleListEvents_DefaultLimit(t *testing.T) {
	store := seededStore()
	server, _ := newTestServer(store, &stubQueue{})

	serve(server, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, defaultEventsLimit, store.lastLimit)
	assert.Empty(t, store.lastTopic)
}

func TestHandleListEvents_TopicAndLimitForwarded(t *testing.T) {
	store := seededStore()
	server, _ := newTestServer(store, &stubQueue{})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/events?topic=orders&limit=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "orders", store.lastTopic)
	assert.Equal(t, 1, store.lastLimit)

	var events []ingestion.ProcessedEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "orders", events[0].Topic)
}

func TestHandleListEvents_ZeroLimitReturnsEmptyArray(t *testing.T) {
	server, _ := newTestServer(seededStore(), &stubQueue{})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/events?limit=0", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleListEvents_EmptyStoreReturnsEmptyArray(t *testing.T) {
	server, _ := newTestServer(&stubStore{}, &stubQueue{})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/events", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleListEvents_UnparseableLimit(t *testing.T) {
	server, _ := newTestServer(seededStore(), &stubQueue{})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/events?limit=abc", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, contentTypeProblemJSON, rec.Header().Get("Content-Type"))
}

func TestHandleListEvents_StoreFailure(t *testing.T) {
	server, _ := newTestServer(&stubStore{listErr: errStub}, &stubQueue{})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
