package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postPublish(server *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return serve(server, req)
}

func TestHandlePublishEvent_Accepts(t *testing.T) {
	store := &stubStore{}
	queue := &stubQueue{}
	server, counters := newTestServer(store, queue)

	rec := postPublish(server, `{"topic":"t","event_id":"e1","timestamp":"2025-01-01T00:00:00"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp PublishResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, "e1", resp.ID)

	require.Len(t, queue.pushed(), 1)
	assert.JSONEq(t,
		`{"topic":"t","event_id":"e1","timestamp":"2025-01-01T00:00:00"}`,
		string(queue.pushed()[0]),
	)

	assert.Equal(t, int64(1), counters.Received())
}

func TestHandlePublishEvent_OptionalFieldsOmitted(t *testing.T) {
	server, _ := newTestServer(&stubStore{}, &stubQueue{})

	rec := postPublish(server, `{"topic":"t","event_id":"e2","timestamp":"2025-01-01T00:00:00"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandlePublishEvent_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"missing topic", `{"event_id":"e","timestamp":"2025-01-01T00:00:00"}`},
		{"missing event_id", `{"topic":"t","timestamp":"2025-01-01T00:00:00"}`},
		{"missing timestamp", `{"topic":"t","event_id":"e"}`},
		{"empty body", ``},
		{"malformed JSON", `{"topic":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := &stubQueue{}
			server, counters := newTestServer(&stubStore{}, queue)

			rec := postPublish(server, tt.body)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, contentTypeProblemJSON, rec.Header().Get("Content-Type"))

			// Rejected requests touch no counter and enqueue nothing.
			assert.Zero(t, counters.Received())
			assert.Empty(t, queue.pushed())
		})
	}
}

func TestHandlePublishEvent_BrokerFailure(t *testing.T) {
	queue := &stubQueue{pushErr: errStub}
	server, counters := newTestServer(&stubStore{}, queue)

	rec := postPublish(server, `{"topic":"t","event_id":"e1","timestamp":"2025-01-01T00:00:00"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Broker Error")

	// Validation already accepted the attempt before the push failed.
	assert.Equal(t, int64(1), counters.Received())
}

func TestHandlePublishEvent_ContentTypeIsNotInspected(t *testing.T) {
	// The body alone decides: a valid event is accepted under any
	// Content-Type, and garbage is a 422 even when declared as JSON.
	queue := &stubQueue{}
	server, counters := newTestServer(&stubStore{}, queue)

	req := httptest.NewRequest(http.MethodPost, "/publish",
		strings.NewReader(`{"topic":"t","event_id":"e1","timestamp":"2025-01-01T00:00:00"}`))
	req.Header.Set("Content-Type", "text/plain")

	rec := serve(server, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int64(1), counters.Received())
	assert.Len(t, queue.pushed(), 1)

	req = httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(`not json`))

	rec = serve(server, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, int64(1), counters.Received())
}

func TestHandlePublishEvent_PayloadTooLarge(t *testing.T) {
	server, counters := newTestServer(&stubStore{}, &stubQueue{})
	server.config.MaxRequestSize = 64

	body := `{"topic":"t","event_id":"e1","timestamp":"2025-01-01T00:00:00","payload":{"filler":"` +
		strings.Repeat("x", 128) + `"}}`

	rec := postPublish(server, body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, counters.Received())
}

func TestHandlePublishEvent_WrongMethodFallsToCatchAll(t *testing.T) {
	server, _ := newTestServer(&stubStore{}, &stubQueue{})

	// The method-less catch-all route takes precedence over a 405 here.
	rec := serve(server, httptest.NewRequest(http.MethodGet, "/publish", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
