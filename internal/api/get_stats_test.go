package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getStats(t *testing.T, server *Server) StatsResponse {
	t.Helper()

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	return stats
}

func TestHandleStats_ReportsCountersAndSystemState(t *testing.T) {
	store := seededStore()
	queue := &stubQueue{}
	server, counters := newTestServer(store, queue)

	counters.IncReceived()
	counters.IncReceived()
	counters.IncUniqueProcessed()
	counters.IncDuplicateDropped()

	require.NoError(t, queue.PushLeft(context.Background(), []byte("pending")))

	stats := getStats(t, server)

	assert.Equal(t, int64(2), stats.UptimeStats.ReceivedAPI)
	assert.Equal(t, int64(1), stats.UptimeStats.UniqueProcessed)
	assert.Equal(t, int64(1), stats.UptimeStats.DuplicateDropped)
	assert.Equal(t, int64(3), stats.SystemState.DatabaseRows)
	assert.Equal(t, int64(1), stats.SystemState.QueueDepth)
}

func TestHandleStats_ResponseShape(t *testing.T) {
	server, _ := newTestServer(&stubStore{}, &stubQueue{})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))

	require.Contains(t, raw, "uptime_stats")
	require.Contains(t, raw, "system_state")
	assert.Contains(t, raw["uptime_stats"], "received_api")
	assert.Contains(t, raw["uptime_stats"], "unique_processed")
	assert.Contains(t, raw["uptime_stats"], "duplicate_dropped")
	assert.Contains(t, raw["system_state"], "database_rows")
	assert.Contains(t, raw["system_state"], "queue_depth")
}

func TestHandleStats_BrokerFailureReadsZeroDepth(t *testing.T) {
	server, _ := newTestServer(seededStore(), &stubQueue{lenErr: errStub})

	stats := getStats(t, server)

	assert.Equal(t, int64(3), stats.SystemState.DatabaseRows)
	assert.Zero(t, stats.SystemState.QueueDepth)
}

func TestHandleStats_DatabaseFailure(t *testing.T) {
	server, _ := newTestServer(&stubStore{countErr: errStub}, &stubQueue{})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleStats_CountersAreMonotonic(t *testing.T) {
	server, counters := newTestServer(&stubStore{}, &stubQueue{})

	before := getStats(t, server)

	counters.IncReceived()
	counters.IncUniqueProcessed()

	after := getStats(t, server)

	assert.GreaterOrEqual(t, after.UptimeStats.ReceivedAPI, before.UptimeStats.ReceivedAPI)
	assert.GreaterOrEqual(t, after.UptimeStats.UniqueProcessed, before.UptimeStats.UniqueProcessed)
	assert.GreaterOrEqual(t, after.UptimeStats.DuplicateDropped, before.UptimeStats.DuplicateDropped)
}
