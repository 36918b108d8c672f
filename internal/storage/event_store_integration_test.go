package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/aggregator-io/aggregator/internal/config"
	"github.com/aggregator-io/aggregator/internal/ingestion"
)

// setupEventStore spins up a PostgreSQL testcontainer with migrations
// applied and returns a store bound to it.
func setupEventStore(ctx context.Context, t *testing.T) *EventStore {
	t.Helper()

	testDB := config.SetupTestDatabase(ctx, t)

	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	store, err := NewEventStore(NewConnectionFromDB(testDB.Connection), testLogger())
	require.NoError(t, err)

	return store
}

func strPtr(s string) *string {
	return &s
}

func TestEventStoreInsertIfAbsent_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store := setupEventStore(ctx, t)

	event := &ingestion.Event{
		Topic:     "orders",
		EventID:   "evt-1",
		Timestamp: "2025-06-01T12:00:00",
		Source:    strPtr("checkout"),
		Payload:   json.RawMessage(`{"amount": 42, "currency": "EUR"}`),
	}

	t.Run("first insert wins", func(t *testing.T) {
		result, err := store.InsertIfAbsent(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, ingestion.Inserted, result)
	})

	t.Run("second insert with same identity is skipped", func(t *testing.T) {
		result, err := store.InsertIfAbsent(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, ingestion.Skipped, result)

		count, err := store.CountEvents(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("same event_id under different topic is a distinct event", func(t *testing.T) {
		other := &ingestion.Event{
			Topic:     "payments",
			EventID:   "evt-1",
			Timestamp: "2025-06-01T12:00:01",
		}

		result, err := store.InsertIfAbsent(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, ingestion.Inserted, result)

		count, err := store.CountEvents(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("duplicate insert under conflicting payload keeps original row", func(t *testing.T) {
		changed := &ingestion.Event{
			Topic:     "orders",
			EventID:   "evt-1",
			Timestamp: "2099-01-01T00:00:00",
			Payload:   json.RawMessage(`{"amount": 99}`),
		}

		result, err := store.InsertIfAbsent(ctx, changed)
		require.NoError(t, err)
		assert.Equal(t, ingestion.Skipped, result)

		events, err := store.ListEvents(ctx, "orders", 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "2025-06-01T12:00:00", events[0].Timestamp)
	})
}

func TestEventStoreListEvents_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store := setupEventStore(ctx, t)

	seed := []struct {
		topic   string
		eventID string
	}{
		{"orders", "a"},
		{"orders", "b"},
		{"payments", "c"},
		{"orders", "d"},
	}

	for _, s := range seed {
		_, err := store.InsertIfAbsent(ctx, &ingestion.Event{
			Topic:     s.topic,
			EventID:   s.eventID,
			Timestamp: "2025-06-01T12:00:00",
			Payload:   json.RawMessage(`{"k":"v"}`),
		})
		require.NoError(t, err)
	}

	t.Run("returns newest first", func(t *testing.T) {
		events, err := store.ListEvents(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, events, 4)
		assert.Equal(t, "d", events[0].EventID)
		assert.Equal(t, "c", events[1].EventID)
		assert.Equal(t, "b", events[2].EventID)
		assert.Equal(t, "a", events[3].EventID)
	})

	t.Run("limit truncates the result", func(t *testing.T) {
		events, err := store.ListEvents(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "d", events[0].EventID)
		assert.Equal(t, "c", events[1].EventID)
	})

	t.Run("topic filter applies before the limit", func(t *testing.T) {
		events, err := store.ListEvents(ctx, "orders", 2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "d", events[0].EventID)
		assert.Equal(t, "b", events[1].EventID)
	})

	t.Run("non-positive limit returns empty slice", func(t *testing.T) {
		events, err := store.ListEvents(ctx, "", 0)
		require.NoError(t, err)
		assert.NotNil(t, events)
		assert.Empty(t, events)
	})

	t.Run("payload round-trips through JSONB", func(t *testing.T) {
		events, err := store.ListEvents(ctx, "payments", 1)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.JSONEq(t, `{"k":"v"}`, string(events[0].Payload))
	})
}

func TestEventStoreEnsureSchema_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store := setupEventStore(ctx, t)

	// Migrations were already applied by setup; a second pass is a no-op.
	require.NoError(t, store.EnsureSchema())
	require.NoError(t, store.EnsureSchemaWithRetry(ctx))

	require.NoError(t, store.HealthCheck(ctx))
}
