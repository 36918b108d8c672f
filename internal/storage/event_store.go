package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/aggregator-io/aggregator/internal/ingestion"
	"github.com/aggregator-io/aggregator/migrations"
)

// Sentinel errors for event storage operations.
var (
	// ErrEventStoreFailed is returned when an event storage operation fails.
	ErrEventStoreFailed = errors.New("event storage failed")

	// ErrMigrationFailed is returned when applying the embedded schema
	// migrations fails after all retry attempts.
	ErrMigrationFailed = errors.New("schema migration failed")
)

// EventStore implements ingestion.Store (persistence for deduplicated events).
var _ ingestion.Store = (*EventStore)(nil)

// Schema retry constants. Startup races the database container coming up,
// so the first attempts are expected to fail with connection errors.
const (
	schemaRetryAttempts = 5
	schemaRetryDelay    = 3 * time.Second
)

// EventStore implements ingestion.Store with a PostgreSQL backend.
//
// Deduplication is delegated entirely to the database: a single
// INSERT ... ON CONFLICT DO NOTHING round-trip against the unique
// (topic, event_id) constraint decides whether an event is new. The
// affected-row count is the verdict, so concurrent workers racing on the
// same event never double-insert and never need application-level locks.
type EventStore struct {
	conn   *Connection
	logger *slog.Logger
}

// NewEventStore creates a PostgreSQL-backed event store.
// Returns ErrNoDatabaseConnection if conn is nil.
func NewEventStore(conn *Connection, logger *slog.Logger) (*EventStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &EventStore{
		conn:   conn,
		logger: logger,
	}, nil
}

// InsertIfAbsent persists the event unless a row with the same
// (topic, event_id) already exists. Returns Inserted when this call created
// the row, Skipped when the conflict target already held one.
func (s *EventStore) InsertIfAbsent(ctx context.Context, event *ingestion.Event) (ingestion.InsertResult, error) {
	if event == nil {
		return 0, fmt.Errorf("%w: nil event", ErrEventStoreFailed)
	}

	query := `
		INSERT INTO processed_events (topic, event_id, timestamp, source, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT uq_topic_event_id DO NOTHING
	`

	var payload any
	if event.Payload != nil {
		payload = []byte(event.Payload)
	}

	result, err := s.conn.ExecContext(ctx, query,
		event.Topic, event.EventID, event.Timestamp, event.Source, payload)
	if err != nil {
		return 0, fmt.Errorf("%w: insert: %w", ErrEventStoreFailed, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %w", ErrEventStoreFailed, err)
	}

	if affected > 0 {
		return ingestion.Inserted, nil
	}

	return ingestion.Skipped, nil
}

// CountEvents returns the total number of persisted events.
func (s *EventStore) CountEvents(ctx context.Context) (int64, error) {
	var count int64

	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrEventStoreFailed, err)
	}

	return count, nil
}

// ListEvents returns the most recently inserted events, newest first.
// An empty topic means no topic filter. A non-positive limit returns an
// empty slice without touching the database.
func (s *EventStore) ListEvents(ctx context.Context, topic string, limit int) ([]ingestion.ProcessedEvent, error) {
	events := make([]ingestion.ProcessedEvent, 0)

	if limit <= 0 {
		return events, nil
	}

	query := `
		SELECT id, topic, event_id, timestamp, source, payload, created_at
		FROM processed_events
	`
	args := []any{}

	if topic != "" {
		query += ` WHERE topic = $1`
		args = append(args, topic)
	}

	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrEventStoreFailed, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			event   ingestion.ProcessedEvent
			source  sql.NullString
			payload []byte
		)

		if err := rows.Scan(
			&event.ID,
			&event.Topic,
			&event.EventID,
			&event.Timestamp,
			&source,
			&payload,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrEventStoreFailed, err)
		}

		if source.Valid {
			event.Source = &source.String
		}

		if payload != nil {
			event.Payload = payload
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", ErrEventStoreFailed, err)
	}

	return events, nil
}

// HealthCheck reports whether the database connection is alive.
func (s *EventStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

// EnsureSchema applies the embedded migrations to the connected database.
// Already-applied migrations are a no-op.
func (s *EventStore) EnsureSchema() error {
	driver, err := migratepg.WithInstance(s.conn.DB(), &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	sourceDriver, err := iofs.New(migrations.FS(), ".")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	return nil
}

// EnsureSchemaWithRetry applies migrations, retrying on failure. Used at
// startup where the database may still be coming up: the pool dials its
// first connection here, so connect errors and migration errors ride the
// same retry schedule.
func (s *EventStore) EnsureSchemaWithRetry(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= schemaRetryAttempts; attempt++ {
		lastErr = s.EnsureSchema()
		if lastErr == nil {
			return nil
		}

		s.logger.Warn("schema migration attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", schemaRetryAttempts),
			slog.String("error", lastErr.Error()),
		)

		if attempt == schemaRetryAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrMigrationFailed, ctx.Err())
		case <-time.After(schemaRetryDelay):
		}
	}

	return lastErr
}
