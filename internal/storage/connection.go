package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// PostgreSQL driver registration.
	_ "github.com/lib/pq"
)

// Sentinel errors for database connection handling.
var (
	// ErrNoDatabaseConnection is returned when an operation requires a live
	// connection and none is available.
	ErrNoDatabaseConnection = errors.New("no database connection")

	// ErrConnectionFailed is returned when opening or pinging the database fails.
	ErrConnectionFailed = errors.New("database connection failed")
)

// Connection wraps *sql.DB with pool configuration applied from Config.
// *sql.DB is already a concurrency-safe pool; this wrapper only pins the
// pool settings and gives stores a single place to health-check.
type Connection struct {
	db *sql.DB
}

// NewConnection opens a PostgreSQL connection pool. The pool dials lazily on
// first use: no connection is attempted here, so a database that is still
// coming up surfaces as an error on the first operation, where the schema
// retry loop absorbs it. The returned Connection owns the pool; callers must
// Close it.
func NewConnection(cfg *Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &Connection{db: db}, nil
}

// NewConnectionFromDB wraps an existing *sql.DB without reconfiguring the
// pool. Used by tests that manage their own database lifecycle.
func NewConnectionFromDB(db *sql.DB) *Connection {
	return &Connection{db: db}
}

// DB exposes the underlying pool for schema tooling.
func (c *Connection) DB() *sql.DB {
	return c.db
}

// ExecContext executes a statement that returns no rows.
func (c *Connection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c == nil || c.db == nil {
		return nil, ErrNoDatabaseConnection
	}

	return c.db.ExecContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (c *Connection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if c == nil || c.db == nil {
		return nil, ErrNoDatabaseConnection
	}

	return c.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query expected to return at most one row.
func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// HealthCheck pings the database to verify the connection is alive.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c == nil || c.db == nil {
		return ErrNoDatabaseConnection
	}

	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return nil
}

// Close closes the connection pool. Safe to call multiple times.
func (c *Connection) Close() error {
	if c == nil || c.db == nil {
		return nil
	}

	return c.db.Close()
}
