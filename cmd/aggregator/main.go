// Package main provides the aggregator event pipeline service.
//
// The process hosts the whole pipeline: the HTTP ingress that validates and
// enqueues events, the worker pool that drains the broker queue, and the
// PostgreSQL store that enforces exactly-once persistence per
// (topic, event_id).
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/aggregator-io/aggregator/internal/api"
	"github.com/aggregator-io/aggregator/internal/broker"
	"github.com/aggregator-io/aggregator/internal/ingestion"
	"github.com/aggregator-io/aggregator/internal/storage"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "aggregator"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("Starting aggregator service",
		slog.String("service", name),
		slog.String("version", version),
	)

	logger.Info("Loaded server configuration",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.Duration("read_timeout", serverConfig.ReadTimeout),
		slog.Duration("write_timeout", serverConfig.WriteTimeout),
		slog.Duration("shutdown_timeout", serverConfig.ShutdownTimeout),
		slog.String("log_level", serverConfig.LogLevel.String()),
	)

	ctx := context.Background()

	// Store first: the service is useless without its durable state. The pool
	// dials lazily; the database still coming up is absorbed by the schema
	// retry loop below, not treated as fatal here.
	storageConfig := storage.LoadConfig()

	dbConn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to open database connection pool",
			slog.String("database_url", storageConfig.MaskDatabaseURL()),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	defer func() {
		_ = dbConn.Close() // Ensure connection closes on normal shutdown
	}()

	eventStore, err := storage.NewEventStore(dbConn, logger)
	if err != nil {
		logger.Error("Failed to create event store", slog.String("error", err.Error()))

		_ = dbConn.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}

	if err := eventStore.EnsureSchemaWithRetry(ctx); err != nil {
		logger.Error("Failed to ensure database schema", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	logger.Info("Event store initialized",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
		slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
		slog.Int("database_max_idle_conns", storageConfig.MaxIdleConns),
		slog.Duration("database_conn_max_lifetime", storageConfig.ConnMaxLifetime),
		slog.Duration("database_conn_max_idle_time", storageConfig.ConnMaxIdleTime),
	)

	// Ingress broker connection, shared by all HTTP handlers.
	brokerConfig := broker.LoadConfig()

	ingressQueue, err := broker.NewQueue(brokerConfig)
	if err != nil {
		logger.Error("Failed to connect to broker",
			slog.String("broker_url", brokerConfig.MaskBrokerURL()),
			slog.String("error", err.Error()),
		)

		_ = dbConn.Close()
		os.Exit(1)
	}

	logger.Info("Broker connection initialized",
		slog.String("broker_url", brokerConfig.MaskBrokerURL()),
	)

	// Each worker gets its own broker connection; consumer loops never share
	// the ingress handle.
	counters := ingestion.NewCounters()
	workerQueues := make([]ingestion.Queue, ingestion.WorkerCount)

	for i := range workerQueues {
		queue, err := broker.NewQueue(brokerConfig)
		if err != nil {
			logger.Error("Failed to open worker broker connection",
				slog.Int("worker_id", i),
				slog.String("error", err.Error()),
			)

			_ = ingressQueue.Close()
			_ = dbConn.Close()
			os.Exit(1)
		}

		defer func() {
			_ = queue.Close()
		}()

		workerQueues[i] = queue
	}

	pool := ingestion.NewWorkerPool(eventStore, counters, workerQueues, logger)

	server := api.NewServer(serverConfig, eventStore, ingressQueue, pool, counters)

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("Aggregator service stopped")
}
