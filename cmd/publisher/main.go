// Package main provides a load generator for the aggregator publish endpoint.
//
// It pre-generates a mix of unique and duplicate events, fires them at the
// ingress, probes /stats for responsiveness while the load runs, and finally
// validates the counter deltas against the planned unique/duplicate split.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aggregator-io/aggregator/internal/config"
	"github.com/aggregator-io/aggregator/internal/ingestion"
)

const (
	defaultTargetURL       = "http://aggregator:8080/publish"
	defaultDuplicationRate = 0.3
	defaultMaxEvents       = 20000

	// settleDelay gives the worker pool time to drain before validation.
	settleDelay = 5 * time.Second

	// uniqueTolerance allows for events racing the final stats read.
	uniqueTolerance = 10

	progressEvery = 500
	probeTimeout  = 2 * time.Second
)

var sampleTopics = []string{"order.created", "payment.success", "user.login", "sensor.read"}

type (
	// publisherConfig holds the load run parameters, all from environment.
	publisherConfig struct {
		targetURL       string
		statsURL        string
		delay           time.Duration
		duplicationRate float64
		maxEvents       int
	}

	// uptimeStats mirrors the uptime_stats section of GET /stats.
	uptimeStats struct {
		ReceivedAPI      int64 `json:"received_api"`
		UniqueProcessed  int64 `json:"unique_processed"`
		DuplicateDropped int64 `json:"duplicate_dropped"`
	}

	statsResponse struct {
		UptimeStats uptimeStats `json:"uptime_stats"`
	}
)

func loadPublisherConfig() *publisherConfig {
	targetURL := config.GetEnvStr("TARGET_URL", defaultTargetURL)

	var statsURL string
	if strings.Contains(targetURL, "/publish") {
		statsURL = strings.Replace(targetURL, "/publish", "/stats", 1)
	} else {
		statsURL = targetURL[:strings.LastIndex(targetURL, "/")] + "/stats"
	}

	return &publisherConfig{
		targetURL:       targetURL,
		statsURL:        statsURL,
		delay:           config.GetEnvDuration("DELAY", 0),
		duplicationRate: config.GetEnvFloat("DUPLICATION_RATE", defaultDuplicationRate),
		maxEvents:       config.GetEnvInt("MAX_EVENTS", defaultMaxEvents),
	}
}

func generateEvent(topic string) *ingestion.Event {
	source := "publisher-service"

	payload, _ := json.Marshal(map[string]any{
		"amount":  rand.Intn(991) + 10, //nolint:gosec // load generator, not crypto
		"user_id": rand.Intn(500) + 1,  //nolint:gosec // load generator, not crypto
		"run_id":  uuid.NewString(),
	})

	return &ingestion.Event{
		Topic:     topic,
		EventID:   uuid.NewString(),
		Timestamp: time.Now().Format("2006-01-02T15:04:05.999999"),
		Source:    &source,
		Payload:   payload,
	}
}

// buildPlan pre-generates the full send list: unique events plus duplicates
// sampled from them, shuffled together.
func buildPlan(cfg *publisherConfig) (events []*ingestion.Event, numUnique, numDuplicates int) {
	numUnique = int(float64(cfg.maxEvents) * (1 - cfg.duplicationRate))
	if numUnique < 1 {
		numUnique = 1 // duplicates need at least one original to copy
	}

	numDuplicates = cfg.maxEvents - numUnique

	unique := make([]*ingestion.Event, 0, numUnique)
	for i := 0; i < numUnique; i++ {
		topic := sampleTopics[rand.Intn(len(sampleTopics))] //nolint:gosec // load generator
		unique = append(unique, generateEvent(topic))
	}

	events = make([]*ingestion.Event, 0, cfg.maxEvents)
	events = append(events, unique...)

	for i := 0; i < numDuplicates; i++ {
		events = append(events, unique[rand.Intn(len(unique))]) //nolint:gosec // load generator
	}

	rand.Shuffle(len(events), func(i, j int) {
		events[i], events[j] = events[j], events[i]
	})

	return events, numUnique, numDuplicates
}

func fetchUptimeStats(client *http.Client, statsURL string) (uptimeStats, error) {
	resp, err := client.Get(statsURL)
	if err != nil {
		return uptimeStats{}, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return uptimeStats{}, fmt.Errorf("stats endpoint returned %d", resp.StatusCode)
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return uptimeStats{}, err
	}

	return stats.UptimeStats, nil
}

// probeResponsiveness checks that /stats answers quickly while the load runs.
func probeResponsiveness(logger *slog.Logger, statsURL string, after time.Duration, result chan<- bool) {
	time.Sleep(after)

	client := &http.Client{Timeout: probeTimeout}
	start := time.Now()

	resp, err := client.Get(statsURL)
	if err != nil {
		logger.Error("Responsiveness check failed", slog.String("error", err.Error()))
		result <- false

		return
	}

	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("Responsiveness check failed", slog.Int("status", resp.StatusCode))
		result <- false

		return
	}

	logger.Info("Responsiveness check passed",
		slog.Duration("elapsed", time.Since(start)),
	)
	result <- true
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := loadPublisherConfig()

	events, numUnique, numDuplicates := buildPlan(cfg)

	logger.Info("Load plan prepared",
		slog.Int("unique", numUnique),
		slog.Int("duplicates", numDuplicates),
		slog.Int("total", len(events)),
		slog.String("target_url", cfg.targetURL),
	)

	// Let the aggregator finish its startup retries before the run.
	time.Sleep(settleDelay)

	client := &http.Client{Timeout: 5 * time.Second}

	before, err := fetchUptimeStats(client, cfg.statsURL)
	if err != nil {
		logger.Warn("Failed to read initial stats, assuming zero",
			slog.String("error", err.Error()),
		)
	}

	probeResults := make(chan bool, 2)
	go probeResponsiveness(logger, cfg.statsURL, 5*time.Second, probeResults)
	go probeResponsiveness(logger, cfg.statsURL, 15*time.Second, probeResults)

	start := time.Now()
	sent := 0

	for _, event := range events {
		body, err := json.Marshal(event)
		if err != nil {
			logger.Error("Failed to encode event", slog.String("error", err.Error()))

			continue
		}

		resp, err := client.Post(cfg.targetURL, "application/json", bytes.NewReader(body))
		if err != nil {
			logger.Error("Publish failed", slog.String("error", err.Error()))
			time.Sleep(time.Second)

			continue
		}

		_ = resp.Body.Close()
		sent++

		if sent%progressEvery == 0 {
			logger.Info("Progress",
				slog.Int("sent", sent),
				slog.Int("total", len(events)),
				slog.Int("last_status", resp.StatusCode),
			)
		}

		if cfg.delay > 0 {
			time.Sleep(cfg.delay)
		}
	}

	logger.Info("Send phase complete",
		slog.Int("sent", sent),
		slog.Duration("elapsed", time.Since(start)),
	)

	// Let the queue drain before comparing counters.
	time.Sleep(settleDelay)

	after, err := fetchUptimeStats(client, cfg.statsURL)
	if err != nil {
		logger.Error("Failed to read final stats", slog.String("error", err.Error()))
		os.Exit(1)
	}

	deltaUnique := after.UniqueProcessed - before.UniqueProcessed
	deltaDropped := after.DuplicateDropped - before.DuplicateDropped

	logger.Info("Validation result",
		slog.Int64("unique_processed_delta", deltaUnique),
		slog.Int("unique_target", numUnique),
		slog.Int64("duplicate_dropped_delta", deltaDropped),
		slog.Int("duplicate_target", numDuplicates),
	)

	diff := deltaUnique - int64(numUnique)
	if diff < 0 {
		diff = -diff
	}

	if diff <= uniqueTolerance {
		logger.Info("Unique validation passed")
	} else {
		logger.Error("Unique validation mismatch")
	}

	responsive := true
	for i := 0; i < cap(probeResults); i++ {
		select {
		case ok := <-probeResults:
			responsive = responsive && ok
		default:
			responsive = false
		}
	}

	if responsive {
		logger.Info("Responsiveness validation passed")
	} else {
		logger.Warn("Responsiveness check failed or did not run")
	}
}
