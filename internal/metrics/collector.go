// Package metrics exports pipeline counters in Prometheus exposition format.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// queueDepthTimeout bounds the broker round-trip during a scrape so a dead
// broker cannot stall the metrics endpoint.
const queueDepthTimeout = 2 * time.Second

type (
	// Counters is the uptime counter surface the collector reads.
	Counters interface {
		Received() int64
		UniqueProcessed() int64
		DuplicateDropped() int64
		TotalLatency() time.Duration
	}

	// QueueDepther reports the broker queue depth.
	QueueDepther interface {
		Length(ctx context.Context) (int64, error)
	}

	// PipelineCollector adapts the pipeline counters to a Prometheus
	// collector. Counter values are read at scrape time; no sampling
	// goroutine is needed.
	PipelineCollector struct {
		counters Counters
		queue    QueueDepther

		receivedDesc   *prometheus.Desc
		uniqueDesc     *prometheus.Desc
		duplicateDesc  *prometheus.Desc
		latencyDesc    *prometheus.Desc
		queueDepthDesc *prometheus.Desc
	}
)

// PipelineCollector implements prometheus.Collector.
var _ prometheus.Collector = (*PipelineCollector)(nil)

// NewPipelineCollector creates a collector over the given counters.
// queue may be nil; queue depth is then not exported.
func NewPipelineCollector(counters Counters, queue QueueDepther) *PipelineCollector {
	return &PipelineCollector{
		counters: counters,
		queue:    queue,
		receivedDesc: prometheus.NewDesc(
			"aggregator_events_received_total",
			"Events accepted by the publish endpoint.",
			nil, nil,
		),
		uniqueDesc: prometheus.NewDesc(
			"aggregator_events_unique_processed_total",
			"Events inserted into the database (first occurrence).",
			nil, nil,
		),
		duplicateDesc: prometheus.NewDesc(
			"aggregator_events_duplicate_dropped_total",
			"Events dropped because their (topic, event_id) identity already existed.",
			nil, nil,
		),
		latencyDesc: prometheus.NewDesc(
			"aggregator_event_latency_seconds_total",
			"Accumulated publish-to-process latency over all processed events.",
			nil, nil,
		),
		queueDepthDesc: prometheus.NewDesc(
			"aggregator_queue_depth",
			"Current number of items waiting in the broker queue.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *PipelineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.receivedDesc
	ch <- c.uniqueDesc
	ch <- c.duplicateDesc
	ch <- c.latencyDesc
	ch <- c.queueDepthDesc
}

// Collect implements prometheus.Collector.
func (c *PipelineCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(
		c.receivedDesc, prometheus.CounterValue, float64(c.counters.Received()))
	ch <- prometheus.MustNewConstMetric(
		c.uniqueDesc, prometheus.CounterValue, float64(c.counters.UniqueProcessed()))
	ch <- prometheus.MustNewConstMetric(
		c.duplicateDesc, prometheus.CounterValue, float64(c.counters.DuplicateDropped()))
	ch <- prometheus.MustNewConstMetric(
		c.latencyDesc, prometheus.CounterValue, c.counters.TotalLatency().Seconds())

	if c.queue == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), queueDepthTimeout)
	defer cancel()

	// Depth is best-effort; a broker outage must not fail the scrape.
	depth, err := c.queue.Length(ctx)
	if err != nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.queueDepthDesc, prometheus.GaugeValue, float64(depth))
}
