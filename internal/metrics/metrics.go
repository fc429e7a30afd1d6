// Package metrics exposes the Prometheus instrumentation for the batching
// engine as package-level, promauto-registered collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Accumulator metrics
	AccumulatorBulksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkd_accumulator_bulks_total",
			Help: "Total number of bulks published across all accumulators.",
		},
	)

	AccumulatorCommandsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkd_accumulator_commands_total",
			Help: "Total number of commands accepted across all accumulators.",
		},
	)

	// Worker pool metrics, one vector per sink kind (console/file/kafka).
	WorkerPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulkd_worker_pool_size",
			Help: "Current number of live workers in a sink's worker pool.",
		},
		[]string{"sink"},
	)

	WorkerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulkd_worker_queue_depth",
			Help: "Current number of messages buffered in a sink's worker pool queue.",
		},
		[]string{"sink"},
	)

	WorkerBulksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkd_worker_bulks_processed_total",
			Help: "Total number of bulks successfully emitted by a sink worker.",
		},
		[]string{"sink"},
	)

	WorkerBulksFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkd_worker_bulks_failed_total",
			Help: "Total number of bulks a sink worker failed to emit.",
		},
		[]string{"sink"},
	)

	WorkerCommandsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkd_worker_commands_processed_total",
			Help: "Total number of commands successfully emitted by a sink worker.",
		},
		[]string{"sink"},
	)

	// Kafka sink metrics.
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkd_kafka_publish_total",
			Help: "Total number of bulks published to Kafka.",
		},
		[]string{"status"}, // status: success, failed
	)

	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bulkd_kafka_publish_duration_seconds",
			Help:    "Time taken to publish a bulk to Kafka.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	KafkaPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkd_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries.",
		},
	)

	// HTTP ingestion surface metrics (internal/httpapi).
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkd_http_requests_total",
			Help: "Total number of HTTP requests served by the ingestion API.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bulkd_http_request_duration_seconds",
			Help:    "Latency of HTTP requests served by the ingestion API.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Registry metrics
	ContextsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bulkd_contexts_active",
			Help: "Number of live contexts currently held by the registry.",
		},
	)

	ContextsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkd_contexts_created_total",
			Help: "Total number of contexts ever created by the registry.",
		},
	)

	FacadeConnectFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkd_facade_connect_failures_total",
			Help: "Total number of Connect calls that failed and were swallowed at the facade boundary.",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkd_panics_recovered_total",
			Help: "Total number of panics recovered at a component boundary.",
		},
		[]string{"component"},
	)
)
