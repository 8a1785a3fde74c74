// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

// Package metrics provides Prometheus instrumentation for the capture and
// ingestion pipeline: ingest throughput and rejections, remux subprocess
// behaviour, merge/repair outcomes, capture session health, and delivery
// circuit breaker state.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics

	IngestRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantage_ingest_requests_total",
			Help: "Total ingest requests by outcome",
		},
		[]string{"outcome"}, // "stored", "hash_mismatch", "size_mismatch", "unauthorized", "error"
	)

	IngestBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vantage_ingest_bytes_total",
			Help: "Total bytes accepted and written to storage",
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vantage_ingest_duration_seconds",
			Help:    "Duration of ingest request handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Remux subprocess metrics

	RemuxInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantage_remux_invocations_total",
			Help: "Total remux subprocess invocations",
		},
		[]string{"operation", "outcome"}, // operation: "fix_timestamps", "concat", "repair"; outcome: "ok", "error", "timeout"
	)

	RemuxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vantage_remux_duration_seconds",
			Help:    "Duration of remux subprocess runs in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	RepairQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vantage_repair_queue_depth",
			Help: "Pending entries in the async post-ingest repair queue",
		},
	)

	// Merge/repair endpoint metrics

	MergeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantage_merge_operations_total",
			Help: "Total merge operations by outcome",
		},
		[]string{"outcome"}, // "merged", "copied", "no_segments", "error"
	)

	RepairOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantage_repair_operations_total",
			Help: "Total per-segment repair attempts by outcome",
		},
		[]string{"outcome"}, // "remuxed", "trimmed", "unrepairable"
	)

	// Capture-side metrics

	CaptureSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vantage_capture_sessions_active",
			Help: "Currently recording capture sessions",
		},
	)

	CaptureChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantage_capture_chunks_total",
			Help: "Chunks emitted by capture sessions",
		},
		[]string{"sink"}, // "disk", "memory"
	)

	CaptureFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantage_capture_failures_total",
			Help: "Fatal capture failures by reason",
		},
		[]string{"reason"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantage_uploads_total",
			Help: "Delivery attempts to the receiver by outcome",
		},
		[]string{"outcome"}, // "delivered", "skipped", "failed"
	)

	// Circuit breaker metrics (transfer client -> receiver)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vantage_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantage_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// HTTP metrics

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantage_http_requests_total",
			Help: "HTTP requests by path, method and status",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vantage_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

// ObserveHTTPRequest records one handled HTTP request.
func ObserveHTTPRequest(path, method string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// ObserveRemux records one remux subprocess run.
func ObserveRemux(operation, outcome string, duration time.Duration) {
	RemuxInvocationsTotal.WithLabelValues(operation, outcome).Inc()
	RemuxDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
