// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Run lifecycle (full, partial, clean, dry, webhook)
// - Default-track update calls and their retries
// - Plex read failures and circuit breaker state
// - Watermark progress per library
// - HTTP API latency and throughput

var (
	// Run Metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defaulterr_runs_total",
			Help: "Total number of runs by mode and result",
		},
		[]string{"mode", "result"}, // result: "success", "failure", "fatal", "skipped"
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "defaulterr_run_duration_seconds",
			Help:    "Duration of runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"mode"},
	)

	RunActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "defaulterr_run_active",
			Help: "1 while a run is in progress",
		},
	)

	PartsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defaulterr_parts_evaluated_total",
			Help: "Total number of parts evaluated against group rules",
		},
		[]string{"library", "outcome"}, // outcome: "matched", "unmatched", "ineligible"
	)

	// Update Metrics
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defaulterr_updates_total",
			Help: "Total number of default-stream update calls by result",
		},
		[]string{"result"}, // result: "success", "failure", "forbidden", "skipped"
	)

	UpdateRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "defaulterr_update_retries_total",
			Help: "Total number of retried default-stream update calls",
		},
	)

	UpdateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "defaulterr_update_duration_seconds",
			Help:    "Duration of single default-stream update calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Plex Read Metrics
	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defaulterr_fetch_errors_total",
			Help: "Total number of failed Plex read calls",
		},
		[]string{"kind"}, // kind: "sections", "items", "metadata", "children", "shared_servers", "access"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "defaulterr_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defaulterr_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defaulterr_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Watermark Metrics
	Watermark = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "defaulterr_watermark",
			Help: "Last processed updatedAt per library (Unix seconds)",
		},
		[]string{"library"},
	)

	// Webhook Metrics
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defaulterr_webhooks_total",
			Help: "Total number of webhook requests by outcome",
		},
		[]string{"outcome"}, // outcome: "applied", "not_relevant", "invalid", "failed"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defaulterr_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "defaulterr_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordRun records the outcome of one run
func RecordRun(mode, result string, duration time.Duration) {
	RunsTotal.WithLabelValues(mode, result).Inc()
	RunDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordUpdate records one default-stream call after its retries settled
func RecordUpdate(result string, duration time.Duration) {
	UpdatesTotal.WithLabelValues(result).Inc()
	UpdateDuration.Observe(duration.Seconds())
}

// RecordFetchError records a failed Plex read
func RecordFetchError(kind string) {
	FetchErrors.WithLabelValues(kind).Inc()
}

// SetWatermark publishes a library watermark
func SetWatermark(library string, epoch int64) {
	Watermark.WithLabelValues(library).Set(float64(epoch))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackRunActive flips the in-progress gauge
func TrackRunActive(active bool) {
	if active {
		RunActive.Set(1)
		return
	}
	RunActive.Set(0)
}
