// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

/*
Package metrics provides Prometheus instrumentation for import runs.

A one-shot CLI has no scrape endpoint, so collectors are registered on a
package-level Registry and written out at the end of a run in the node_exporter
textfile format (see WriteTextfile). Point the textfile collector at the
output path to chart import history over time.

Available Metrics:
  - listenimport_files_total{result}: files loaded or skipped
  - listenimport_listens_loaded_total{format}: listens decoded from dumps
  - listenimport_listens_dropped_total{reason}: listens removed before submission
  - listenimport_listens_submitted_total{result}: listens per submission outcome
  - listenimport_batches_total{result}: batches per submission outcome
  - listenimport_submit_duration_seconds: submit-listens call latency
  - listenimport_rate_limit_waits_total / _wait_seconds_total: server-directed pauses
  - listenimport_last_run_timestamp_seconds / _last_run_duration_seconds
  - circuit_breaker_*: wire client breaker state
*/
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every collector in this package.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// Drop reasons for ListensDropped.
const (
	DropInvalid   = "invalid"
	DropMalformed = "malformed"
	DropFiltered  = "filtered"
	DropDuplicate = "duplicate"
)

var (
	// Loader Metrics
	FilesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenimport_files_total",
			Help: "Total number of input files by load result",
		},
		[]string{"result"}, // "loaded", "skipped"
	)

	ListensLoaded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenimport_listens_loaded_total",
			Help: "Total number of listens decoded from dump files",
		},
		[]string{"format"},
	)

	ListensDropped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenimport_listens_dropped_total",
			Help: "Total number of listens dropped before submission",
		},
		[]string{"reason"},
	)

	// Submission Metrics
	ListensSubmitted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenimport_listens_submitted_total",
			Help: "Total number of listens by submission result",
		},
		[]string{"result"}, // "success", "failure"
	)

	BatchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenimport_batches_total",
			Help: "Total number of batches by submission result",
		},
		[]string{"result"},
	)

	SubmitDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listenimport_submit_duration_seconds",
			Help:    "Duration of submit-listens calls in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	RateLimitWaits = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "listenimport_rate_limit_waits_total",
			Help: "Total number of server-directed rate limit pauses",
		},
	)

	RateLimitWaitSeconds = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "listenimport_rate_limit_wait_seconds_total",
			Help: "Total time spent paused for rate limits in seconds",
		},
	)

	// Run Metrics
	LastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "listenimport_last_run_timestamp_seconds",
			Help: "Unix time the last import run finished",
		},
	)

	LastRunDuration = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "listenimport_last_run_duration_seconds",
			Help: "Duration of the last import run in seconds",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordFile records the outcome of loading one input file.
func RecordFile(loaded bool) {
	if loaded {
		FilesTotal.WithLabelValues("loaded").Inc()
		return
	}
	FilesTotal.WithLabelValues("skipped").Inc()
}

// RecordLoaded records listens decoded from a dump of the given format.
func RecordLoaded(format string, count int) {
	ListensLoaded.WithLabelValues(format).Add(float64(count))
}

// RecordDropped records listens removed before submission.
func RecordDropped(reason string, count int) {
	if count <= 0 {
		return
	}
	ListensDropped.WithLabelValues(reason).Add(float64(count))
}

// RecordBatch records the outcome of one submit-listens call.
func RecordBatch(size int, duration time.Duration, err error) {
	SubmitDuration.Observe(duration.Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	BatchesTotal.WithLabelValues(result).Inc()
	ListensSubmitted.WithLabelValues(result).Add(float64(size))
}

// RecordRateLimitWait records a server-directed pause.
func RecordRateLimitWait(wait time.Duration) {
	RateLimitWaits.Inc()
	RateLimitWaitSeconds.Add(wait.Seconds())
}

// RecordRun records the end of an import run.
func RecordRun(finished time.Time, duration time.Duration) {
	LastRunTimestamp.Set(float64(finished.Unix()))
	LastRunDuration.Set(duration.Seconds())
}

// WriteTextfile writes every registered metric to path in the Prometheus text
// format. The file is written atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
