// Package observability exposes Prometheus collectors for the ledger,
// job queue, worker loops, and AI provider facade, following the
// service_layer pack's pattern of one Metrics struct holding every
// registered collector behind small Record*/Set* helpers.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector this platform registers.
type Metrics struct {
	LedgerOperationsTotal   *prometheus.CounterVec
	LedgerOperationDuration *prometheus.HistogramVec

	QueueDepth *prometheus.GaugeVec

	WorkerJobsTotal    *prometheus.CounterVec
	WorkerJobDuration  *prometheus.HistogramVec
	WorkerRetriesTotal *prometheus.CounterVec

	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
	ProviderRetriesTotal *prometheus.CounterVec
}

// New builds a Metrics instance and registers its collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LedgerOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_ledger_operations_total",
				Help: "Total number of ledger operations by kind and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		LedgerOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_ledger_operation_duration_seconds",
				Help:    "Ledger operation latency in seconds.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "platform_queue_depth",
				Help: "Current number of jobs queued, by kind.",
			},
			[]string{"kind"},
		),
		WorkerJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_worker_jobs_total",
				Help: "Total number of jobs processed by a worker loop, by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		WorkerJobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_worker_job_duration_seconds",
				Help:    "Job execution duration in seconds, by kind.",
				Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"kind"},
		),
		WorkerRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_worker_retries_total",
				Help: "Total number of job retries scheduled after a retryable provider error.",
			},
			[]string{"kind"},
		),
		ProviderCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_provider_calls_total",
				Help: "Total number of AI provider calls, by provider, task and outcome.",
			},
			[]string{"provider", "task", "outcome"},
		),
		ProviderCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_provider_call_duration_seconds",
				Help:    "AI provider call latency in seconds, by provider and task.",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider", "task"},
		),
		ProviderRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_provider_retries_total",
				Help: "Total number of AI provider calls retried after a transient failure.",
			},
			[]string{"provider"},
		),
	}

	reg.MustRegister(
		m.LedgerOperationsTotal,
		m.LedgerOperationDuration,
		m.QueueDepth,
		m.WorkerJobsTotal,
		m.WorkerJobDuration,
		m.WorkerRetriesTotal,
		m.ProviderCallsTotal,
		m.ProviderCallDuration,
		m.ProviderRetriesTotal,
	)
	return m
}

// RecordLedgerOp records a ledger operation's outcome and latency.
func (m *Metrics) RecordLedgerOp(operation, outcome string, seconds float64) {
	m.LedgerOperationsTotal.WithLabelValues(operation, outcome).Inc()
	m.LedgerOperationDuration.WithLabelValues(operation).Observe(seconds)
}

// SetQueueDepth records the current queue depth for a job kind.
func (m *Metrics) SetQueueDepth(kind string, depth float64) {
	m.QueueDepth.WithLabelValues(kind).Set(depth)
}

// RecordWorkerJob records a completed job's outcome and wall-clock duration.
func (m *Metrics) RecordWorkerJob(kind, outcome string, seconds float64) {
	m.WorkerJobsTotal.WithLabelValues(kind, outcome).Inc()
	m.WorkerJobDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordWorkerRetry records a job being requeued after a retryable error.
func (m *Metrics) RecordWorkerRetry(kind string) {
	m.WorkerRetriesTotal.WithLabelValues(kind).Inc()
}

// RecordProviderCall records an AI provider call's outcome and latency.
func (m *Metrics) RecordProviderCall(provider, task, outcome string, seconds float64) {
	m.ProviderCallsTotal.WithLabelValues(provider, task, outcome).Inc()
	m.ProviderCallDuration.WithLabelValues(provider, task).Observe(seconds)
}

// RecordProviderRetry records a provider call being retried.
func (m *Metrics) RecordProviderRetry(provider string) {
	m.ProviderRetriesTotal.WithLabelValues(provider).Inc()
}

// Handler returns the HTTP handler that serves the registered collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}
