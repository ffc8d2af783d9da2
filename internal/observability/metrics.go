package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpDurationHistogram    *prometheus.HistogramVec
	transferCounter          *prometheus.CounterVec
	identifierRegenCounter   *prometheus.CounterVec
	idempotencyCounter       *prometheus.CounterVec
	taskCounter              *prometheus.CounterVec
	integrityViolationsGauge *prometheus.GaugeVec
	workerRunCounter         *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		transferCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfers_total",
			Help: "Funds transfer outcomes",
		}, []string{"result"})

		identifierRegenCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identifier_regenerations_total",
			Help: "Generated identifiers discarded after losing an insert race",
		}, []string{"kind"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		taskCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "background_tasks_total",
			Help: "Fire-and-forget task outcomes",
		}, []string{"task", "result"})

		integrityViolationsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_integrity_violations",
			Help: "Accounts violating a ledger invariant at the last audit",
		}, []string{"check"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			transferCounter,
			identifierRegenCounter,
			idempotencyCounter,
			taskCounter,
			integrityViolationsGauge,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementTransfer(result string) {
	if transferCounter == nil {
		return
	}
	transferCounter.WithLabelValues(result).Inc()
}

func IncrementIdentifierRegeneration(kind string) {
	if identifierRegenCounter == nil {
		return
	}
	identifierRegenCounter.WithLabelValues(kind).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementTask(task, result string) {
	if taskCounter == nil {
		return
	}
	taskCounter.WithLabelValues(task, result).Inc()
}

func SetIntegrityViolations(check string, count int64) {
	if integrityViolationsGauge == nil {
		return
	}
	integrityViolationsGauge.WithLabelValues(check).Set(float64(count))
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
