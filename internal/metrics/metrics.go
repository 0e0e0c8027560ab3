// Package metrics defines the Prometheus collectors exposed by the
// process. Grounded on the teacher's internal/metrics/metrics.go: package
// vars of prometheus.New*Opts under one namespace, a Register() calling
// prometheus.MustRegister, and a NewServer(addr) exposing /metrics via
// promhttp.Handler().
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ClaimLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "goodjob",
		Name:      "claim_latency_seconds",
		Help:      "Time from job creation/scheduled_at to a worker successfully claiming it.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	ExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "goodjob",
		Name:      "execution_duration_seconds",
		Help:      "Duration of a single job execution, by outcome.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
	}, []string{"outcome", "job_class"})

	JobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "goodjob",
		Name:      "jobs_in_flight",
		Help:      "Number of jobs currently being executed across all pools.",
	})

	JobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goodjob",
		Name:      "jobs_completed_total",
		Help:      "Total jobs finished, by outcome.",
	}, []string{"outcome"})

	ConcurrencyBlockedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goodjob",
		Name:      "concurrency_blocked_total",
		Help:      "Total claim/enqueue attempts blocked by the concurrency limiter, by result.",
	}, []string{"result"})

	CronFiredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goodjob",
		Name:      "cron_fired_total",
		Help:      "Total cron entries fired, by cron key.",
	}, []string{"cron_key"})

	LifelineRescuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "goodjob",
		Name:      "lifeline_rescued_total",
		Help:      "Total jobs returned to queued by the lifeline sweep.",
	})

	PrunerDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "goodjob",
		Name:      "pruner_deleted_total",
		Help:      "Total finished job rows deleted by the pruner.",
	})

	NotifierReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "goodjob",
		Name:      "notifier_reconnects_total",
		Help:      "Total times the LISTEN/NOTIFY connection reconnected after a drop.",
	})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "goodjob",
		Name:      "http_request_duration_seconds",
		Help:      "Operator HTTP API request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		ClaimLatency,
		ExecutionDuration,
		JobsInFlight,
		JobsCompletedTotal,
		ConcurrencyBlockedTotal,
		CronFiredTotal,
		LifelineRescuedTotal,
		PrunerDeletedTotal,
		NotifierReconnectsTotal,
		HTTPRequestDuration,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
