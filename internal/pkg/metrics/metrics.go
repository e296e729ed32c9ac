package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lifecycle metrics
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_logins_total",
			Help: "Login attempts by outcome (ok or error kind)",
		},
		[]string{"result"},
	)

	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_heartbeats_total",
			Help: "Heartbeats by outcome (ok, poor_accuracy, suspect or error kind)",
		},
		[]string{"result"},
	)

	SessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_session_transitions_total",
			Help: "Session status transitions by target status and source",
		},
		[]string{"status", "source"},
	)

	// Scheduler metrics
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_job_runs_total",
			Help: "Reconciliation job runs by job and result",
		},
		[]string{"job", "result"},
	)

	JobSessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_job_sessions_closed_total",
			Help: "Sessions closed by reconciliation jobs",
		},
		[]string{"job"},
	)

	JobSessionsSplit = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_job_sessions_split_total",
			Help: "Sessions split at a local day boundary by the daily aggregation",
		},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attendance_job_duration_seconds",
			Help:    "Reconciliation job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

func init() {
	prometheus.MustRegister(LoginsTotal)
	prometheus.MustRegister(HeartbeatsTotal)
	prometheus.MustRegister(SessionTransitionsTotal)
	prometheus.MustRegister(JobRunsTotal)
	prometheus.MustRegister(JobSessionsClosed)
	prometheus.MustRegister(JobSessionsSplit)
	prometheus.MustRegister(JobDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation for a histogram.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDurationVec records the elapsed seconds under the given labels.
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
