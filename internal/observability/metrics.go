package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "styxctl",
			Subsystem: "submit",
			Name:      "attempts_total",
			Help:      "Submitted operations by classification.",
		},
		[]string{"operation", "class"},
	)
	submissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "styxctl",
			Subsystem: "submit",
			Name:      "duration_seconds",
			Help:      "Submission latency across all retry attempts.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	materializations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "styxctl",
			Subsystem: "resolver",
			Name:      "materializations_total",
			Help:      "Prerequisite state objects created.",
		},
		[]string{"tag"},
	)
	statusRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "styxctl",
			Subsystem: "status",
			Name:      "http_requests_total",
			Help:      "Requests served by the status endpoint.",
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(submissions, submissionDuration, materializations, statusRequests)
	})
}

func RecordSubmission(operation, class string, duration time.Duration) {
	RegisterMetrics()
	submissions.WithLabelValues(operation, class).Inc()
	submissionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordMaterialization(tag string) {
	RegisterMetrics()
	materializations.WithLabelValues(tag).Inc()
}

func RecordStatusRequest(method, path string, status int) {
	RegisterMetrics()
	statusRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
