// Package metrics exposes the Prometheus collectors for the actor fleet:
// HTTP dispatch, journal writes, deletion-workflow steps, and queue depth.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the application-specific Prometheus collectors.
var Registry = prometheus.NewRegistry()

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tminus",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tminus",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tminus",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	journalWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tminus",
		Subsystem: "journal",
		Name:      "writes_total",
		Help:      "Total journal appends by change_type.",
	}, []string{"change_type"})

	authorityConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tminus",
		Subsystem: "authority",
		Name:      "conflicts_total",
		Help:      "Total detected authority conflicts.",
	}, []string{"field"})

	deletionSteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tminus",
		Subsystem: "deletion",
		Name:      "steps_total",
		Help:      "Total deletion workflow step completions by step number and outcome.",
	}, []string{"step", "ok"})

	deletionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tminus",
		Subsystem: "deletion",
		Name:      "workflow_duration_seconds",
		Help:      "Duration of a full 9-step deletion workflow run.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"ok"})

	queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tminus",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Current depth of the outbound mirror queue by queue name.",
	}, []string{"queue"})

	actorOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tminus",
		Subsystem: "actor",
		Name:      "operations_total",
		Help:      "Total actor-dispatched operations by operation name and outcome.",
	}, []string{"operation", "ok"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		journalWrites,
		authorityConflicts,
		deletionSteps,
		deletionDuration,
		queueDepth,
		actorOperations,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with HTTP request/duration metrics.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordJournalWrite increments the journal-write counter for changeType.
func RecordJournalWrite(changeType string) {
	if changeType == "" {
		changeType = "unknown"
	}
	journalWrites.WithLabelValues(changeType).Inc()
}

// RecordAuthorityConflict increments the conflict counter for field.
func RecordAuthorityConflict(field string) {
	if field == "" {
		field = "unknown"
	}
	authorityConflicts.WithLabelValues(field).Inc()
}

// RecordDeletionStep records one deletion-workflow step's outcome.
func RecordDeletionStep(step int, ok bool) {
	deletionSteps.WithLabelValues(strconv.Itoa(step), strconv.FormatBool(ok)).Inc()
}

// RecordDeletionWorkflow records the total duration of a full workflow run.
func RecordDeletionWorkflow(duration time.Duration, ok bool) {
	deletionDuration.WithLabelValues(strconv.FormatBool(ok)).Observe(duration.Seconds())
}

// SetQueueDepth publishes the current depth of the named outbound queue.
func SetQueueDepth(queue string, depth int) {
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordActorOperation increments the actor-operation counter.
func RecordActorOperation(operation string, ok bool) {
	actorOperations.WithLabelValues(operation, strconv.FormatBool(ok)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses a path's user_id segment so per-user cardinality
// doesn't blow up the requests_total label space.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "users" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/users"
	}
	if len(parts) == 2 {
		return "/users/:user_id"
	}
	return "/users/:user_id/" + parts[2]
}
