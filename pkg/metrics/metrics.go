// Package metrics provides Prometheus metrics for the oracle node.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceQuotesTotal is a counter of price source quote attempts.
	SourceQuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_quotes_total",
			Help: "Total number of quote attempts against price sources",
		},
		[]string{"source", "outcome"},
	)

	// SourceQuoteDuration is a histogram of price source quote latencies.
	SourceQuoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_quote_duration_seconds",
			Help:    "Duration of quote requests against price sources",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// AggregationDuration is a histogram of group resolution duration.
	AggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aggregation_duration_seconds",
			Help:    "Duration of aggregation group resolution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"group", "policy"},
	)

	// AggregationSources is a gauge of the number of sources that answered
	// in the last resolution of a group.
	AggregationSources = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aggregation_sources",
			Help: "Number of sources that returned a usable observation in the last cycle",
		},
		[]string{"group"},
	)

	// UpdateCyclesTotal is a counter of feed update cycles by result.
	UpdateCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "update_cycles_total",
			Help: "Total number of feed update cycles",
		},
		[]string{"feed", "result"},
	)

	// SubmissionsTotal is a counter of on-chain submissions by status.
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Total number of on-chain rate submissions",
		},
		[]string{"feed", "status"},
	)

	// LastSubmittedRate is a gauge of the last submitted scaled rate.
	LastSubmittedRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "last_submitted_rate",
			Help: "Last rate submitted on chain (scaled by the precision multiplier)",
		},
		[]string{"feed"},
	)

	// BackendRequestsTotal is a counter of chain backend requests.
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_backend_requests_total",
			Help: "Total number of requests against chain backends",
		},
		[]string{"backend", "op", "status"},
	)

	// AlertsTotal is a counter of emitted alert events.
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_total",
			Help: "Total number of alert events emitted",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		SourceQuotesTotal,
		SourceQuoteDuration,
		AggregationDuration,
		AggregationSources,
		UpdateCyclesTotal,
		SubmissionsTotal,
		LastSubmittedRate,
		BackendRequestsTotal,
		AlertsTotal,
	)
}

// RecordSourceQuote records the outcome and duration of one quote attempt.
func RecordSourceQuote(source, outcome string, duration time.Duration) {
	SourceQuotesTotal.WithLabelValues(source, outcome).Inc()
	SourceQuoteDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordAggregation records the outcome of a group resolution: how many
// sources answered and how long the fan-out took.
func RecordAggregation(group, policy string, successes int, duration time.Duration) {
	AggregationDuration.WithLabelValues(group, policy).Observe(duration.Seconds())
	AggregationSources.WithLabelValues(group).Set(float64(successes))
}

// RecordCycle records the result of a feed update cycle.
func RecordCycle(feed, result string) {
	UpdateCyclesTotal.WithLabelValues(feed, result).Inc()
}

// RecordSubmission records the status of an on-chain submission.
func RecordSubmission(feed, status string) {
	SubmissionsTotal.WithLabelValues(feed, status).Inc()
}

// RecordBackendRequest records one request against a chain backend.
func RecordBackendRequest(backend, op, status string) {
	BackendRequestsTotal.WithLabelValues(backend, op, status).Inc()
}

// RecordAlert records an emitted alert event.
func RecordAlert(kind string) {
	AlertsTotal.WithLabelValues(kind).Inc()
}

// Serve starts the Prometheus metrics HTTP server on the given address.
// It blocks, so callers normally run it in a goroutine.
func Serve(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
