package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate on the daemon. Label route uses the path template.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream page fetches by status (success, client_error, server_error, error).
	ScrapeCallsTotal *prometheus.CounterVec

	// Upstream page latency. Watch for: p95 near the configured http_timeout.
	ScrapeDuration *prometheus.HistogramVec

	// Acquisition failures by category (see client.CategorizeError).
	AcquisitionErrorsTotal *prometheus.CounterVec

	// Cache lookups served from a fresh entry, per backend.
	CacheHitsTotal *prometheus.CounterVec

	// Cache lookups that found nothing or a stale entry, per backend.
	CacheMissesTotal *prometheus.CounterVec

	// Cache backend failures by operation (get, set) and backend.
	CacheErrorsTotal *prometheus.CounterVec

	// Duration of a startup cache warm over the configured locations.
	CacheWarmingDuration prometheus.Histogram

	// Classifier results by level (HIGH, LOW).
	AssessmentsTotal *prometheus.CounterVec

	// Samples refused by the classifier because a feature was missing.
	IncompleteDataTotal prometheus.Counter

	// Alert deliveries by outcome (sent, failed).
	AlertsTotal *prometheus.CounterVec

	// Per-location sweep outcomes by status.
	OutcomesTotal *prometheus.CounterVec

	// Failures publishing risk events to the event sink.
	EventPublishErrorsTotal prometheus.Counter

	// Rate limit denials on the daemon.
	RateLimitDeniedTotal prometheus.Counter

	// Wall time of a full sweep over all locations.
	SweepDuration prometheus.Histogram

	// Unix time of the last completed sweep. Pushed to the gateway by the one-shot command.
	LastSweepTimestamp prometheus.Gauge
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ScrapeCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapeCallsTotal",
			Help: "Total number of upstream weather page fetches",
		},
		[]string{"status"},
	)
	ScrapeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrapeDurationSeconds",
			Help:    "Upstream weather page latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	AcquisitionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acquisitionErrorsTotal",
			Help: "Total number of failed weather acquisitions by error category",
		},
		[]string{"category"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of fresh cache hits",
		},
		[]string{"backend"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of absent or stale cache entries",
		},
		[]string{"backend"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Total number of cache backend errors",
		},
		[]string{"operation", "backend"},
	)
	CacheWarmingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Duration of a cache warm over the configured locations",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	AssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskAssessmentsTotal",
			Help: "Total number of risk assessments by level",
		},
		[]string{"level"},
	)
	IncompleteDataTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskIncompleteDataTotal",
			Help: "Total number of samples refused because a feature was missing",
		},
	)
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertsTotal",
			Help: "Total number of alert deliveries by outcome",
		},
		[]string{"outcome"},
	)
	OutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locationOutcomesTotal",
			Help: "Total number of per-location sweep outcomes by status",
		},
		[]string{"status"},
	)
	EventPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventPublishErrorsTotal",
			Help: "Total number of failed risk event publishes",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweepDurationSeconds",
			Help:    "Duration of a full sweep over all configured locations",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	LastSweepTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lastSweepTimestampSeconds",
			Help: "Unix time of the last completed sweep",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ScrapeCallsTotal, ScrapeDuration, AcquisitionErrorsTotal,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal, CacheWarmingDuration,
		AssessmentsTotal, IncompleteDataTotal,
		AlertsTotal, OutcomesTotal, EventPublishErrorsTotal,
		RateLimitDeniedTotal,
		SweepDuration, LastSweepTimestamp,
	)
}

// Registry returns the registry every collector in this package is registered with.
func Registry() *prometheus.Registry {
	return registry
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
