package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/nimbus/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// WeatherAPI.com call rate per endpoint (current, forecast). Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// Upstream latency per endpoint. A search pays current + forecast sequentially.
	WeatherAPIDuration *prometheus.HistogramVec

	// Dashboard searches by outcome: success, failure, rejected (empty or already loading).
	SearchesTotal *prometheus.CounterVec

	// Failed searches by error category (see client.CategorizeError).
	SearchFailuresTotal *prometheus.CounterVec

	// Per-location search count (allow-list; others go to "other").
	SearchesByLocationTotal *prometheus.CounterVec

	// Unit preference changes by target unit.
	UnitChangesTotal *prometheus.CounterVec

	// Forecasts shorter than requested. Watch for: API plan limiting the range.
	ForecastAdvisoriesTotal prometheus.Counter

	// Days returned per forecast.
	ForecastDaysReturned prometheus.Histogram

	// New dashboard sessions (each triggers one default-location search).
	SessionsCreatedTotal prometheus.Counter

	// In-memory sessions evicted at capacity.
	SessionsEvictedTotal prometheus.Counter

	// Session store failures by operation (get, set).
	SessionStoreErrorsTotal *prometheus.CounterVec

	// Rate limit denials on routes that can call upstream.
	RateLimitDeniedTotal prometheus.Counter

	trackedLocationsMu sync.RWMutex
	trackedLocations   map[string]struct{}

	rateLimitGaugesOnce sync.Once
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
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of WeatherAPI.com calls",
		},
		[]string{"endpoint", "status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "WeatherAPI.com latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchesTotal",
			Help: "Dashboard searches by outcome",
		},
		[]string{"outcome"},
	)
	SearchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchFailuresTotal",
			Help: "Failed dashboard searches by error category",
		},
		[]string{"category"},
	)
	SearchesByLocationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchesByLocationTotal",
			Help: "Searches by location (allow-list; others use location=other)",
		},
		[]string{"location"},
	)
	UnitChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unitChangesTotal",
			Help: "Unit preference changes by target unit",
		},
		[]string{"unit"},
	)
	ForecastAdvisoriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastAdvisoriesTotal",
			Help: "Forecasts returned with fewer days than requested",
		},
	)
	ForecastDaysReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forecastDaysReturned",
			Help:    "Number of days in each forecast response",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10, 14},
		},
	)
	SessionsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionsCreatedTotal",
			Help: "Dashboard sessions created",
		},
	)
	SessionsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionsEvictedTotal",
			Help: "In-memory sessions evicted because the store was full",
		},
	)
	SessionStoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionStoreErrorsTotal",
			Help: "Session store failures by operation",
		},
		[]string{"op"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration,
		SearchesTotal, SearchFailuresTotal, SearchesByLocationTotal,
		UnitChangesTotal, ForecastAdvisoriesTotal, ForecastDaysReturned,
		SessionsCreatedTotal, SessionsEvictedTotal, SessionStoreErrorsTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterRateLimitGauges registers search volume and rejection gauges over the sliding window.
// Call from main after config load.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "searchRequestsInWindow",
					Help: "Search outcomes plus denials in sliding window; load/capacity planning",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// SetTrackedLocations sets the allow-list for location metrics. Non-tracked locations increment "other".
func SetTrackedLocations(locations []string) {
	trackedLocationsMu.Lock()
	defer trackedLocationsMu.Unlock()
	trackedLocations = make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		trackedLocations[normalizeLocationForMetrics(loc)] = struct{}{}
	}
}

// MetricLocationLabel returns the normalized location when tracked, otherwise "other".
func MetricLocationLabel(location string) string {
	loc := normalizeLocationForMetrics(location)
	trackedLocationsMu.RLock()
	_, ok := trackedLocations[loc]
	trackedLocationsMu.RUnlock()
	if ok {
		return loc
	}
	return "other"
}

// RecordSearch counts a search attempt for the given location.
func RecordSearch(location string) {
	SearchesByLocationTotal.WithLabelValues(MetricLocationLabel(location)).Inc()
}

func normalizeLocationForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
