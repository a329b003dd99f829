package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTPRequestsTotal counts served requests by method, route pattern and status class.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration is per-request latency by method and route pattern.
	HTTPRequestDuration *prometheus.HistogramVec

	// WeatherAPICallsTotal counts provider calls by outcome.
	WeatherAPICallsTotal *prometheus.CounterVec

	// WeatherAPIDuration is provider call latency by outcome.
	WeatherAPIDuration *prometheus.HistogramVec

	// WeatherRecordsSavedTotal counts records appended to user histories.
	WeatherRecordsSavedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_api_calls_total",
			Help: "Total number of weather provider calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weather_api_duration_seconds",
			Help:    "Weather provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	WeatherRecordsSavedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weather_records_saved_total",
			Help: "Total number of weather records appended to user histories",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		WeatherAPICallsTotal,
		WeatherAPIDuration,
		WeatherRecordsSavedTotal,
	)
}

// MetricsHandler serves the private registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// StatusLabel buckets an upstream status code for metric labels.
func StatusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusNotFound:
		return "not_found"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
