package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuroforge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "neuroforge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"method", "route"},
	)

	RelayTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuroforge",
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Outbound relay calls by origin and result",
		},
		[]string{"origin", "result"},
	)

	RelayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "neuroforge",
			Subsystem: "relay",
			Name:      "duration_seconds",
			Help:      "Outbound relay call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"origin"},
	)

	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuroforge",
			Subsystem: "generation",
			Name:      "total",
			Help:      "Image generations by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
)

func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// RecordRelay records one outbound call; result is the upstream status code or an error class.
func RecordRelay(origin, result string, durationSec float64) {
	RelayTotal.WithLabelValues(origin, result).Inc()
	RelayDuration.WithLabelValues(origin).Observe(durationSec)
}

func RecordGeneration(provider, outcome string) {
	GenerationsTotal.WithLabelValues(provider, outcome).Inc()
}
