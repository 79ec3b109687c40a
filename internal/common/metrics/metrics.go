package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PassesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pass_generations_total",
			Help: "Total number of pass generation attempts by outcome",
		},
		[]string{"status"},
	)

	PassGenerationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pass_generation_failures_total",
			Help: "Total number of failed pass generations by error code",
		},
		[]string{"error_code"},
	)

	PassGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pass_generation_duration_seconds",
			Help: "Duration of pass generation in seconds",
		},
		[]string{"status"},
	)

	PassArchiveBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pass_archive_bytes",
			Help:    "Size of generated pass archives in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12),
		},
	)
)
