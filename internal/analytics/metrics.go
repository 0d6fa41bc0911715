// internal/analytics/metrics.go

package analytics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_events_ingested_total",
			Help: "Total number of notification lifecycle events ingested",
		},
		[]string{"type"},
	)

	deliveryLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engagement_delivery_latency_seconds",
			Help:    "Distribution of notification delivery latencies",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	recomputeDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "engagement_recompute_duration_seconds",
			Help: "Time spent recomputing analytics",
		},
	)

	insightsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engagement_insights_active",
			Help: "Number of performance insights raised by the last recompute",
		},
	)
)

func RecordEvent(eventType EventType) {
	eventsIngestedTotal.WithLabelValues(string(eventType)).Inc()
}

func RecordDeliveryLatency(seconds float64) {
	deliveryLatencySeconds.Observe(seconds)
}

func RecordRecompute(duration time.Duration, insightCount int) {
	recomputeDurationSeconds.Observe(duration.Seconds())
	insightsActive.Set(float64(insightCount))
}
