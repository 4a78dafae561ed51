package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lookout",
			Name:      "stage_duration_seconds",
			Help:      "Duration of crawl pipeline stages in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookout",
			Name:      "stage_failures_total",
			Help:      "Total crawl pipeline stage failures",
		},
		[]string{"stage", "kind"},
	)

	AICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookout",
			Name:      "ai_calls_total",
			Help:      "Total structured completion calls",
		},
		[]string{"schema", "status"},
	)

	VerificationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookout",
			Name:      "verification_rejections_total",
			Help:      "AI-extracted facts discarded because they were not found in the source text",
		},
		[]string{"field"},
	)

	Competitors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookout",
			Name:      "competitors_total",
			Help:      "Competitor candidates emitted by source layer",
		},
		[]string{"source"},
	)

	PageFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookout",
			Name:      "page_fetches_total",
			Help:      "Outbound page fetches by result",
		},
		[]string{"status"},
	)
)

// ObserveStage records how long a stage took.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// AICall records the outcome of a structured completion call.
func AICall(schema string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	AICalls.WithLabelValues(schema, status).Inc()
}
