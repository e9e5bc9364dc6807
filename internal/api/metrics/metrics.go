// Package metrics defines and registers all custom Prometheus metrics for
// the trust API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics register with the default Prometheus registry at import time via
// promauto; the /metrics endpoint exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trust"

// ── Rate limiter metrics ──────────────────────────────────────────────────────

// RateLimitDecisionsTotal counts admission decisions.
// Labels:
//   - action: the rate limited action type (e.g. "create_review")
//   - result: "allowed", "denied", or "error"
var RateLimitDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_decisions_total",
		Help:      "Total number of rate limit admission decisions, by action and result.",
	},
	[]string{"action", "result"},
)

// ── Moderation metrics ────────────────────────────────────────────────────────

// ReviewsSubmittedTotal counts successfully submitted reviews.
// Label:
//   - rating: the submitted rating ("1".."5")
var ReviewsSubmittedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reviews_submitted_total",
		Help:      "Total number of reviews accepted into the ledger, by rating.",
	},
	[]string{"rating"},
)

// ReviewFlagsTotal counts flag signals recorded against reviews.
var ReviewFlagsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "review_flags_total",
		Help:      "Total number of flag signals recorded against reviews.",
	},
)

// ReviewsAutoHiddenTotal counts reviews suppressed by the flag threshold.
var ReviewsAutoHiddenTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reviews_auto_hidden_total",
		Help:      "Total number of reviews automatically hidden after crossing the flag threshold.",
	},
)

// ── Trust aggregator metrics ──────────────────────────────────────────────────

// AssessmentsIngestedTotal counts accepted AI assessments.
// Label:
//   - analysis_type: "safety", "sentiment", "face_detection"
var AssessmentsIngestedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assessments_ingested_total",
		Help:      "Total number of AI assessments ingested, by analysis type.",
	},
	[]string{"analysis_type"},
)

// RecomputeDuration measures how long one client stats recompute takes.
var RecomputeDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "recompute_duration_seconds",
		Help:      "Duration of a single client trust aggregate recompute.",
		Buckets:   prometheus.DefBuckets,
	},
)
