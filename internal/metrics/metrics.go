// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Claims ─────────────────────────────────────────────────────────────────

// ClaimsSubmitted counts created claims by fraud route.
var ClaimsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heron",
	Subsystem: "claims",
	Name:      "submitted_total",
	Help:      "Total claims created, by routed role.",
}, []string{"route"})

// ClaimsRejected counts submissions refused before creation.
var ClaimsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heron",
	Subsystem: "claims",
	Name:      "rejected_total",
	Help:      "Total claim submissions refused, by stage (validation, files, eligibility).",
}, []string{"stage"})

// ClaimDecisions counts adjuster and analyst decisions.
var ClaimDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heron",
	Subsystem: "claims",
	Name:      "decisions_total",
	Help:      "Total claim decisions, by resulting status.",
}, []string{"status"})

// FraudScore observes the score of every created claim.
var FraudScore = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "heron",
	Subsystem: "fraud",
	Name:      "score",
	Help:      "Fraud score assigned at claim creation.",
	Buckets:   []float64{0, 20, 30, 50, 70, 100},
})

// ─── Eligibility ────────────────────────────────────────────────────────────

// EligibilityChecks counts eligibility decisions.
var EligibilityChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heron",
	Subsystem: "eligibility",
	Name:      "checks_total",
	Help:      "Total eligibility checks, by outcome.",
}, []string{"eligible"})

// ─── SLA and renewals ───────────────────────────────────────────────────────

// SLABreaches counts records newly marked breached by a sweep.
var SLABreaches = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heron",
	Subsystem: "sla",
	Name:      "breaches_total",
	Help:      "Total SLA records marked breached, by entity type.",
}, []string{"entity_type"})

// RenewalRemindersSent counts renewal notifications sent by the sweep.
var RenewalRemindersSent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "heron",
	Subsystem: "renewals",
	Name:      "reminders_sent_total",
	Help:      "Total renewal reminder notifications sent.",
})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts requests by method and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heron",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests, by method and status code.",
}, []string{"method", "code"})

// HTTPLatency observes request latency in milliseconds.
var HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "heron",
	Subsystem: "http",
	Name:      "latency_ms",
	Help:      "HTTP request latency in milliseconds.",
	Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
}, []string{"method"})

// ObserveEligibility records one eligibility decision.
func ObserveEligibility(eligible bool) {
	EligibilityChecks.WithLabelValues(strconv.FormatBool(eligible)).Inc()
}
