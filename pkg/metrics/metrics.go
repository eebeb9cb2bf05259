// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TurnsTotal tracks pipeline turns by terminal state.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_turns_total",
			Help: "Total pipeline turns by outcome",
		},
		[]string{"tenant_id", "outcome"},
	)

	// TurnDuration tracks full-turn latency.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_turn_duration_seconds",
			Help:    "Pipeline turn duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"tenant_id"},
	)

	// PlannerDuration tracks planning-call latency.
	PlannerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planner_duration_seconds",
			Help:    "Planner call duration in seconds",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"model", "status"},
	)

	// PlannerTokensTotal tracks tokens exchanged with the planning service.
	PlannerTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_tokens_total",
			Help: "Total planner tokens processed",
		},
		[]string{"model", "direction"},
	)

	// FunctionCallsTotal tracks dispatched function executions.
	FunctionCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "function_calls_total",
			Help: "Total dispatched function calls",
		},
		[]string{"function", "status"},
	)

	// SuppressedCallsTotal tracks calls suppressed by the duplicate guard.
	SuppressedCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suppressed_calls_total",
			Help: "Function calls suppressed by the duplicate guard",
		},
		[]string{"function"},
	)

	// RateLimitRejections tracks turns rejected by admission control.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Turns rejected by admission control",
		},
		[]string{"tenant_id", "policy"},
	)

	// OutboundDeliveriesTotal tracks outbound delivery attempts.
	OutboundDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbound_deliveries_total",
			Help: "Outbound delivery attempts",
		},
		[]string{"status"},
	)

	// PaymentReconciliationsTotal tracks reconciliation outcomes.
	PaymentReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciliations_total",
			Help: "Payment reconciliation outcomes",
		},
		[]string{"status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records a completed pipeline turn.
func RecordTurn(tenantID, outcome string, duration float64) {
	TurnsTotal.WithLabelValues(tenantID, outcome).Inc()
	TurnDuration.WithLabelValues(tenantID).Observe(duration)
}

// RecordPlannerCall records metrics for one planning call.
func RecordPlannerCall(model, status string, duration float64, tokensIn, tokensOut int) {
	PlannerDuration.WithLabelValues(model, status).Observe(duration)
	PlannerTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	PlannerTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}
