// Package observability provides Prometheus metrics instrumentation for the coreengine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// PIPELINE METRICS
// =============================================================================

var (
	pipelineExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportcore_pipeline_executions_total",
			Help: "Total number of turn pipeline executions",
		},
		[]string{"strategy", "status"}, // status: success, error, escalated, terminated
	)

	pipelineDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportcore_pipeline_duration_seconds",
			Help:    "Turn pipeline duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 3, 4, 8, 15},
		},
		[]string{"strategy"},
	)
)

// =============================================================================
// AGENT METRICS
// =============================================================================

var (
	agentCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportcore_agent_calls_total",
			Help: "Total number of agent invocations",
		},
		[]string{"agent", "status"}, // status: success, error, timeout
	)

	agentDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportcore_agent_duration_seconds",
			Help:    "Agent invocation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"agent"},
	)
)

// =============================================================================
// RISK AND ESCALATION METRICS
// =============================================================================

var (
	riskScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportcore_risk_scans_total",
			Help: "Total number of risk scans",
		},
		[]string{"source", "crisis"}, // source: preflight, agent_reported, rescan
	)

	escalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportcore_escalations_total",
			Help: "Total number of crisis escalations during execution",
		},
		[]string{"from_strategy", "trigger"},
	)

	preemptionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportcore_preemptions_total",
			Help: "Total number of runs preempted by crisis turns",
		},
	)
)

// =============================================================================
// SLA METRICS
// =============================================================================

var (
	slaViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportcore_sla_violations_total",
			Help: "Total number of turns finishing over their latency target",
		},
		[]string{"strategy"},
	)

	slaOverrunSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportcore_sla_overrun_seconds",
			Help:    "How far over target violating turns ran, in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"strategy"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordPipelineExecution records turn pipeline metrics.
// This should be called after the pipeline completes.
func RecordPipelineExecution(strategy string, status string, durationMS int) {
	pipelineExecutionsTotal.WithLabelValues(strategy, status).Inc()
	pipelineDurationSeconds.WithLabelValues(strategy).Observe(float64(durationMS) / 1000.0)
}

// RecordAgentCall records agent invocation metrics.
func RecordAgentCall(agent string, status string, durationMS int) {
	agentCallsTotal.WithLabelValues(agent, status).Inc()
	agentDurationSeconds.WithLabelValues(agent).Observe(float64(durationMS) / 1000.0)
}

// RecordRiskScan records a risk assessment.
func RecordRiskScan(source string, crisis bool) {
	label := "false"
	if crisis {
		label = "true"
	}
	riskScansTotal.WithLabelValues(source, label).Inc()
}

// RecordEscalation records a mid-flight crisis escalation.
func RecordEscalation(fromStrategy string, trigger string) {
	escalationsTotal.WithLabelValues(fromStrategy, trigger).Inc()
}

// RecordPreemption records a run canceled in favor of a crisis turn.
func RecordPreemption() {
	preemptionsTotal.Inc()
}

// RecordSLAViolation records a turn that missed its latency target.
func RecordSLAViolation(strategy string, targetMS, actualMS int) {
	slaViolationsTotal.WithLabelValues(strategy).Inc()
	if actualMS > targetMS {
		slaOverrunSeconds.WithLabelValues(strategy).Observe(float64(actualMS-targetMS) / 1000.0)
	}
}
