// Package sla provides latency target monitoring for completed turns.
//
// The monitor observes and reports; it never blocks, delays, or alters a
// response.
package sla

import (
	"context"

	"github.com/havenline/supportcore/coreengine/agents"
	"github.com/havenline/supportcore/coreengine/config"
	"github.com/havenline/supportcore/coreengine/observability"
	"github.com/havenline/supportcore/eventbus"
)

// Report is the outcome of one SLA check.
type Report struct {
	Strategy  string `json:"strategy"`
	TargetMs  int    `json:"target_ms"`
	ActualMs  int    `json:"actual_ms"`
	Compliant bool   `json:"compliant"`
}

// OverrunMs returns how far over target the turn ran. Zero when compliant.
func (r Report) OverrunMs() int {
	if r.Compliant {
		return 0
	}
	return r.ActualMs - r.TargetMs
}

// Monitor checks turn durations against the configured target table.
type Monitor struct {
	cfg *config.CoreConfig
	log agents.Logger
	bus eventbus.Bus
}

// NewMonitor creates a Monitor. The bus may be nil; violations are then
// only logged and counted.
func NewMonitor(cfg *config.CoreConfig, log agents.Logger, bus eventbus.Bus) *Monitor {
	return &Monitor{cfg: cfg, log: log, bus: bus}
}

// Check compares a finished turn against its strategy's target. Unknown
// strategies fall back to the standard target. Check never errors; a
// violation is logged, counted, and published, nothing more.
func (m *Monitor) Check(ctx context.Context, runID, requestID, strategy string, actualMs int) Report {
	target := m.cfg.SLATargetMs(strategy)
	report := Report{
		Strategy:  strategy,
		TargetMs:  target,
		ActualMs:  actualMs,
		Compliant: actualMs <= target,
	}

	if report.Compliant {
		m.log.Debug("sla_check_passed",
			"run_id", runID,
			"strategy", strategy,
			"target_ms", target,
			"actual_ms", actualMs)
		return report
	}

	m.log.Warn("sla_violation",
		"run_id", runID,
		"request_id", requestID,
		"strategy", strategy,
		"target_ms", target,
		"actual_ms", actualMs,
		"overrun_ms", report.OverrunMs())
	observability.RecordSLAViolation(strategy, target, actualMs)

	if m.bus != nil {
		_ = m.bus.Publish(ctx, &eventbus.SLAViolated{
			RunID:     runID,
			RequestID: requestID,
			Strategy:  strategy,
			TargetMs:  target,
			ActualMs:  actualMs,
		})
	}
	return report
}
