// Package config provides core orchestration configuration - NO infrastructure URLs.
//
// This module contains ONLY configuration relevant to core orchestration:
//   - Strategy budgets and the SLA target table
//   - Risk thresholds
//   - Concurrency limits and grace windows
//
// Infrastructure configuration (agent endpoints, audit sinks, transport
// settings) belongs to the hosting service, not this core.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy names used across the planner, SLA monitor, and metrics.
const (
	StrategyCrisis   = "Crisis priority"
	StrategyHighEmo  = "High emotion"
	StrategySimple   = "Simple emotional state"
	StrategyProgress = "Progress focus"
	StrategyStandard = "Standard"
)

// CoreConfig holds core orchestration configuration.
//
// Infrastructure-agnostic: the same config works regardless of which agent
// backend serves the remote calls.
type CoreConfig struct {
	// SLATargetsMs maps strategy name to its wall-clock target.
	SLATargetsMs map[string]int `json:"sla_targets_ms" yaml:"sla_targets_ms"`

	// CrisisCeilingMs is the hard budget ceiling for crisis plans; no
	// preference or factor may push a crisis budget above it, and speed
	// factors may never tighten any budget below it.
	CrisisCeilingMs int `json:"crisis_ceiling_ms" yaml:"crisis_ceiling_ms"`

	// Budget factors applied from user preferences.
	FastSpeedFactor     float64 `json:"fast_speed_factor" yaml:"fast_speed_factor"`
	ThoroughSpeedFactor float64 `json:"thorough_speed_factor" yaml:"thorough_speed_factor"`

	// Risk thresholds (0-10 scale).
	CriticalImmediacyThreshold float64 `json:"critical_immediacy_threshold" yaml:"critical_immediacy_threshold"`
	CrisisRiskThreshold        float64 `json:"crisis_risk_threshold" yaml:"crisis_risk_threshold"`
	HighRiskThreshold          float64 `json:"high_risk_threshold" yaml:"high_risk_threshold"`

	// Concurrency.
	MaxConcurrentAgentCalls int `json:"max_concurrent_agent_calls" yaml:"max_concurrent_agent_calls"`
	ReservedCrisisSlots     int `json:"reserved_crisis_slots" yaml:"reserved_crisis_slots"`

	// Grace windows.
	BudgetGraceMs           int `json:"budget_grace_ms" yaml:"budget_grace_ms"`
	EscalationCancelGraceMs int `json:"escalation_cancel_grace_ms" yaml:"escalation_cancel_grace_ms"`

	// Synthesis.
	MaxKeyInsights int `json:"max_key_insights" yaml:"max_key_insights"`

	// Logging
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// DefaultCoreConfig returns a CoreConfig with default values matching the
// platform SLA table.
func DefaultCoreConfig() *CoreConfig {
	return &CoreConfig{
		SLATargetsMs: map[string]int{
			StrategyCrisis:   2000,
			StrategyHighEmo:  3000,
			StrategySimple:   1500,
			StrategyProgress: 4000,
			StrategyStandard: 8000,
		},
		CrisisCeilingMs:     2000,
		FastSpeedFactor:     0.7,
		ThoroughSpeedFactor: 1.5,

		CriticalImmediacyThreshold: 7.0,
		CrisisRiskThreshold:        7.0,
		HighRiskThreshold:          5.0,

		MaxConcurrentAgentCalls: 8,
		ReservedCrisisSlots:     1,

		BudgetGraceMs:           250,
		EscalationCancelGraceMs: 150,

		MaxKeyInsights: 10,

		LogLevel: "INFO",
	}
}

// Validate checks invariants the rest of the engine relies on.
func (c *CoreConfig) Validate() error {
	if c.CrisisCeilingMs <= 0 {
		return fmt.Errorf("crisis_ceiling_ms must be positive, got %d", c.CrisisCeilingMs)
	}
	if target, ok := c.SLATargetsMs[StrategyCrisis]; !ok || target > c.CrisisCeilingMs {
		return fmt.Errorf("crisis SLA target must exist and not exceed ceiling %dms", c.CrisisCeilingMs)
	}
	for strategy, target := range c.SLATargetsMs {
		if target <= 0 {
			return fmt.Errorf("SLA target for %q must be positive, got %d", strategy, target)
		}
	}
	if c.FastSpeedFactor <= 0 || c.FastSpeedFactor > 1 {
		return fmt.Errorf("fast_speed_factor must be in (0,1], got %v", c.FastSpeedFactor)
	}
	if c.ThoroughSpeedFactor < 1 {
		return fmt.Errorf("thorough_speed_factor must be >= 1, got %v", c.ThoroughSpeedFactor)
	}
	if c.MaxConcurrentAgentCalls < 1 {
		return fmt.Errorf("max_concurrent_agent_calls must be >= 1, got %d", c.MaxConcurrentAgentCalls)
	}
	if c.ReservedCrisisSlots < 1 || c.ReservedCrisisSlots >= c.MaxConcurrentAgentCalls {
		return fmt.Errorf("reserved_crisis_slots must be in [1,%d), got %d",
			c.MaxConcurrentAgentCalls, c.ReservedCrisisSlots)
	}
	if c.BudgetGraceMs < 0 || c.EscalationCancelGraceMs < 0 {
		return fmt.Errorf("grace windows must be non-negative")
	}
	if c.MaxKeyInsights < 1 {
		return fmt.Errorf("max_key_insights must be >= 1, got %d", c.MaxKeyInsights)
	}
	return nil
}

// SLATargetMs returns the target for a strategy, falling back to the
// Standard ceiling for unknown strategies.
func (c *CoreConfig) SLATargetMs(strategy string) int {
	if target, ok := c.SLATargetsMs[strategy]; ok {
		return target
	}
	return c.SLATargetsMs[StrategyStandard]
}

// BudgetGrace returns the pipeline overshoot grace as a duration.
func (c *CoreConfig) BudgetGrace() time.Duration {
	return time.Duration(c.BudgetGraceMs) * time.Millisecond
}

// EscalationCancelGrace returns the grace given to running steps during
// escalation before their contexts are cancelled.
func (c *CoreConfig) EscalationCancelGrace() time.Duration {
	return time.Duration(c.EscalationCancelGraceMs) * time.Millisecond
}

// LoadCoreConfig reads a YAML config file and overlays it on defaults.
func LoadCoreConfig(path string) (*CoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultCoreConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
