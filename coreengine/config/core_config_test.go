package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCoreConfig_Valid(t *testing.T) {
	cfg := DefaultCoreConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2000, cfg.SLATargetMs(StrategyCrisis))
	assert.Equal(t, 1500, cfg.SLATargetMs(StrategySimple))
	assert.Equal(t, 3000, cfg.SLATargetMs(StrategyHighEmo))
	assert.Equal(t, 4000, cfg.SLATargetMs(StrategyProgress))
	assert.Equal(t, 8000, cfg.SLATargetMs(StrategyStandard))
}

func TestSLATargetMs_UnknownStrategyFallsBack(t *testing.T) {
	cfg := DefaultCoreConfig()
	assert.Equal(t, cfg.SLATargetsMs[StrategyStandard], cfg.SLATargetMs("Experimental"))
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CoreConfig)
	}{
		{"zero_ceiling", func(c *CoreConfig) { c.CrisisCeilingMs = 0 }},
		{"crisis_target_above_ceiling", func(c *CoreConfig) { c.SLATargetsMs[StrategyCrisis] = 5000 }},
		{"missing_crisis_target", func(c *CoreConfig) { delete(c.SLATargetsMs, StrategyCrisis) }},
		{"negative_target", func(c *CoreConfig) { c.SLATargetsMs[StrategySimple] = -1 }},
		{"fast_factor_above_one", func(c *CoreConfig) { c.FastSpeedFactor = 1.2 }},
		{"thorough_factor_below_one", func(c *CoreConfig) { c.ThoroughSpeedFactor = 0.5 }},
		{"no_slots", func(c *CoreConfig) { c.MaxConcurrentAgentCalls = 0 }},
		{"crisis_slots_consume_pool", func(c *CoreConfig) { c.ReservedCrisisSlots = 8 }},
		{"negative_grace", func(c *CoreConfig) { c.BudgetGraceMs = -10 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultCoreConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadCoreConfig_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.yaml")
	content := []byte(`
sla_targets_ms:
  "Crisis priority": 1800
  "High emotion": 3000
  "Simple emotional state": 1500
  "Progress focus": 4000
  "Standard": 6000
crisis_ceiling_ms: 2000
max_concurrent_agent_calls: 4
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadCoreConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1800, cfg.SLATargetMs(StrategyCrisis))
	assert.Equal(t, 6000, cfg.SLATargetMs(StrategyStandard))
	assert.Equal(t, 4, cfg.MaxConcurrentAgentCalls)
	// Untouched fields keep defaults.
	assert.Equal(t, 0.7, cfg.FastSpeedFactor)
	assert.Equal(t, 250, cfg.BudgetGraceMs)
}

func TestLoadCoreConfig_InvalidFileRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crisis_ceiling_ms: -5"), 0o600))

	_, err := LoadCoreConfig(path)
	assert.Error(t, err)

	_, err = LoadCoreConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
