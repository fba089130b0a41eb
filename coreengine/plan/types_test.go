package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_Transition(t *testing.T) {
	t.Run("happy_path", func(t *testing.T) {
		s := &Step{ID: "s-01", Status: StepPending}
		require.NoError(t, s.Transition(StepRunning))
		require.NoError(t, s.Transition(StepCompleted))
		assert.True(t, s.Status.IsTerminal())
	})

	t.Run("skip_only_from_pending", func(t *testing.T) {
		s := &Step{ID: "s-01", Status: StepPending}
		require.NoError(t, s.Transition(StepSkipped))

		running := &Step{ID: "s-02", Status: StepRunning}
		assert.Error(t, running.Transition(StepSkipped))
	})

	t.Run("terminal_is_final", func(t *testing.T) {
		for _, terminal := range []StepStatus{StepCompleted, StepError, StepSkipped} {
			s := &Step{ID: "s-01", Status: terminal}
			assert.Error(t, s.Transition(StepRunning), "from %s", terminal)
			assert.Error(t, s.Transition(StepCompleted), "from %s", terminal)
		}
	})

	t.Run("no_direct_pending_to_completed", func(t *testing.T) {
		s := &Step{ID: "s-01", Status: StepPending}
		assert.Error(t, s.Transition(StepCompleted))
	})
}

func TestExecutionPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    *ExecutionPlan
		wantErr string
	}{
		{
			name:    "no_steps",
			plan:    &ExecutionPlan{Strategy: "x"},
			wantErr: "no steps",
		},
		{
			name: "duplicate_step_id",
			plan: &ExecutionPlan{Strategy: "x", Steps: []*Step{
				{ID: "a", AgentsInvolved: []string{"e"}, BudgetMs: 10},
				{ID: "a", AgentsInvolved: []string{"e"}, BudgetMs: 10},
			}},
			wantErr: "duplicate step id",
		},
		{
			name: "forward_dependency",
			plan: &ExecutionPlan{Strategy: "x", Steps: []*Step{
				{ID: "a", AgentsInvolved: []string{"e"}, BudgetMs: 10, DependsOn: []string{"b"}},
				{ID: "b", AgentsInvolved: []string{"e"}, BudgetMs: 10},
			}},
			wantErr: "unknown or later step",
		},
		{
			name: "crisis_budget_over_ceiling",
			plan: &ExecutionPlan{Strategy: "x", Pattern: PatternCrisisPriority, TotalBudgetMs: 5000, Steps: []*Step{
				{ID: "a", AgentsInvolved: []string{"e"}, BudgetMs: 1000},
			}},
			wantErr: "exceeds ceiling",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate(2000)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExecutionPlan_CompletedFraction(t *testing.T) {
	p := &ExecutionPlan{Steps: []*Step{
		{ID: "a", Status: StepCompleted},
		{ID: "b", Status: StepError},
		{ID: "c", Status: StepCompleted},
		{ID: "d", Status: StepSkipped},
	}}
	assert.InDelta(t, 0.5, p.CompletedFraction(), 1e-9)
	assert.True(t, p.AllTerminal())
}
