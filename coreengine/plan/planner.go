package plan

import (
	"fmt"
	"math"
	"strings"

	"github.com/havenline/supportcore/coreengine/agents"
	"github.com/havenline/supportcore/coreengine/config"
	"github.com/havenline/supportcore/coreengine/risk"
)

// checkinMarkers flag short emotional check-ins that do not need the full
// agent roster.
var checkinMarkers = []string{
	"i feel", "i'm feeling", "im feeling", "feeling a bit", "feeling kind of",
	"just checking in", "checking in", "today was", "today has been",
	"had a rough day", "had a good day", "wanted to say hi",
}

// progressMarkers flag requests about goals and progress review.
var progressMarkers = []string{
	"progress", "my goals", "my goal", "how am i doing", "how have i been doing",
	"am i getting better", "milestone", "review my", "track my",
}

const simpleCheckinMaxLen = 160

// Build selects a strategy for the request and constructs the execution
// plan. The decision table is ordered; the first matching row wins. Crisis
// always outranks every other consideration.
//
// Build is deterministic: identical inputs produce identical plans.
func Build(req Request, score risk.Score, prefs Preferences, cfg *config.CoreConfig) (*ExecutionPlan, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, &PlanningError{Reason: "empty message"}
	}
	if cfg == nil {
		return nil, &PlanningError{Reason: "nil config"}
	}

	var p *ExecutionPlan
	switch {
	case score.Immediacy >= cfg.CriticalImmediacyThreshold || score.IsCrisis() || req.Urgency == UrgencyCrisis:
		p = buildCrisisPlan(cfg)
	case score.Overall >= cfg.HighRiskThreshold:
		p = buildHighEmotionPlan(cfg, prefs)
	case isSimpleCheckin(req.Message):
		p = buildSimplePlan(cfg, prefs)
	case isProgressReview(req.Message):
		p = buildProgressPlan(cfg, prefs)
	default:
		p = buildStandardPlan(cfg, prefs)
	}

	if err := p.Validate(cfg.CrisisCeilingMs); err != nil {
		return nil, &PlanningError{Reason: err.Error()}
	}
	return p, nil
}

func isSimpleCheckin(message string) bool {
	if len(message) > simpleCheckinMaxLen {
		return false
	}
	lower := strings.ToLower(message)
	for _, m := range checkinMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func isProgressReview(message string) bool {
	lower := strings.ToLower(message)
	for _, m := range progressMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// speedFactor returns the budget multiplier for the preference. Crisis
// plans never pass through here; their budget is fixed at the ceiling.
func speedFactor(prefs Preferences, cfg *config.CoreConfig) float64 {
	switch prefs.ProcessingSpeed {
	case SpeedFast:
		return cfg.FastSpeedFactor
	case SpeedThorough:
		return cfg.ThoroughSpeedFactor
	default:
		return 1.0
	}
}

// scaleBudget applies the speed factor to a strategy's base budget.
// Tightening never drops a budget below the crisis ceiling; a base already
// at or under the ceiling is left alone.
func scaleBudget(baseMs int, factor float64, crisisCeilingMs int) int {
	scaled := int(math.Round(float64(baseMs) * factor))
	if factor < 1.0 {
		floor := baseMs
		if crisisCeilingMs < floor {
			floor = crisisCeilingMs
		}
		if scaled < floor {
			return floor
		}
	}
	return scaled
}

func stepID(prefix string, idx int) string {
	return fmt.Sprintf("%s-%02d", prefix, idx)
}

func buildCrisisPlan(cfg *config.CoreConfig) *ExecutionPlan {
	budget := cfg.SLATargetMs(config.StrategyCrisis)
	if budget > cfg.CrisisCeilingMs {
		budget = cfg.CrisisCeilingMs
	}
	return &ExecutionPlan{
		Strategy:      config.StrategyCrisis,
		Pattern:       PatternCrisisPriority,
		TotalBudgetMs: budget,
		Steps: []*Step{
			{
				ID:                stepID("crisis", 1),
				AgentsInvolved:    []string{agents.AgentCrisis},
				StartOffsetMs:     0,
				BudgetMs:          budget,
				Status:            StepPending,
				CriticalForCrisis: true,
			},
		},
		AgentInfluence: map[string]float64{
			agents.AgentCrisis: 1.0,
		},
	}
}

func buildHighEmotionPlan(cfg *config.CoreConfig, prefs Preferences) *ExecutionPlan {
	total := scaleBudget(cfg.SLATargetMs(config.StrategyHighEmo), speedFactor(prefs, cfg), cfg.CrisisCeilingMs)
	fanout := total * 6 / 10
	tail := total - fanout
	return &ExecutionPlan{
		Strategy:      config.StrategyHighEmo,
		Pattern:       PatternHybrid,
		TotalBudgetMs: total,
		Steps: []*Step{
			{
				ID:             stepID("highemo", 1),
				AgentsInvolved: []string{agents.AgentEmotion},
				StartOffsetMs:  0,
				BudgetMs:       fanout,
				Status:         StepPending,
			},
			{
				ID:             stepID("highemo", 2),
				AgentsInvolved: []string{agents.AgentMemory},
				StartOffsetMs:  0,
				BudgetMs:       fanout,
				Status:         StepPending,
			},
			{
				ID:             stepID("highemo", 3),
				AgentsInvolved: []string{agents.AgentSynthesis},
				DependsOn:      []string{stepID("highemo", 1), stepID("highemo", 2)},
				StartOffsetMs:  fanout,
				BudgetMs:       tail,
				Status:         StepPending,
			},
		},
		AgentInfluence: map[string]float64{
			agents.AgentEmotion:   0.35,
			agents.AgentMemory:    0.2,
			agents.AgentSynthesis: 0.45,
		},
	}
}

func buildSimplePlan(cfg *config.CoreConfig, prefs Preferences) *ExecutionPlan {
	total := scaleBudget(cfg.SLATargetMs(config.StrategySimple), speedFactor(prefs, cfg), cfg.CrisisCeilingMs)
	return &ExecutionPlan{
		Strategy:      config.StrategySimple,
		Pattern:       PatternParallel,
		TotalBudgetMs: total,
		Steps: []*Step{
			{
				ID:             stepID("simple", 1),
				AgentsInvolved: []string{agents.AgentEmotion},
				StartOffsetMs:  0,
				BudgetMs:       total,
				Status:         StepPending,
			},
			{
				ID:             stepID("simple", 2),
				AgentsInvolved: []string{agents.AgentSynthesis},
				StartOffsetMs:  0,
				BudgetMs:       total,
				Status:         StepPending,
			},
		},
		AgentInfluence: map[string]float64{
			agents.AgentEmotion:   0.45,
			agents.AgentSynthesis: 0.55,
		},
	}
}

func buildProgressPlan(cfg *config.CoreConfig, prefs Preferences) *ExecutionPlan {
	total := scaleBudget(cfg.SLATargetMs(config.StrategyProgress), speedFactor(prefs, cfg), cfg.CrisisCeilingMs)
	retrieve := total * 35 / 100
	analyze := total * 30 / 100
	recommend := total - retrieve - analyze
	return &ExecutionPlan{
		Strategy:      config.StrategyProgress,
		Pattern:       PatternSerial,
		TotalBudgetMs: total,
		Steps: []*Step{
			{
				ID:             stepID("progress", 1),
				AgentsInvolved: []string{agents.AgentProgress},
				StartOffsetMs:  0,
				BudgetMs:       retrieve,
				Status:         StepPending,
			},
			{
				ID:             stepID("progress", 2),
				AgentsInvolved: []string{agents.AgentRecommend},
				DependsOn:      []string{stepID("progress", 1)},
				StartOffsetMs:  retrieve,
				BudgetMs:       analyze,
				Status:         StepPending,
			},
			{
				ID:             stepID("progress", 3),
				AgentsInvolved: []string{agents.AgentSynthesis},
				DependsOn:      []string{stepID("progress", 2)},
				StartOffsetMs:  retrieve + analyze,
				BudgetMs:       recommend,
				Status:         StepPending,
			},
		},
		AgentInfluence: map[string]float64{
			agents.AgentProgress:  0.35,
			agents.AgentRecommend: 0.3,
			agents.AgentSynthesis: 0.35,
		},
	}
}

func buildStandardPlan(cfg *config.CoreConfig, prefs Preferences) *ExecutionPlan {
	total := scaleBudget(cfg.SLATargetMs(config.StrategyStandard), speedFactor(prefs, cfg), cfg.CrisisCeilingMs)
	fanout := total / 2
	tail := total - fanout
	return &ExecutionPlan{
		Strategy:      config.StrategyStandard,
		Pattern:       PatternHybrid,
		TotalBudgetMs: total,
		Steps: []*Step{
			{
				ID:             stepID("standard", 1),
				AgentsInvolved: []string{agents.AgentEmotion},
				StartOffsetMs:  0,
				BudgetMs:       fanout,
				Status:         StepPending,
			},
			{
				ID:             stepID("standard", 2),
				AgentsInvolved: []string{agents.AgentMemory},
				StartOffsetMs:  0,
				BudgetMs:       fanout,
				Status:         StepPending,
			},
			{
				ID:             stepID("standard", 3),
				AgentsInvolved: []string{agents.AgentProgress},
				StartOffsetMs:  0,
				BudgetMs:       fanout,
				Status:         StepPending,
			},
			{
				ID:             stepID("standard", 4),
				AgentsInvolved: []string{agents.AgentSynthesis},
				DependsOn:      []string{stepID("standard", 1), stepID("standard", 2), stepID("standard", 3)},
				StartOffsetMs:  fanout,
				BudgetMs:       tail,
				Status:         StepPending,
			},
		},
		AgentInfluence: map[string]float64{
			agents.AgentEmotion:   0.2,
			agents.AgentMemory:    0.15,
			agents.AgentProgress:  0.2,
			agents.AgentSynthesis: 0.45,
		},
	}
}
