// Package plan provides execution planning: strategy selection and the
// ordered, annotated execution plan the engine walks.
package plan

import (
	"fmt"
)

// Urgency is the caller-declared urgency of a request.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyElevated Urgency = "elevated"
	UrgencyCrisis   Urgency = "crisis"
)

// ProcessingSpeed is the user's latency/depth preference.
type ProcessingSpeed string

const (
	SpeedNormal   ProcessingSpeed = "normal"
	SpeedFast     ProcessingSpeed = "fast"
	SpeedThorough ProcessingSpeed = "thorough"
)

// Preferences are per-user processing preferences.
type Preferences struct {
	ProcessingSpeed ProcessingSpeed `json:"processing_speed,omitempty"`
	Verbosity       string          `json:"verbosity,omitempty"`
}

// Request is the immutable per-turn input. Created per turn, discarded
// after the response.
type Request struct {
	RequestID      string      `json:"request_id"`
	ConversationID string      `json:"conversation_id"`
	UserID         string      `json:"user_id"`
	Message        string      `json:"message"`
	Urgency        Urgency     `json:"urgency"`
	Preferences    Preferences `json:"preferences"`
}

// Pattern is the topology of step scheduling.
type Pattern string

const (
	PatternSerial         Pattern = "serial"
	PatternParallel       Pattern = "parallel"
	PatternHybrid         Pattern = "hybrid"
	PatternCrisisPriority Pattern = "crisis_priority"
)

// StepStatus is the lifecycle state of one step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
	StepSkipped   StepStatus = "skipped"
)

// IsTerminal reports whether the status is final.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepError || s == StepSkipped
}

// validTransitions encodes pending -> running -> {completed|error}, with
// skipped reachable only from pending.
var validTransitions = map[StepStatus]map[StepStatus]bool{
	StepPending: {StepRunning: true, StepSkipped: true},
	StepRunning: {StepCompleted: true, StepError: true},
}

// Step is one schedulable unit of the plan. Steps with no dependency edge
// between them and overlapping start offsets form a parallel group; a step
// with dependencies starts only once every predecessor is terminal.
type Step struct {
	ID                string     `json:"step_id"`
	AgentsInvolved    []string   `json:"agents_involved"`
	DependsOn         []string   `json:"depends_on,omitempty"`
	StartOffsetMs     int        `json:"start_offset_ms"`
	BudgetMs          int        `json:"budget_ms"`
	Status            StepStatus `json:"status"`
	CriticalForCrisis bool       `json:"critical_for_crisis,omitempty"`
}

// Transition moves the step's status, enforcing that each step passes
// through pending -> running -> terminal exactly once.
func (s *Step) Transition(to StepStatus) error {
	if allowed := validTransitions[s.Status]; !allowed[to] {
		return fmt.Errorf("step %s: invalid status transition %s -> %s", s.ID, s.Status, to)
	}
	s.Status = to
	return nil
}

// ExecutionPlan is the ordered, annotated plan for one request. Immutable
// once built except for step status transitions during execution.
type ExecutionPlan struct {
	Strategy      string             `json:"strategy"`
	Pattern       Pattern            `json:"execution_pattern"`
	TotalBudgetMs int                `json:"total_budget_ms"`
	Steps         []*Step            `json:"steps"`
	AgentInfluence map[string]float64 `json:"agent_influence"`
}

// StepByID returns the step with the given id, or nil.
func (p *ExecutionPlan) StepByID(id string) *Step {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// AgentNames returns every agent the plan schedules, in step order.
func (p *ExecutionPlan) AgentNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, s := range p.Steps {
		for _, a := range s.AgentsInvolved {
			if !seen[a] {
				seen[a] = true
				names = append(names, a)
			}
		}
	}
	return names
}

// Validate checks structural invariants: known dependencies, acyclic order
// (dependencies must reference earlier steps), positive budgets, and the
// crisis invariant (a crisis plan carries at least one zero-dependency step
// within the crisis ceiling).
func (p *ExecutionPlan) Validate(crisisCeilingMs int) error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan %q has no steps", p.Strategy)
	}
	seen := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.ID == "" {
			return fmt.Errorf("plan %q contains a step without id", p.Strategy)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate step id %q", s.ID)
		}
		if len(s.AgentsInvolved) == 0 {
			return fmt.Errorf("step %q involves no agents", s.ID)
		}
		if s.BudgetMs <= 0 {
			return fmt.Errorf("step %q has non-positive budget", s.ID)
		}
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("step %q depends on unknown or later step %q", s.ID, dep)
			}
		}
		seen[s.ID] = true
	}
	if p.Pattern == PatternCrisisPriority {
		ok := false
		for _, s := range p.Steps {
			if len(s.DependsOn) == 0 && s.BudgetMs <= crisisCeilingMs {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("crisis plan lacks an eager step within the %dms ceiling", crisisCeilingMs)
		}
		if p.TotalBudgetMs > crisisCeilingMs {
			return fmt.Errorf("crisis plan budget %dms exceeds ceiling %dms", p.TotalBudgetMs, crisisCeilingMs)
		}
	}
	return nil
}

// AllTerminal reports whether every step reached a terminal status.
func (p *ExecutionPlan) AllTerminal() bool {
	for _, s := range p.Steps {
		if !s.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// CompletedFraction is the fraction of steps that reached completed.
func (p *ExecutionPlan) CompletedFraction() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range p.Steps {
		if s.Status == StepCompleted {
			done++
		}
	}
	return float64(done) / float64(len(p.Steps))
}

// PlanningError is the one hard failure surfaced to callers: no valid plan
// could be constructed, and no agent call was made.
type PlanningError struct {
	Reason string
}

func (e *PlanningError) Error() string {
	return "planning failed: " + e.Reason
}
