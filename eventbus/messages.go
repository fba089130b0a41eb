// Message definitions for the pipeline bus.
//
// Categories:
//   - EVENT: fire-and-forget, fan-out to subscribers
//   - QUERY: request-response, single handler
//   - COMMAND: fire-and-forget, single handler

package eventbus

// =============================================================================
// PIPELINE LIFECYCLE EVENTS
// =============================================================================

// PipelineStarted is emitted when a turn begins executing.
// Subscribers: telemetry, trace logging.
type PipelineStarted struct {
	RunID          string `json:"run_id"`
	RequestID      string `json:"request_id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Strategy       string `json:"strategy"`
	TotalBudgetMs  int    `json:"total_budget_ms"`
}

// Category implements the Message interface.
func (m *PipelineStarted) Category() string { return string(MessageCategoryEvent) }

// StepStatusChanged is emitted on every step status transition.
type StepStatusChanged struct {
	RunID     string `json:"run_id"`
	RequestID string `json:"request_id"`
	StepID    string `json:"step_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	ElapsedMs int    `json:"elapsed_ms"`
}

// Category implements the Message interface.
func (m *StepStatusChanged) Category() string { return string(MessageCategoryEvent) }

// AgentCallCompleted is emitted when one agent invocation returns or
// times out.
type AgentCallCompleted struct {
	RunID           string  `json:"run_id"`
	RequestID       string  `json:"request_id"`
	AgentName       string  `json:"agent_name"`
	Status          string  `json:"status"` // "success", "error", "timeout"
	ExecutionTimeMs int     `json:"execution_time_ms"`
	Error           *string `json:"error,omitempty"`
}

// Category implements the Message interface.
func (m *AgentCallCompleted) Category() string { return string(MessageCategoryEvent) }

// =============================================================================
// RISK AND ESCALATION EVENTS
// =============================================================================

// RiskAssessed is emitted after the pre-flight scan, and again for every
// mid-flight re-assessment.
type RiskAssessed struct {
	RequestID      string  `json:"request_id"`
	ConversationID string  `json:"conversation_id"`
	Overall        float64 `json:"overall"`
	Immediacy      float64 `json:"immediacy"`
	Crisis         bool    `json:"crisis"`
	Source         string  `json:"source"` // "preflight", "agent_reported", "rescan"
}

// Category implements the Message interface.
func (m *RiskAssessed) Category() string { return string(MessageCategoryEvent) }

// PipelineEscalated is emitted once per run when crisis preemption fires.
type PipelineEscalated struct {
	RunID         string  `json:"run_id"`
	RequestID     string  `json:"request_id"`
	FromStrategy  string  `json:"from_strategy"`
	Trigger       string  `json:"trigger"` // "agent_reported", "rescan", "preempted"
	RiskOverall   float64 `json:"risk_overall"`
	SkippedSteps  int     `json:"skipped_steps"`
	CanceledSteps int     `json:"canceled_steps"`
}

// Category implements the Message interface.
func (m *PipelineEscalated) Category() string { return string(MessageCategoryEvent) }

// SLAViolated is emitted when a turn finishes over its latency target.
type SLAViolated struct {
	RunID     string `json:"run_id"`
	RequestID string `json:"request_id"`
	Strategy  string `json:"strategy"`
	TargetMs  int    `json:"target_ms"`
	ActualMs  int    `json:"actual_ms"`
}

// Category implements the Message interface.
func (m *SLAViolated) Category() string { return string(MessageCategoryEvent) }

// OutcomeReady is emitted when the synthesized outcome is complete.
type OutcomeReady struct {
	RunID        string  `json:"run_id"`
	RequestID    string  `json:"request_id"`
	Strategy     string  `json:"strategy"`
	Escalated    bool    `json:"escalated"`
	QualityScore float64 `json:"quality_score"`
	DurationMs   int     `json:"duration_ms"`
}

// Category implements the Message interface.
func (m *OutcomeReady) Category() string { return string(MessageCategoryEvent) }

// =============================================================================
// QUERIES
// =============================================================================

// GetActiveRuns asks the scheduler for the runs currently holding slots.
type GetActiveRuns struct {
	ConversationID string `json:"conversation_id,omitempty"`
}

// Category implements the Message interface.
func (m *GetActiveRuns) Category() string { return string(MessageCategoryQuery) }

// IsQuery implements the Query interface.
func (m *GetActiveRuns) IsQuery() {}

// =============================================================================
// COMMANDS
// =============================================================================

// CancelRun asks the engine to cooperatively cancel a run, typically so a
// crisis turn on the same conversation can take its slot.
type CancelRun struct {
	RunID  string `json:"run_id"`
	Reason string `json:"reason"`
}

// Category implements the Message interface.
func (m *CancelRun) Category() string { return string(MessageCategoryCommand) }

// =============================================================================
// TYPE ROUTING
// =============================================================================

// GetMessageType returns the type name of a message for routing.
func GetMessageType(msg Message) string {
	if typed, ok := msg.(TypedMessage); ok {
		return typed.MessageType()
	}

	switch msg.(type) {
	case *PipelineStarted:
		return "PipelineStarted"
	case *StepStatusChanged:
		return "StepStatusChanged"
	case *AgentCallCompleted:
		return "AgentCallCompleted"
	case *RiskAssessed:
		return "RiskAssessed"
	case *PipelineEscalated:
		return "PipelineEscalated"
	case *SLAViolated:
		return "SLAViolated"
	case *OutcomeReady:
		return "OutcomeReady"
	case *GetActiveRuns:
		return "GetActiveRuns"
	case *CancelRun:
		return "CancelRun"
	default:
		return "Unknown"
	}
}
