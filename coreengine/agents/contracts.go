// Package agents defines the agent invocation boundary.
//
// An agent is a specialized responder backed by an opaque remote call
// (typically LLM-backed). The core treats the call as latency plus payload:
// it never inspects prompts or model details, only the structured
// ExecutionResult that comes back.
package agents

import (
	"context"
	"time"
)

// Logger is the structured logging contract used across the coreengine.
// Implementations bind static fields and emit key/value pairs.
type Logger interface {
	Info(msg string, fields ...any)
	Debug(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Bind(fields ...any) Logger
}

// ErrorKind classifies agent invocation failures.
type ErrorKind string

const (
	// ErrorKindNone means the invocation succeeded.
	ErrorKindNone ErrorKind = ""
	// ErrorKindTimeout means the invocation exceeded its deadline.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindRemote means the remote call itself failed.
	ErrorKindRemote ErrorKind = "remote_error"
	// ErrorKindMalformed means the agent returned an unusable payload.
	ErrorKindMalformed ErrorKind = "malformed_output"
)

// TurnContext carries the per-turn inputs an agent needs.
// Outputs holds results from already-completed steps, keyed by agent name,
// so downstream agents can build on upstream analysis.
type TurnContext struct {
	RequestID      string                      `json:"request_id"`
	ConversationID string                      `json:"conversation_id"`
	UserID         string                      `json:"user_id"`
	Message        string                      `json:"message"`
	RiskSummary    map[string]float64          `json:"risk_summary,omitempty"`
	Outputs        map[string]*ExecutionResult `json:"outputs,omitempty"`
}

// ExecutionResult is the outcome of a single agent invocation attempt.
// Produced once, appended to the run's result log, never edited.
type ExecutionResult struct {
	AgentName       string    `json:"agent_name"`
	Success         bool      `json:"success"`
	ExecutionTimeMs int       `json:"execution_time_ms"`
	Confidence      float64   `json:"confidence"` // [0,1]
	Reasoning       string    `json:"reasoning,omitempty"`
	KeyInsights     []string  `json:"key_insights,omitempty"`
	ErrorKind       ErrorKind `json:"error_kind,omitempty"`

	// ReportedRisk is an agent's own risk estimate on the 0-10 scale, set
	// when deeper analysis surfaces risk the pre-check missed.
	ReportedRisk *float64 `json:"reported_risk,omitempty"`
	// ExtractedText is the user-derived text the agent based that estimate
	// on; the engine re-scans it before escalating.
	ExtractedText string `json:"extracted_text,omitempty"`
}

// Failure builds the result recorded for a failed invocation attempt.
func Failure(agentName string, kind ErrorKind, elapsed time.Duration) *ExecutionResult {
	return &ExecutionResult{
		AgentName:       agentName,
		Success:         false,
		ExecutionTimeMs: int(elapsed.Milliseconds()),
		Confidence:      0,
		ErrorKind:       kind,
	}
}

// Client invokes agents. Deadlines and cancellation propagate through ctx;
// implementations must not block past ctx expiry. The core performs no
// retries; those belong to the client, if anywhere.
type Client interface {
	Invoke(ctx context.Context, agentName string, tc TurnContext) (*ExecutionResult, error)
}
