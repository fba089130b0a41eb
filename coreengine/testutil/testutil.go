// Package testutil provides shared test utilities and mocks.
//
// All mocks in this package are designed for testing the coreengine
// components in isolation without requiring external dependencies.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/havenline/supportcore/coreengine/agents"
)

// =============================================================================
// MOCK AGENT CLIENT
// =============================================================================

// AgentCall records a single agent invocation for assertion.
type AgentCall struct {
	AgentName string
	Turn      agents.TurnContext
}

// MockAgentClient implements agents.Client for testing.
// Configure per-agent results, errors, delays, or fully custom behavior.
type MockAgentClient struct {
	// Results maps agent names to the result Invoke returns.
	Results map[string]*agents.ExecutionResult

	// Errors maps agent names to a transport-level error.
	Errors map[string]error

	// Delays simulates agent latency. The delay honors ctx cancellation.
	Delays map[string]time.Duration

	// Blocking agents never return on their own; Invoke waits for ctx
	// cancellation. Used to exercise timeout and escalation paths.
	Blocking map[string]bool

	// InvokeFunc overrides all of the above when set.
	InvokeFunc func(ctx context.Context, agentName string, tc agents.TurnContext) (*agents.ExecutionResult, error)

	// Calls records all invocations for assertion.
	Calls []AgentCall

	mu sync.Mutex
}

// NewMockAgentClient creates a MockAgentClient with empty maps.
func NewMockAgentClient() *MockAgentClient {
	return &MockAgentClient{
		Results:  make(map[string]*agents.ExecutionResult),
		Errors:   make(map[string]error),
		Delays:   make(map[string]time.Duration),
		Blocking: make(map[string]bool),
	}
}

// Invoke implements agents.Client.
func (m *MockAgentClient) Invoke(ctx context.Context, agentName string, tc agents.TurnContext) (*agents.ExecutionResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, AgentCall{AgentName: agentName, Turn: tc})
	custom := m.InvokeFunc
	blocking := m.Blocking[agentName]
	delay := m.Delays[agentName]
	err := m.Errors[agentName]
	res := m.Results[agentName]
	m.mu.Unlock()

	if custom != nil {
		return custom(ctx, agentName, tc)
	}

	if blocking {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	if res != nil {
		out := *res
		out.AgentName = agentName
		insights := make([]string, len(res.KeyInsights))
		copy(insights, res.KeyInsights)
		out.KeyInsights = insights
		return &out, nil
	}

	return &agents.ExecutionResult{
		AgentName:       agentName,
		Success:         true,
		ExecutionTimeMs: int(delay / time.Millisecond),
		Confidence:      0.8,
		Reasoning:       "mock response",
	}, nil
}

// WithResult scripts the result for one agent.
func (m *MockAgentClient) WithResult(agentName string, res *agents.ExecutionResult) *MockAgentClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Results[agentName] = res
	return m
}

// WithError scripts a transport error for one agent.
func (m *MockAgentClient) WithError(agentName string, err error) *MockAgentClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[agentName] = err
	return m
}

// WithDelay adds latency simulation for one agent.
func (m *MockAgentClient) WithDelay(agentName string, d time.Duration) *MockAgentClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Delays[agentName] = d
	return m
}

// WithBlocking marks an agent as never returning until cancellation.
func (m *MockAgentClient) WithBlocking(agentName string) *MockAgentClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Blocking[agentName] = true
	return m
}

// CallCount returns the number of invocations (thread-safe).
func (m *MockAgentClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// CallsFor returns the invocations of one agent.
func (m *MockAgentClient) CallsFor(agentName string) []AgentCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AgentCall
	for _, c := range m.Calls {
		if c.AgentName == agentName {
			out = append(out, c)
		}
	}
	return out
}

var _ agents.Client = (*MockAgentClient)(nil)

// =============================================================================
// MOCK LOGGER
// =============================================================================

// MockLogger implements agents.Logger for testing.
type MockLogger struct {
	// Logs captures all log entries.
	Logs []LogEntry

	mu sync.Mutex
}

// LogEntry represents a captured log entry.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// NewMockLogger creates a MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{
		Logs: make([]LogEntry, 0),
	}
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.log("debug", msg, keysAndValues...)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.log("info", msg, keysAndValues...)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.log("warn", msg, keysAndValues...)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.log("error", msg, keysAndValues...)
}

func (m *MockLogger) Bind(fields ...any) agents.Logger {
	return m
}

func (m *MockLogger) log(level, msg string, keysAndValues ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields := make(map[string]any)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}

	m.Logs = append(m.Logs, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  fields,
	})
}

// GetLogs returns captured logs (thread-safe).
func (m *MockLogger) GetLogs() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]LogEntry, len(m.Logs))
	copy(copied, m.Logs)
	return copied
}

// HasLog checks if a log message exists at the given level.
func (m *MockLogger) HasLog(level, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.Logs {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}

// Reset clears captured logs.
func (m *MockLogger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = nil
}

var _ agents.Logger = (*MockLogger)(nil)
