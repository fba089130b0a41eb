package eventbus

import (
	"context"
	"sync"

	"github.com/havenline/supportcore/coreengine/agents"
)

// =============================================================================
// LOGGING MIDDLEWARE
// =============================================================================

// LoggingMiddleware logs all message traffic.
type LoggingMiddleware struct {
	log agents.Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware(log agents.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{log: log}
}

// Before logs message receipt.
func (m *LoggingMiddleware) Before(ctx context.Context, message Message) (Message, error) {
	m.log.Debug("bus_message_received",
		"message_type", GetMessageType(message),
		"category", message.Category())
	return message, nil
}

// After logs message completion.
func (m *LoggingMiddleware) After(ctx context.Context, message Message, result any, err error) (any, error) {
	msgType := GetMessageType(message)
	if err != nil {
		m.log.Warn("bus_message_failed", "message_type", msgType, "error", err)
	} else {
		m.log.Debug("bus_message_completed", "message_type", msgType)
	}
	return result, nil
}

// =============================================================================
// CAPTURE MIDDLEWARE
// =============================================================================

// CaptureMiddleware records every message that passes the bus.
// Test-facing: assertions inspect the captured sequence.
type CaptureMiddleware struct {
	mu       sync.Mutex
	captured []Message
}

// NewCaptureMiddleware creates a new CaptureMiddleware.
func NewCaptureMiddleware() *CaptureMiddleware {
	return &CaptureMiddleware{}
}

// Before records the message.
func (m *CaptureMiddleware) Before(ctx context.Context, message Message) (Message, error) {
	m.mu.Lock()
	m.captured = append(m.captured, message)
	m.mu.Unlock()
	return message, nil
}

// After passes the result through unchanged.
func (m *CaptureMiddleware) After(ctx context.Context, message Message, result any, err error) (any, error) {
	return result, nil
}

// Captured returns a snapshot of all messages seen so far.
func (m *CaptureMiddleware) Captured() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.captured))
	copy(out, m.captured)
	return out
}

// CapturedOfType returns the captured messages with the given routing type.
func (m *CaptureMiddleware) CapturedOfType(messageType string) []Message {
	var out []Message
	for _, msg := range m.Captured() {
		if GetMessageType(msg) == messageType {
			out = append(out, msg)
		}
	}
	return out
}
