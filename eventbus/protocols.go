// Package eventbus provides the in-process communication bus the pipeline
// publishes its lifecycle on.
//
// Three messaging patterns:
//   - Publish(event): fire-and-forget, fan-out to all subscribers
//   - Send(command): fire-and-forget, single handler
//   - QuerySync(query): request-response, single handler
package eventbus

import (
	"context"
)

// MessageCategory represents message routing categories.
type MessageCategory string

const (
	MessageCategoryEvent   MessageCategory = "event"
	MessageCategoryQuery   MessageCategory = "query"
	MessageCategoryCommand MessageCategory = "command"
)

// Message is the protocol for all bus messages.
type Message interface {
	// Category returns the message category: "event", "query", or "command".
	Category() string
}

// Query is the protocol for query messages that expect a response.
type Query interface {
	Message
	// IsQuery is a marker method to distinguish queries from other messages.
	IsQuery()
}

// TypedMessage lets a message carry its own routing type name.
type TypedMessage interface {
	Message
	MessageType() string
}

// HandlerFunc processes a message and optionally returns a response
// (for queries).
type HandlerFunc func(ctx context.Context, message Message) (any, error)

// Middleware intercepts messages before/after handling. Used for logging
// and telemetry.
type Middleware interface {
	// Before is called before a message is handled.
	// Returns the (possibly modified) message, or nil to abort processing.
	Before(ctx context.Context, message Message) (Message, error)

	// After is called after a message is handled.
	After(ctx context.Context, message Message, result any, err error) (any, error)
}

// Bus is the protocol for the communication bus. Components depend on this
// interface, never on a concrete bus.
type Bus interface {
	Publish(ctx context.Context, event Message) error
	Send(ctx context.Context, command Message) error
	QuerySync(ctx context.Context, query Query) (any, error)

	// Subscribe subscribes to an event type and returns an unsubscribe
	// function.
	Subscribe(eventType string, handler HandlerFunc) func()

	// RegisterHandler registers the single handler for a message type.
	RegisterHandler(messageType string, handler HandlerFunc) error

	AddMiddleware(middleware Middleware)

	HasHandler(messageType string) bool
	Clear()
}
