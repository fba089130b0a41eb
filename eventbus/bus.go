package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/havenline/supportcore/coreengine/agents"
)

// subscription pairs a handler with a removal token so unsubscribe can find
// it again.
type subscription struct {
	id      uint64
	handler HandlerFunc
}

// InMemoryBus is an in-memory implementation of Bus.
//
// Thread-safe message bus for single-process deployments. Events fan out to
// all subscribers concurrently; subscriber errors are logged but never stop
// the other subscribers.
type InMemoryBus struct {
	handlers     map[string]HandlerFunc
	subscribers  map[string][]subscription
	middleware   []Middleware
	queryTimeout time.Duration
	nextSubID    uint64
	log          agents.Logger
	mu           sync.RWMutex
}

// NewInMemoryBus creates a new InMemoryBus.
func NewInMemoryBus(queryTimeout time.Duration, log agents.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers:     make(map[string]HandlerFunc),
		subscribers:  make(map[string][]subscription),
		middleware:   make([]Middleware, 0),
		queryTimeout: queryTimeout,
		log:          log,
	}
}

// =============================================================================
// MESSAGING
// =============================================================================

// Publish publishes an event to all subscribers.
// Events are processed concurrently by all subscribers.
func (b *InMemoryBus) Publish(ctx context.Context, event Message) error {
	eventType := GetMessageType(event)

	processed, err := b.runMiddlewareBefore(ctx, event)
	if err != nil {
		return err
	}
	if processed == nil {
		b.log.Debug("bus_event_aborted", "event_type", eventType)
		return nil
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers[eventType]))
	copy(subs, b.subscribers[eventType])
	b.mu.RUnlock()

	if len(subs) == 0 {
		_, _ = b.runMiddlewareAfter(ctx, event, nil, nil)
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(subs))
	for i, sub := range subs {
		wg.Add(1)
		go func(idx int, h HandlerFunc) {
			defer wg.Done()
			if _, err := h(ctx, processed); err != nil {
				errs[idx] = err
				b.log.Warn("bus_subscriber_failed", "event_type", eventType, "subscriber", idx, "error", err)
			}
		}(i, sub.handler)
	}
	wg.Wait()

	var firstErr error
	for _, e := range errs {
		if e != nil {
			firstErr = e
			break
		}
	}
	_, _ = b.runMiddlewareAfter(ctx, event, nil, firstErr)
	return nil
}

// Send sends a command to its handler.
// Commands are fire-and-forget; the handler error is returned for logging
// convenience but missing handlers are not an error.
func (b *InMemoryBus) Send(ctx context.Context, command Message) error {
	messageType := GetMessageType(command)

	processed, err := b.runMiddlewareBefore(ctx, command)
	if err != nil {
		return err
	}
	if processed == nil {
		b.log.Debug("bus_command_aborted", "message_type", messageType)
		return nil
	}

	b.mu.RLock()
	handler, exists := b.handlers[messageType]
	b.mu.RUnlock()

	if !exists {
		b.log.Debug("bus_command_unhandled", "message_type", messageType)
		return nil
	}

	_, handlerErr := handler(ctx, processed)
	if handlerErr != nil {
		b.log.Warn("bus_command_failed", "message_type", messageType, "error", handlerErr)
	}
	_, _ = b.runMiddlewareAfter(ctx, command, nil, handlerErr)
	return handlerErr
}

// QuerySync sends a query and waits for the response.
// Queries have a timeout and require a registered handler.
func (b *InMemoryBus) QuerySync(ctx context.Context, query Query) (any, error) {
	messageType := GetMessageType(query)

	processed, err := b.runMiddlewareBefore(ctx, query)
	if err != nil {
		return nil, err
	}
	if processed == nil {
		return nil, &NoHandlerError{MessageType: messageType}
	}

	b.mu.RLock()
	handler, exists := b.handlers[messageType]
	b.mu.RUnlock()

	if !exists {
		return nil, &NoHandlerError{MessageType: messageType}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()

	type result struct {
		value any
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		v, e := handler(timeoutCtx, processed)
		resultCh <- result{value: v, err: e}
	}()

	select {
	case <-timeoutCtx.Done():
		err := &QueryTimeoutError{MessageType: messageType, Timeout: b.queryTimeout.Seconds()}
		_, _ = b.runMiddlewareAfter(ctx, query, nil, err)
		return nil, err
	case res := <-resultCh:
		finalResult, mwErr := b.runMiddlewareAfter(ctx, query, res.value, res.err)
		if mwErr != nil {
			return finalResult, mwErr
		}
		return finalResult, res.err
	}
}

// =============================================================================
// REGISTRATION
// =============================================================================

// Subscribe subscribes to an event type.
// Returns an unsubscribe function for cleanup.
func (b *InMemoryBus) Subscribe(eventType string, handler HandlerFunc) func() {
	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, sub := range subs {
			if sub.id == id {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// RegisterHandler registers a handler for a message type.
// Only one handler per message type is allowed.
func (b *InMemoryBus) RegisterHandler(messageType string, handler HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[messageType]; exists {
		return &HandlerAlreadyRegisteredError{MessageType: messageType}
	}
	b.handlers[messageType] = handler
	return nil
}

// AddMiddleware adds middleware to the bus.
// Middleware executes in registration order.
func (b *InMemoryBus) AddMiddleware(middleware Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, middleware)
}

// =============================================================================
// INTROSPECTION
// =============================================================================

// HasHandler checks if a handler is registered for a message type.
func (b *InMemoryBus) HasHandler(messageType string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, exists := b.handlers[messageType]
	return exists
}

// SubscriberCount returns the number of subscribers for an event type.
func (b *InMemoryBus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Clear removes all handlers, subscribers, and middleware.
// Useful for testing.
func (b *InMemoryBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string]HandlerFunc)
	b.subscribers = make(map[string][]subscription)
	b.middleware = make([]Middleware, 0)
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

func (b *InMemoryBus) runMiddlewareBefore(ctx context.Context, message Message) (Message, error) {
	b.mu.RLock()
	mws := make([]Middleware, len(b.middleware))
	copy(mws, b.middleware)
	b.mu.RUnlock()

	current := message
	for _, mw := range mws {
		result, err := mw.Before(ctx, current)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, nil
		}
		current = result
	}
	return current, nil
}

// runMiddlewareAfter runs the after chain in reverse order.
func (b *InMemoryBus) runMiddlewareAfter(ctx context.Context, message Message, result any, err error) (any, error) {
	b.mu.RLock()
	mws := make([]Middleware, len(b.middleware))
	copy(mws, b.middleware)
	b.mu.RUnlock()

	currentResult := result
	for i := len(mws) - 1; i >= 0; i-- {
		afterResult, afterErr := mws[i].After(ctx, message, currentResult, err)
		if afterErr != nil {
			err = afterErr
		}
		if afterResult != nil {
			currentResult = afterResult
		}
	}
	return currentResult, err
}

var _ Bus = (*InMemoryBus)(nil)
