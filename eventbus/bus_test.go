package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenline/supportcore/coreengine/testutil"
)

func newTestBus() *InMemoryBus {
	return NewInMemoryBus(time.Second, testutil.NewMockLogger())
}

func TestPublish_FanOut(t *testing.T) {
	bus := newTestBus()

	var calls int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("PipelineStarted", func(ctx context.Context, msg Message) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, nil
		})
	}

	err := bus.Publish(context.Background(), &PipelineStarted{RunID: "r1", Strategy: "Standard"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPublish_SubscriberErrorDoesNotStopOthers(t *testing.T) {
	bus := newTestBus()

	var succeeded int32
	bus.Subscribe("SLAViolated", func(ctx context.Context, msg Message) (any, error) {
		return nil, errors.New("subscriber boom")
	})
	bus.Subscribe("SLAViolated", func(ctx context.Context, msg Message) (any, error) {
		atomic.AddInt32(&succeeded, 1)
		return nil, nil
	})

	err := bus.Publish(context.Background(), &SLAViolated{RunID: "r1", TargetMs: 2000, ActualMs: 2500})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&succeeded))
}

func TestPublish_NoSubscribersIsNoop(t *testing.T) {
	bus := newTestBus()
	require.NoError(t, bus.Publish(context.Background(), &OutcomeReady{RunID: "r1"}))
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	bus := newTestBus()

	var calls int32
	unsubscribe := bus.Subscribe("RiskAssessed", func(ctx context.Context, msg Message) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	})
	bus.Subscribe("RiskAssessed", func(ctx context.Context, msg Message) (any, error) {
		return nil, nil
	})

	require.Equal(t, 2, bus.SubscriberCount("RiskAssessed"))
	unsubscribe()
	require.Equal(t, 1, bus.SubscriberCount("RiskAssessed"))

	require.NoError(t, bus.Publish(context.Background(), &RiskAssessed{RequestID: "req-1"}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestRegisterHandler_Duplicate(t *testing.T) {
	bus := newTestBus()

	handler := func(ctx context.Context, msg Message) (any, error) { return nil, nil }
	require.NoError(t, bus.RegisterHandler("CancelRun", handler))

	err := bus.RegisterHandler("CancelRun", handler)
	var dupErr *HandlerAlreadyRegisteredError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "CancelRun", dupErr.MessageType)
	assert.True(t, bus.HasHandler("CancelRun"))
}

func TestSend_Command(t *testing.T) {
	bus := newTestBus()

	var got *CancelRun
	require.NoError(t, bus.RegisterHandler("CancelRun", func(ctx context.Context, msg Message) (any, error) {
		got = msg.(*CancelRun)
		return nil, nil
	}))

	require.NoError(t, bus.Send(context.Background(), &CancelRun{RunID: "r1", Reason: "crisis_preemption"}))
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.RunID)
}

func TestSend_MissingHandlerIsNotAnError(t *testing.T) {
	bus := newTestBus()
	require.NoError(t, bus.Send(context.Background(), &CancelRun{RunID: "r1"}))
}

func TestQuerySync(t *testing.T) {
	t.Run("returns_handler_response", func(t *testing.T) {
		bus := newTestBus()
		require.NoError(t, bus.RegisterHandler("GetActiveRuns", func(ctx context.Context, msg Message) (any, error) {
			return []string{"run-a", "run-b"}, nil
		}))

		res, err := bus.QuerySync(context.Background(), &GetActiveRuns{})
		require.NoError(t, err)
		assert.Equal(t, []string{"run-a", "run-b"}, res)
	})

	t.Run("no_handler", func(t *testing.T) {
		bus := newTestBus()
		_, err := bus.QuerySync(context.Background(), &GetActiveRuns{})
		var nhErr *NoHandlerError
		require.ErrorAs(t, err, &nhErr)
	})

	t.Run("timeout", func(t *testing.T) {
		bus := NewInMemoryBus(20*time.Millisecond, testutil.NewMockLogger())
		require.NoError(t, bus.RegisterHandler("GetActiveRuns", func(ctx context.Context, msg Message) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}))

		_, err := bus.QuerySync(context.Background(), &GetActiveRuns{})
		var toErr *QueryTimeoutError
		require.ErrorAs(t, err, &toErr)
		assert.Equal(t, "GetActiveRuns", toErr.MessageType)
	})
}

func TestMiddleware_AbortSkipsSubscribers(t *testing.T) {
	bus := newTestBus()

	var calls int32
	bus.Subscribe("PipelineEscalated", func(ctx context.Context, msg Message) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	})
	bus.AddMiddleware(&abortMiddleware{})

	require.NoError(t, bus.Publish(context.Background(), &PipelineEscalated{RunID: "r1"}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

type abortMiddleware struct{}

func (m *abortMiddleware) Before(ctx context.Context, msg Message) (Message, error) {
	return nil, nil
}

func (m *abortMiddleware) After(ctx context.Context, msg Message, result any, err error) (any, error) {
	return result, nil
}

func TestCaptureMiddleware(t *testing.T) {
	bus := newTestBus()
	capture := NewCaptureMiddleware()
	bus.AddMiddleware(capture)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, &PipelineStarted{RunID: "r1", Strategy: "Crisis priority"}))
	require.NoError(t, bus.Publish(ctx, &PipelineEscalated{RunID: "r1", Trigger: "agent_reported"}))
	require.NoError(t, bus.Publish(ctx, &OutcomeReady{RunID: "r1", Escalated: true}))

	require.Len(t, capture.Captured(), 3)

	escalations := capture.CapturedOfType("PipelineEscalated")
	require.Len(t, escalations, 1)
	assert.Equal(t, "agent_reported", escalations[0].(*PipelineEscalated).Trigger)
}

func TestGetMessageType(t *testing.T) {
	assert.Equal(t, "StepStatusChanged", GetMessageType(&StepStatusChanged{}))
	assert.Equal(t, "SLAViolated", GetMessageType(&SLAViolated{}))
	assert.Equal(t, "GetActiveRuns", GetMessageType(&GetActiveRuns{}))
}

func TestClear(t *testing.T) {
	bus := newTestBus()
	bus.Subscribe("OutcomeReady", func(ctx context.Context, msg Message) (any, error) { return nil, nil })
	require.NoError(t, bus.RegisterHandler("CancelRun", func(ctx context.Context, msg Message) (any, error) { return nil, nil }))

	bus.Clear()
	assert.Equal(t, 0, bus.SubscriberCount("OutcomeReady"))
	assert.False(t, bus.HasHandler("CancelRun"))
}
