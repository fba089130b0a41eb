// Package sched provides concurrency slots for agent calls and a run
// registry for preemption.
//
// Features:
//   - Bounded system-wide concurrent agent calls via weighted semaphores
//   - A reserved slot pool that only crisis turns may take
//   - Per-conversation run registry with cooperative preemption
package sched

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/havenline/supportcore/coreengine/agents"
	"github.com/havenline/supportcore/coreengine/clock"
	"github.com/havenline/supportcore/coreengine/config"
)

// =============================================================================
// Scheduling Priority
// =============================================================================

// Priority represents the scheduling priority of a run.
type Priority string

const (
	// PriorityCrisis is the highest priority. Crisis runs may take the
	// reserved slot pool and preempt non-crisis runs on their conversation.
	PriorityCrisis Priority = "crisis"
	// PriorityHigh is for elevated-urgency turns.
	PriorityHigh Priority = "high"
	// PriorityNormal is the default priority.
	PriorityNormal Priority = "normal"
)

// Weight returns the numeric weight for ordering.
func (p Priority) Weight() int {
	switch p {
	case PriorityCrisis:
		return 100
	case PriorityHigh:
		return 50
	default:
		return 10
	}
}

// =============================================================================
// Run Registry
// =============================================================================

// RunInfo is a read-only snapshot of an active run.
type RunInfo struct {
	RunID          string    `json:"run_id"`
	ConversationID string    `json:"conversation_id"`
	Priority       Priority  `json:"priority"`
	StartedAt      time.Time `json:"started_at"`
}

// activeRun tracks one registered run.
type activeRun struct {
	info   RunInfo
	cancel context.CancelFunc
}

// =============================================================================
// Slot Manager
// =============================================================================

// SlotManager bounds concurrent agent calls system-wide and tracks active
// runs. General call slots serve every priority; the reserved pool admits
// crisis calls even when the system is saturated, so a crisis turn's agents
// never wait behind routine traffic.
type SlotManager struct {
	general  *semaphore.Weighted
	reserved *semaphore.Weighted
	clk      clock.Clock
	log      agents.Logger

	mu     sync.Mutex
	active map[string]*activeRun
}

// NewSlotManager creates a SlotManager from config. Config must be valid:
// MaxConcurrentAgentCalls > ReservedCrisisSlots >= 1.
func NewSlotManager(cfg *config.CoreConfig, clk clock.Clock, log agents.Logger) *SlotManager {
	generalSlots := cfg.MaxConcurrentAgentCalls - cfg.ReservedCrisisSlots
	return &SlotManager{
		general:  semaphore.NewWeighted(int64(generalSlots)),
		reserved: semaphore.NewWeighted(int64(cfg.ReservedCrisisSlots)),
		clk:      clk,
		log:      log,
		active:   make(map[string]*activeRun),
	}
}

// Register adds the run to the active registry so it is visible to queries
// and reachable by preemption. The returned deregister function is safe to
// call more than once.
func (m *SlotManager) Register(runID, conversationID string, pri Priority, cancel context.CancelFunc) func() {
	m.mu.Lock()
	m.active[runID] = &activeRun{
		info: RunInfo{
			RunID:          runID,
			ConversationID: conversationID,
			Priority:       pri,
			StartedAt:      m.clk.Now(),
		},
		cancel: cancel,
	}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.active, runID)
			m.mu.Unlock()
		})
	}
}

// AcquireCall takes one agent-call slot, blocking until a slot frees or ctx
// is done. Non-crisis calls compete for the general pool only. Crisis calls
// try the general pool first and fall back to the reserved pool, so they
// make progress even when general slots are saturated.
func (m *SlotManager) AcquireCall(ctx context.Context, pri Priority) (func(), error) {
	if pri != PriorityCrisis {
		if err := m.general.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		return releaseOnce(m.general), nil
	}

	if m.general.TryAcquire(1) {
		return releaseOnce(m.general), nil
	}
	if err := m.reserved.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return releaseOnce(m.reserved), nil
}

func releaseOnce(sem *semaphore.Weighted) func() {
	var once sync.Once
	return func() {
		once.Do(func() { sem.Release(1) })
	}
}

// PreemptConversation cooperatively cancels every non-crisis run on the
// conversation and returns how many were signaled. Canceled runs stay
// registered until they unwind and deregister.
func (m *SlotManager) PreemptConversation(conversationID, reason string) int {
	m.mu.Lock()
	var victims []*activeRun
	for _, run := range m.active {
		if run.info.ConversationID == conversationID && run.info.Priority != PriorityCrisis {
			victims = append(victims, run)
		}
	}
	m.mu.Unlock()

	for _, run := range victims {
		m.log.Info("run_preempted",
			"run_id", run.info.RunID,
			"conversation_id", conversationID,
			"reason", reason)
		if run.cancel != nil {
			run.cancel()
		}
	}
	return len(victims)
}

// ActiveRuns returns snapshots of the registered runs.
// An empty conversationID returns all of them.
func (m *SlotManager) ActiveRuns(conversationID string) []RunInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []RunInfo
	for _, run := range m.active {
		if conversationID == "" || run.info.ConversationID == conversationID {
			out = append(out, run.info)
		}
	}
	return out
}

// ActiveCount returns the number of registered runs.
func (m *SlotManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
