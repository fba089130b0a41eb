// Package engine walks execution plans: it runs steps under their grouping
// and deadline rules, collects agent results, reacts to crisis signals
// raised at any point, and hands the result log to the synthesizer.
package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/havenline/supportcore/coreengine/agents"
	"github.com/havenline/supportcore/coreengine/clock"
	"github.com/havenline/supportcore/coreengine/config"
	"github.com/havenline/supportcore/coreengine/observability"
	"github.com/havenline/supportcore/coreengine/plan"
	"github.com/havenline/supportcore/coreengine/risk"
	"github.com/havenline/supportcore/coreengine/sched"
	"github.com/havenline/supportcore/coreengine/sla"
	"github.com/havenline/supportcore/coreengine/synth"
	"github.com/havenline/supportcore/eventbus"
)

var tracer = otel.Tracer("supportcore/engine")

// Engine executes one turn end to end: scan, plan, run, synthesize, check.
// All collaborators are injected; the engine holds no global state.
type Engine struct {
	cfg    *config.CoreConfig
	client agents.Client
	clk    clock.Clock
	log    agents.Logger
	bus    eventbus.Bus
	slots  *sched.SlotManager
	synth  *synth.Synthesizer
	slaMon *sla.Monitor

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates an Engine. All arguments are required.
func New(cfg *config.CoreConfig, client agents.Client, clk clock.Clock, log agents.Logger, bus eventbus.Bus, slots *sched.SlotManager) *Engine {
	return &Engine{
		cfg:     cfg,
		client:  client,
		clk:     clk,
		log:     log.Bind("component", "engine"),
		bus:     bus,
		slots:   slots,
		synth:   synth.New(cfg),
		slaMon:  sla.NewMonitor(cfg, log, bus),
		cancels: make(map[string]context.CancelFunc),
	}
}

// RegisterBusHandlers wires the engine's command and query handlers onto
// the bus. Call once at startup.
func (e *Engine) RegisterBusHandlers() error {
	if err := e.bus.RegisterHandler("GetActiveRuns", func(ctx context.Context, msg eventbus.Message) (any, error) {
		query := msg.(*eventbus.GetActiveRuns)
		return e.slots.ActiveRuns(query.ConversationID), nil
	}); err != nil {
		return err
	}
	return e.bus.RegisterHandler("CancelRun", func(ctx context.Context, msg eventbus.Message) (any, error) {
		cmd := msg.(*eventbus.CancelRun)
		e.cancelRun(cmd.RunID, cmd.Reason)
		return nil, nil
	})
}

func (e *Engine) cancelRun(runID, reason string) {
	e.mu.Lock()
	cancel := e.cancels[runID]
	e.mu.Unlock()
	if cancel != nil {
		e.log.Info("run_cancel_requested", "run_id", runID, "reason", reason)
		cancel()
	}
}

// Run executes a single turn. The only hard failure is a PlanningError;
// every other condition degrades into a still-valid outcome.
func (e *Engine) Run(ctx context.Context, req plan.Request) (*synth.OrchestrationOutcome, error) {
	runID := uuid.New().String()
	log := e.log.Bind("run_id", runID, "request_id", req.RequestID)

	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("supportcore.run.id", runID),
		attribute.String("supportcore.request.id", req.RequestID),
	))
	defer span.End()

	score := risk.Scan(req.Message)
	observability.RecordRiskScan("preflight", score.IsCrisis())
	_ = e.bus.Publish(ctx, &eventbus.RiskAssessed{
		RequestID:      req.RequestID,
		ConversationID: req.ConversationID,
		Overall:        score.Overall,
		Immediacy:      score.Immediacy,
		Crisis:         score.IsCrisis(),
		Source:         "preflight",
	})

	p, err := plan.Build(req, score, req.Preferences, e.cfg)
	if err != nil {
		log.Error("planning_failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("supportcore.strategy", p.Strategy))
	log.Info("planning_done",
		"strategy", p.Strategy,
		"pattern", string(p.Pattern),
		"total_budget_ms", p.TotalBudgetMs,
		"steps", len(p.Steps))

	priority := runPriority(p, req)
	if priority == sched.PriorityCrisis {
		// A crisis turn pushes the conversation's routine work aside
		// before it even asks for a slot.
		if preempted := e.slots.PreemptConversation(req.ConversationID, "crisis_preemption"); preempted > 0 {
			for i := 0; i < preempted; i++ {
				observability.RecordPreemption()
			}
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.cancels[runID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, runID)
		e.mu.Unlock()
	}()

	deregister := e.slots.Register(runID, req.ConversationID, priority, cancel)
	defer deregister()

	_ = e.bus.Publish(ctx, &eventbus.PipelineStarted{
		RunID:          runID,
		RequestID:      req.RequestID,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Strategy:       p.Strategy,
		TotalBudgetMs:  p.TotalBudgetMs,
	})

	exec := newRunExec(e, runID, p, req, score, priority, log)
	exec.run(runCtx)

	totalMs := int(e.clk.Since(exec.startedAt).Milliseconds())
	outcome := e.synth.Synthesize(p, exec.results.snapshot(), exec.escalated, totalMs)

	report := e.slaMon.Check(ctx, runID, req.RequestID, p.Strategy, totalMs)
	outcome.SLACompliant = report.Compliant

	status := "success"
	switch {
	case exec.escalated:
		status = "escalated"
	case exec.terminated:
		status = "terminated"
	}
	observability.RecordPipelineExecution(p.Strategy, status, totalMs)
	span.SetAttributes(
		attribute.String("supportcore.status", status),
		attribute.Int("supportcore.duration_ms", totalMs),
	)
	span.SetStatus(codes.Ok, status)

	_ = e.bus.Publish(ctx, &eventbus.OutcomeReady{
		RunID:        runID,
		RequestID:    req.RequestID,
		Strategy:     p.Strategy,
		Escalated:    outcome.Escalated,
		QualityScore: outcome.Confidence.ResponseQuality,
		DurationMs:   totalMs,
	})
	log.Info("pipeline_done",
		"status", status,
		"duration_ms", totalMs,
		"sla_compliant", report.Compliant)

	return outcome, nil
}

// runPriority maps a plan and request onto a scheduling priority.
func runPriority(p *plan.ExecutionPlan, req plan.Request) sched.Priority {
	if p.Pattern == plan.PatternCrisisPriority {
		return sched.PriorityCrisis
	}
	if req.Urgency == plan.UrgencyElevated || p.Strategy == config.StrategyHighEmo {
		return sched.PriorityHigh
	}
	return sched.PriorityNormal
}
