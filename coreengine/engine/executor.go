package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/havenline/supportcore/coreengine/agents"
	"github.com/havenline/supportcore/coreengine/observability"
	"github.com/havenline/supportcore/coreengine/plan"
	"github.com/havenline/supportcore/coreengine/risk"
	"github.com/havenline/supportcore/coreengine/sched"
	"github.com/havenline/supportcore/eventbus"
)

// runPhase is the pipeline-level state of one run.
type runPhase string

const (
	phaseExecuting    runPhase = "executing"
	phaseEscalating   runPhase = "escalating"
	phaseSynthesizing runPhase = "synthesizing"
)

// =============================================================================
// RESULT LOG
// =============================================================================

// resultLog is the append-only log of agent results. Only the coordinator
// goroutine appends: step goroutines hand their results over the done
// channel, so a straggler finishing after its step was forced terminal can
// never land in the log. Once closed, any further append is discarded.
type resultLog struct {
	mu      sync.Mutex
	closed  bool
	results []*agents.ExecutionResult
}

// appendAll records the results unless the log is closed. Returns whether
// they were accepted.
func (l *resultLog) appendAll(results []*agents.ExecutionResult) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.results = append(l.results, results...)
	return true
}

func (l *resultLog) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func (l *resultLog) snapshot() []*agents.ExecutionResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*agents.ExecutionResult, len(l.results))
	copy(out, l.results)
	return out
}

// =============================================================================
// RUN EXECUTOR
// =============================================================================

// stepOutcome is what a step goroutine reports back to the coordinator.
type stepOutcome struct {
	stepID  string
	results []*agents.ExecutionResult
	failed  bool
}

// runExec coordinates one plan execution. All fields except the result log
// are owned by the coordinator goroutine.
type runExec struct {
	e     *Engine
	runID string
	plan  *plan.ExecutionPlan
	req   plan.Request
	score risk.Score
	pri   sched.Priority
	log   agents.Logger

	startedAt  time.Time
	phase      runPhase
	escalated  bool
	terminated bool
	trigger    string

	results     *resultLog
	outputs     map[string]*agents.ExecutionResult
	stepCancels map[string]context.CancelFunc
	downstream  map[string]int
	done        chan stepOutcome
	graceCh     <-chan time.Time
}

func newRunExec(e *Engine, runID string, p *plan.ExecutionPlan, req plan.Request, score risk.Score, pri sched.Priority, log agents.Logger) *runExec {
	return &runExec{
		e:           e,
		runID:       runID,
		plan:        p,
		req:         req,
		score:       score,
		pri:         pri,
		log:         log,
		phase:       phaseExecuting,
		results:     &resultLog{},
		outputs:     make(map[string]*agents.ExecutionResult),
		stepCancels: make(map[string]context.CancelFunc),
		downstream:  downstreamReserve(p),
		done:        make(chan stepOutcome, len(p.Steps)),
	}
}

// downstreamReserve computes, per step, the budget reserved for the steps
// that transitively depend on it. A group's deadline is the remaining
// pipeline budget minus this reserve.
func downstreamReserve(p *plan.ExecutionPlan) map[string]int {
	dependents := make(map[string][]string)
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}

	reserve := make(map[string]int, len(p.Steps))
	var walk func(id string, seen map[string]bool) int
	walk = func(id string, seen map[string]bool) int {
		total := 0
		for _, child := range dependents[id] {
			if seen[child] {
				continue
			}
			seen[child] = true
			total += p.StepByID(child).BudgetMs + walk(child, seen)
		}
		return total
	}
	for _, s := range p.Steps {
		reserve[s.ID] = walk(s.ID, make(map[string]bool))
	}
	return reserve
}

// run drives the coordination loop until every step is terminal. The loop
// owns all plan mutation; step goroutines only report outcomes.
func (r *runExec) run(ctx context.Context) {
	r.startedAt = r.e.clk.Now()
	budget := time.Duration(r.plan.TotalBudgetMs) * time.Millisecond
	hardStop := r.e.clk.After(budget + r.e.cfg.BudgetGrace())

	for {
		if r.phase == phaseExecuting {
			r.startReady(ctx)
		}
		if r.plan.AllTerminal() {
			break
		}

		select {
		case out := <-r.done:
			r.handleOutcome(ctx, out)

		case <-hardStop:
			r.terminated = true
			r.log.Warn("pipeline_budget_exhausted",
				"total_budget_ms", r.plan.TotalBudgetMs,
				"elapsed_ms", r.elapsedMs())
			r.forceTerminate(ctx)

		case <-r.graceCh:
			r.log.Warn("escalation_grace_elapsed", "trigger", r.trigger)
			r.forceTerminate(ctx)

		case <-ctx.Done():
			r.log.Warn("pipeline_canceled", "reason", ctx.Err())
			r.forceTerminate(ctx)
		}
	}

	r.phase = phaseSynthesizing
	r.results.close()
}

// startReady dispatches every pending step whose dependency set is terminal.
// Steps started together share the group deadline implied by the remaining
// budget and the downstream reserve.
func (r *runExec) startReady(ctx context.Context) {
	for _, step := range r.plan.Steps {
		if step.Status != plan.StepPending || !r.depsSatisfied(step) {
			continue
		}

		r.transition(ctx, step, plan.StepRunning)

		timeout := r.stepTimeout(step)
		stepCtx, cancel := context.WithCancel(ctx)
		r.stepCancels[step.ID] = cancel

		tc := r.turnContext()
		go r.executeStep(stepCtx, step, timeout, tc)
	}
}

func (r *runExec) depsSatisfied(step *plan.Step) bool {
	for _, dep := range step.DependsOn {
		if !r.plan.StepByID(dep).Status.IsTerminal() {
			return false
		}
	}
	return true
}

// stepTimeout bounds one step: its own budget, capped by what remains of
// the pipeline budget after reserving time for downstream steps.
func (r *runExec) stepTimeout(step *plan.Step) time.Duration {
	remaining := r.plan.TotalBudgetMs - r.elapsedMs() - r.downstream[step.ID]
	budget := step.BudgetMs
	if remaining < budget {
		budget = remaining
	}
	if budget < 1 {
		budget = 1
	}
	return time.Duration(budget) * time.Millisecond
}

func (r *runExec) turnContext() agents.TurnContext {
	outputs := make(map[string]*agents.ExecutionResult, len(r.outputs))
	for name, res := range r.outputs {
		outputs[name] = res
	}
	return agents.TurnContext{
		RequestID:      r.req.RequestID,
		ConversationID: r.req.ConversationID,
		UserID:         r.req.UserID,
		Message:        r.req.Message,
		RiskSummary:    r.score.Summary(),
		Outputs:        outputs,
	}
}

// executeStep runs in its own goroutine: it fans out over the step's
// agents and reports the outcome. Results travel back over the done
// channel; the coordinator decides whether they are recorded.
func (r *runExec) executeStep(ctx context.Context, step *plan.Step, timeout time.Duration, tc agents.TurnContext) {
	results := make([]*agents.ExecutionResult, len(step.AgentsInvolved))
	var wg sync.WaitGroup
	for i, name := range step.AgentsInvolved {
		wg.Add(1)
		go func(idx int, agentName string) {
			defer wg.Done()
			results[idx] = r.e.invokeAgent(ctx, agentName, tc, timeout, r.pri)
		}(i, name)
	}
	wg.Wait()

	failed := false
	for _, res := range results {
		if !res.Success {
			failed = true
		}
	}

	r.done <- stepOutcome{stepID: step.ID, results: results, failed: failed}
}

// invokeAgent wraps one remote call with a deadline raced on the injected
// clock. The call holds a system-wide call slot for its duration; waiting
// for a slot counts against the deadline. On timeout the call context is
// canceled; the agent is signaled to stop but not assumed to stop instantly.
func (e *Engine) invokeAgent(ctx context.Context, name string, tc agents.TurnContext, timeout time.Duration, pri sched.Priority) *agents.ExecutionResult {
	ctx, span := tracer.Start(ctx, "agent.invoke", trace.WithAttributes(
		attribute.String("supportcore.agent.name", name),
		attribute.Int64("supportcore.timeout_ms", timeout.Milliseconds()),
	))
	defer span.End()

	start := e.clk.Now()
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type invoked struct {
		res *agents.ExecutionResult
		err error
	}
	ch := make(chan invoked, 1)
	go func() {
		release, err := e.slots.AcquireCall(callCtx, pri)
		if err != nil {
			ch <- invoked{err: err}
			return
		}
		defer release()
		res, err := e.client.Invoke(callCtx, name, tc)
		ch <- invoked{res: res, err: err}
	}()

	select {
	case <-e.clk.After(timeout):
		cancel()
		span.SetStatus(codes.Error, "timeout")
		return agents.Failure(name, agents.ErrorKindTimeout, e.clk.Since(start))
	case <-ctx.Done():
		span.SetStatus(codes.Error, "canceled")
		return agents.Failure(name, agents.ErrorKindTimeout, e.clk.Since(start))
	case out := <-ch:
		elapsed := e.clk.Since(start)
		if out.err != nil {
			span.RecordError(out.err)
			// A canceled call lost its deadline race, not the remote.
			if errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded) {
				span.SetStatus(codes.Error, "timeout")
				return agents.Failure(name, agents.ErrorKindTimeout, elapsed)
			}
			span.SetStatus(codes.Error, out.err.Error())
			return agents.Failure(name, agents.ErrorKindRemote, elapsed)
		}
		if out.res == nil || math.IsNaN(out.res.Confidence) || out.res.Confidence < 0 || out.res.Confidence > 1 {
			span.SetStatus(codes.Error, "malformed output")
			return agents.Failure(name, agents.ErrorKindMalformed, elapsed)
		}
		out.res.AgentName = name
		if out.res.ExecutionTimeMs == 0 {
			out.res.ExecutionTimeMs = int(elapsed.Milliseconds())
		}
		span.SetStatus(codes.Ok, "success")
		return out.res
	}
}

// handleOutcome processes one finished step on the coordinator goroutine.
func (r *runExec) handleOutcome(ctx context.Context, out stepOutcome) {
	step := r.plan.StepByID(out.stepID)
	if cancel, ok := r.stepCancels[out.stepID]; ok {
		cancel()
		delete(r.stepCancels, out.stepID)
	}
	if step.Status != plan.StepRunning {
		// Already forced terminal; the straggler's results are discarded.
		return
	}
	r.results.appendAll(out.results)

	if out.failed {
		r.transition(ctx, step, plan.StepError)
	} else {
		r.transition(ctx, step, plan.StepCompleted)
	}

	for _, res := range out.results {
		status := "success"
		if !res.Success {
			status = "error"
			if res.ErrorKind == agents.ErrorKindTimeout {
				status = "timeout"
			}
		}
		observability.RecordAgentCall(res.AgentName, status, res.ExecutionTimeMs)
		var errStr *string
		if res.ErrorKind != agents.ErrorKindNone {
			s := string(res.ErrorKind)
			errStr = &s
		}
		_ = r.e.bus.Publish(ctx, &eventbus.AgentCallCompleted{
			RunID:           r.runID,
			RequestID:       r.req.RequestID,
			AgentName:       res.AgentName,
			Status:          status,
			ExecutionTimeMs: res.ExecutionTimeMs,
			Error:           errStr,
		})
		if res.Success {
			r.outputs[res.AgentName] = res
		}
	}

	if r.phase != phaseExecuting {
		return
	}

	// A critical step failing is itself a crisis condition.
	if out.failed && step.CriticalForCrisis {
		r.escalate(ctx, "critical_step_failed", r.score.Overall)
		return
	}

	// Agents may surface risk discovered only during deeper analysis.
	for _, res := range out.results {
		if !res.Success {
			continue
		}
		if res.ReportedRisk != nil && *res.ReportedRisk >= r.e.cfg.CrisisRiskThreshold {
			observability.RecordRiskScan("agent_reported", true)
			_ = r.e.bus.Publish(ctx, &eventbus.RiskAssessed{
				RequestID:      r.req.RequestID,
				ConversationID: r.req.ConversationID,
				Overall:        *res.ReportedRisk,
				Crisis:         true,
				Source:         "agent_reported",
			})
			r.escalate(ctx, "agent_reported", *res.ReportedRisk)
			return
		}
		if res.ExtractedText != "" {
			rescan := risk.Scan(res.ExtractedText)
			observability.RecordRiskScan("rescan", rescan.IsCrisis())
			_ = r.e.bus.Publish(ctx, &eventbus.RiskAssessed{
				RequestID:      r.req.RequestID,
				ConversationID: r.req.ConversationID,
				Overall:        rescan.Overall,
				Immediacy:      rescan.Immediacy,
				Crisis:         rescan.IsCrisis(),
				Source:         "rescan",
			})
			if rescan.IsCrisis() {
				r.escalate(ctx, "rescan", rescan.Overall)
				return
			}
		}
	}
}

// escalate moves the pipeline to the crisis branch: unstarted steps are
// skipped, and running steps keep their contexts for a short grace period
// before the grace timer force-cancels whatever is still in flight.
func (r *runExec) escalate(ctx context.Context, trigger string, riskOverall float64) {
	if r.escalated {
		return
	}
	r.escalated = true
	r.trigger = trigger
	r.phase = phaseEscalating

	skipped := 0
	for _, step := range r.plan.Steps {
		if step.Status == plan.StepPending {
			r.transition(ctx, step, plan.StepSkipped)
			skipped++
		}
	}

	canceled := 0
	for _, step := range r.plan.Steps {
		if step.Status == plan.StepRunning {
			canceled++
		}
	}
	if canceled > 0 {
		r.graceCh = r.e.clk.After(r.e.cfg.EscalationCancelGrace())
	}

	r.log.Warn("pipeline_escalating",
		"trigger", trigger,
		"risk_overall", riskOverall,
		"skipped_steps", skipped,
		"canceled_steps", canceled)
	observability.RecordEscalation(r.plan.Strategy, trigger)
	_ = r.e.bus.Publish(ctx, &eventbus.PipelineEscalated{
		RunID:         r.runID,
		RequestID:     r.req.RequestID,
		FromStrategy:  r.plan.Strategy,
		Trigger:       trigger,
		RiskOverall:   riskOverall,
		SkippedSteps:  skipped,
		CanceledSteps: canceled,
	})
}

// forceTerminate drives every non-terminal step to a terminal status:
// pending steps are skipped, running steps are canceled and marked error
// with a timeout failure recorded per agent. Outcomes already delivered on
// the done channel are absorbed first, so a step is never counted both
// with its real results and with synthetic ones.
func (r *runExec) forceTerminate(ctx context.Context) {
	for _, cancel := range r.stepCancels {
		cancel()
	}
	r.stepCancels = make(map[string]context.CancelFunc)

	drained := false
	for !drained {
		select {
		case out := <-r.done:
			r.handleOutcome(ctx, out)
		default:
			drained = true
		}
	}

	elapsed := r.e.clk.Since(r.startedAt)
	for _, step := range r.plan.Steps {
		switch step.Status {
		case plan.StepPending:
			r.transition(ctx, step, plan.StepSkipped)
		case plan.StepRunning:
			failures := make([]*agents.ExecutionResult, 0, len(step.AgentsInvolved))
			for _, name := range step.AgentsInvolved {
				failures = append(failures, agents.Failure(name, agents.ErrorKindTimeout, elapsed))
			}
			r.results.appendAll(failures)
			r.transition(ctx, step, plan.StepError)
		}
	}
}

// transition applies a step status change, logs it, and publishes it on
// the bus. Invalid transitions are a programming error; they are logged
// and dropped rather than crashing a live turn.
func (r *runExec) transition(ctx context.Context, step *plan.Step, to plan.StepStatus) {
	from := step.Status
	if err := step.Transition(to); err != nil {
		r.log.Error("step_transition_rejected", "step_id", step.ID, "error", err)
		return
	}
	r.log.Debug("step_status_changed",
		"step_id", step.ID,
		"from", string(from),
		"to", string(to),
		"elapsed_ms", r.elapsedMs())
	_ = r.e.bus.Publish(ctx, &eventbus.StepStatusChanged{
		RunID:     r.runID,
		RequestID: r.req.RequestID,
		StepID:    step.ID,
		From:      string(from),
		To:        string(to),
		ElapsedMs: r.elapsedMs(),
	})
}

func (r *runExec) elapsedMs() int {
	return int(r.e.clk.Since(r.startedAt).Milliseconds())
}
