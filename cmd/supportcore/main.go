// Supportcore turn runner
//
// Runs a single conversation turn through the full pipeline: risk scan,
// planning, agent execution, synthesis, SLA check. Reads the request as
// JSON on stdin and writes the outcome as JSON on stdout.
//
// Usage:
//
//	echo '{"request_id":"r1","conversation_id":"c1","user_id":"u1","message":"today was rough"}' | go run ./cmd/supportcore
//	go run ./cmd/supportcore -config config.yaml -log-level debug
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/havenline/supportcore/coreengine/agents"
	"github.com/havenline/supportcore/coreengine/clock"
	"github.com/havenline/supportcore/coreengine/config"
	"github.com/havenline/supportcore/coreengine/engine"
	"github.com/havenline/supportcore/coreengine/observability"
	"github.com/havenline/supportcore/coreengine/plan"
	"github.com/havenline/supportcore/coreengine/sched"
	"github.com/havenline/supportcore/eventbus"
)

// simClient stands in for the remote agent fleet. Each agent responds
// with a canned but plausible result so the pipeline can be exercised
// end to end without live model backends.
type simClient struct {
	latency time.Duration
}

func (c *simClient) Invoke(ctx context.Context, agentName string, tc agents.TurnContext) (*agents.ExecutionResult, error) {
	if c.latency > 0 {
		select {
		case <-time.After(c.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	res := &agents.ExecutionResult{
		AgentName:  agentName,
		Success:    true,
		Confidence: 0.8,
	}
	switch agentName {
	case agents.AgentCrisis:
		res.Confidence = 0.95
		res.Reasoning = "You are not alone in this. Staying connected right now matters more than anything else."
		res.KeyInsights = []string{"immediate safety planning engaged"}
	case agents.AgentEmotion:
		res.Reasoning = "The message carries a steady emotional tone with no acute distress markers."
		res.KeyInsights = []string{"tone: steady", "no acute distress markers"}
	case agents.AgentMemory:
		res.Confidence = 0.7
		res.Reasoning = "No prior context contradicts the current message."
	case agents.AgentProgress:
		res.Reasoning = "Recent check-ins show consistent engagement."
		res.KeyInsights = []string{"engagement is consistent week over week"}
	case agents.AgentRecommend:
		res.Reasoning = "A short reflective exercise fits the current trajectory."
		res.KeyInsights = []string{"suggested: brief reflective exercise"}
	case agents.AgentSynthesis:
		res.Confidence = 0.85
		res.Reasoning = fmt.Sprintf("Thanks for sharing this. Drawing on %d perspectives, here is what stands out.", len(tc.Outputs))
	}
	return res, nil
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	logLevel := flag.String("log-level", "", "log level override: debug, info, warn, error")
	otlpEndpoint := flag.String("otlp", "", "OTLP collector endpoint for tracing (disabled when empty)")
	simLatency := flag.Duration("sim-latency", 50*time.Millisecond, "simulated per-agent latency")
	flag.Parse()

	cfg := config.DefaultCoreConfig()
	if *configPath != "" {
		loaded, err := config.LoadCoreConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger, flush, err := observability.NewZapLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *otlpEndpoint != "" {
		shutdown, err := observability.InitTracer("supportcore", *otlpEndpoint)
		if err != nil {
			logger.Error("tracer_init_failed", "error", err.Error())
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(flushCtx)
		}()
	}

	req, err := readRequest(os.Stdin)
	if err != nil {
		logger.Error("request_parse_failed", "error", err.Error())
		os.Exit(1)
	}

	clk := clock.NewSystem()
	bus := eventbus.NewInMemoryBus(2*time.Second, logger)
	bus.AddMiddleware(eventbus.NewLoggingMiddleware(logger))
	slots := sched.NewSlotManager(cfg, clk, logger)

	eng := engine.New(cfg, &simClient{latency: *simLatency}, clk, logger, bus, slots)
	if err := eng.RegisterBusHandlers(); err != nil {
		logger.Error("bus_handler_registration_failed", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("turn_starting", "request_id", req.RequestID, "conversation_id", req.ConversationID)
	outcome, err := eng.Run(ctx, req)
	if err != nil {
		logger.Error("turn_failed", "error", err.Error())
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcome); err != nil {
		logger.Error("outcome_encode_failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("turn_done", "strategy", outcome.Strategy, "total_time_ms", outcome.TotalTimeMs)
}

func readRequest(r io.Reader) (plan.Request, error) {
	var req plan.Request
	data, err := io.ReadAll(r)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, err
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.New().String()
	}
	if req.Urgency == "" {
		req.Urgency = plan.UrgencyNormal
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}
	return req, nil
}
