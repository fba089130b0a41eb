// Package synth merges per-agent results into the terminal outcome of a
// turn: one response payload plus a confidence and agreement summary.
package synth

import (
	"fmt"
	"math"
	"strings"

	"github.com/havenline/supportcore/coreengine/agents"
	"github.com/havenline/supportcore/coreengine/config"
	"github.com/havenline/supportcore/coreengine/plan"
)

// =============================================================================
// OUTCOME TYPES
// =============================================================================

// ConfidenceSummary aggregates confidence across the agents that ran.
type ConfidenceSummary struct {
	// Overall is the influence-weighted mean of per-agent confidence.
	Overall float64 `json:"overall"`
	// AgentAgreement is 1 minus the normalized variance of confidences.
	AgentAgreement float64 `json:"agent_agreement"`
	// ResponseQuality combines completeness and overall confidence.
	ResponseQuality float64 `json:"response_quality"`
}

// OrchestrationOutcome is the terminal artifact of one turn. Built once,
// at the end, never mutated afterwards.
type OrchestrationOutcome struct {
	Strategy         string                    `json:"strategy"`
	ExecutionPattern string                    `json:"execution_pattern"`
	Results          []*agents.ExecutionResult `json:"results"`
	Confidence       ConfidenceSummary         `json:"confidence"`
	ResponseText     string                    `json:"response_text"`
	Reasoning        string                    `json:"reasoning"`
	Adaptations      []string                  `json:"adaptations,omitempty"`
	Escalated        bool                      `json:"escalated"`
	// PartialInsights carries whatever completed before an escalation,
	// as non-authoritative context only.
	PartialInsights []string `json:"partial_insights,omitempty"`
	TotalTimeMs     int      `json:"total_time_ms"`
	SLACompliant    bool     `json:"sla_compliant"`
}

// =============================================================================
// SAFETY FALLBACK
// =============================================================================

// CrisisHotline is the dialing code included in every escalation payload.
const CrisisHotline = "988"

// safetyFallbackText is the static escalation payload. It is deliberately
// free of any dependency on agent output so producing it cannot fail.
const safetyFallbackText = "I'm really concerned about what you're going through right now, " +
	"and I want to make sure you get immediate support. " +
	"Please call or text " + CrisisHotline + " (Suicide & Crisis Lifeline) right now - " +
	"they are available 24/7 and want to help. " +
	"If you are in immediate danger, call 911 or go to your nearest emergency room. " +
	"You can also text HOME to 741741 to reach the Crisis Text Line. " +
	"You don't have to face this alone."

// SafetyFallbackText returns the static crisis payload.
func SafetyFallbackText() string { return safetyFallbackText }

// =============================================================================
// SYNTHESIZER
// =============================================================================

// Synthesizer builds outcomes from executed plans.
type Synthesizer struct {
	cfg *config.CoreConfig
}

// New creates a Synthesizer.
func New(cfg *config.CoreConfig) *Synthesizer {
	return &Synthesizer{cfg: cfg}
}

// Synthesize merges the result log of an executed plan into the outcome.
// Every step of the plan must already be terminal.
//
// When the pipeline escalated, normal aggregation is bypassed: the outcome
// carries the static safety payload, and insights gathered before the
// escalation are attached as non-authoritative context.
func (s *Synthesizer) Synthesize(p *plan.ExecutionPlan, results []*agents.ExecutionResult, escalated bool, totalMs int) *OrchestrationOutcome {
	if escalated {
		return s.escalatedOutcome(p, results, totalMs)
	}

	successful := successfulResults(results)
	overall := s.weightedOverall(p, successful)
	agreement := agreementScore(successful)
	completeness := p.CompletedFraction()
	quality := 0.6*completeness + 0.4*overall

	insights := s.collectInsights(successful)

	return &OrchestrationOutcome{
		Strategy:         p.Strategy,
		ExecutionPattern: string(p.Pattern),
		Results:          results,
		Confidence: ConfidenceSummary{
			Overall:         round3(overall),
			AgentAgreement:  round3(agreement),
			ResponseQuality: round3(quality),
		},
		ResponseText: responseText(successful, insights),
		Reasoning:    s.reasoning(p, results, successful),
		Adaptations:  insights,
		TotalTimeMs:  totalMs,
	}
}

func (s *Synthesizer) escalatedOutcome(p *plan.ExecutionPlan, results []*agents.ExecutionResult, totalMs int) *OrchestrationOutcome {
	partial := s.collectInsights(successfulResults(results))
	return &OrchestrationOutcome{
		Strategy:         p.Strategy,
		ExecutionPattern: string(p.Pattern),
		Results:          results,
		// The payload is static and vetted; its confidence does not
		// depend on how much of the plan survived.
		Confidence: ConfidenceSummary{
			Overall:         1.0,
			AgentAgreement:  1.0,
			ResponseQuality: 1.0,
		},
		ResponseText:    safetyFallbackText,
		Reasoning:       "crisis escalation: safety guidance substituted for synthesized response",
		Escalated:       true,
		PartialInsights: partial,
		TotalTimeMs:     totalMs,
	}
}

// weightedOverall computes the influence-weighted mean confidence of the
// successful agents. Agents missing from the influence map weigh 1.
func (s *Synthesizer) weightedOverall(p *plan.ExecutionPlan, successful []*agents.ExecutionResult) float64 {
	if len(successful) == 0 {
		return 0
	}
	var weighted, totalWeight float64
	for _, res := range successful {
		weight, ok := p.AgentInfluence[res.AgentName]
		if !ok {
			weight = 1.0
		}
		weighted += weight * res.Confidence
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}

// agreementScore is 1 minus the normalized variance of confidences.
// Confidence lives in [0,1], so variance is at most 0.25.
func agreementScore(successful []*agents.ExecutionResult) float64 {
	if len(successful) < 2 {
		return 1.0
	}
	var sum float64
	for _, res := range successful {
		sum += res.Confidence
	}
	mean := sum / float64(len(successful))

	var variance float64
	for _, res := range successful {
		d := res.Confidence - mean
		variance += d * d
	}
	variance /= float64(len(successful))

	normalized := variance / 0.25
	if normalized > 1 {
		normalized = 1
	}
	return 1 - normalized
}

// collectInsights concatenates successful agents' key insights, de-duplicated
// in first-seen order and capped.
func (s *Synthesizer) collectInsights(successful []*agents.ExecutionResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, res := range successful {
		for _, insight := range res.KeyInsights {
			trimmed := strings.TrimSpace(insight)
			if trimmed == "" || seen[strings.ToLower(trimmed)] {
				continue
			}
			seen[strings.ToLower(trimmed)] = true
			out = append(out, trimmed)
			if len(out) >= s.cfg.MaxKeyInsights {
				return out
			}
		}
	}
	return out
}

func (s *Synthesizer) reasoning(p *plan.ExecutionPlan, all, successful []*agents.ExecutionResult) string {
	var contributors []string
	for _, res := range successful {
		contributors = append(contributors, res.AgentName)
	}
	if len(contributors) == 0 {
		return fmt.Sprintf("strategy %q completed with no successful agent results", p.Strategy)
	}
	return fmt.Sprintf("strategy %q: synthesized from %d of %d agent results (%s)",
		p.Strategy, len(successful), len(all), strings.Join(contributors, ", "))
}

// responseText assembles the user-facing payload from the highest-confidence
// successful agent's reasoning, backed by the collected insights.
func responseText(successful []*agents.ExecutionResult, insights []string) string {
	if len(successful) == 0 {
		return "I wasn't able to fully process that just now, but I'm still here with you. " +
			"Could you tell me a bit more about what's on your mind?"
	}

	best := successful[0]
	for _, res := range successful[1:] {
		if res.Confidence > best.Confidence {
			best = res
		}
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(best.Reasoning))
	if len(insights) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(insights, " "))
	}
	return b.String()
}

func successfulResults(results []*agents.ExecutionResult) []*agents.ExecutionResult {
	var out []*agents.ExecutionResult
	for _, res := range results {
		if res != nil && res.Success {
			out = append(out, res)
		}
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
