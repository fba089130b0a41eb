// Package risk provides the fast, stateless text risk scanner.
//
// Scan is a pure function over the message text: no I/O, no state, and a
// latency budget well under 100ms, so it is safe to call both as the
// pre-check before planning and mid-pipeline on agent-extracted text.
package risk

import (
	"strings"
	"unicode"
)

// Thresholds on the 0-10 scale shared with the planner and engine.
const (
	// CriticalImmediacy is the immediacy floor set by any critical phrase
	// hit and the threshold above which plans go crisis-priority.
	CriticalImmediacy = 7.0
	// CrisisOverall is the overall-risk threshold for escalation of
	// agent-reported or re-scanned mid-pipeline risk.
	CrisisOverall = 7.0
	// HighBand is the lower edge of the high (but not critical) band.
	HighBand = 5.0
)

// Score is a multi-dimensional risk assessment of one piece of text.
// Computed fresh per scan and never mutated afterwards.
type Score struct {
	Overall   float64 `json:"overall_risk"`   // [0,10]
	Suicide   float64 `json:"suicide_risk"`   // [0,10]
	Violence  float64 `json:"violence_risk"`  // [0,10]
	SelfHarm  float64 `json:"self_harm_risk"` // [0,10]
	Psychosis float64 `json:"psychosis_risk"` // [0,10]
	Immediacy float64 `json:"immediacy"`      // [0,10]

	Confidence float64 `json:"confidence"` // [0,1]

	RiskFactors       []string `json:"risk_factors,omitempty"`
	ProtectiveFactors []string `json:"protective_factors,omitempty"`

	// CriticalCrisisDetected is true when a critical-layer phrase matched.
	CriticalCrisisDetected bool `json:"critical_crisis_detected"`
}

// IsCrisis reports whether this score should force the crisis path.
func (s Score) IsCrisis() bool {
	return s.CriticalCrisisDetected || s.Immediacy >= CriticalImmediacy || s.Overall >= CrisisOverall
}

// Summary flattens the score for inclusion in agent turn context.
func (s Score) Summary() map[string]float64 {
	return map[string]float64{
		"overall_risk": s.Overall,
		"immediacy":    s.Immediacy,
		"confidence":   s.Confidence,
	}
}

// ScanOption adjusts a single scan.
type ScanOption func(*scanConfig)

type scanConfig struct {
	extraCritical []phraseEntry
}

// WithCulturalContext overlays idioms for the given context code
// (e.g. "es"). Unknown codes are ignored.
func WithCulturalContext(code string) ScanOption {
	return func(c *scanConfig) {
		c.extraCritical = append(c.extraCritical, culturalOverlays[code]...)
	}
}

// Scan classifies raw input text into a Score.
//
// Layered matching: critical phrases set hard floors and mark the scan as a
// detected crisis; moderate phrases contribute partial scores; protective
// phrases lower confidence in an imminent reading but never lower the risk
// numbers. Means, plan, and timeframe indicators raise immediacy.
func Scan(text string, opts ...ScanOption) Score {
	var cfg scanConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	norm := normalize(text)
	var s Score
	dims := [4]float64{}

	critical := criticalPhrases
	if len(cfg.extraCritical) > 0 {
		critical = append(append([]phraseEntry{}, criticalPhrases...), cfg.extraCritical...)
	}

	for _, e := range critical {
		if strings.Contains(norm, e.phrase) {
			s.CriticalCrisisDetected = true
			if e.severity > dims[e.dim] {
				dims[e.dim] = e.severity
			}
			s.RiskFactors = appendUnique(s.RiskFactors, e.factor)
		}
	}

	for _, e := range moderatePhrases {
		if strings.Contains(norm, e.phrase) {
			// Partial contribution: moderate hits accumulate but a single
			// hit never reaches the critical band on its own.
			dims[e.dim] = clamp(dims[e.dim]+e.severity*0.8, 0, 6.9)
			s.RiskFactors = appendUnique(s.RiskFactors, e.factor)
		}
	}

	s.Suicide = clamp(dims[dimSuicide], 0, 10)
	s.Violence = clamp(dims[dimViolence], 0, 10)
	s.SelfHarm = clamp(dims[dimSelfHarm], 0, 10)
	s.Psychosis = clamp(dims[dimPsychosis], 0, 10)

	s.Overall = max4(s.Suicide, s.Violence, s.SelfHarm, s.Psychosis)
	if countPositive(dims[:]) >= 2 {
		s.Overall = clamp(s.Overall+0.5, 0, 10)
	}

	// Immediacy: critical hits set the floor; means/plan/timeframe raise it.
	if s.CriticalCrisisDetected {
		s.Immediacy = CriticalImmediacy
	}
	if s.Overall > 0 {
		if containsAny(norm, meansIndicators) {
			s.Immediacy = clamp(s.Immediacy+2, 0, 10)
			s.RiskFactors = appendUnique(s.RiskFactors, "access to means")
		}
		if containsAny(norm, planIndicators) && s.CriticalCrisisDetected {
			s.Immediacy = clamp(s.Immediacy+1, 0, 10)
			s.RiskFactors = appendUnique(s.RiskFactors, "formed plan")
		}
		if containsAny(norm, timeframeIndicators) {
			s.Immediacy = clamp(s.Immediacy+2, 0, 10)
			s.RiskFactors = appendUnique(s.RiskFactors, "stated timeframe")
		}
	}

	// Confidence: grows with signal strength, shrinks with protective
	// factors. Protective factors never touch the risk numbers: explicit
	// critical phrasing keeps its floor regardless of what else is present.
	s.Confidence = 0.5
	if s.CriticalCrisisDetected {
		s.Confidence = 0.85
	} else if s.Overall >= HighBand {
		s.Confidence = 0.7
	}
	for _, p := range protectivePhrases {
		if strings.Contains(norm, p.phrase) {
			s.ProtectiveFactors = appendUnique(s.ProtectiveFactors, p.factor)
		}
	}
	s.Confidence = clamp(s.Confidence-0.05*float64(len(s.ProtectiveFactors)), 0.3, 1)

	return s
}

// normalize lowercases and strips punctuation so phrase matching is
// insensitive to casing and sentence boundaries.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// containsAny matches each phrase against normalized text. Single-word
// entries match on word boundaries ("rope" must not match "Europe");
// multi-word entries match as substrings.
func containsAny(norm string, phrases []string) bool {
	padded := " " + norm + " "
	for _, p := range phrases {
		if strings.ContainsRune(p, ' ') {
			if strings.Contains(norm, p) {
				return true
			}
		} else if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func countPositive(vals []float64) int {
	n := 0
	for _, v := range vals {
		if v > 0 {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max4(a, b, c, d float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	if d > m {
		m = d
	}
	return m
}
