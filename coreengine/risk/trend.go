package risk

// Trend labels the direction of overall risk across a session.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendWorsening Trend = "worsening"
)

// ConcernLevel summarizes how much attention a trend deserves.
type ConcernLevel string

const (
	ConcernLow      ConcernLevel = "low"
	ConcernModerate ConcernLevel = "moderate"
	ConcernHigh     ConcernLevel = "high"
	ConcernCritical ConcernLevel = "critical"
)

// TrendAssessment is the result of ScanTrend.
type TrendAssessment struct {
	Trend           Trend        `json:"trend"`
	Slope           float64      `json:"slope"`
	ConcernLevel    ConcernLevel `json:"concern_level"`
	Recommendations []string     `json:"recommendations,omitempty"`
}

// trendSlopeBand is the slope magnitude below which a sequence is stable.
const trendSlopeBand = 0.5

// ScanTrend derives a trend label from the slope of Overall across an
// ordered sequence of scores (oldest first). Fewer than two scores is
// always stable.
func ScanTrend(scores []Score) TrendAssessment {
	if len(scores) < 2 {
		return TrendAssessment{
			Trend:        TrendStable,
			ConcernLevel: concernFor(latestOverall(scores), TrendStable),
		}
	}

	slope := overallSlope(scores)
	trend := TrendStable
	switch {
	case slope <= -trendSlopeBand:
		trend = TrendImproving
	case slope >= trendSlopeBand:
		trend = TrendWorsening
	}

	latest := scores[len(scores)-1].Overall
	level := concernFor(latest, trend)

	return TrendAssessment{
		Trend:           trend,
		Slope:           slope,
		ConcernLevel:    level,
		Recommendations: recommendationsFor(trend, level),
	}
}

// overallSlope is the least-squares slope of Overall against sequence index.
func overallSlope(scores []Score) float64 {
	n := float64(len(scores))
	var sumX, sumY, sumXY, sumXX float64
	for i, s := range scores {
		x := float64(i)
		sumX += x
		sumY += s.Overall
		sumXY += x * s.Overall
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func latestOverall(scores []Score) float64 {
	if len(scores) == 0 {
		return 0
	}
	return scores[len(scores)-1].Overall
}

func concernFor(latest float64, trend Trend) ConcernLevel {
	switch {
	case latest >= CrisisOverall:
		return ConcernCritical
	case latest >= HighBand:
		if trend == TrendWorsening {
			return ConcernCritical
		}
		return ConcernHigh
	case trend == TrendWorsening:
		return ConcernModerate
	case latest >= 2.5:
		return ConcernModerate
	default:
		return ConcernLow
	}
}

func recommendationsFor(trend Trend, level ConcernLevel) []string {
	var recs []string
	switch trend {
	case TrendImproving:
		recs = append(recs, "reinforce coping strategies that are working")
	case TrendWorsening:
		recs = append(recs, "increase check-in frequency", "review safety plan with user")
	default:
		recs = append(recs, "continue current support cadence")
	}
	if level == ConcernCritical {
		recs = append(recs, "route next turn through crisis-capable agent")
	}
	return recs
}
