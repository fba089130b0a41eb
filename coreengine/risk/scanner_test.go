package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// criticalSet is the labeled canonical critical-risk corpus. The scanner
// must flag at least 95% of these.
var criticalSet = []string{
	"I am going to kill myself tonight",
	"I have a gun and plan to end my life",
	"I want to die, nobody can talk me out of it",
	"I'm going to overdose right now",
	"I've decided to take all my pills before morning",
	"I am going to hang myself",
	"Everyone would be better off dead, especially me. I want to end it all.",
	"I wrote a note and I plan to commit suicide today",
	"There is no reason to live anymore, I'm done",
	"I'm about to jump off the bridge",
	"I am going to shoot myself, I already have the pistol out",
	"Tonight I will slit my wrists",
}

// benignSet is the labeled everyday-distress corpus. Fewer than 5% of
// these may be flagged.
var benignSet = []string{
	"I had a good day",
	"I am nervous about a presentation tomorrow",
	"Work has been exhausting lately",
	"I argued with my sister and feel bad about it",
	"I'm stressed about my exams",
	"My boss criticized my report and it stung",
	"I didn't sleep well last night",
	"I'm sad that my vacation is over",
	"Traffic this morning made me so frustrated",
	"I miss my friends from college",
	"The deadline is brutal but I'll manage",
	"I watched a sad movie and cried a little",
}

func TestScan_SensitivityOnCriticalPhrasing(t *testing.T) {
	detected := 0
	for _, text := range criticalSet {
		s := Scan(text)
		if s.CriticalCrisisDetected {
			detected++
		} else {
			t.Logf("missed critical phrasing: %q", text)
		}
	}
	rate := float64(detected) / float64(len(criticalSet))
	assert.GreaterOrEqual(t, rate, 0.95, "sensitivity below 95%%")
}

func TestScan_SpecificityOnBenignDistress(t *testing.T) {
	flagged := 0
	for _, text := range benignSet {
		s := Scan(text)
		if s.CriticalCrisisDetected {
			flagged++
			t.Logf("false positive: %q", text)
		}
	}
	rate := float64(flagged) / float64(len(benignSet))
	assert.Less(t, rate, 0.05, "false-positive rate above 5%%")
}

func TestScan_BoundsAndLatency(t *testing.T) {
	inputs := append(append([]string{}, criticalSet...), benignSet...)
	inputs = append(inputs, "", "       ", "🙂🙂🙂")

	for _, text := range inputs {
		start := time.Now()
		s := Scan(text)
		elapsed := time.Since(start)

		assert.Less(t, elapsed, 100*time.Millisecond)
		assert.GreaterOrEqual(t, s.Overall, 0.0)
		assert.LessOrEqual(t, s.Overall, 10.0)
		assert.GreaterOrEqual(t, s.Immediacy, 0.0)
		assert.LessOrEqual(t, s.Immediacy, 10.0)
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
}

func TestScan_CriticalSetsImmediacyFloor(t *testing.T) {
	s := Scan("I am going to kill myself")
	require.True(t, s.CriticalCrisisDetected)
	assert.GreaterOrEqual(t, s.Overall, 7.0)
	assert.GreaterOrEqual(t, s.Immediacy, CriticalImmediacy)
	assert.True(t, s.IsCrisis())
}

func TestScan_TimeframeAndMeansRaiseImmediacy(t *testing.T) {
	base := Scan("I want to die")
	timed := Scan("I want to die tonight")
	armed := Scan("I want to die and I have a gun")

	assert.Greater(t, timed.Immediacy, base.Immediacy)
	assert.Greater(t, armed.Immediacy, base.Immediacy)
	assert.Contains(t, timed.RiskFactors, "stated timeframe")
	assert.Contains(t, armed.RiskFactors, "access to means")
}

func TestScan_OverdoseScenarioImmediacy(t *testing.T) {
	// §8 scenario: "I am going to overdose right now" must score
	// immediacy >= 9 regardless of declared urgency.
	s := Scan("I am going to overdose right now")
	require.True(t, s.CriticalCrisisDetected)
	assert.GreaterOrEqual(t, s.Immediacy, 9.0)
}

func TestScan_ProtectiveFactorsSoftenConfidenceOnly(t *testing.T) {
	plain := Scan("I want to die")
	protective := Scan("I want to die but my kids need me and my faith holds me back")

	require.True(t, plain.CriticalCrisisDetected)
	require.True(t, protective.CriticalCrisisDetected)

	// Risk numbers must not drop below what the explicit phrasing set.
	assert.GreaterOrEqual(t, protective.Overall, plain.Overall)
	assert.Less(t, protective.Confidence, plain.Confidence)
	assert.NotEmpty(t, protective.ProtectiveFactors)
}

func TestScan_ModerateDistressStaysBelowCritical(t *testing.T) {
	s := Scan("I feel hopeless and worthless and I can't go on like this")
	assert.False(t, s.CriticalCrisisDetected)
	assert.Greater(t, s.Overall, 0.0)
	assert.Less(t, s.Overall, 7.0)
	assert.NotEmpty(t, s.RiskFactors)
}

func TestScan_WordBoundaryOnMeansIndicators(t *testing.T) {
	// "Europe" must not match "rope", "begun" must not match "gun".
	s := Scan("I am sad that my trip to Europe has begun so badly")
	assert.NotContains(t, s.RiskFactors, "access to means")
}

func TestScan_CulturalContextOverlay(t *testing.T) {
	plain := Scan("quiero quitarme la vida")
	overlay := Scan("quiero quitarme la vida", WithCulturalContext("es"))

	assert.False(t, plain.CriticalCrisisDetected)
	assert.True(t, overlay.CriticalCrisisDetected)
}

func TestScan_Deterministic(t *testing.T) {
	for _, text := range criticalSet {
		first := Scan(text)
		second := Scan(text)
		assert.Equal(t, first, second)
	}
}
