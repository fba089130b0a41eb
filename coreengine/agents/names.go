package agents

// Canonical agent names used by the planner's strategy table.
// The set is open: a Client may serve additional agents, but these are the
// ones execution plans schedule.
const (
	// AgentCrisis is the crisis-capable responder; the only agent invoked
	// on the crisis-priority path.
	AgentCrisis = "crisis_intervention"
	// AgentEmotion analyzes the emotional content of the message.
	AgentEmotion = "emotion_analysis"
	// AgentMemory retrieves conversation and user context.
	AgentMemory = "memory_context"
	// AgentSynthesis composes the final response from upstream analysis.
	AgentSynthesis = "response_synthesis"
	// AgentProgress retrieves goal and progress state.
	AgentProgress = "progress_tracker"
	// AgentRecommend produces recommendations from progress analysis.
	AgentRecommend = "recommendation"
)
