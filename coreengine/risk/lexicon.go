package risk

// dimension identifies which risk axis a lexicon entry contributes to.
type dimension int

const (
	dimSuicide dimension = iota
	dimViolence
	dimSelfHarm
	dimPsychosis
)

// phraseEntry is one matcher in the layered lexicon. Matching is
// case-insensitive substring over normalized text.
type phraseEntry struct {
	phrase   string
	dim      dimension
	severity float64
	factor   string
}

// criticalPhrases is the high-confidence layer: explicit statements of
// intent, means, or plan. Any hit marks the scan as a detected crisis.
var criticalPhrases = []phraseEntry{
	{"kill myself", dimSuicide, 9.0, "explicit suicidal intent"},
	{"end my life", dimSuicide, 9.0, "explicit suicidal intent"},
	{"end it all", dimSuicide, 8.0, "explicit suicidal intent"},
	{"take my own life", dimSuicide, 9.0, "explicit suicidal intent"},
	{"commit suicide", dimSuicide, 9.0, "explicit suicidal intent"},
	{"want to die", dimSuicide, 8.0, "expressed wish to die"},
	{"better off dead", dimSuicide, 8.0, "expressed wish to die"},
	{"don't want to be alive", dimSuicide, 8.0, "expressed wish to die"},
	{"overdose", dimSuicide, 8.0, "overdose reference"},
	{"take all my pills", dimSuicide, 9.0, "overdose plan"},
	{"hang myself", dimSuicide, 9.0, "identified method"},
	{"shoot myself", dimSuicide, 9.0, "identified method"},
	{"jump off", dimSuicide, 8.0, "identified method"},
	{"slit my wrists", dimSuicide, 9.0, "identified method"},
	{"no reason to live", dimSuicide, 7.5, "pervasive hopelessness"},
	{"going to hurt someone", dimViolence, 8.0, "stated intent to harm others"},
	{"going to kill him", dimViolence, 9.0, "stated intent to harm others"},
	{"going to kill her", dimViolence, 9.0, "stated intent to harm others"},
	{"going to kill them", dimViolence, 9.0, "stated intent to harm others"},
	{"make them pay", dimViolence, 7.5, "retaliation ideation"},
}

// moderatePhrases contribute partial scores. They raise dimensions and
// overall risk but never mark a crisis on their own.
var moderatePhrases = []phraseEntry{
	{"hopeless", dimSuicide, 4.5, "hopelessness"},
	{"worthless", dimSuicide, 4.0, "worthlessness"},
	{"no point anymore", dimSuicide, 5.0, "hopelessness"},
	{"can't go on", dimSuicide, 5.5, "exhaustion of coping"},
	{"can't take it anymore", dimSuicide, 5.5, "exhaustion of coping"},
	{"everyone would be fine without me", dimSuicide, 6.0, "perceived burdensomeness"},
	{"burden to everyone", dimSuicide, 5.5, "perceived burdensomeness"},
	{"hate myself", dimSelfHarm, 4.5, "self-directed anger"},
	{"cutting myself", dimSelfHarm, 6.5, "active self-harm"},
	{"hurt myself", dimSelfHarm, 6.0, "self-harm ideation"},
	{"burn myself", dimSelfHarm, 6.0, "self-harm ideation"},
	{"punish myself", dimSelfHarm, 5.0, "self-punishment ideation"},
	{"hearing voices", dimPsychosis, 6.0, "auditory hallucination"},
	{"voices are telling me", dimPsychosis, 7.0, "command hallucination"},
	{"they are watching me", dimPsychosis, 5.5, "paranoid ideation"},
	{"everyone is against me", dimPsychosis, 4.5, "paranoid ideation"},
	{"not real anymore", dimPsychosis, 5.0, "derealization"},
	{"so angry i could explode", dimViolence, 5.0, "escalating anger"},
	{"want to hit", dimViolence, 5.0, "violent impulse"},
	{"lose control", dimViolence, 4.0, "fear of losing control"},
}

// protectivePhrases soften intervention choice and lower confidence in an
// imminent reading. They never lower the risk numbers themselves.
var protectivePhrases = []struct {
	phrase string
	factor string
}{
	{"my kids", "responsibility for children"},
	{"my children", "responsibility for children"},
	{"my daughter", "responsibility for children"},
	{"my son", "responsibility for children"},
	{"my faith", "faith"},
	{"god wouldn't want", "faith"},
	{"my dog", "caretaking bond"},
	{"my cat", "caretaking bond"},
	{"my therapist", "engaged in treatment"},
	{"looking forward to", "future orientation"},
	{"next week", "future orientation"},
	{"reasons to live", "identified reasons to live"},
	{"wouldn't actually do it", "stated non-intent"},
}

// meansIndicators suggest access to lethal means; they raise immediacy.
var meansIndicators = []string{
	"gun", "pistol", "firearm", "pills", "rope", "knife", "blade", "bridge", "razor",
}

// timeframeIndicators suggest imminence; they raise immediacy sharply.
var timeframeIndicators = []string{
	"tonight", "right now", "today", "this morning", "in an hour", "before morning",
}

// planIndicators suggest a formed plan rather than passive ideation.
var planIndicators = []string{
	"plan to", "planned", "going to", "about to", "decided to", "wrote a note", "have a plan",
}

// culturalOverlays adds idioms that the base lexicon misses for a given
// cultural context code. Deliberately small; the capability layer owns the
// full localization tables.
var culturalOverlays = map[string][]phraseEntry{
	"es": {
		{"quitarme la vida", dimSuicide, 9.0, "explicit suicidal intent"},
		{"ya no quiero vivir", dimSuicide, 8.0, "expressed wish to die"},
	},
	"pt": {
		{"tirar minha vida", dimSuicide, 9.0, "explicit suicidal intent"},
	},
}
