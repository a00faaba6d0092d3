package spengine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ──────────────────────────────────────────────
// Response Composer / Phase Router
// ──────────────────────────────────────────────

// Phase is the encounter phase. Transitions happen only on explicit external
// signals; there are no automatic or terminal transitions.
type Phase string

const (
	PhaseSubjective    Phase = "subjective"
	PhaseObjective     Phase = "objective"
	PhaseTreatmentPlan Phase = "treatment_plan"
)

// Phase transition signals.
const (
	SignalMoveObjective = "move_objective"
	SignalMoveTreatment = "move_treatment"
)

// NextPhase applies an explicit transition signal. Unknown signals leave the
// phase unchanged.
func NextPhase(current Phase, signal string) Phase {
	switch signal {
	case SignalMoveObjective:
		return PhaseObjective
	case SignalMoveTreatment:
		return PhaseTreatmentPlan
	}
	return current
}

// TurnResult is the outcome of one phase turn. GateState is always
// "unlocked" — gates are telemetry only and never suppress a reply. The
// elaboration and sentence-range fields are advisory guidance for the
// downstream generative engine.
type TurnResult struct {
	GateState    string `json:"gate_state"`
	PatientReply string `json:"patient_reply"`
	MediaID      string `json:"media_id,omitempty"`

	QuestionType string `json:"question_type"`
	Elaborate    bool   `json:"elaborate"`
	MinSentences int    `json:"min_sentences"`
	MaxSentences int    `json:"max_sentences"`
	OpenerEcho   bool   `json:"opener_echo"`
}

// ──────────────────────────────────────────────
// Fixed line banks
// ──────────────────────────────────────────────

var consentRequestLine = "Before you examine me, could you explain what you'd like to do and ask if that's okay with me?"

var impactRefusalLine = "I don't feel safe hopping or doing anything with impact on this leg right now. Is there something gentler we could try?"

var objectiveFallbackLine = "I'm not sure what you'd like me to do. Could you name a specific movement or test?"

var emptyScriptLine = "Okay, I can try that — just guide me through it."

var treatmentDeflectionLine = "I'm not sure about the medical side of it. What do you think the plan should be?"

var clarificationPool = []string{
	"Sorry, could you say that again?",
	"I didn't quite catch that — what do you mean?",
	"Could you ask me that a different way?",
	"Hmm, I'm not sure I follow. Can you rephrase?",
}

var boundaryPool = []string{
	"I honestly don't know the medical side — I was hoping you could tell me.",
	"I couldn't say what the tests would show. That's why I'm here.",
	"I'd rather not guess at what's wrong. What do you think?",
	"You're the expert here — I just know how it feels.",
}

// toneFallbacks are the 8 tone-keyed generic subjective fallbacks. Each is
// lightly personalized with the persona's preferred name via %s.
var toneFallbacks = map[string]string{
	"warm":           "I'm not sure about that one, but ask me anything you need. And do call me %s.",
	"matter_of_fact": "I can't tell you much there. It's %s, by the way, if that helps. What else?",
	"anxious":        "Oh, um... I really don't know. Sorry, %s isn't great with questions like that.",
	"stoic":          "Couldn't say. %s just deals with it.",
	"irritable":      "No idea what that's about. Look, just call me %s and ask me something useful.",
	"cheerful":       "Ha, you've got %s stumped there! What else?",
	"withdrawn":      "...I don't know. %s doesn't really talk about that.",
	"formal":         "I'm afraid I cannot speak to that. %s, for the record. Please go on.",
}

var consentRe = regexp.MustCompile(`(?i)(consent|okay to test|you have my consent|that is okay)`)

var identityQueryRe = regexp.MustCompile(`(?i)(date of birth|confirm your (name|identity)|your full name|when were you born)`)

var unsafeLabelWords = []string{"hop", "impact", "jump"}

var hepKeywords = []string{"home exercise", "how often", "sets", "reps", "program"}

var goalKeywords = []string{"goals", "timeline", "return"}

var pressureWords = []string{
	"what do you think is wrong", "what's wrong with you", "diagnos",
	"test result", "is it positive", "is it negative", "just tell me what",
}

// ──────────────────────────────────────────────
// Phase-turn entry point
// ──────────────────────────────────────────────

// HandleTurn processes one learner turn: rapport bookkeeping, phase routing,
// advisory style guidance, opener tracking, turn advance. It never returns
// an error for conversational input; every ambiguity resolves to fallback
// text.
func HandleTurn(ac *ActiveCase, phase Phase, gate GateFlags, state *RuntimeState, text string) TurnResult {
	state.UpdateRapport(AnalyzeLearnerTurn(text))

	var reply, mediaID string
	switch phase {
	case PhaseObjective:
		reply = objectiveReply(ac, gate, text)
	case PhaseTreatmentPlan:
		reply = treatmentReply(ac, text)
	default:
		reply, mediaID = subjectiveReply(ac, state, text)
	}

	qt := classifyQuestion(text)
	minS, maxS := state.TargetSentenceRange(qt)
	result := TurnResult{
		GateState:    GateUnlocked,
		PatientReply: reply,
		MediaID:      mediaID,
		QuestionType: qt,
		Elaborate:    state.ShouldElaborate(qt),
		MinSentences: minS,
		MaxSentences: maxS,
		OpenerEcho:   state.IsEchoOpener(reply),
	}

	state.RecordOpener(reply)
	state.AdvanceTurn()
	return result
}

// ──────────────────────────────────────────────
// Subjective phase
// ──────────────────────────────────────────────

func subjectiveReply(ac *ActiveCase, state *RuntimeState, text string) (string, string) {
	// Identity verification is a protocol action, not scenario content; it
	// is routed before the trigger banks. The DOB challenge fires at most
	// once per encounter.
	if identityQueryRe.MatchString(text) {
		return identityReply(ac.Persona, state), ""
	}

	if q := FindSpecialHit(ac.Specials, text); q != nil {
		if q.AgendaID != "" {
			if state.AgendaAlreadyRevealed(q.AgendaID) {
				return "I think I already mentioned that, but yes — it's been on my mind.", ""
			}
			state.RevealAgendaItem(q.AgendaID)
		}
		return q.Response, q.MediaID
	}

	if c := FindScreeningHit(ac.Challenges, text); c != nil {
		return c.PatientLine, ""
	}

	if e := findSubjectiveEntry(ac.Scenario.SubjectiveCatalog, text); e != nil {
		return e.Response, e.MediaID
	}

	// Diagnosis/result-seeking pressure never reveals objective findings in
	// the subjective phase; it draws a boundary line instead.
	lower := strings.ToLower(text)
	for _, w := range pressureWords {
		if strings.Contains(lower, w) {
			line, err := state.freshChoice(boundaryPool, state.RecentBoundary)
			if err != nil {
				line = boundaryPool[0]
			}
			state.RecordBoundary(line)
			return line, ""
		}
	}

	// Very short input gets a clarification request.
	if len(strings.Fields(text)) < 2 {
		line, err := state.freshChoice(clarificationPool, state.RecentClarification)
		if err != nil {
			line = clarificationPool[0]
		}
		state.RecordClarification(line)
		return line, ""
	}

	tpl, ok := toneFallbacks[ac.Persona.Tone]
	if !ok {
		tpl = toneFallbacks["matter_of_fact"]
	}
	return fmt.Sprintf(tpl, ac.Persona.PreferredName), ""
}

func identityReply(p *Persona, state *RuntimeState) string {
	if len(p.DOBChallenge) > 0 && !state.DOBChallengeUsed {
		state.DOBChallengeUsed = true
		state.IdentityVerified = true
		pool := make([]string, 0, len(p.DOBChallenge))
		for _, c := range p.DOBChallenge {
			pool = append(pool, c.Line)
		}
		line, err := state.SeededChoice(pool)
		if err != nil {
			return fmt.Sprintf("I'm %s, born %s.", p.LegalName, p.DOB)
		}
		return line
	}
	state.IdentityVerified = true
	return fmt.Sprintf("I'm %s, born %s.", p.LegalName, p.DOB)
}

// ──────────────────────────────────────────────
// Objective phase
// ──────────────────────────────────────────────

func objectiveReply(ac *ActiveCase, gate GateFlags, text string) string {
	sc := ac.Scenario

	if sc.ObjectiveGuardrails.RequireExplicitPhysicalConsent &&
		!gate.ConsentDone && !consentRe.MatchString(text) {
		return consentRequestLine
	}

	test := findObjectiveTest(sc.ObjectiveTests, text)
	if test == nil {
		if lines := sc.ObjectiveGuardrails.DeflectionLines; len(lines) > 0 {
			return lines[0]
		}
		return objectiveFallbackLine
	}

	if sc.Guardrails.ImpactTestingUnsafe && labelIsImpact(test.Label) {
		return impactRefusalLine
	}

	script := renderScript(test.Script)
	if script == "" {
		return emptyScriptLine
	}
	return script
}

// findObjectiveTest matches by exact containment of the test id or full
// label, or by containment of any of the label's first 3 alphabetic tokens
// longer than 3 characters as a partial query.
func findObjectiveTest(tests []ObjectiveTest, text string) *ObjectiveTest {
	lower := strings.ToLower(text)
	for i := range tests {
		t := &tests[i]
		if strings.Contains(lower, strings.ToLower(t.TestID)) ||
			strings.Contains(lower, strings.ToLower(t.Label)) {
			return t
		}
		for _, tok := range partialQueryTokens(t.Label) {
			if strings.Contains(lower, tok) {
				return t
			}
		}
	}
	return nil
}

func partialQueryTokens(label string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(label)) {
		if len(out) == 3 {
			break
		}
		if len(tok) <= 3 || !isAlphabetic(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return s != ""
}

func labelIsImpact(label string) bool {
	lower := strings.ToLower(label)
	for _, w := range unsafeLabelWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// renderScript joins numeric key:value pairs, then binary flags (underscores
// become spaces), then the first qualitative sentence, with ". ".
func renderScript(s TestScript) string {
	var parts []string
	for _, k := range sortedKeys(s.Numeric) {
		parts = append(parts, fmt.Sprintf("%s: %g", k, s.Numeric[k]))
	}
	for _, k := range sortedFlagKeys(s.Flags) {
		v := "negative"
		if s.Flags[k] {
			v = "positive"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ReplaceAll(k, "_", " "), v))
	}
	if len(s.Qualitative) > 0 {
		if sent := firstSentence(s.Qualitative[0]); sent != "" {
			parts = append(parts, sent)
		}
	}
	return strings.Join(parts, ". ")
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFlagKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// firstSentence cuts after the first sentence delimiter, keeping it.
func firstSentence(text string) string {
	trimmed := strings.TrimSpace(text)
	for i, r := range trimmed {
		if r == '.' || r == '!' || r == '?' {
			return trimmed[:i+len(string(r))]
		}
	}
	return trimmed
}

// ──────────────────────────────────────────────
// Treatment-plan phase
// ──────────────────────────────────────────────

func treatmentReply(ac *ActiveCase, text string) string {
	lower := strings.ToLower(text)

	for _, kw := range hepKeywords {
		if strings.Contains(lower, kw) {
			parts := filterPresent(
				ac.Persona.WorkDemands,
				ac.Scenario.Environment,
				ac.Persona.SleepQuality,
			)
			if len(parts) == 0 {
				return treatmentDeflectionLine
			}
			return strings.Join(parts, " ")
		}
	}

	for _, kw := range goalKeywords {
		if strings.Contains(lower, kw) {
			if len(ac.Scenario.Goals) > 0 {
				return fmt.Sprintf("My main goal is to %s.", ac.Scenario.Goals[0])
			}
			return treatmentDeflectionLine
		}
	}

	return treatmentDeflectionLine
}

func filterPresent(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// ──────────────────────────────────────────────
// Question classification
// ──────────────────────────────────────────────

var closedStarters = map[string]bool{
	"do": true, "does": true, "did": true, "is": true, "are": true,
	"was": true, "were": true, "have": true, "has": true, "had": true,
	"can": true, "could": true, "will": true, "would": true, "any": true,
}

var narrativeCues = []string{"tell me about", "describe", "walk me through", "how did"}

// classifyQuestion buckets learner input into closed / open / narrative for
// elaboration and sentence-range guidance.
func classifyQuestion(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, cue := range narrativeCues {
		if strings.Contains(lower, cue) {
			return QuestionNarrative
		}
	}
	if fields := strings.Fields(lower); len(fields) > 0 && closedStarters[fields[0]] {
		return QuestionClosed
	}
	return QuestionOpen
}
