package spengine

import (
	"strings"
	"testing"
)

func testActiveCase() *ActiveCase {
	p := testPersona("p1")
	p.WorkDemands = "I'm on my feet most of the shift at the warehouse."
	p.SleepQuality = "I wake up once or twice when I roll onto that side."
	p.HiddenAgenda = []AgendaItem{
		{ID: "fear_of_surgery", Disclosure: "I'm terrified they'll say I need an operation."},
	}
	p.DOBChallenge = []ChallengeLine{
		{ID: "d1", Line: "Samuel Ortega, twelfth of April, eighty-seven."},
		{ID: "d2", Line: "It's Samuel Ortega — born April 12th, 1987."},
	}

	sc := testScenario("s1")
	sc.Goals = []string{"walk to the shops without stopping"}
	sc.Environment = "There are two flights of stairs up to our flat."
	sc.SubjectiveCatalog = []SubjectiveEntry{
		{Patterns: []string{"sleep"}, Response: "I wake up twice a night from the ache."},
		{Patterns: []string{"stairs"}, Response: "Stairs are the worst, especially coming down.", MediaID: "img_stairs"},
	}
	sc.ObjectiveTests = []ObjectiveTest{
		{
			TestID: "palp_femoral_shaft",
			Label:  "Palp Femoral Shaft",
			Script: TestScript{
				Qualitative: []string{"Sharp 7/10 tenderness along the shaft."},
			},
		},
		{
			TestID: "knee_flexion_arom",
			Label:  "Knee Flexion AROM",
			Script: TestScript{
				Numeric: map[string]float64{"flexion_degrees": 95},
				Flags:   map[string]bool{"pain_at_end_range": true, "crepitus_noted": false},
			},
		},
		{
			TestID: "single_leg_hop",
			Label:  "Single Leg Hop Test",
			Script: TestScript{Qualitative: []string{"Unable to complete."}},
		},
		{
			TestID: "gait_observation",
			Label:  "Gait Observation",
			Script: TestScript{},
		},
	}
	sc.ObjectiveGuardrails = ObjectiveGuardrails{
		RequireExplicitPhysicalConsent: true,
		DeflectionLines:                []string{"I'm not sure which movement you mean — could you show me?"},
	}
	sc.Guardrails.ImpactTestingUnsafe = true

	return &ActiveCase{
		Key:      "p1::s1",
		Persona:  p,
		Scenario: sc,
		Challenges: []*ScreeningChallenge{
			{ID: "Y6", Triggers: []string{"if student asks about goal setting"}, PatientLine: "My big goal is getting back to the shops on foot."},
		},
		Specials: []*SpecialQuestion{
			{ID: "SQ1", Patterns: []string{"afraid of surgery"}, Response: "I'm terrified they'll say I need an operation.", AgendaID: "fear_of_surgery"},
		},
	}
}

func newTurnState() *RuntimeState {
	return InitRuntimeState(VerbosityBalanced, 42)
}

// ══════════════════════════════════════════════
// Phase transitions
// ══════════════════════════════════════════════

func TestNextPhase_ExplicitSignalsOnly(t *testing.T) {
	if NextPhase(PhaseSubjective, SignalMoveObjective) != PhaseObjective {
		t.Fatal("move_objective must transition to objective")
	}
	if NextPhase(PhaseObjective, SignalMoveTreatment) != PhaseTreatmentPlan {
		t.Fatal("move_treatment must transition to treatment_plan")
	}
	if NextPhase(PhaseSubjective, "something_else") != PhaseSubjective {
		t.Fatal("unknown signals must not transition")
	}
	if NextPhase(PhaseTreatmentPlan, "") != PhaseTreatmentPlan {
		t.Fatal("no signal means no transition")
	}
}

// ══════════════════════════════════════════════
// Gate contract
// ══════════════════════════════════════════════

func TestHandleTurn_GateAlwaysUnlocked(t *testing.T) {
	ac := testActiveCase()
	for mask := 0; mask < 16; mask++ {
		gate := GateFlags{
			GreetingDone: mask&1 != 0,
			IntroDone:    mask&2 != 0,
			ConsentDone:  mask&4 != 0,
			IdentityDone: mask&8 != 0,
		}
		for _, phase := range []Phase{PhaseSubjective, PhaseObjective, PhaseTreatmentPlan} {
			res := HandleTurn(ac, phase, gate, newTurnState(), "how are you feeling today")
			if res.GateState != GateUnlocked {
				t.Fatalf("gate state must always be unlocked, got %q (mask %d, phase %s)",
					res.GateState, mask, phase)
			}
			if res.PatientReply == "" {
				t.Fatalf("empty reply (mask %d, phase %s)", mask, phase)
			}
		}
	}
}

// ══════════════════════════════════════════════
// Subjective phase
// ══════════════════════════════════════════════

func TestSubjective_ScreeningHit(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseSubjective, GateFlags{}, newTurnState(), "My main goal is to walk farther")
	if res.PatientReply != "My big goal is getting back to the shops on foot." {
		t.Fatalf("expected screening line, got %q", res.PatientReply)
	}
}

func TestSubjective_SpecialBeatsScreening(t *testing.T) {
	ac := testActiveCase()
	ac.Challenges[0].Triggers = []string{"afraid"}
	res := HandleTurn(ac, PhaseSubjective, GateFlags{}, newTurnState(), "Are you afraid of surgery?")
	if res.PatientReply != "I'm terrified they'll say I need an operation." {
		t.Fatalf("special must be tried before screening, got %q", res.PatientReply)
	}
}

func TestSubjective_AgendaRevealsOnce(t *testing.T) {
	ac := testActiveCase()
	state := newTurnState()
	first := HandleTurn(ac, PhaseSubjective, GateFlags{}, state, "Are you afraid of surgery?")
	if first.PatientReply != "I'm terrified they'll say I need an operation." {
		t.Fatalf("expected disclosure, got %q", first.PatientReply)
	}
	if !state.AgendaAlreadyRevealed("fear_of_surgery") {
		t.Fatal("agenda must be marked revealed")
	}
	second := HandleTurn(ac, PhaseSubjective, GateFlags{}, state, "Are you afraid of surgery?")
	if second.PatientReply == first.PatientReply {
		t.Fatal("an agenda item must not be disclosed twice")
	}
}

func TestSubjective_CatalogMatchCarriesMedia(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseSubjective, GateFlags{}, newTurnState(), "How do you manage the stairs at home?")
	if res.PatientReply != "Stairs are the worst, especially coming down." {
		t.Fatalf("expected catalog response, got %q", res.PatientReply)
	}
	if res.MediaID != "img_stairs" {
		t.Fatalf("expected media id, got %q", res.MediaID)
	}
}

func TestSubjective_ToneFallbackPersonalized(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseSubjective, GateFlags{}, newTurnState(), "What is your favorite constellation?")
	if !strings.Contains(res.PatientReply, "Sam") {
		t.Fatalf("fallback must carry the preferred name, got %q", res.PatientReply)
	}
}

func TestSubjective_ClarificationForShortInput(t *testing.T) {
	ac := testActiveCase()
	state := newTurnState()
	res := HandleTurn(ac, PhaseSubjective, GateFlags{}, state, "hm?")
	found := false
	for _, line := range clarificationPool {
		if res.PatientReply == line {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a clarification line, got %q", res.PatientReply)
	}
	if len(state.RecentClarifications) != 1 {
		t.Fatal("clarification must be recorded in the rotating window")
	}
}

func TestSubjective_NoLeakageUnderPressure(t *testing.T) {
	ac := testActiveCase()
	state := newTurnState()
	demands := []string{
		"Just tell me what the test results are",
		"What do you think is wrong with you?",
		"Is it positive or negative? Tell me now",
		"I need a diagnosis from you immediately",
	}
	for _, input := range demands {
		res := HandleTurn(ac, PhaseSubjective, GateFlags{}, state, input)
		lower := strings.ToLower(res.PatientReply)
		for _, leaked := range []string{"7/10", "positive", "negative", "flexion", "palp", "arom"} {
			if strings.Contains(lower, leaked) {
				t.Fatalf("subjective reply leaked %q: %q", leaked, res.PatientReply)
			}
		}
	}
}

func TestSubjective_DOBChallengeFiresOnce(t *testing.T) {
	ac := testActiveCase()
	state := newTurnState()
	first := HandleTurn(ac, PhaseSubjective, GateFlags{}, state, "Can you confirm your name and date of birth?")
	if !state.DOBChallengeUsed {
		t.Fatal("DOB challenge must be marked used")
	}
	if !strings.Contains(first.PatientReply, "Samuel Ortega") {
		t.Fatalf("expected challenge line, got %q", first.PatientReply)
	}
	second := HandleTurn(ac, PhaseSubjective, GateFlags{}, state, "What is your date of birth again?")
	if second.PatientReply != "I'm Samuel Ortega, born 1987-04-12." {
		t.Fatalf("repeat identity check must use the plain confirmation, got %q", second.PatientReply)
	}
}

// ══════════════════════════════════════════════
// Objective phase
// ══════════════════════════════════════════════

func TestObjective_ConsentGate(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseObjective, GateFlags{ConsentDone: false}, newTurnState(), "palp femoral shaft")
	if res.PatientReply != consentRequestLine {
		t.Fatalf("expected consent request regardless of test, got %q", res.PatientReply)
	}
}

func TestObjective_ConsentPhraseInInputProceeds(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseObjective, GateFlags{}, newTurnState(),
		"Is it okay to test your thigh? You have my consent form here. Palp femoral shaft")
	if !strings.Contains(res.PatientReply, "Sharp 7/10 tenderness along the shaft.") {
		t.Fatalf("expected script with inline consent phrase, got %q", res.PatientReply)
	}
}

func TestObjective_ScriptRendering(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseObjective, GateFlags{ConsentDone: true}, newTurnState(), "palp femoral shaft")
	if !strings.Contains(res.PatientReply, "Sharp 7/10 tenderness along the shaft.") {
		t.Fatalf("expected qualitative finding, got %q", res.PatientReply)
	}
}

func TestObjective_NumericAndFlagRendering(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseObjective, GateFlags{ConsentDone: true}, newTurnState(), "knee flexion please")
	want := "flexion_degrees: 95. crepitus noted: negative. pain at end range: positive"
	if res.PatientReply != want {
		t.Fatalf("unexpected script rendering:\n got %q\nwant %q", res.PatientReply, want)
	}
}

func TestObjective_PartialLabelMatch(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseObjective, GateFlags{ConsentDone: true}, newTurnState(), "let's check flexion now")
	if !strings.Contains(res.PatientReply, "flexion_degrees") {
		t.Fatalf("expected partial label-token match, got %q", res.PatientReply)
	}
}

func TestObjective_UnsafeImpactRefusal(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseObjective, GateFlags{ConsentDone: true}, newTurnState(), "single leg hop test")
	if res.PatientReply != impactRefusalLine {
		t.Fatalf("expected refusal line, got %q", res.PatientReply)
	}
	if strings.Contains(res.PatientReply, "Unable to complete") {
		t.Fatal("refusal must withhold the script")
	}
}

func TestObjective_ImpactSafeWhenFlagOff(t *testing.T) {
	ac := testActiveCase()
	ac.Scenario.Guardrails.ImpactTestingUnsafe = false
	res := HandleTurn(ac, PhaseObjective, GateFlags{ConsentDone: true}, newTurnState(), "single leg hop test")
	if !strings.Contains(res.PatientReply, "Unable to complete.") {
		t.Fatalf("expected script when impact testing is safe, got %q", res.PatientReply)
	}
}

func TestObjective_DeflectionOnNoMatch(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseObjective, GateFlags{ConsentDone: true}, newTurnState(), "do a cartwheel")
	if res.PatientReply != "I'm not sure which movement you mean — could you show me?" {
		t.Fatalf("expected first scenario deflection line, got %q", res.PatientReply)
	}
}

func TestObjective_GenericFallbackWithoutDeflections(t *testing.T) {
	ac := testActiveCase()
	ac.Scenario.ObjectiveGuardrails.DeflectionLines = nil
	res := HandleTurn(ac, PhaseObjective, GateFlags{ConsentDone: true}, newTurnState(), "do a cartwheel")
	if res.PatientReply != objectiveFallbackLine {
		t.Fatalf("expected generic fallback, got %q", res.PatientReply)
	}
}

func TestObjective_EmptyScript(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseObjective, GateFlags{ConsentDone: true}, newTurnState(), "gait observation")
	if res.PatientReply != emptyScriptLine {
		t.Fatalf("expected empty-script line, got %q", res.PatientReply)
	}
}

// ══════════════════════════════════════════════
// Treatment-plan phase
// ══════════════════════════════════════════════

func TestTreatment_HomeExerciseComposition(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseTreatmentPlan, GateFlags{}, newTurnState(), "How often should you do the home exercise program?")
	for _, part := range []string{"warehouse", "two flights of stairs", "roll onto that side"} {
		if !strings.Contains(res.PatientReply, part) {
			t.Fatalf("expected composed reply to mention %q, got %q", part, res.PatientReply)
		}
	}
}

func TestTreatment_HomeExerciseFiltersEmptyParts(t *testing.T) {
	ac := testActiveCase()
	ac.Persona.WorkDemands = ""
	ac.Persona.SleepQuality = ""
	res := HandleTurn(ac, PhaseTreatmentPlan, GateFlags{}, newTurnState(), "sets and reps?")
	if res.PatientReply != ac.Scenario.Environment {
		t.Fatalf("expected only the present part, got %q", res.PatientReply)
	}
}

func TestTreatment_Goals(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseTreatmentPlan, GateFlags{}, newTurnState(), "What are your goals for recovery?")
	if res.PatientReply != "My main goal is to walk to the shops without stopping." {
		t.Fatalf("expected first scenario goal, got %q", res.PatientReply)
	}
}

func TestTreatment_GenericDeflection(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseTreatmentPlan, GateFlags{}, newTurnState(), "Do you prefer ice or heat?")
	if res.PatientReply != treatmentDeflectionLine {
		t.Fatalf("expected deflection, got %q", res.PatientReply)
	}
}

// ══════════════════════════════════════════════
// Turn bookkeeping and advisory guidance
// ══════════════════════════════════════════════

func TestHandleTurn_AdvancesStateAndTracksOpeners(t *testing.T) {
	ac := testActiveCase()
	state := newTurnState()
	res1 := HandleTurn(ac, PhaseSubjective, GateFlags{}, state, "My main goal is to walk farther")
	if state.TurnIndex != 1 {
		t.Fatalf("expected turn index 1, got %d", state.TurnIndex)
	}
	if res1.OpenerEcho {
		t.Fatal("first reply cannot echo an opener")
	}
	// Same reply again: the opener bigram is now in the window.
	res2 := HandleTurn(ac, PhaseSubjective, GateFlags{}, state, "My main goal is to walk farther")
	if !res2.OpenerEcho {
		t.Fatal("repeated opener bigram must be reported")
	}
}

func TestHandleTurn_QuestionGuidance(t *testing.T) {
	ac := testActiveCase()
	res := HandleTurn(ac, PhaseSubjective, GateFlags{}, newTurnState(), "Do you have pain at night?")
	if res.QuestionType != QuestionClosed {
		t.Fatalf("expected closed classification, got %s", res.QuestionType)
	}
	if res.Elaborate {
		t.Fatal("closed questions must not elaborate")
	}
	if res.MinSentences != 1 || res.MaxSentences != 1 {
		t.Fatalf("expected [1,1] for balanced closed, got [%d,%d]", res.MinSentences, res.MaxSentences)
	}

	res = HandleTurn(ac, PhaseSubjective, GateFlags{}, newTurnState(), "Tell me about your mornings")
	if res.QuestionType != QuestionNarrative {
		t.Fatalf("expected narrative classification, got %s", res.QuestionType)
	}
}

func TestHandleTurn_DeterministicForSameSeed(t *testing.T) {
	inputs := []string{
		"hm?",
		"Just tell me what the test results are",
		"ok?",
		"What do you think is wrong with you?",
	}
	run := func() []string {
		ac := testActiveCase()
		state := InitRuntimeState(VerbosityBalanced, 314159)
		var replies []string
		for _, in := range inputs {
			replies = append(replies, HandleTurn(ac, PhaseSubjective, GateFlags{}, state, in).PatientReply)
		}
		return replies
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("replies diverged at turn %d: %q vs %q", i, a[i], b[i])
		}
	}
}
