package spengine

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// ══════════════════════════════════════════════
// Instruction composer
// ══════════════════════════════════════════════

func instructionPersona() *Persona {
	p := testPersona("p1")
	p.Occupation = "warehouse picker"
	p.Mood = "a little fed up"
	p.Concerns = []string{"losing the job", "the stairs at home", "painkillers", "a fourth concern"}
	return p
}

func instructionScenario() *Scenario {
	sc := testScenario("s1")
	sc.Symptoms = []string{"sharp pain on stairs", "morning stiffness"}
	sc.Aggravators = []string{"descending stairs"}
	sc.Easers = []string{"rest", "heat"}
	sc.Goals = []string{"walk to the shops"}
	sc.Environment = "second-floor flat, no lift"
	sc.SubjectiveCatalog = []SubjectiveEntry{
		{Patterns: []string{"stairs"}, Response: "Stairs are the worst.", MediaID: "img_stairs"},
	}
	return sc
}

func TestComposeInstructions_SectionOrderAndContent(t *testing.T) {
	doc := ComposeInstructions(instructionPersona(), instructionScenario(), PhaseSubjective)

	sections := []string{
		"## Baseline Rules",
		"## Who You Are",
		"## Your Situation",
		"Current phase: SUBJECTIVE",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(doc, s)
		if idx < 0 {
			t.Fatalf("missing section %q", s)
		}
		if idx < last {
			t.Fatalf("section %q out of order", s)
		}
		last = idx
	}

	for _, want := range []string{
		"Sam (he/him), age 38",
		"full name Samuel Ortega, date of birth 1987-04-12",
		"warehouse picker",
		"knee pain when climbing stairs",
		"[offer media: img_stairs]",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document missing %q", want)
		}
	}
}

func TestComposeInstructions_ConcernsCappedAtThree(t *testing.T) {
	doc := ComposeInstructions(instructionPersona(), instructionScenario(), PhaseSubjective)
	if strings.Contains(doc, "a fourth concern") {
		t.Fatal("concerns must be capped at 3")
	}
}

func TestComposeInstructions_MediaSectionOnlyWithLibrary(t *testing.T) {
	sc := instructionScenario()
	doc := ComposeInstructions(instructionPersona(), sc, PhaseSubjective)
	if strings.Contains(doc, "## Media Usage") {
		t.Fatal("media section must be omitted without a media library")
	}

	sc.Media = []MediaAsset{{ID: "img_stairs", Kind: "image", Usage: "offer when asked about stairs"}}
	doc = ComposeInstructions(instructionPersona(), sc, PhaseSubjective)
	if !strings.Contains(doc, "## Media Usage") {
		t.Fatal("media section must be present with a media library")
	}
	if !strings.Contains(doc, "Never interpret or describe") {
		t.Fatal("media rules must forbid interpreting content")
	}
}

func TestComposeInstructions_PhaseGuidance(t *testing.T) {
	p, sc := instructionPersona(), instructionScenario()
	if doc := ComposeInstructions(p, sc, PhaseObjective); !strings.Contains(doc, "Current phase: OBJECTIVE") {
		t.Fatal("objective phase must be uppercased into the guidance")
	}
	if doc := ComposeInstructions(p, sc, Phase("debrief")); !strings.Contains(doc, "Current phase: DEBRIEF") {
		t.Fatal("unknown phases use the default guidance sentence")
	}
}

func TestComposeInstructions_PureFunction(t *testing.T) {
	p, sc := instructionPersona(), instructionScenario()
	a := ComposeInstructions(p, sc, PhaseTreatmentPlan)
	b := ComposeInstructions(p, sc, PhaseTreatmentPlan)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("composer must be pure (-first +second):\n%s", diff)
	}
}

func TestComposeInstructions_OmitsEmptySections(t *testing.T) {
	p := &Persona{ID: "p", PreferredName: "Lee", Age: 50}
	sc := &Scenario{ID: "s", PresentingProblem: "shoulder pain"}
	doc := ComposeInstructions(p, sc, PhaseSubjective)
	for _, header := range []string{"## Media Usage"} {
		if strings.Contains(doc, header) {
			t.Fatalf("empty section %q must be omitted", header)
		}
	}
	if strings.Contains(doc, "Occupation:") || strings.Contains(doc, "Mood today:") {
		t.Fatal("empty lines must be omitted from the persona snapshot")
	}
}
