package spengine

import (
	"fmt"
	"strings"
)

// ──────────────────────────────────────────────
// Instruction Composer — policy document for the generative engine
// ──────────────────────────────────────────────
//
// ComposeInstructions is a pure function of (persona, scenario, phase).
// Sections are concatenated in fixed order and empty sections are omitted
// entirely, so the document is safe to golden-snapshot test.

// baselineRules is the role-agnostic baseline every instruction document
// starts with. This is the single canonical revision; superseded drafts are
// not selectable.
const baselineRules = `## Baseline Rules
You are playing a standardized patient in a clinical-education encounter. Stay in character at all times.
- Never break the fourth wall. Do not acknowledge being an AI or part of a simulation.
- Answer only what the learner asks. Do not volunteer diagnoses, test names, or clinical vocabulary you would not plausibly know.
- Speak in first person, in your persona's voice and tone, with natural hesitations and everyday language.
- If the learner is dismissive or rushes you, become more guarded. If they show genuine empathy, open up gradually.
- If a question makes no sense to you, ask for clarification instead of inventing an answer.
- Never list your symptoms as a catalog; mention only what the current question touches.`

// phaseGuidance maps each phase to its one-sentence guidance. The phase name
// is uppercased into the sentence.
var phaseGuidance = map[Phase]string{
	PhaseSubjective:    "Current phase: %s. Answer history questions from your own experience; do not perform or describe physical tests.",
	PhaseObjective:     "Current phase: %s. Cooperate with requested movements and tests, reporting only what you feel, within your safety limits.",
	PhaseTreatmentPlan: "Current phase: %s. Discuss what the plan means for your daily life and goals; do not prescribe anything yourself.",
}

const defaultPhaseGuidance = "Current phase: %s. Follow the learner's lead while staying in character."

// ComposeInstructions assembles the full natural-language policy document
// handed to the downstream generative engine. Regenerate whenever persona,
// scenario, phase or gate change.
func ComposeInstructions(p *Persona, sc *Scenario, phase Phase) string {
	sections := []string{baselineRules}

	if s := personaSnapshot(p); s != "" {
		sections = append(sections, s)
	}
	if s := scenarioSnapshot(sc); s != "" {
		sections = append(sections, s)
	}
	if s := mediaGuidance(sc); s != "" {
		sections = append(sections, s)
	}

	guidance, ok := phaseGuidance[phase]
	if !ok {
		guidance = defaultPhaseGuidance
	}
	sections = append(sections, fmt.Sprintf(guidance, strings.ToUpper(string(phase))))

	return strings.Join(sections, "\n\n")
}

func personaSnapshot(p *Persona) string {
	if p == nil {
		return ""
	}
	var lines []string
	lines = append(lines, "## Who You Are")
	lines = append(lines, fmt.Sprintf("- You are %s (%s), age %d.", p.PreferredName, p.Pronouns, p.Age))
	if p.LegalName != "" || p.DOB != "" {
		lines = append(lines, fmt.Sprintf("- For identity checks only: full name %s, date of birth %s.", p.LegalName, p.DOB))
	}
	if p.Occupation != "" {
		lines = append(lines, fmt.Sprintf("- Occupation: %s.", p.Occupation))
	}
	if p.Tone != "" {
		lines = append(lines, fmt.Sprintf("- Tone: %s.", p.Tone))
	}
	if p.Verbosity != "" {
		lines = append(lines, fmt.Sprintf("- Verbosity: %s.", p.Verbosity))
	}
	if len(p.Concerns) > 0 {
		lines = append(lines, fmt.Sprintf("- On your mind: %s.", strings.Join(capList(p.Concerns, 3), "; ")))
	}
	if p.Mood != "" {
		lines = append(lines, fmt.Sprintf("- Mood today: %s.", p.Mood))
	}
	return strings.Join(lines, "\n")
}

func scenarioSnapshot(sc *Scenario) string {
	if sc == nil {
		return ""
	}
	var lines []string
	lines = append(lines, "## Your Situation")
	if sc.Title != "" {
		lines = append(lines, fmt.Sprintf("- Case: %s.", sc.Title))
	}
	if sc.PresentingProblem != "" {
		lines = append(lines, fmt.Sprintf("- What brought you in: %s.", sc.PresentingProblem))
	}
	if len(sc.Symptoms) > 0 {
		lines = append(lines, fmt.Sprintf("- Symptoms you notice: %s.", strings.Join(capList(sc.Symptoms, 3), "; ")))
	}
	if len(sc.Aggravators) > 0 {
		lines = append(lines, fmt.Sprintf("- Makes it worse: %s.", strings.Join(capList(sc.Aggravators, 3), "; ")))
	}
	if len(sc.Easers) > 0 {
		lines = append(lines, fmt.Sprintf("- Makes it better: %s.", strings.Join(capList(sc.Easers, 3), "; ")))
	}
	if len(sc.Goals) > 0 {
		lines = append(lines, fmt.Sprintf("- What you want out of this: %s.", strings.Join(capList(sc.Goals, 3), "; ")))
	}
	if sc.Environment != "" {
		lines = append(lines, fmt.Sprintf("- Your daily environment: %s.", sc.Environment))
	}
	for _, e := range sc.SubjectiveCatalog {
		line := fmt.Sprintf("- If asked about %q, your prepared answer is: %s", e.Patterns[0], e.Response)
		if e.MediaID != "" {
			line += fmt.Sprintf(" [offer media: %s]", e.MediaID)
		}
		lines = append(lines, line)
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// mediaGuidance is emitted only when the scenario carries a media library.
func mediaGuidance(sc *Scenario) string {
	if sc == nil || len(sc.Media) == 0 {
		return ""
	}
	var lines []string
	lines = append(lines, "## Media Usage")
	lines = append(lines, "- You may offer the assets below by tagging their id. Never interpret or describe what a media asset shows; only offer it.")
	for _, m := range sc.Media {
		line := fmt.Sprintf("- Asset %s", m.ID)
		if m.Kind != "" {
			line += fmt.Sprintf(" (%s)", m.Kind)
		}
		if m.Usage != "" {
			line += ": " + m.Usage
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func capList(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}
