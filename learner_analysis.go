package spengine

import "strings"

// ──────────────────────────────────────────────
// Learner Turn Analysis — rule-based empathy/dismissive cue detection
// ──────────────────────────────────────────────

// TurnAnalysis is the outcome of scanning one learner turn.
type TurnAnalysis struct {
	EmpathyIDs []string `json:"empathy_ids"` // distinct matched pattern ids
	Dismissive bool     `json:"dismissive"`
}

type cuePattern struct {
	id      string
	phrases []string
}

// Fixed cue banks. Matching is case-insensitive substring containment, the
// same weak matching used everywhere else in the engine.
var empathyPatterns = []cuePattern{
	{id: "acknowledge", phrases: []string{"that sounds", "sounds really", "sounds difficult", "sounds painful"}},
	{id: "validate", phrases: []string{"i understand", "i can see", "that makes sense", "makes sense that"}},
	{id: "sympathize", phrases: []string{"i'm sorry", "im sorry", "sorry to hear", "sorry you're"}},
	{id: "appreciate", phrases: []string{"thank you for sharing", "thanks for telling me", "appreciate you telling"}},
	{id: "reassure", phrases: []string{"take your time", "we'll figure this out", "here to help", "no rush"}},
}

var dismissivePatterns = []cuePattern{
	{id: "impatient", phrases: []string{"hurry up", "just answer", "quickly now", "come on"}},
	{id: "minimizing", phrases: []string{"not a big deal", "it's nothing", "you're fine", "doesn't matter"}},
	{id: "curt", phrases: []string{"whatever", "stop complaining", "enough about", "i don't care"}},
}

// AnalyzeLearnerTurn scans learner text for empathy and dismissive cues.
// Pure and stateless; returns distinct matched empathy ids and a dismissive
// flag.
func AnalyzeLearnerTurn(text string) TurnAnalysis {
	lower := strings.ToLower(text)

	var empathy []string
	for _, p := range empathyPatterns {
		for _, phrase := range p.phrases {
			if strings.Contains(lower, phrase) {
				empathy = append(empathy, p.id)
				break
			}
		}
	}

	dismissive := false
	for _, p := range dismissivePatterns {
		for _, phrase := range p.phrases {
			if strings.Contains(lower, phrase) {
				dismissive = true
				break
			}
		}
		if dismissive {
			break
		}
	}

	return TurnAnalysis{EmpathyIDs: empathy, Dismissive: dismissive}
}

// ──────────────────────────────────────────────
// Rapport transitions
// ──────────────────────────────────────────────

// UpdateRapport merges the analysis into the accumulating cue state and
// applies at most one rapport transition:
//
//   - upgrade (checked first): rapport below open and >=2 distinct
//     accumulated empathy cues advance one level;
//   - downgrade: rapport above guarded and a dismissive streak >=2 regress
//     one level.
//
// A shift is eligible only when at least 2 turns have passed since the
// previous shift (or no shift has happened yet). Either transition records
// the shift turn and clears both the empathy set and the dismissive streak.
func (s *RuntimeState) UpdateRapport(analysis TurnAnalysis) {
	if s.EmpathyCues == nil {
		s.EmpathyCues = make(map[string]bool)
	}
	for _, id := range analysis.EmpathyIDs {
		s.EmpathyCues[id] = true
	}
	if analysis.Dismissive {
		s.DismissiveStreak++
	} else {
		s.DismissiveStreak = 0
	}

	eligible := s.LastShiftTurn < 0 || s.TurnIndex-s.LastShiftTurn >= 2
	if !eligible {
		return
	}

	if s.Rapport != RapportOpen && len(s.EmpathyCues) >= 2 {
		s.Rapport = rapportUp(s.Rapport)
		s.markShift()
		return
	}
	if s.Rapport != RapportGuarded && s.DismissiveStreak >= 2 {
		s.Rapport = rapportDown(s.Rapport)
		s.markShift()
	}
}

func (s *RuntimeState) markShift() {
	s.LastShiftTurn = s.TurnIndex
	s.EmpathyCues = make(map[string]bool)
	s.DismissiveStreak = 0
}

func rapportUp(level string) string {
	switch level {
	case RapportGuarded:
		return RapportNeutral
	case RapportNeutral:
		return RapportOpen
	}
	return level
}

func rapportDown(level string) string {
	switch level {
	case RapportOpen:
		return RapportNeutral
	case RapportNeutral:
		return RapportGuarded
	}
	return level
}
