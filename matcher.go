package spengine

import "strings"

// ──────────────────────────────────────────────
// Trigger Matcher — first-match-wins scans over scenario trigger banks
// ──────────────────────────────────────────────
//
// The matching here is intentionally crude: lower-cased substring
// containment, first match wins, never best match. Scenario content is
// authored against exactly this behavior, so it must not be "improved".

const triggerPrefix = "if student asks about"

// triggerKey normalizes one screening trigger phrase: strip the leading
// "if student asks about", then truncate to the first token.
func triggerKey(phrase string) string {
	key := strings.ToLower(strings.TrimSpace(phrase))
	key = strings.TrimSpace(strings.TrimPrefix(key, triggerPrefix))
	if fields := strings.Fields(key); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// FindScreeningHit scans learner text against the case's screening
// challenges in declared order and returns the first challenge with any
// matching trigger key, or nil.
func FindScreeningHit(challenges []*ScreeningChallenge, text string) *ScreeningChallenge {
	lower := strings.ToLower(text)
	for _, c := range challenges {
		for _, phrase := range c.Triggers {
			key := triggerKey(phrase)
			if key != "" && strings.Contains(lower, key) {
				return c
			}
		}
	}
	return nil
}

// FindSpecialHit returns the first special question (bank order) whose full,
// untruncated prompt patterns contain any phrase as a substring of the
// learner text, or nil.
func FindSpecialHit(specials []*SpecialQuestion, text string) *SpecialQuestion {
	lower := strings.ToLower(text)
	for _, q := range specials {
		for _, p := range q.Patterns {
			phrase := strings.ToLower(strings.TrimSpace(p))
			if phrase != "" && strings.Contains(lower, phrase) {
				return q
			}
		}
	}
	return nil
}

// findSubjectiveEntry returns the first subjective-catalog entry whose
// pattern list substring-matches the learner text, or nil.
func findSubjectiveEntry(catalog []SubjectiveEntry, text string) *SubjectiveEntry {
	lower := strings.ToLower(text)
	for i := range catalog {
		for _, p := range catalog[i].Patterns {
			phrase := strings.ToLower(strings.TrimSpace(p))
			if phrase != "" && strings.Contains(lower, phrase) {
				return &catalog[i]
			}
		}
	}
	return nil
}
