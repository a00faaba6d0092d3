package spengine

// ──────────────────────────────────────────────
// Gate / Outstanding Tracker — onboarding flags, telemetry only
// ──────────────────────────────────────────────
//
// Gates never block or alter a response. The phase-turn handler reports
// "unlocked" for every possible flag combination; the flags exist so the
// grading layer can see which onboarding steps the learner skipped.

// GateFlags are the 4 onboarding booleans plus optional pressure counters.
type GateFlags struct {
	GreetingDone bool `json:"greeting_done"`
	IntroDone    bool `json:"intro_done"`
	ConsentDone  bool `json:"consent_done"`
	IdentityDone bool `json:"identity_done"`

	PressureCount   int `json:"pressure_count,omitempty"`
	EscalationCount int `json:"escalation_count,omitempty"`
}

// GateUnlocked is the only gate state the turn handler ever returns.
const GateUnlocked = "unlocked"

// NormalizeGate fills a full flag record from a partial, loosely typed one
// (e.g. hydrated session JSON). Only true values are OR-merged over the
// defaults; an explicit false never overwrites anything, so the flags are
// monotonic. Well-typed counters are copied; unknown fields are dropped.
func NormalizeGate(partial map[string]any) GateFlags {
	var g GateFlags
	if partial == nil {
		return g
	}
	g.GreetingDone = boolField(partial, "greeting_done")
	g.IntroDone = boolField(partial, "intro_done")
	g.ConsentDone = boolField(partial, "consent_done")
	g.IdentityDone = boolField(partial, "identity_done")
	g.PressureCount = intField(partial, "pressure_count")
	g.EscalationCount = intField(partial, "escalation_count")
	return g
}

// ComputeOutstandingGate returns human-readable labels for every
// currently-false flag, in fixed order: greeting, intro, consent, identity.
func ComputeOutstandingGate(g GateFlags) []string {
	var out []string
	if !g.GreetingDone {
		out = append(out, "greet the patient")
	}
	if !g.IntroDone {
		out = append(out, "introduce yourself and your role")
	}
	if !g.ConsentDone {
		out = append(out, "obtain consent to proceed")
	}
	if !g.IdentityDone {
		out = append(out, "verify patient identity")
	}
	return out
}

func boolField(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		// JSON numbers decode as float64
		return int(v)
	}
	return 0
}
