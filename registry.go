package spengine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ──────────────────────────────────────────────
// Content Registry — validated reference data + Active Case composition
// ──────────────────────────────────────────────

// ContentRegistry holds validated personas, scenarios and trigger banks in
// id-keyed stores. Re-inserting an existing id overwrites it. The registry is
// read-mostly after load and safe to share across concurrent encounters.
type ContentRegistry struct {
	mu         sync.RWMutex
	personas   map[string]*Persona
	scenarios  map[string]*Scenario
	challenges map[string]*ScreeningChallenge
	specials   map[string]*SpecialQuestion
	logger     *zap.Logger
}

// NewContentRegistry creates an empty registry. Pass a logger to surface
// soft-guardrail and unresolved-id warnings; default is a nop logger.
func NewContentRegistry(logger ...*zap.Logger) *ContentRegistry {
	lg := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		lg = logger[0]
	}
	return &ContentRegistry{
		personas:   make(map[string]*Persona),
		scenarios:  make(map[string]*Scenario),
		challenges: make(map[string]*ScreeningChallenge),
		specials:   make(map[string]*SpecialQuestion),
		logger:     lg,
	}
}

// IngestPersonas validates and inserts a batch of personas. A failing item
// fails the whole batch; nothing is inserted.
func (r *ContentRegistry) IngestPersonas(items []*Persona) error {
	for _, p := range items {
		if err := validatePersona(p); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range items {
		r.personas[p.ID] = p
	}
	r.logger.Info("personas ingested", zap.Int("count", len(items)))
	return nil
}

// IngestScenarios validates and inserts a batch of scenarios.
func (r *ContentRegistry) IngestScenarios(items []*Scenario) error {
	for _, s := range items {
		if err := validateScenario(s); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range items {
		r.scenarios[s.ID] = s
	}
	r.logger.Info("scenarios ingested", zap.Int("count", len(items)))
	return nil
}

// IngestChallenges validates and inserts a batch of screening challenges.
func (r *ContentRegistry) IngestChallenges(items []*ScreeningChallenge) error {
	for _, c := range items {
		if err := validateChallenge(c); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range items {
		r.challenges[c.ID] = c
	}
	return nil
}

// IngestSpecials validates and inserts a batch of special questions.
func (r *ContentRegistry) IngestSpecials(items []*SpecialQuestion) error {
	for _, q := range items {
		if err := validateSpecial(q); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range items {
		r.specials[q.ID] = q
	}
	return nil
}

// Persona returns a persona by id.
func (r *ContentRegistry) Persona(id string) (*Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[id]
	return p, ok
}

// Scenario returns a scenario by id.
func (r *ContentRegistry) Scenario(id string) (*Scenario, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scenarios[id]
	return s, ok
}

// PersonaCount returns the number of stored personas.
func (r *ContentRegistry) PersonaCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.personas)
}

// ScenarioCount returns the number of stored scenarios.
func (r *ContentRegistry) ScenarioCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scenarios)
}

// ScenarioChallenges resolves the scenario's screening_challenge_ids to
// challenge records in declared order. Unresolved ids are dropped from the
// result but logged at Warn, so authoring mistakes stay visible.
func (r *ContentRegistry) ScenarioChallenges(sc *Scenario) []*ScreeningChallenge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ScreeningChallenge, 0, len(sc.ScreeningChallengeIDs))
	for _, id := range sc.ScreeningChallengeIDs {
		c, ok := r.challenges[id]
		if !ok {
			r.logger.Warn("unresolved screening challenge id",
				zap.String("scenario", sc.ID), zap.String("challenge", id))
			continue
		}
		out = append(out, c)
	}
	return out
}

// ScenarioSpecials resolves the scenario's special_question_ids in declared
// order, dropping ids that don't resolve.
func (r *ContentRegistry) ScenarioSpecials(sc *Scenario) []*SpecialQuestion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*SpecialQuestion, 0, len(sc.SpecialQuestionIDs))
	for _, id := range sc.SpecialQuestionIDs {
		q, ok := r.specials[id]
		if !ok {
			r.logger.Warn("unresolved special question id",
				zap.String("scenario", sc.ID), zap.String("special", id))
			continue
		}
		out = append(out, q)
	}
	return out
}

// ComposeActiveCase pairs a persona with a scenario. Unknown ids fail with a
// NotFoundError. Age/sex guardrail mismatches are soft: they only emit
// warnings, composition always succeeds once both entities exist.
func (r *ContentRegistry) ComposeActiveCase(personaID, scenarioID string) (*ActiveCase, error) {
	r.mu.RLock()
	p, okP := r.personas[personaID]
	s, okS := r.scenarios[scenarioID]
	r.mu.RUnlock()

	if !okP {
		return nil, &NotFoundError{Kind: "persona", ID: personaID}
	}
	if !okS {
		return nil, &NotFoundError{Kind: "scenario", ID: scenarioID}
	}

	g := s.Guardrails
	if g.MinAge > 0 && p.Age < g.MinAge {
		r.logger.Warn("persona younger than scenario minimum",
			zap.String("persona", personaID), zap.String("scenario", scenarioID),
			zap.Int("age", p.Age), zap.Int("min_age", g.MinAge))
	}
	if g.MaxAge > 0 && p.Age > g.MaxAge {
		r.logger.Warn("persona older than scenario maximum",
			zap.String("persona", personaID), zap.String("scenario", scenarioID),
			zap.Int("age", p.Age), zap.Int("max_age", g.MaxAge))
	}
	if g.RequiredSex != "" && p.Sex != "" && p.Sex != g.RequiredSex {
		r.logger.Warn("persona sex does not match scenario requirement",
			zap.String("persona", personaID), zap.String("scenario", scenarioID),
			zap.String("sex", p.Sex), zap.String("required", g.RequiredSex))
	}

	return &ActiveCase{
		Key:        fmt.Sprintf("%s::%s", personaID, scenarioID),
		Persona:    p,
		Scenario:   s,
		Challenges: r.ScenarioChallenges(s),
		Specials:   r.ScenarioSpecials(s),
	}, nil
}

// ──────────────────────────────────────────────
// Schema validation
// ──────────────────────────────────────────────

var knownVerbosity = map[string]bool{"brief": true, "balanced": true, "talkative": true}

func validatePersona(p *Persona) error {
	if p.ID == "" {
		return &ValidationError{Kind: "persona", Field: "id", Why: "must not be empty"}
	}
	if p.PreferredName == "" {
		return &ValidationError{Kind: "persona", ID: p.ID, Field: "preferred_name", Why: "must not be empty"}
	}
	if p.Age < 0 {
		return &ValidationError{Kind: "persona", ID: p.ID, Field: "age", Why: "must not be negative"}
	}
	if p.Verbosity != "" && !knownVerbosity[p.Verbosity] {
		return &ValidationError{Kind: "persona", ID: p.ID, Field: "verbosity", Why: "must be brief, balanced or talkative"}
	}
	for _, a := range p.HiddenAgenda {
		if a.ID == "" {
			return &ValidationError{Kind: "persona", ID: p.ID, Field: "hidden_agenda.id", Why: "must not be empty"}
		}
		if a.Disclosure == "" {
			return &ValidationError{Kind: "persona", ID: p.ID, Field: "hidden_agenda.disclosure", Why: "must not be empty"}
		}
	}
	for _, c := range p.DOBChallenge {
		if c.Line == "" {
			return &ValidationError{Kind: "persona", ID: p.ID, Field: "dob_challenge.line", Why: "must not be empty"}
		}
	}
	return nil
}

func validateScenario(s *Scenario) error {
	if s.ID == "" {
		return &ValidationError{Kind: "scenario", Field: "id", Why: "must not be empty"}
	}
	if s.PresentingProblem == "" {
		return &ValidationError{Kind: "scenario", ID: s.ID, Field: "presenting_problem", Why: "must not be empty"}
	}
	for i, e := range s.SubjectiveCatalog {
		if len(e.Patterns) == 0 {
			return &ValidationError{Kind: "scenario", ID: s.ID,
				Field: fmt.Sprintf("subjective_catalog[%d].patterns", i), Why: "must not be empty"}
		}
		if e.Response == "" {
			return &ValidationError{Kind: "scenario", ID: s.ID,
				Field: fmt.Sprintf("subjective_catalog[%d].response", i), Why: "must not be empty"}
		}
	}
	for i, t := range s.ObjectiveTests {
		if t.TestID == "" {
			return &ValidationError{Kind: "scenario", ID: s.ID,
				Field: fmt.Sprintf("objective_tests[%d].test_id", i), Why: "must not be empty"}
		}
		if t.Label == "" {
			return &ValidationError{Kind: "scenario", ID: s.ID,
				Field: fmt.Sprintf("objective_tests[%d].label", i), Why: "must not be empty"}
		}
	}
	return nil
}

func validateChallenge(c *ScreeningChallenge) error {
	if c.ID == "" {
		return &ValidationError{Kind: "challenge", Field: "id", Why: "must not be empty"}
	}
	if len(c.Triggers) == 0 {
		return &ValidationError{Kind: "challenge", ID: c.ID, Field: "triggers", Why: "must not be empty"}
	}
	if c.PatientLine == "" {
		return &ValidationError{Kind: "challenge", ID: c.ID, Field: "patient_line", Why: "must not be empty"}
	}
	return nil
}

func validateSpecial(q *SpecialQuestion) error {
	if q.ID == "" {
		return &ValidationError{Kind: "special_question", Field: "id", Why: "must not be empty"}
	}
	if len(q.Patterns) == 0 {
		return &ValidationError{Kind: "special_question", ID: q.ID, Field: "patterns", Why: "must not be empty"}
	}
	if q.Response == "" {
		return &ValidationError{Kind: "special_question", ID: q.ID, Field: "response", Why: "must not be empty"}
	}
	return nil
}
