package spengine

// ──────────────────────────────────────────────
// Content reference data — personas, scenarios, trigger banks
// ──────────────────────────────────────────────

// Persona is the immutable reference record for one simulated patient.
// Loaded once at content-ingest time; never mutated afterwards.
type Persona struct {
	ID            string `json:"id" yaml:"id"`
	PreferredName string `json:"preferred_name" yaml:"preferred_name"`
	LegalName     string `json:"legal_name" yaml:"legal_name"`
	DOB           string `json:"dob" yaml:"dob"` // YYYY-MM-DD, identity use only
	Age           int    `json:"age" yaml:"age"`
	Pronouns      string `json:"pronouns,omitempty" yaml:"pronouns,omitempty"`
	Sex           string `json:"sex,omitempty" yaml:"sex,omitempty"`
	Occupation    string `json:"occupation,omitempty" yaml:"occupation,omitempty"`

	Tone      string `json:"tone" yaml:"tone"`           // see toneFallbacks for the 8 variants
	Verbosity string `json:"verbosity" yaml:"verbosity"` // brief|balanced|talkative
	Mood      string `json:"mood,omitempty" yaml:"mood,omitempty"`

	Concerns     []string       `json:"concerns,omitempty" yaml:"concerns,omitempty"`
	WorkDemands  string         `json:"work_demands,omitempty" yaml:"work_demands,omitempty"`
	SleepQuality string         `json:"sleep_quality,omitempty" yaml:"sleep_quality,omitempty"`
	ClosureStyle string         `json:"closure_style,omitempty" yaml:"closure_style,omitempty"`
	HiddenAgenda []AgendaItem   `json:"hidden_agenda,omitempty" yaml:"hidden_agenda,omitempty"`
	DOBChallenge []ChallengeLine `json:"dob_challenge,omitempty" yaml:"dob_challenge,omitempty"`
}

// AgendaItem is a persona-specific concern that should surface at most once
// when its trigger condition is met.
type AgendaItem struct {
	ID         string   `json:"id" yaml:"id"`
	Triggers   []string `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Disclosure string   `json:"disclosure" yaml:"disclosure"`
}

// ChallengeLine is one stylistic variant of the persona's identity/DOB
// verification response. One is picked by seeded choice; the challenge
// fires at most once per encounter.
type ChallengeLine struct {
	ID   string `json:"id" yaml:"id"`
	Line string `json:"line" yaml:"line"`
}

// Scenario is the immutable reference record for one clinical case.
type Scenario struct {
	ID                string `json:"id" yaml:"id"`
	Title             string `json:"title" yaml:"title"`
	PresentingProblem string `json:"presenting_problem" yaml:"presenting_problem"`

	ScreeningChallengeIDs []string `json:"screening_challenge_ids,omitempty" yaml:"screening_challenge_ids,omitempty"`
	SpecialQuestionIDs    []string `json:"special_question_ids,omitempty" yaml:"special_question_ids,omitempty"`

	SubjectiveCatalog []SubjectiveEntry `json:"subjective_catalog,omitempty" yaml:"subjective_catalog,omitempty"`
	ObjectiveTests    []ObjectiveTest   `json:"objective_tests,omitempty" yaml:"objective_tests,omitempty"`

	Symptoms    []string `json:"symptoms,omitempty" yaml:"symptoms,omitempty"`
	Aggravators []string `json:"aggravators,omitempty" yaml:"aggravators,omitempty"`
	Easers      []string `json:"easers,omitempty" yaml:"easers,omitempty"`
	Goals       []string `json:"goals,omitempty" yaml:"goals,omitempty"`
	Environment string   `json:"environment,omitempty" yaml:"environment,omitempty"`

	Guardrails          CaseGuardrails      `json:"guardrails,omitempty" yaml:"guardrails,omitempty"`
	ObjectiveGuardrails ObjectiveGuardrails `json:"objective_guardrails,omitempty" yaml:"objective_guardrails,omitempty"`

	Media []MediaAsset `json:"media,omitempty" yaml:"media,omitempty"`
}

// SubjectiveEntry is one prepared history answer keyed by trigger patterns.
type SubjectiveEntry struct {
	Patterns []string `json:"patterns" yaml:"patterns"`
	Response string   `json:"response" yaml:"response"`
	MediaID  string   `json:"media_id,omitempty" yaml:"media_id,omitempty"`
}

// ObjectiveTest is one entry of the objective test catalog.
type ObjectiveTest struct {
	TestID string     `json:"test_id" yaml:"test_id"`
	Label  string     `json:"label" yaml:"label"`
	Script TestScript `json:"script" yaml:"script"`
}

// TestScript holds the findings revealed when a test is performed.
type TestScript struct {
	Numeric     map[string]float64 `json:"numeric,omitempty" yaml:"numeric,omitempty"`
	Flags       map[string]bool    `json:"flags,omitempty" yaml:"flags,omitempty"`
	Qualitative []string           `json:"qualitative,omitempty" yaml:"qualitative,omitempty"`
}

// CaseGuardrails are soft persona/scenario fit checks plus the impact-testing
// safety flag. Age/sex mismatches only warn; ImpactTestingUnsafe withholds
// hop/impact/jump test scripts.
type CaseGuardrails struct {
	MinAge              int    `json:"min_age,omitempty" yaml:"min_age,omitempty"`
	MaxAge              int    `json:"max_age,omitempty" yaml:"max_age,omitempty"`
	RequiredSex         string `json:"required_sex,omitempty" yaml:"required_sex,omitempty"`
	ImpactTestingUnsafe bool   `json:"impact_testing_unsafe,omitempty" yaml:"impact_testing_unsafe,omitempty"`
}

// ObjectiveGuardrails control the objective phase's consent requirement and
// out-of-catalog deflections.
type ObjectiveGuardrails struct {
	RequireExplicitPhysicalConsent bool     `json:"require_explicit_physical_consent,omitempty" yaml:"require_explicit_physical_consent,omitempty"`
	DeflectionLines                []string `json:"deflection_lines,omitempty" yaml:"deflection_lines,omitempty"`
}

// MediaAsset is one entry of the scenario media library. The engine never
// interprets media content; it only offers and tags assets by id.
type MediaAsset struct {
	ID    string `json:"id" yaml:"id"`
	Kind  string `json:"kind,omitempty" yaml:"kind,omitempty"` // image|video|document
	Usage string `json:"usage,omitempty" yaml:"usage,omitempty"`
}

// ScreeningChallenge is a scenario-scoped trigger-phrase bank surfaced
// opportunistically during the subjective phase.
type ScreeningChallenge struct {
	ID          string   `json:"id" yaml:"id"`
	Triggers    []string `json:"triggers" yaml:"triggers"`
	PatientLine string   `json:"patient_line" yaml:"patient_line"`
}

// SpecialQuestion is a scenario-scoped prepared answer with its own full
// prompt-pattern list (matched untruncated, unlike screening triggers).
type SpecialQuestion struct {
	ID       string   `json:"id" yaml:"id"`
	Patterns []string `json:"patterns" yaml:"patterns"`
	Response string   `json:"response" yaml:"response"`
	MediaID  string   `json:"media_id,omitempty" yaml:"media_id,omitempty"`
	AgendaID string   `json:"agenda_id,omitempty" yaml:"agenda_id,omitempty"`
}

// ActiveCase is the read-only pairing of one persona with one scenario for a
// single encounter, keyed "{persona_id}::{scenario_id}". Trigger banks are
// resolved once at composition so turn handling never touches the registry.
type ActiveCase struct {
	Key        string
	Persona    *Persona
	Scenario   *Scenario
	Challenges []*ScreeningChallenge
	Specials   []*SpecialQuestion
}
