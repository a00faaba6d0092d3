package spengine

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ──────────────────────────────────────────────
// Runtime State Machine — per-encounter mutable core
// ──────────────────────────────────────────────

// Rapport levels, ordered guarded < neutral < open.
const (
	RapportGuarded = "guarded"
	RapportNeutral = "neutral"
	RapportOpen    = "open"
)

// Verbosity levels echoed from the persona.
const (
	VerbosityBrief     = "brief"
	VerbosityBalanced  = "balanced"
	VerbosityTalkative = "talkative"
)

// Question types for elaboration and sentence-range guidance.
const (
	QuestionClosed    = "closed"
	QuestionOpen      = "open"
	QuestionNarrative = "narrative"
)

const rotatingWindowMax = 3

// RuntimeState is the ephemeral per-encounter state. It is caller-owned,
// never persisted, and not safe for concurrent mutation by two simultaneous
// turns of the same encounter.
type RuntimeState struct {
	Rapport   string `json:"rapport"`
	Verbosity string `json:"verbosity"`

	// Rotating anti-repetition windows, FIFO, max length 3 each.
	RecentClarifications []string `json:"recent_clarifications"`
	RecentBoundaries     []string `json:"recent_boundaries"`
	RecentOpeners        []string `json:"recent_openers"` // opener bigrams

	RevealedAgenda   map[string]bool `json:"revealed_agenda"`
	IdentityVerified bool            `json:"identity_verified"`
	DOBChallengeUsed bool            `json:"dob_challenge_used"`

	Seed          uint32 `json:"seed"`
	TurnIndex     int    `json:"turn_index"`
	LastShiftTurn int    `json:"last_shift_turn"` // -1 = no shift yet

	EmpathyCues          map[string]bool `json:"empathy_cues"`
	DismissiveStreak     int             `json:"dismissive_streak"`
	TurnsSinceHesitation int             `json:"turns_since_hesitation"`
}

// InitRuntimeState creates the state for a new encounter. Rapport starts
// guarded, all rotating windows empty, the seed is normalized to an unsigned
// 32-bit value.
func InitRuntimeState(verbosity string, seed uint32) *RuntimeState {
	if !knownVerbosity[verbosity] {
		verbosity = VerbosityBalanced
	}
	return &RuntimeState{
		Rapport:        RapportGuarded,
		Verbosity:      verbosity,
		RevealedAgenda: make(map[string]bool),
		EmpathyCues:    make(map[string]bool),
		Seed:           seed,
		LastShiftTurn:  -1,
	}
}

// SeedFromSessionID derives a deterministic non-zero 32-bit seed from an
// opaque session id. Zero is avoided because xorshift32 is degenerate there.
func SeedFromSessionID(sessionID string) uint32 {
	seed := uint32(xxhash.Sum64String(sessionID))
	if seed == 0 {
		seed = 1
	}
	return seed
}

// NextRng advances the xorshift32 generator and returns a float in [0,1).
// The shift amounts and order (13, 17, 5) are fixed for cross-implementation
// reproducibility; do not change them.
func (s *RuntimeState) NextRng() float64 {
	x := s.Seed
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	s.Seed = x
	return float64(x) / float64(0xFFFFFFFF)
}

// SeededChoice picks one entry from the pool, consuming exactly one RNG
// draw. An empty pool is a content-authoring bug and fails loudly.
func (s *RuntimeState) SeededChoice(pool []string) (string, error) {
	if len(pool) == 0 {
		return "", &EmptyPoolError{Pool: "choice candidates"}
	}
	idx := int(s.NextRng() * float64(len(pool)))
	if idx >= len(pool) {
		idx = len(pool) - 1
	}
	return pool[idx], nil
}

// RecordRotating appends value and evicts from the front until the window
// holds at most max entries.
func RecordRotating(window []string, value string, max int) []string {
	window = append(window, value)
	for len(window) > max {
		window = window[1:]
	}
	return window
}

// ShouldElaborate decides whether the patient should elaborate on this turn.
// Closed questions never elaborate. Open/narrative questions consume one RNG
// draw against a verbosity base probability scaled by rapport.
func (s *RuntimeState) ShouldElaborate(questionType string) bool {
	if questionType == QuestionClosed {
		return false
	}
	base := 0.40
	switch s.Verbosity {
	case VerbosityBrief:
		base = 0.25
	case VerbosityTalkative:
		base = 0.55
	}
	mult := 1.0
	switch s.Rapport {
	case RapportGuarded:
		mult = 0.9
	case RapportOpen:
		mult = 1.1
	}
	return s.NextRng() < base*mult
}

// TargetSentenceRange returns advisory [min,max] sentence-count guidance for
// downstream text generation. Not enforced.
func (s *RuntimeState) TargetSentenceRange(questionType string) (int, int) {
	min, max := 2, 4
	switch questionType {
	case QuestionClosed:
		min, max = 1, 1
	case QuestionNarrative:
		min, max = 3, 6
	}
	switch s.Verbosity {
	case VerbosityTalkative:
		max++
	case VerbosityBrief:
		min--
		max--
		if min < 1 {
			min = 1
		}
		if max < 1 {
			max = 1
		}
	}
	return min, max
}

// AdvanceTurn increments the turn index and the turns-since-hesitation
// counter. Call once per completed patient response.
func (s *RuntimeState) AdvanceTurn() {
	s.TurnIndex++
	s.TurnsSinceHesitation++
}

// ──────────────────────────────────────────────
// Opener tracking — advisory anti-repetition only, no rewriting
// ──────────────────────────────────────────────

// StartingBigram extracts the first two lower-cased whitespace tokens of a
// reply. Single-token replies yield that token alone.
func StartingBigram(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return ""
	}
	if len(fields) == 1 {
		return fields[0]
	}
	return fields[0] + " " + fields[1]
}

// RecordOpener stores the reply's starting bigram in the rotating window.
func (s *RuntimeState) RecordOpener(reply string) {
	bigram := StartingBigram(reply)
	if bigram == "" {
		return
	}
	s.RecentOpeners = RecordRotating(s.RecentOpeners, bigram, rotatingWindowMax)
}

// IsEchoOpener reports whether the reply would start with a recently used
// bigram. The engine only reports repetition; substitution is the caller's.
func (s *RuntimeState) IsEchoOpener(reply string) bool {
	bigram := StartingBigram(reply)
	if bigram == "" {
		return false
	}
	for _, b := range s.RecentOpeners {
		if b == bigram {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// Phrase repetition guards — clarification and boundary windows
// ──────────────────────────────────────────────

// RecordClarification stores a used clarification phrase.
func (s *RuntimeState) RecordClarification(phrase string) {
	s.RecentClarifications = RecordRotating(s.RecentClarifications, phrase, rotatingWindowMax)
}

// RecentClarification reports whether the phrase was used recently.
func (s *RuntimeState) RecentClarification(phrase string) bool {
	for _, p := range s.RecentClarifications {
		if p == phrase {
			return true
		}
	}
	return false
}

// RecordBoundary stores a used boundary phrase.
func (s *RuntimeState) RecordBoundary(phrase string) {
	s.RecentBoundaries = RecordRotating(s.RecentBoundaries, phrase, rotatingWindowMax)
}

// RecentBoundary reports whether the phrase was used recently.
func (s *RuntimeState) RecentBoundary(phrase string) bool {
	for _, p := range s.RecentBoundaries {
		if p == phrase {
			return true
		}
	}
	return false
}

// freshChoice picks from the pool preferring entries outside the recent
// window; if every candidate is recent, the full pool is used.
func (s *RuntimeState) freshChoice(pool []string, recent func(string) bool) (string, error) {
	fresh := make([]string, 0, len(pool))
	for _, p := range pool {
		if !recent(p) {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		fresh = pool
	}
	return s.SeededChoice(fresh)
}

// ──────────────────────────────────────────────
// Hidden agenda bookkeeping
// ──────────────────────────────────────────────

// RevealAgendaItem marks an agenda id as revealed. Idempotent; once
// revealed, an item stays revealed for the rest of the encounter.
func (s *RuntimeState) RevealAgendaItem(id string) {
	if s.RevealedAgenda == nil {
		s.RevealedAgenda = make(map[string]bool)
	}
	s.RevealedAgenda[id] = true
}

// AgendaAlreadyRevealed reports whether the agenda id has surfaced.
func (s *RuntimeState) AgendaAlreadyRevealed(id string) bool {
	return s.RevealedAgenda[id]
}
