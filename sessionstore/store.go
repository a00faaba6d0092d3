// Package sessionstore persists per-encounter session state (gate flags,
// phase, and the persona/scenario ids composing the Active Case) keyed by
// an opaque encounter id. The dialogue engine itself never calls it: engine
// operations are pure given a hydrated state, so storage format choices
// never leak into the engine contract.
package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	spengine "github.com/clinsimlabs/sp-dialogue-go"
)

// ErrNotFound is returned when no record exists for an encounter id.
var ErrNotFound = errors.New("sessionstore: encounter not found")

// EncounterRecord is the persisted state of one encounter.
type EncounterRecord struct {
	EncounterID string         `json:"encounter_id"`
	PersonaID   string         `json:"persona_id"`
	ScenarioID  string         `json:"scenario_id"`
	Phase       string         `json:"phase"`
	Gate        map[string]any `json:"gate"` // normalize via spengine.NormalizeGate on hydration
	Seed        uint32         `json:"seed"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewEncounterRecord creates a record for a fresh encounter with a generated
// id, the subjective starting phase, and a seed derived from the id.
func NewEncounterRecord(personaID, scenarioID string) *EncounterRecord {
	id := uuid.NewString()
	return &EncounterRecord{
		EncounterID: id,
		PersonaID:   personaID,
		ScenarioID:  scenarioID,
		Phase:       string(spengine.PhaseSubjective),
		Gate:        map[string]any{},
		Seed:        spengine.SeedFromSessionID(id),
		CreatedAt:   time.Now().UTC(),
	}
}

// Store is the pluggable persistence backend for encounter records.
type Store interface {
	Create(ctx context.Context, rec *EncounterRecord) error
	Get(ctx context.Context, encounterID string) (*EncounterRecord, error)
	Update(ctx context.Context, rec *EncounterRecord) error
	Delete(ctx context.Context, encounterID string) error
}
