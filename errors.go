package spengine

import "fmt"

// ──────────────────────────────────────────────
// Error taxonomy — content ingest and composition failures
// ──────────────────────────────────────────────

// ValidationError is returned when a content item fails schema validation
// during batch ingest. The whole batch is rejected; nothing is inserted.
type ValidationError struct {
	Kind  string // "persona" / "scenario" / "challenge" / "special_question"
	ID    string // item id, may be empty when the id itself is missing
	Field string // offending field
	Why   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: field %q %s", e.Kind, e.ID, e.Field, e.Why)
}

// NotFoundError is returned when composing an Active Case from an unknown
// persona or scenario id.
type NotFoundError struct {
	Kind string // "persona" / "scenario"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// EmptyPoolError is returned by SeededChoice when the candidate pool is
// empty. This is a content-authoring bug and must fail loudly rather than
// silently degrade into a default line.
type EmptyPoolError struct {
	Pool string // description of the pool, for the error message
}

func (e *EmptyPoolError) Error() string {
	return fmt.Sprintf("seeded choice over empty pool: %s", e.Pool)
}
