package spengine

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ──────────────────────────────────────────────
// Content Loader — YAML bundle ingest into the registry
// ──────────────────────────────────────────────

// ContentBundle is the on-disk shape of a content bank: any combination of
// personas, scenarios, screening challenges and special questions.
type ContentBundle struct {
	Personas         []*Persona            `yaml:"personas"`
	Scenarios        []*Scenario           `yaml:"scenarios"`
	Challenges       []*ScreeningChallenge `yaml:"challenges"`
	SpecialQuestions []*SpecialQuestion    `yaml:"special_questions"`
}

// ParseContentBundle decodes a YAML content bundle. Decoding is strict about
// shape only; schema validation happens at ingest.
func ParseContentBundle(data []byte) (*ContentBundle, error) {
	var b ContentBundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse content bundle: %w", err)
	}
	return &b, nil
}

// LoadContentFile reads and ingests one YAML bundle file. Trigger banks are
// ingested before scenarios so scenario id references resolve during
// composition.
func LoadContentFile(r *ContentRegistry, path string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	bundle, err := ParseContentBundle(data)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := IngestBundle(r, bundle); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	logger.Info("content bundle loaded",
		zap.String("path", path),
		zap.Int("personas", len(bundle.Personas)),
		zap.Int("scenarios", len(bundle.Scenarios)),
		zap.Int("challenges", len(bundle.Challenges)),
		zap.Int("special_questions", len(bundle.SpecialQuestions)))
	return nil
}

// IngestBundle pushes a parsed bundle into the registry, batch by batch. A
// validation failure in any batch aborts the remaining batches.
func IngestBundle(r *ContentRegistry, b *ContentBundle) error {
	if len(b.Challenges) > 0 {
		if err := r.IngestChallenges(b.Challenges); err != nil {
			return err
		}
	}
	if len(b.SpecialQuestions) > 0 {
		if err := r.IngestSpecials(b.SpecialQuestions); err != nil {
			return err
		}
	}
	if len(b.Personas) > 0 {
		if err := r.IngestPersonas(b.Personas); err != nil {
			return err
		}
	}
	if len(b.Scenarios) > 0 {
		if err := r.IngestScenarios(b.Scenarios); err != nil {
			return err
		}
	}
	return nil
}
