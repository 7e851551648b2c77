package services

import (
	"fmt"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
)

// Pipeline pairs one exporter with the normaliser for its collection.
// The pipeline name is the exporter type ("gmail", "slack", ...).
type Pipeline struct {
	Exporter   driven.Exporter
	Normaliser driven.Normaliser
}

// Name returns the pipeline name.
func (p Pipeline) Name() string {
	return p.Exporter.Type()
}

// Collection returns the collection the pipeline feeds.
func (p Pipeline) Collection() domain.Collection {
	return p.Exporter.Collection()
}

// validatePipelines checks that pipelines are internally consistent:
// unique names, known collections, and exporter/normaliser agreement
// on the target collection.
func validatePipelines(pipelines []Pipeline) error {
	seen := make(map[string]bool, len(pipelines))
	for _, p := range pipelines {
		name := p.Name()
		if seen[name] {
			return fmt.Errorf("%w: duplicate pipeline %q", domain.ErrInvalidInput, name)
		}
		seen[name] = true

		if !p.Collection().Valid() {
			return fmt.Errorf("%w: pipeline %q targets %q", domain.ErrUnsupportedCollection, name, p.Collection())
		}
		if p.Normaliser.Collection() != p.Collection() {
			return fmt.Errorf("%w: pipeline %q pairs exporter collection %q with normaliser collection %q",
				domain.ErrInvalidInput, name, p.Collection(), p.Normaliser.Collection())
		}
	}
	return nil
}
