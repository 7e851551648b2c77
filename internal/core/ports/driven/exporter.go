package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

// ExportFilter bounds an export run.
type ExportFilter struct {
	// Since restricts the export to records updated at or after this
	// time. Zero means a full export.
	Since time.Time

	// Until restricts the export to records updated at or before this
	// time. Zero means unbounded.
	Until time.Time

	// Query is an optional vendor-side query string, passed through to
	// APIs that support one.
	Query string
}

// Exporter fetches raw records from one external source.
// Each source type (gmail, slack, notion, jira, github, calendar)
// implements this interface.
//
// Exporters own authentication, pagination, and vendor-side filtering.
// They produce records lazily over a channel so that large backups stay
// memory-bounded, and they are restartable from scratch only:
// checkpointing is the pipeline's job, not the exporter's.
type Exporter interface {
	// Type returns the exporter type identifier (e.g. "gmail").
	Type() string

	// Collection returns the collection this exporter feeds.
	Collection() domain.Collection

	// Validate checks that the exporter is configured and its
	// credentials work, typically with a lightweight API call.
	// Returns domain.ErrAuthInvalid or domain.ErrAuthRequired when
	// credentials are missing or rejected.
	Validate(ctx context.Context) error

	// Export fetches records matching the filter. Records arrive on
	// the first channel; a terminal error, if any, on the second.
	// Both channels are closed when the export finishes. Pagination is
	// internal: cursors are opaque and exhausted only when the vendor
	// signals no more pages. Records missing their unique-id field are
	// skipped with a logged warning, never fatal to the batch.
	Export(ctx context.Context, filter ExportFilter) (<-chan domain.RawRecord, <-chan error)

	// Close releases resources.
	Close() error
}
