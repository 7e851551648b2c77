package driving

import (
	"context"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

// RunSummary is the user-visible outcome of one pipeline run.
type RunSummary struct {
	// Pipeline is the pipeline name.
	Pipeline string

	// Processed is the number of documents written.
	Processed int

	// Skipped is the number of records dropped (malformed or rejected).
	Skipped int

	// Incremental is true when the run fetched only changes since the
	// last successful run.
	Incremental bool
}

// IngestService orchestrates exporter → normaliser → store pipelines.
// Pipeline names are one-to-one with collections.
type IngestService interface {
	// Run executes the named pipeline once. The fetch window starts at
	// the last successful run's start time; a pipeline that has never
	// succeeded does a full export.
	Run(ctx context.Context, pipeline string) (*RunSummary, error)

	// RunAll executes every registered pipeline sequentially.
	// Individual pipeline failures do not stop the others; they are
	// joined into the returned error.
	RunAll(ctx context.Context) ([]RunSummary, error)

	// Pipelines lists the registered pipeline names.
	Pipelines() []string

	// History returns recent runs of the named pipeline, newest first.
	History(ctx context.Context, pipeline string, limit int) ([]domain.RunRecord, error)
}
