package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

// RunHistoryStore records pipeline runs and answers the one question
// incremental ingestion needs: when did this pipeline last succeed?
// Runs are externally serialized by whatever schedules them; the store
// does no locking of its own.
type RunHistoryStore interface {
	// LastSuccess returns the start time of the most recent successful
	// run of the named pipeline. Returns domain.ErrNotFound when the
	// pipeline has never succeeded.
	LastSuccess(ctx context.Context, pipeline string) (time.Time, error)

	// Record persists a finished run.
	Record(ctx context.Context, run domain.RunRecord) error

	// List returns runs for a pipeline, most recent first.
	List(ctx context.Context, pipeline string, limit int) ([]domain.RunRecord, error)
}
