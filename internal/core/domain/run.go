package domain

import "time"

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	// RunSucceeded indicates the pipeline completed normally.
	RunSucceeded RunStatus = "succeeded"

	// RunFailed indicates the pipeline aborted with an error.
	RunFailed RunStatus = "failed"
)

// RunRecord captures one ingestion pipeline run. The latest successful
// run's StartedAt becomes the incremental fetch window for the next run.
type RunRecord struct {
	// ID is a unique identifier for the run.
	ID string

	// Pipeline is the pipeline name (one per collection).
	Pipeline string

	// Status is the terminal state.
	Status RunStatus

	// Processed is the number of documents written.
	Processed int

	// Skipped is the number of records dropped (malformed or rejected).
	Skipped int

	// Error holds the failure message for failed runs.
	Error string

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time
}
