package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
	"github.com/custodia-labs/scribe/internal/core/ports/driving"
	"github.com/custodia-labs/scribe/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

const (
	// defaultBatchSize is the number of documents per store upsert.
	defaultBatchSize = 100

	// maxExportAttempts bounds retries of a transiently failing export.
	maxExportAttempts = 3

	// retryBaseDelay is the first backoff step; doubled per attempt.
	retryBaseDelay = 2 * time.Second
)

// IngestService runs exporter → normaliser → store pipelines.
// Writes are idempotent (upsert keyed on document id), so a retried or
// overlapping run converges to the same stored state.
type IngestService struct {
	store     driven.DocumentStore
	runs      driven.RunHistoryStore
	pipelines []Pipeline
	byName    map[string]Pipeline
	batchSize int

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewIngestService creates an ingest service over the given pipelines.
// Pipeline order is preserved for RunAll.
func NewIngestService(
	store driven.DocumentStore,
	runs driven.RunHistoryStore,
	pipelines []Pipeline,
) (*IngestService, error) {
	if err := validatePipelines(pipelines); err != nil {
		return nil, err
	}

	byName := make(map[string]Pipeline, len(pipelines))
	for _, p := range pipelines {
		byName[p.Name()] = p
	}

	return &IngestService{
		store:     store,
		runs:      runs,
		pipelines: pipelines,
		byName:    byName,
		batchSize: defaultBatchSize,
		sleep:     sleepCtx,
	}, nil
}

// Pipelines lists the registered pipeline names in registration order.
func (s *IngestService) Pipelines() []string {
	names := make([]string, len(s.pipelines))
	for i, p := range s.pipelines {
		names[i] = p.Name()
	}
	return names
}

// History returns recent runs of the named pipeline, newest first.
func (s *IngestService) History(ctx context.Context, pipeline string, limit int) ([]domain.RunRecord, error) {
	if _, ok := s.byName[pipeline]; !ok {
		return nil, fmt.Errorf("%w: unknown pipeline %q", domain.ErrInvalidInput, pipeline)
	}
	return s.runs.List(ctx, pipeline, limit)
}

// Run executes one pipeline: resolve the incremental window, export,
// normalise, and upsert in batches, then record the run.
func (s *IngestService) Run(ctx context.Context, pipeline string) (*driving.RunSummary, error) {
	p, ok := s.byName[pipeline]
	if !ok {
		return nil, fmt.Errorf("%w: unknown pipeline %q", domain.ErrInvalidInput, pipeline)
	}

	logger.Section("Ingest: " + pipeline)
	startedAt := time.Now().UTC()

	filter, incremental, err := s.fetchWindow(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("resolve fetch window: %w", err)
	}
	if incremental {
		logger.Info("Incremental run since %s", filter.Since.Format(time.RFC3339))
	} else {
		logger.Info("Full run (no prior successful run)")
	}

	if err := p.Exporter.Validate(ctx); err != nil {
		return nil, s.finishRun(ctx, pipeline, startedAt, 0, 0, fmt.Errorf("validate %s: %w", pipeline, err))
	}

	// The whole export restarts on transient failure. Exporters do not
	// checkpoint mid-stream; idempotent upserts make the rerun safe.
	var processed, skipped int
	for attempt := 1; ; attempt++ {
		processed, skipped, err = s.runExport(ctx, p, filter, startedAt)
		if err == nil || !isTransient(err) || attempt >= maxExportAttempts {
			break
		}
		delay := retryBaseDelay << (attempt - 1)
		logger.Warn("Pipeline %s attempt %d failed (%v), retrying in %s", pipeline, attempt, err, delay)
		if serr := s.sleep(ctx, delay); serr != nil {
			err = serr
			break
		}
	}
	if err != nil {
		return nil, s.finishRun(ctx, pipeline, startedAt, processed, skipped, err)
	}

	if err := s.finishRun(ctx, pipeline, startedAt, processed, skipped, nil); err != nil {
		return nil, err
	}

	logger.Info("Pipeline %s done: %d processed, %d skipped", pipeline, processed, skipped)
	return &driving.RunSummary{
		Pipeline:    pipeline,
		Processed:   processed,
		Skipped:     skipped,
		Incremental: incremental,
	}, nil
}

// RunAll executes every pipeline in registration order. A failing
// pipeline does not stop the rest; failures are joined.
func (s *IngestService) RunAll(ctx context.Context) ([]driving.RunSummary, error) {
	var summaries []driving.RunSummary
	var errs []error

	for _, p := range s.pipelines {
		summary, err := s.Run(ctx, p.Name())
		if err != nil {
			logger.Warn("Pipeline %s failed: %v", p.Name(), err)
			errs = append(errs, fmt.Errorf("pipeline %s: %w", p.Name(), err))
			continue
		}
		summaries = append(summaries, *summary)
	}

	return summaries, errors.Join(errs...)
}

// fetchWindow derives the export filter from run history. A pipeline
// that has never succeeded gets a full export; otherwise the window
// starts at the last successful run's start time, so anything updated
// while that run was in flight is picked up again.
func (s *IngestService) fetchWindow(ctx context.Context, pipeline string) (driven.ExportFilter, bool, error) {
	last, err := s.runs.LastSuccess(ctx, pipeline)
	if errors.Is(err, domain.ErrNotFound) {
		return driven.ExportFilter{}, false, nil
	}
	if err != nil {
		return driven.ExportFilter{}, false, err
	}
	return driven.ExportFilter{Since: last}, true, nil
}

// runExport drains one export attempt through normalisation into the
// store. Malformed records are skipped, never fatal.
func (s *IngestService) runExport(
	ctx context.Context, p Pipeline, filter driven.ExportFilter, startedAt time.Time,
) (processed, skipped int, err error) {
	// The exporter goroutine blocks on the records channel until it is
	// drained or its context ends. An early return below must cancel,
	// or a mid-stream store failure strands that goroutine.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records, errc := p.Exporter.Export(ctx, filter)
	defaults := driven.NormaliseDefaults{IngestedAt: startedAt}

	batch := make([]domain.Document, 0, s.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		stats, err := s.store.Upsert(ctx, p.Collection(), batch)
		processed += stats.Written
		skipped += stats.Rejected
		batch = batch[:0]
		return err
	}

	for rec := range records {
		if rec.ID == "" {
			logger.Warn("Skipping record with no id in %s", p.Name())
			skipped++
			continue
		}

		doc, nerr := p.Normaliser.Normalise(rec, defaults)
		if nerr != nil {
			logger.Warn("Skipping record %s: %v", rec.ID, nerr)
			skipped++
			continue
		}

		batch = append(batch, doc)
		if len(batch) >= s.batchSize {
			if err := flush(); err != nil {
				return processed, skipped, fmt.Errorf("upsert batch: %w", err)
			}
		}
	}

	if exportErr := <-errc; exportErr != nil {
		return processed, skipped, fmt.Errorf("export %s: %w", p.Name(), exportErr)
	}

	if err := flush(); err != nil {
		return processed, skipped, fmt.Errorf("upsert batch: %w", err)
	}
	return processed, skipped, nil
}

// finishRun records the run outcome. When runErr is non-nil it is
// returned, wrapped with any record-keeping failure.
func (s *IngestService) finishRun(
	ctx context.Context, pipeline string, startedAt time.Time, processed, skipped int, runErr error,
) error {
	run := domain.RunRecord{
		ID:         uuid.NewString(),
		Pipeline:   pipeline,
		Status:     domain.RunSucceeded,
		Processed:  processed,
		Skipped:    skipped,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	if runErr != nil {
		run.Status = domain.RunFailed
		run.Error = runErr.Error()
	}

	if err := s.runs.Record(ctx, run); err != nil {
		logger.Warn("Failed to record run for %s: %v", pipeline, err)
		if runErr != nil {
			return errors.Join(runErr, err)
		}
		return fmt.Errorf("record run: %w", err)
	}
	return runErr
}

// isTransient reports whether an export failure is worth retrying.
func isTransient(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrVendorUnavailable)
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
