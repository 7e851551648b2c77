package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
)

func noSleep(context.Context, time.Duration) error { return nil }

func emailRecords(n int) []domain.RawRecord {
	records := make([]domain.RawRecord, n)
	for i := range records {
		records[i] = domain.RawRecord{
			ID:         fmt.Sprintf("msg-%03d", i),
			Collection: domain.CollectionEmail,
			Text:       fmt.Sprintf("message body %d", i),
			Author:     "alice@example.com",
			Timestamp:  time.Date(2026, 3, 1, 10, i, 0, 0, time.UTC),
		}
	}
	return records
}

func newTestIngest(t *testing.T, exp *fakeExporter) (*IngestService, *fakeDocStore, *fakeRunStore) {
	t.Helper()
	store := newFakeDocStore()
	runs := &fakeRunStore{}
	svc, err := NewIngestService(store, runs, []Pipeline{{
		Exporter:   exp,
		Normaliser: &fakeNormaliser{collection: exp.collection},
	}})
	require.NoError(t, err)
	svc.sleep = noSleep
	return svc, store, runs
}

func TestIngestRunFullThenIncremental(t *testing.T) {
	exp := &fakeExporter{typ: "gmail", collection: domain.CollectionEmail, records: emailRecords(3)}
	svc, store, runs := newTestIngest(t, exp)

	// First run: no history, full export.
	summary, err := svc.Run(context.Background(), "gmail")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 0, summary.Skipped)
	assert.False(t, summary.Incremental)
	assert.True(t, exp.filters[0].Since.IsZero())

	count, err := store.Count(context.Background(), domain.CollectionEmail)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Second run: window starts at first run's start time.
	summary, err = svc.Run(context.Background(), "gmail")
	require.NoError(t, err)
	assert.True(t, summary.Incremental)
	assert.Equal(t, runs.runs[0].StartedAt, exp.filters[1].Since)
}

func TestIngestRunIsIdempotent(t *testing.T) {
	exp := &fakeExporter{typ: "gmail", collection: domain.CollectionEmail, records: emailRecords(5)}
	svc, store, _ := newTestIngest(t, exp)

	_, err := svc.Run(context.Background(), "gmail")
	require.NoError(t, err)
	_, err = svc.Run(context.Background(), "gmail")
	require.NoError(t, err)

	count, err := store.Count(context.Background(), domain.CollectionEmail)
	require.NoError(t, err)
	assert.Equal(t, 5, count, "re-ingesting the same records must not duplicate")
}

func TestIngestSkipsMalformedRecords(t *testing.T) {
	records := emailRecords(2)
	records = append(records, domain.RawRecord{Text: "no id here"})
	exp := &fakeExporter{typ: "gmail", collection: domain.CollectionEmail, records: records}
	svc, _, _ := newTestIngest(t, exp)

	summary, err := svc.Run(context.Background(), "gmail")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
}

func TestIngestRetriesTransientFailures(t *testing.T) {
	exp := &fakeExporter{
		typ:        "jira",
		collection: domain.CollectionIssues,
		records: []domain.RawRecord{
			{ID: "PROJ-1", Collection: domain.CollectionIssues, Text: "fix login"},
		},
		exportErr: domain.ErrRateLimited,
		failTimes: 2,
	}
	svc, _, runs := newTestIngest(t, exp)

	summary, err := svc.Run(context.Background(), "jira")
	require.NoError(t, err)
	assert.Equal(t, 3, exp.calls, "two failures then success")
	assert.Equal(t, 1, summary.Processed)
	require.Len(t, runs.runs, 1)
	assert.Equal(t, domain.RunSucceeded, runs.runs[0].Status)
}

func TestIngestGivesUpAfterMaxAttempts(t *testing.T) {
	exp := &fakeExporter{
		typ:        "jira",
		collection: domain.CollectionIssues,
		exportErr:  domain.ErrVendorUnavailable,
	}
	svc, _, runs := newTestIngest(t, exp)

	_, err := svc.Run(context.Background(), "jira")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVendorUnavailable)
	assert.Equal(t, maxExportAttempts, exp.calls)
	require.Len(t, runs.runs, 1)
	assert.Equal(t, domain.RunFailed, runs.runs[0].Status)
}

func TestIngestAuthFailureIsNotRetried(t *testing.T) {
	exp := &fakeExporter{
		typ:         "slack",
		collection:  domain.CollectionChat,
		validateErr: domain.ErrAuthInvalid,
	}
	svc, _, runs := newTestIngest(t, exp)

	_, err := svc.Run(context.Background(), "slack")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
	assert.Equal(t, 0, exp.calls)
	require.Len(t, runs.runs, 1)
	assert.Equal(t, domain.RunFailed, runs.runs[0].Status)
}

func TestIngestFailedRunDoesNotAdvanceWindow(t *testing.T) {
	exp := &fakeExporter{
		typ:        "gmail",
		collection: domain.CollectionEmail,
		records:    emailRecords(1),
	}
	svc, _, _ := newTestIngest(t, exp)

	_, err := svc.Run(context.Background(), "gmail")
	require.NoError(t, err)

	exp.mu.Lock()
	exp.exportErr = domain.ErrVendorUnavailable
	exp.mu.Unlock()
	_, err = svc.Run(context.Background(), "gmail")
	require.Error(t, err)

	exp.mu.Lock()
	exp.exportErr = nil
	exp.mu.Unlock()
	summary, err := svc.Run(context.Background(), "gmail")
	require.NoError(t, err)
	assert.True(t, summary.Incremental)
	// Third run's window comes from the first (successful) run, not
	// the failed second one.
	assert.Equal(t, exp.filters[0].Since, time.Time{})
	last := exp.filters[len(exp.filters)-1]
	assert.Equal(t, exp.filters[1].Since, last.Since)
}

func TestIngestUnknownPipeline(t *testing.T) {
	exp := &fakeExporter{typ: "gmail", collection: domain.CollectionEmail}
	svc, _, _ := newTestIngest(t, exp)

	_, err := svc.Run(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestRunAllContinuesPastFailures(t *testing.T) {
	good := &fakeExporter{typ: "gmail", collection: domain.CollectionEmail, records: emailRecords(2)}
	bad := &fakeExporter{typ: "slack", collection: domain.CollectionChat, validateErr: domain.ErrAuthRequired}
	also := &fakeExporter{
		typ:        "notion",
		collection: domain.CollectionWiki,
		records: []domain.RawRecord{
			{ID: "page-1", Collection: domain.CollectionWiki, Text: "runbook"},
		},
	}

	store := newFakeDocStore()
	runs := &fakeRunStore{}
	svc, err := NewIngestService(store, runs, []Pipeline{
		{Exporter: good, Normaliser: &fakeNormaliser{collection: domain.CollectionEmail}},
		{Exporter: bad, Normaliser: &fakeNormaliser{collection: domain.CollectionChat}},
		{Exporter: also, Normaliser: &fakeNormaliser{collection: domain.CollectionWiki}},
	})
	require.NoError(t, err)
	svc.sleep = noSleep

	summaries, err := svc.RunAll(context.Background())
	require.Error(t, err, "the failing pipeline surfaces in the joined error")
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	require.Len(t, summaries, 2, "healthy pipelines still run")
	assert.Equal(t, "gmail", summaries[0].Pipeline)
	assert.Equal(t, "notion", summaries[1].Pipeline)
}

func TestIngestBatchesUpserts(t *testing.T) {
	exp := &fakeExporter{typ: "gmail", collection: domain.CollectionEmail, records: emailRecords(7)}
	svc, store, _ := newTestIngest(t, exp)
	svc.batchSize = 3

	summary, err := svc.Run(context.Background(), "gmail")
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Processed)
	require.Len(t, store.upserts, 3)
	assert.Len(t, store.upserts[0], 3)
	assert.Len(t, store.upserts[1], 3)
	assert.Len(t, store.upserts[2], 1)
}

func TestValidatePipelines(t *testing.T) {
	tests := []struct {
		name      string
		pipelines []Pipeline
		wantErr   error
	}{
		{
			name: "duplicate name",
			pipelines: []Pipeline{
				{Exporter: &fakeExporter{typ: "gmail", collection: domain.CollectionEmail}, Normaliser: &fakeNormaliser{collection: domain.CollectionEmail}},
				{Exporter: &fakeExporter{typ: "gmail", collection: domain.CollectionEmail}, Normaliser: &fakeNormaliser{collection: domain.CollectionEmail}},
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "unknown collection",
			pipelines: []Pipeline{
				{Exporter: &fakeExporter{typ: "x", collection: "bogus"}, Normaliser: &fakeNormaliser{collection: "bogus"}},
			},
			wantErr: domain.ErrUnsupportedCollection,
		},
		{
			name: "collection mismatch",
			pipelines: []Pipeline{
				{Exporter: &fakeExporter{typ: "gmail", collection: domain.CollectionEmail}, Normaliser: &fakeNormaliser{collection: domain.CollectionChat}},
			},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIngestService(newFakeDocStore(), &fakeRunStore{}, tt.pipelines)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

var _ driven.Exporter = (*fakeExporter)(nil)
var _ driven.Normaliser = (*fakeNormaliser)(nil)

// streamingExporter produces records from a goroutine the way the real
// exporters do: sends block until drained or the context ends. done
// closes when that goroutine exits.
type streamingExporter struct {
	typ        string
	collection domain.Collection
	count      int
	done       chan struct{}
}

var _ driven.Exporter = (*streamingExporter)(nil)

func (s *streamingExporter) Type() string                  { return s.typ }
func (s *streamingExporter) Collection() domain.Collection { return s.collection }
func (s *streamingExporter) Close() error                  { return nil }

func (s *streamingExporter) Validate(context.Context) error { return nil }

func (s *streamingExporter) Export(ctx context.Context, _ driven.ExportFilter) (<-chan domain.RawRecord, <-chan error) {
	records := make(chan domain.RawRecord, 20)
	errc := make(chan error, 1)
	go func() {
		defer close(s.done)
		defer close(records)
		defer close(errc)
		for i := 0; i < s.count; i++ {
			rec := domain.RawRecord{
				ID:         fmt.Sprintf("rec-%04d", i),
				Collection: s.collection,
				Text:       "streamed record",
			}
			select {
			case records <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return records, errc
}

func TestIngestStoreFailureStopsExporter(t *testing.T) {
	exp := &streamingExporter{
		typ:        "gmail",
		collection: domain.CollectionEmail,
		count:      500,
		done:       make(chan struct{}),
	}
	store := newFakeDocStore()
	store.upsertErr = errors.New("disk full")
	svc, err := NewIngestService(store, &fakeRunStore{}, []Pipeline{{
		Exporter:   exp,
		Normaliser: &fakeNormaliser{collection: domain.CollectionEmail},
	}})
	require.NoError(t, err)
	svc.sleep = noSleep

	_, err = svc.Run(context.Background(), "gmail")
	require.Error(t, err)

	// The first failing flush aborts the run mid-stream; the exporter
	// goroutine, still holding hundreds of records, must not be left
	// blocked on its channel.
	select {
	case <-exp.done:
	case <-time.After(2 * time.Second):
		t.Fatal("exporter goroutine still running after the failed run")
	}
}

func TestIngestHistory(t *testing.T) {
	exp := &fakeExporter{typ: "gmail", collection: domain.CollectionEmail, records: emailRecords(2)}
	svc, _, _ := newTestIngest(t, exp)

	_, err := svc.Run(context.Background(), "gmail")
	require.NoError(t, err)

	history, err := svc.History(context.Background(), "gmail", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.RunSucceeded, history[0].Status)
	assert.Equal(t, 2, history[0].Processed)

	_, err = svc.History(context.Background(), "nope", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
