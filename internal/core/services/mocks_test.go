package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
)

// fakeExporter replays a fixed set of records over the channel pair.
type fakeExporter struct {
	typ        string
	collection domain.Collection
	records    []domain.RawRecord
	exportErr  error
	// failTimes makes the first N exports end with exportErr.
	failTimes   int
	validateErr error

	mu      sync.Mutex
	calls   int
	filters []driven.ExportFilter
}

func (f *fakeExporter) Type() string                  { return f.typ }
func (f *fakeExporter) Collection() domain.Collection { return f.collection }
func (f *fakeExporter) Close() error                  { return nil }

func (f *fakeExporter) Validate(context.Context) error { return f.validateErr }

func (f *fakeExporter) Export(_ context.Context, filter driven.ExportFilter) (<-chan domain.RawRecord, <-chan error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.filters = append(f.filters, filter)
	f.mu.Unlock()

	records := make(chan domain.RawRecord, len(f.records))
	errc := make(chan error, 1)
	for _, r := range f.records {
		records <- r
	}
	close(records)
	if f.exportErr != nil && (f.failTimes == 0 || call <= f.failTimes) {
		errc <- f.exportErr
	}
	close(errc)
	return records, errc
}

// fakeNormaliser passes records through as documents.
type fakeNormaliser struct {
	collection domain.Collection
	err        error
}

func (f *fakeNormaliser) Collection() domain.Collection { return f.collection }

func (f *fakeNormaliser) Normalise(rec domain.RawRecord, defaults driven.NormaliseDefaults) (domain.Document, error) {
	if f.err != nil {
		return domain.Document{}, f.err
	}
	return domain.Document{
		ID:         rec.ID,
		Collection: f.collection,
		Text:       rec.Text,
		Metadata: map[string]any{
			domain.MetaAuthor:    rec.Author,
			domain.MetaTimestamp: rec.Timestamp.Format(time.RFC3339),
		},
		IngestedAt: defaults.IngestedAt,
	}, nil
}

// fakeDocStore records upserts and serves gets from a map.
type fakeDocStore struct {
	mu        sync.Mutex
	docs      map[domain.Collection]map[string]domain.Document
	upserts   [][]domain.Document
	upsertErr error
	getErr    error
	reject    int
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[domain.Collection]map[string]domain.Document)}
}

func (f *fakeDocStore) put(doc domain.Document) {
	if f.docs[doc.Collection] == nil {
		f.docs[doc.Collection] = make(map[string]domain.Document)
	}
	f.docs[doc.Collection][doc.ID] = doc
}

func (f *fakeDocStore) Upsert(_ context.Context, collection domain.Collection, docs []domain.Document) (driven.UpsertStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return driven.UpsertStats{}, f.upsertErr
	}
	batch := make([]domain.Document, len(docs))
	copy(batch, docs)
	f.upserts = append(f.upserts, batch)
	written := 0
	for i, d := range docs {
		if i < f.reject {
			continue
		}
		d.Collection = collection
		f.put(d)
		written++
	}
	return driven.UpsertStats{Written: written, Rejected: min(f.reject, len(docs))}, nil
}

func (f *fakeDocStore) Get(_ context.Context, collection domain.Collection, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[collection][id]; ok {
		return &d, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDocStore) GetMany(_ context.Context, collection domain.Collection, ids []string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []domain.Document
	for _, id := range ids {
		if d, ok := f.docs[collection][id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocStore) Count(_ context.Context, collection domain.Collection) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs[collection]), nil
}

func (f *fakeDocStore) Close() error { return nil }

// fakeRunStore keeps run history in memory.
type fakeRunStore struct {
	mu   sync.Mutex
	runs []domain.RunRecord
}

func (f *fakeRunStore) LastSuccess(_ context.Context, pipeline string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.runs) - 1; i >= 0; i-- {
		if f.runs[i].Pipeline == pipeline && f.runs[i].Status == domain.RunSucceeded {
			return f.runs[i].StartedAt, nil
		}
	}
	return time.Time{}, domain.ErrNotFound
}

func (f *fakeRunStore) Record(_ context.Context, run domain.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRunStore) List(_ context.Context, pipeline string, limit int) ([]domain.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RunRecord
	for i := len(f.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.runs[i].Pipeline == pipeline {
			out = append(out, f.runs[i])
		}
	}
	return out, nil
}

// fakeSearchIndex serves canned hits per collection.
type fakeSearchIndex struct {
	hits       map[domain.Collection][]driven.SearchHit
	authorHits map[domain.Collection][]driven.SearchHit
	errs       map[domain.Collection]error
}

func (f *fakeSearchIndex) Index(context.Context, domain.Collection, []domain.Document) error {
	return nil
}

func (f *fakeSearchIndex) Search(_ context.Context, collection domain.Collection, _ string, limit int, _ driven.SearchFilters) ([]driven.SearchHit, error) {
	if err := f.errs[collection]; err != nil {
		return nil, err
	}
	hits := f.hits[collection]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeSearchIndex) SearchByAuthor(_ context.Context, collection domain.Collection, _ string, _, _ time.Time, limit int) ([]driven.SearchHit, error) {
	if err := f.errs[collection]; err != nil {
		return nil, err
	}
	hits := f.authorHits[collection]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeSearchIndex) Close() error { return nil }

// fakeVectorIndex serves canned similarity hits.
type fakeVectorIndex struct {
	hits map[domain.Collection][]driven.VectorHit
	err  error
}

func (f *fakeVectorIndex) Add(context.Context, domain.Collection, string, []float32) error {
	return nil
}

func (f *fakeVectorIndex) Search(_ context.Context, collection domain.Collection, _ []float32, k int) ([]driven.VectorHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	hits := f.hits[collection]
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeVectorIndex) Close() error { return nil }

// fakeEmbedder returns a fixed vector.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embedder" }
func (f *fakeEmbedder) Close() error      { return nil }

// fakeLLM replays scripted responses in order.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error

	prompts []string
}

func (f *fakeLLM) Complete(_ context.Context, _ string, messages []driven.ChatMessage, _ driven.CompleteOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if len(messages) > 0 {
		f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	}
	if len(f.responses) == 0 {
		return "", domain.ErrLLMUnavailable
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeLLM) ModelName() string          { return "fake-llm" }
func (f *fakeLLM) Ping(context.Context) error { return nil }
func (f *fakeLLM) Close() error               { return nil }

// fakeSink captures written reports.
type fakeSink struct {
	mu      sync.Mutex
	reports []domain.Report
	err     error
}

func (f *fakeSink) Write(_ context.Context, report domain.Report) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.reports = append(f.reports, report)
	return "/tmp/reports/" + report.ID + ".md", nil
}

// fakeSearcher returns a canned search response.
type fakeSearcher struct {
	resp    *domain.SearchResponse
	err     error
	gotOpts domain.SearchOptions
}

func (f *fakeSearcher) Search(_ context.Context, _ string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeSearcher) SearchByAuthor(context.Context, domain.Collection, string, time.Time, time.Time, int) ([]domain.SearchResult, error) {
	return nil, nil
}
