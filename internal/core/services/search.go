package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
	"github.com/custodia-labs/scribe/internal/core/ports/driving"
	"github.com/custodia-labs/scribe/internal/logger"
)

// Ensure SearchService implements the interfaces.
var (
	_ driving.SearchService   = (*SearchService)(nil)
	_ driven.PromptStoreAware = (*SearchService)(nil)
)

const (
	// defaultTopK is the merged result cap when the caller gives none.
	defaultTopK = 10

	// rrfK is the reciprocal rank fusion constant. 60 is the standard
	// value from the original RRF paper.
	rrfK = 60
)

// defaultSelectPrompt asks the model to route a query to collections.
const defaultSelectPrompt = `You route search queries to document collections. Given a query and the catalogue below, reply with the comma-separated names of the collections worth searching, and nothing else. When in doubt about a collection, include it.

Query: %s

Collections:
%s`

// defaultRelevancePrompt asks the model to keep or drop one result.
const defaultRelevancePrompt = `You judge search relevance. Given a query and a document, answer with exactly YES if the document helps answer the query, or NO if it does not. Answer with one word only.

Query: %s

Document:
%s`

// collectionResult is one collection's contribution to the merge.
type collectionResult struct {
	collection domain.Collection
	results    []domain.SearchResult
	err        error
}

// SearchService fans queries out across collections concurrently,
// normalises scores per collection, and merges.
type SearchService struct {
	docStore driven.DocumentStore
	index    driven.SearchIndex
	vector   driven.VectorIndex
	embedder driven.EmbeddingService
	llm      driven.LLMService
	prompts  driven.PromptStore
}

// NewSearchService creates a search service. The vector, embedder and
// llm parameters are optional (can be nil); absence degrades search to
// keyword-only and disables the refine pass.
func NewSearchService(
	docStore driven.DocumentStore,
	index driven.SearchIndex,
	vector driven.VectorIndex,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
) *SearchService {
	return &SearchService{
		docStore: docStore,
		index:    index,
		vector:   vector,
		embedder: embedder,
		llm:      llm,
	}
}

// SetPromptStore sets the prompt store for the relevance filter prompt.
func (s *SearchService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Search performs a concurrent multi-source search.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	logger.Section("Multi-Source Search")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return &domain.SearchResponse{Results: []domain.SearchResult{}}, nil
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	collections := opts.Collections
	if len(collections) == 0 {
		collections = domain.AllCollections()
		if opts.SelectCollections && s.llm != nil {
			collections = s.selectCollections(ctx, query, collections)
		}
	}
	for _, c := range collections {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedCollection, c)
		}
	}
	logger.Debug("Fan-out over %d collections, topK=%d", len(collections), topK)

	// One embedding for all collections. Embedding failure degrades to
	// keyword-only rather than failing the search.
	var queryVec []float32
	if s.vector != nil && s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			logger.Warn("Query embedding failed, keyword-only search: %v", err)
		} else {
			queryVec = vec
		}
	}

	// Fan out one goroutine per collection.
	out := make([]collectionResult, len(collections))
	var wg sync.WaitGroup
	for i, c := range collections {
		wg.Add(1)
		go func(i int, c domain.Collection) {
			defer wg.Done()
			results, err := s.searchCollection(ctx, c, query, queryVec, topK, opts)
			out[i] = collectionResult{collection: c, results: results, err: err}
		}(i, c)
	}
	wg.Wait()

	resp := &domain.SearchResponse{}
	order := make(map[domain.Collection]int, len(collections))
	var merged []domain.SearchResult
	for i, cr := range out {
		order[cr.collection] = i
		if cr.err != nil {
			logger.Warn("Collection %s unavailable: %v", cr.collection, cr.err)
			resp.Unavailable = append(resp.Unavailable, cr.collection)
			continue
		}
		merged = append(merged, cr.results...)
	}
	if len(resp.Unavailable) == len(collections) {
		return nil, fmt.Errorf("all %d collections unavailable: %w",
			len(collections), domain.ErrCollectionUnavailable)
	}

	// Merge: normalised score descending; ties break by caller
	// collection order, then original per-collection rank.
	sort.SliceStable(merged, func(a, b int) bool {
		if merged[a].Score != merged[b].Score {
			return merged[a].Score > merged[b].Score
		}
		if order[merged[a].Collection] != order[merged[b].Collection] {
			return order[merged[a].Collection] < order[merged[b].Collection]
		}
		return merged[a].Rank < merged[b].Rank
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}

	if opts.Refine && s.llm != nil && len(merged) > 0 {
		merged = s.refine(ctx, query, merged)
	}

	resp.Results = merged
	logger.Info("Search returned %d results (%d collections unavailable)",
		len(resp.Results), len(resp.Unavailable))
	return resp, nil
}

// searchCollection runs the hybrid search for one collection and
// returns hydrated results with normalised scores.
func (s *SearchService) searchCollection(
	ctx context.Context,
	collection domain.Collection,
	query string,
	queryVec []float32,
	topK int,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	filters := driven.SearchFilters{From: opts.From, To: opts.To}

	keyword, err := s.index.Search(ctx, collection, query, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCollectionUnavailable, collection, err)
	}

	var vector []driven.VectorHit
	if queryVec != nil {
		vector, err = s.vector.Search(ctx, collection, queryVec, topK)
		if err != nil {
			// Vector miss degrades this collection to keyword-only.
			logger.Warn("Vector search failed for %s: %v", collection, err)
			vector = nil
		}
	}

	hits := fuseHits(keyword, vector)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	scoreByID := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.DocumentID
		scoreByID[h.DocumentID] = h.Score
	}

	docs, err := s.docStore.GetMany(ctx, collection, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCollectionUnavailable, collection, err)
	}

	byID := make(map[string]domain.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		doc, ok := byID[h.DocumentID]
		if !ok {
			continue
		}
		// Vector hits bypass the index-side date filter, so the window
		// is re-checked on the hydrated document.
		if !inWindow(doc.Timestamp(), opts.From, opts.To) {
			continue
		}
		results = append(results, domain.SearchResult{
			Document:   doc,
			Collection: collection,
			Score:      scoreByID[h.DocumentID],
			Rank:       len(results),
		})
	}

	normaliseScores(results)
	return results, nil
}

// fuseHits merges keyword and vector rankings with reciprocal rank
// fusion. With no vector hits the keyword ranking passes through with
// RRF-shaped scores so downstream normalisation sees one scale.
func fuseHits(keyword []driven.SearchHit, vector []driven.VectorHit) []driven.SearchHit {
	fused := make(map[string]float64)
	for rank, h := range keyword {
		fused[h.DocumentID] += 1.0 / float64(rrfK+rank+1)
	}
	for rank, h := range vector {
		fused[h.DocumentID] += 1.0 / float64(rrfK+rank+1)
	}

	hits := make([]driven.SearchHit, 0, len(fused))
	for id, score := range fused {
		hits = append(hits, driven.SearchHit{DocumentID: id, Score: score})
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].DocumentID < hits[b].DocumentID
	})
	return hits
}

// normaliseScores rescales one collection's scores to [0,1] with
// min-max. Engine-native scores are not comparable across collections;
// after this pass they are. A single result, or a flat score list,
// normalises to 1.0.
func normaliseScores(results []domain.SearchResult) {
	if len(results) == 0 {
		return
	}
	lo, hi := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < lo {
			lo = r.Score
		}
		if r.Score > hi {
			hi = r.Score
		}
	}
	for i := range results {
		if hi == lo {
			results[i].Score = 1.0
			continue
		}
		results[i].Score = (results[i].Score - lo) / (hi - lo)
	}
}

// selectCollections asks the model which of the candidate collections
// are worth querying, one bounded call. A failed call or an answer
// naming no known collection falls back to searching all candidates.
func (s *SearchService) selectCollections(
	ctx context.Context, query string, candidates []domain.Collection,
) []domain.Collection {
	var catalogue strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&catalogue, "- %s: %s\n", c, c.Description())
	}

	template := s.prompt(driven.PromptCollectionSelect, defaultSelectPrompt)
	answer, err := s.llm.Complete(ctx, "", []driven.ChatMessage{
		{Role: "user", Content: fmt.Sprintf(template, query, catalogue.String())},
	}, driven.CompleteOptions{MaxTokens: 64})
	if err != nil {
		logger.Warn("Collection selection failed, searching everything: %v", err)
		return candidates
	}

	chosen := make(map[domain.Collection]bool)
	for _, name := range strings.FieldsFunc(answer, func(r rune) bool {
		return r == ',' || r == '\n'
	}) {
		c := domain.Collection(strings.ToLower(strings.TrimSpace(name)))
		if c.Valid() {
			chosen[c] = true
		}
	}
	if len(chosen) == 0 {
		logger.Warn("Collection selection answer unusable (%q), searching everything", answer)
		return candidates
	}

	selected := make([]domain.Collection, 0, len(chosen))
	for _, c := range candidates {
		if chosen[c] {
			selected = append(selected, c)
		}
	}
	logger.Debug("Selected %d of %d collections", len(selected), len(candidates))
	return selected
}

// refine runs the secondary LLM relevance pass. LLM failures keep the
// result rather than dropping it.
func (s *SearchService) refine(
	ctx context.Context, query string, results []domain.SearchResult,
) []domain.SearchResult {
	logger.Debug("Refine pass over %d results", len(results))
	template := s.prompt(driven.PromptRelevanceFilter, defaultRelevancePrompt)

	kept := results[:0]
	for _, r := range results {
		prompt := fmt.Sprintf(template, query, snippet(r.Document.Text, 1500))
		answer, err := s.llm.Complete(ctx, "", []driven.ChatMessage{
			{Role: "user", Content: prompt},
		}, driven.CompleteOptions{MaxTokens: 8})
		if err != nil {
			logger.Warn("Refine call failed, keeping result %s: %v", r.Document.ID, err)
			kept = append(kept, r)
			continue
		}
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(answer)), "NO") {
			logger.Debug("Refine dropped %s", r.Document.ID)
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// SearchByAuthor lists one collection's documents by author within a
// time window, newest first.
func (s *SearchService) SearchByAuthor(
	ctx context.Context, collection domain.Collection, author string, from, to time.Time, limit int,
) ([]domain.SearchResult, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedCollection, collection)
	}
	author = strings.TrimSpace(author)
	if author == "" {
		return nil, fmt.Errorf("%w: empty author", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultTopK
	}

	hits, err := s.index.SearchByAuthor(ctx, collection, author, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("search by author in %s: %w", collection, err)
	}
	if len(hits) == 0 {
		return []domain.SearchResult{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.DocumentID
	}
	docs, err := s.docStore.GetMany(ctx, collection, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate author results: %w", err)
	}
	byID := make(map[string]domain.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		doc, ok := byID[h.DocumentID]
		if !ok {
			continue
		}
		results = append(results, domain.SearchResult{
			Document:   doc,
			Collection: collection,
			Rank:       len(results),
		})
	}
	return results, nil
}

// prompt loads a named prompt, falling back to the built-in default.
func (s *SearchService) prompt(name, fallback string) string {
	if s.prompts == nil {
		return fallback
	}
	p, err := s.prompts.Load(name)
	if err != nil || strings.TrimSpace(p) == "" {
		return fallback
	}
	return p
}

// snippet truncates text to at most n bytes on a rune boundary.
func snippet(text string, n int) string {
	if len(text) <= n {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "…"
}

// inWindow reports whether t falls inside the inclusive [from, to]
// window. A zero t passes only an unbounded window; zero bounds are
// open on that side.
func inWindow(t, from, to time.Time) bool {
	if from.IsZero() && to.IsZero() {
		return true
	}
	if t.IsZero() {
		return false
	}
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
