package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
)

func storedDoc(collection domain.Collection, id, author string, ts time.Time) domain.Document {
	return domain.Document{
		ID:         id,
		Collection: collection,
		Text:       "content of " + id,
		Metadata: map[string]any{
			domain.MetaAuthor:    author,
			domain.MetaTimestamp: ts.Format(time.RFC3339),
		},
	}
}

func TestSearchMergesAcrossCollections(t *testing.T) {
	store := newFakeDocStore()
	ts := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	store.put(storedDoc(domain.CollectionEmail, "e1", "alice", ts))
	store.put(storedDoc(domain.CollectionEmail, "e2", "bob", ts))
	store.put(storedDoc(domain.CollectionIssues, "i1", "carol", ts))

	index := &fakeSearchIndex{hits: map[domain.Collection][]driven.SearchHit{
		domain.CollectionEmail: {
			{DocumentID: "e1", Score: 8.0},
			{DocumentID: "e2", Score: 2.0},
		},
		domain.CollectionIssues: {
			{DocumentID: "i1", Score: 0.5},
		},
	}}

	svc := NewSearchService(store, index, nil, nil, nil)
	resp, err := svc.Search(context.Background(), "deploy failure", domain.SearchOptions{
		TopK:        10,
		Collections: []domain.Collection{domain.CollectionEmail, domain.CollectionIssues},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Empty(t, resp.Unavailable)

	// Per-collection min-max: e1 → 1.0, e2 → 0.0, lone i1 → 1.0.
	// Equal scores break ties by caller collection order, so e1
	// precedes i1.
	assert.Equal(t, "e1", resp.Results[0].Document.ID)
	assert.Equal(t, "i1", resp.Results[1].Document.ID)
	assert.Equal(t, "e2", resp.Results[2].Document.ID)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-9)
	assert.InDelta(t, 1.0, resp.Results[1].Score, 1e-9)
	assert.InDelta(t, 0.0, resp.Results[2].Score, 1e-9)
}

func TestSearchScoresComparableAcrossScales(t *testing.T) {
	// Engine-native scales differ by orders of magnitude; both
	// collections' best hits must land at 1.0 after normalisation.
	store := newFakeDocStore()
	ts := time.Now().UTC()
	for _, id := range []string{"a1", "a2"} {
		store.put(storedDoc(domain.CollectionWiki, id, "dan", ts))
	}
	for _, id := range []string{"b1", "b2"} {
		store.put(storedDoc(domain.CollectionChat, id, "eve", ts))
	}

	index := &fakeSearchIndex{hits: map[domain.Collection][]driven.SearchHit{
		domain.CollectionWiki: {
			{DocumentID: "a1", Score: 900.0},
			{DocumentID: "a2", Score: 100.0},
		},
		domain.CollectionChat: {
			{DocumentID: "b1", Score: 0.09},
			{DocumentID: "b2", Score: 0.01},
		},
	}}

	svc := NewSearchService(store, index, nil, nil, nil)
	resp, err := svc.Search(context.Background(), "q", domain.SearchOptions{
		Collections: []domain.Collection{domain.CollectionWiki, domain.CollectionChat},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 4)
	assert.Equal(t, "a1", resp.Results[0].Document.ID)
	assert.Equal(t, "b1", resp.Results[1].Document.ID)
	assert.Equal(t, resp.Results[0].Score, resp.Results[1].Score)
}

func TestSearchPartialFailure(t *testing.T) {
	store := newFakeDocStore()
	store.put(storedDoc(domain.CollectionEmail, "e1", "alice", time.Now().UTC()))

	index := &fakeSearchIndex{
		hits: map[domain.Collection][]driven.SearchHit{
			domain.CollectionEmail: {{DocumentID: "e1", Score: 1.0}},
		},
		errs: map[domain.Collection]error{
			domain.CollectionChat: errors.New("index corrupted"),
		},
	}

	svc := NewSearchService(store, index, nil, nil, nil)
	resp, err := svc.Search(context.Background(), "q", domain.SearchOptions{
		Collections: []domain.Collection{domain.CollectionEmail, domain.CollectionChat},
	})
	require.NoError(t, err, "one broken collection must not fail the search")
	require.Len(t, resp.Results, 1)
	assert.Equal(t, []domain.Collection{domain.CollectionChat}, resp.Unavailable)
}

func TestSearchAllCollectionsFailing(t *testing.T) {
	index := &fakeSearchIndex{errs: map[domain.Collection]error{
		domain.CollectionEmail: errors.New("index corrupted"),
		domain.CollectionChat:  errors.New("index corrupted"),
	}}

	svc := NewSearchService(newFakeDocStore(), index, nil, nil, nil)
	resp, err := svc.Search(context.Background(), "q", domain.SearchOptions{
		Collections: []domain.Collection{domain.CollectionEmail, domain.CollectionChat},
	})
	require.Error(t, err, "with no collection answering there are no partial results to return")
	assert.ErrorIs(t, err, domain.ErrCollectionUnavailable)
	assert.Nil(t, resp)
}

func TestSearchTopKTruncation(t *testing.T) {
	store := newFakeDocStore()
	ts := time.Now().UTC()
	hits := make([]driven.SearchHit, 20)
	for i := range hits {
		id := string(rune('a'+i)) + "-doc"
		store.put(storedDoc(domain.CollectionWiki, id, "x", ts))
		hits[i] = driven.SearchHit{DocumentID: id, Score: float64(20 - i)}
	}
	index := &fakeSearchIndex{hits: map[domain.Collection][]driven.SearchHit{
		domain.CollectionWiki: hits,
	}}

	svc := NewSearchService(store, index, nil, nil, nil)
	resp, err := svc.Search(context.Background(), "q", domain.SearchOptions{
		TopK:        5,
		Collections: []domain.Collection{domain.CollectionWiki},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 5)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score,
			"results must be sorted by score descending")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	svc := NewSearchService(newFakeDocStore(), &fakeSearchIndex{}, nil, nil, nil)
	resp, err := svc.Search(context.Background(), "   ", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearchUnknownCollection(t *testing.T) {
	svc := NewSearchService(newFakeDocStore(), &fakeSearchIndex{}, nil, nil, nil)
	_, err := svc.Search(context.Background(), "q", domain.SearchOptions{
		Collections: []domain.Collection{"bogus"},
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedCollection)
}

func TestSearchHybridFusesVectorHits(t *testing.T) {
	store := newFakeDocStore()
	ts := time.Now().UTC()
	for _, id := range []string{"k1", "k2", "v1"} {
		store.put(storedDoc(domain.CollectionWiki, id, "x", ts))
	}

	index := &fakeSearchIndex{hits: map[domain.Collection][]driven.SearchHit{
		domain.CollectionWiki: {
			{DocumentID: "k1", Score: 5.0},
			{DocumentID: "k2", Score: 4.0},
		},
	}}
	vector := &fakeVectorIndex{hits: map[domain.Collection][]driven.VectorHit{
		domain.CollectionWiki: {
			{DocumentID: "k1", Similarity: 0.95},
			{DocumentID: "v1", Similarity: 0.90},
		},
	}}
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2}}

	svc := NewSearchService(store, index, vector, embedder, nil)
	resp, err := svc.Search(context.Background(), "q", domain.SearchOptions{
		Collections: []domain.Collection{domain.CollectionWiki},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	// k1 ranks first in both lists so fusion puts it on top; v1 came
	// from the vector side only.
	assert.Equal(t, "k1", resp.Results[0].Document.ID)
	ids := []string{resp.Results[0].Document.ID, resp.Results[1].Document.ID, resp.Results[2].Document.ID}
	assert.Contains(t, ids, "v1")
}

func TestSearchEmbeddingFailureDegradesToKeyword(t *testing.T) {
	store := newFakeDocStore()
	store.put(storedDoc(domain.CollectionWiki, "k1", "x", time.Now().UTC()))

	index := &fakeSearchIndex{hits: map[domain.Collection][]driven.SearchHit{
		domain.CollectionWiki: {{DocumentID: "k1", Score: 1.0}},
	}}
	vector := &fakeVectorIndex{}
	embedder := &fakeEmbedder{err: errors.New("model offline")}

	svc := NewSearchService(store, index, vector, embedder, nil)
	resp, err := svc.Search(context.Background(), "q", domain.SearchOptions{
		Collections: []domain.Collection{domain.CollectionWiki},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
}

func TestSearchRefinePassDropsRejected(t *testing.T) {
	store := newFakeDocStore()
	ts := time.Now().UTC()
	store.put(storedDoc(domain.CollectionEmail, "e1", "alice", ts))
	store.put(storedDoc(domain.CollectionEmail, "e2", "bob", ts))

	index := &fakeSearchIndex{hits: map[domain.Collection][]driven.SearchHit{
		domain.CollectionEmail: {
			{DocumentID: "e1", Score: 2.0},
			{DocumentID: "e2", Score: 1.0},
		},
	}}
	llm := &fakeLLM{responses: []string{"YES", "NO"}}

	svc := NewSearchService(store, index, nil, nil, llm)
	resp, err := svc.Search(context.Background(), "q", domain.SearchOptions{
		Collections: []domain.Collection{domain.CollectionEmail},
		Refine:      true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "e1", resp.Results[0].Document.ID)
}

func TestSearchSelectCollectionsNarrowsFanOut(t *testing.T) {
	store := newFakeDocStore()
	ts := time.Now().UTC()
	store.put(storedDoc(domain.CollectionChat, "c1", "alice", ts))
	store.put(storedDoc(domain.CollectionIssues, "i1", "bob", ts))
	store.put(storedDoc(domain.CollectionEmail, "e1", "carol", ts))

	index := &fakeSearchIndex{hits: map[domain.Collection][]driven.SearchHit{
		domain.CollectionChat:   {{DocumentID: "c1", Score: 1.0}},
		domain.CollectionIssues: {{DocumentID: "i1", Score: 1.0}},
		domain.CollectionEmail:  {{DocumentID: "e1", Score: 1.0}},
	}}
	llm := &fakeLLM{responses: []string{"chat_messages, jira_issues"}}

	svc := NewSearchService(store, index, nil, nil, llm)
	resp, err := svc.Search(context.Background(), "standup follow-ups", domain.SearchOptions{
		SelectCollections: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		assert.NotEqual(t, domain.CollectionEmail, r.Collection,
			"the model excluded email, so it must not be queried")
	}

	// The routing prompt carries the collection catalogue.
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], string(domain.CollectionChat))
	assert.Contains(t, llm.prompts[0], domain.CollectionWiki.Description())
}

func TestSearchSelectCollectionsFallsBack(t *testing.T) {
	store := newFakeDocStore()
	store.put(storedDoc(domain.CollectionEmail, "e1", "carol", time.Now().UTC()))
	index := &fakeSearchIndex{hits: map[domain.Collection][]driven.SearchHit{
		domain.CollectionEmail: {{DocumentID: "e1", Score: 1.0}},
	}}

	t.Run("llm failure", func(t *testing.T) {
		llm := &fakeLLM{err: errors.New("model offline")}
		svc := NewSearchService(store, index, nil, nil, llm)
		resp, err := svc.Search(context.Background(), "q", domain.SearchOptions{
			SelectCollections: true,
		})
		require.NoError(t, err)
		assert.Len(t, resp.Results, 1, "selection failure must degrade to searching everything")
	})

	t.Run("answer names no collection", func(t *testing.T) {
		llm := &fakeLLM{responses: []string{"none of the above"}}
		svc := NewSearchService(store, index, nil, nil, llm)
		resp, err := svc.Search(context.Background(), "q", domain.SearchOptions{
			SelectCollections: true,
		})
		require.NoError(t, err)
		assert.Len(t, resp.Results, 1)
	})

	t.Run("explicit collections skip selection", func(t *testing.T) {
		llm := &fakeLLM{}
		svc := NewSearchService(store, index, nil, nil, llm)
		_, err := svc.Search(context.Background(), "q", domain.SearchOptions{
			SelectCollections: true,
			Collections:       []domain.Collection{domain.CollectionEmail},
		})
		require.NoError(t, err)
		assert.Empty(t, llm.prompts, "a caller-supplied collection list is authoritative")
	})
}

func TestSearchDateWindowFiltersVectorHits(t *testing.T) {
	store := newFakeDocStore()
	inside := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	outside := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.put(storedDoc(domain.CollectionWiki, "in", "x", inside))
	store.put(storedDoc(domain.CollectionWiki, "out", "x", outside))

	index := &fakeSearchIndex{hits: map[domain.Collection][]driven.SearchHit{
		domain.CollectionWiki: {{DocumentID: "in", Score: 1.0}},
	}}
	vector := &fakeVectorIndex{hits: map[domain.Collection][]driven.VectorHit{
		domain.CollectionWiki: {{DocumentID: "out", Similarity: 0.99}},
	}}

	svc := NewSearchService(store, index, vector, &fakeEmbedder{vec: []float32{1}}, nil)
	resp, err := svc.Search(context.Background(), "q", domain.SearchOptions{
		Collections: []domain.Collection{domain.CollectionWiki},
		From:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "in", resp.Results[0].Document.ID)
}

func TestSearchByAuthor(t *testing.T) {
	store := newFakeDocStore()
	ts := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	store.put(storedDoc(domain.CollectionEmail, "e1", "alice@example.com", ts))
	store.put(storedDoc(domain.CollectionEmail, "e2", "alice@example.com", ts.Add(-time.Hour)))

	index := &fakeSearchIndex{authorHits: map[domain.Collection][]driven.SearchHit{
		domain.CollectionEmail: {
			{DocumentID: "e1"},
			{DocumentID: "e2"},
		},
	}}

	svc := NewSearchService(store, index, nil, nil, nil)
	results, err := svc.SearchByAuthor(
		context.Background(), domain.CollectionEmail, "alice@example.com",
		ts.Add(-24*time.Hour), ts.Add(time.Hour), 10,
	)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "e1", results[0].Document.ID)
	assert.Equal(t, "e2", results[1].Document.ID)
	assert.Equal(t, 0, results[0].Rank)
}

func TestSearchByAuthorValidation(t *testing.T) {
	svc := NewSearchService(newFakeDocStore(), &fakeSearchIndex{}, nil, nil, nil)

	_, err := svc.SearchByAuthor(context.Background(), "bogus", "alice", time.Time{}, time.Time{}, 10)
	assert.ErrorIs(t, err, domain.ErrUnsupportedCollection)

	_, err = svc.SearchByAuthor(context.Background(), domain.CollectionEmail, "  ", time.Time{}, time.Time{}, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormaliseScores(t *testing.T) {
	results := []domain.SearchResult{
		{Score: 10}, {Score: 5}, {Score: 0},
	}
	normaliseScores(results)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, 0.5, results[1].Score)
	assert.Equal(t, 0.0, results[2].Score)

	flat := []domain.SearchResult{{Score: 3}, {Score: 3}}
	normaliseScores(flat)
	assert.Equal(t, 1.0, flat[0].Score)
	assert.Equal(t, 1.0, flat[1].Score)
}
