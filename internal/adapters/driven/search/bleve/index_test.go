package bleve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx := NewIndex(t.TempDir())
	t.Cleanup(func() { idx.Close() })
	return idx
}

func indexedDoc(id, text, author string, ts time.Time) domain.Document {
	return domain.Document{
		ID:         id,
		Collection: domain.CollectionEmail,
		Text:       text,
		Metadata: map[string]any{
			domain.MetaAuthor:    author,
			domain.MetaTimestamp: ts.Format(time.RFC3339),
		},
	}
}

func TestSearchRanksByRelevance(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	ts := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	err := idx.Index(ctx, domain.CollectionEmail, []domain.Document{
		indexedDoc("m1", "the deploy failed because the database migration timed out", "alice", ts),
		indexedDoc("m2", "lunch options for friday", "bob", ts),
		indexedDoc("m3", "deploy deploy deploy everything is about the deploy", "carol", ts),
	})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, domain.CollectionEmail, "deploy", 10, driven.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, hits, 2, "non-matching documents are absent")
	for _, h := range hits {
		assert.NotEqual(t, "m2", h.DocumentID)
		assert.Greater(t, h.Score, 0.0)
	}
}

func TestSearchReindexReplaces(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	require.NoError(t, idx.Index(ctx, domain.CollectionEmail, []domain.Document{
		indexedDoc("m1", "kubernetes cluster upgrade", "alice", ts),
	}))
	require.NoError(t, idx.Index(ctx, domain.CollectionEmail, []domain.Document{
		indexedDoc("m1", "quarterly budget review", "alice", ts),
	}))

	hits, err := idx.Search(ctx, domain.CollectionEmail, "kubernetes", 10, driven.SearchFilters{})
	require.NoError(t, err)
	assert.Empty(t, hits, "old content must not survive a re-index")

	hits, err = idx.Search(ctx, domain.CollectionEmail, "budget", 10, driven.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "m1", hits[0].DocumentID)
}

func TestSearchDateWindow(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	old := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, idx.Index(ctx, domain.CollectionEmail, []domain.Document{
		indexedDoc("m-old", "incident retrospective notes", "alice", old),
		indexedDoc("m-new", "incident retrospective notes", "alice", recent),
	}))

	hits, err := idx.Search(ctx, domain.CollectionEmail, "retrospective", 10, driven.SearchFilters{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "m-new", hits[0].DocumentID)
}

func TestSearchByAuthor(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, idx.Index(ctx, domain.CollectionEmail, []domain.Document{
		indexedDoc("m1", "first message", "alice@example.com", base),
		indexedDoc("m2", "second message", "alice@example.com", base.Add(2*time.Hour)),
		indexedDoc("m3", "other author", "bob@example.com", base.Add(time.Hour)),
		indexedDoc("m4", "too old", "alice@example.com", base.Add(-48*time.Hour)),
	}))

	hits, err := idx.SearchByAuthor(ctx, domain.CollectionEmail, "alice@example.com",
		base.Add(-time.Hour), base.Add(24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "m2", hits[0].DocumentID, "newest first")
	assert.Equal(t, "m1", hits[1].DocumentID)
}

func TestSearchByAuthorExactMatch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	require.NoError(t, idx.Index(ctx, domain.CollectionEmail, []domain.Document{
		indexedDoc("m1", "hello", "alice@example.com", ts),
	}))

	// The author field is keyword-analyzed: a partial token must not match.
	hits, err := idx.SearchByAuthor(ctx, domain.CollectionEmail, "alice", time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCollectionsAreIsolated(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	require.NoError(t, idx.Index(ctx, domain.CollectionEmail, []domain.Document{
		indexedDoc("m1", "payments outage", "alice", ts),
	}))

	hits, err := idx.Search(ctx, domain.CollectionChat, "payments", 10, driven.SearchFilters{})
	require.NoError(t, err)
	assert.Empty(t, hits, "a search in one collection must not see another's documents")
}
