package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

// SearchHit is a raw per-collection search result. Scores are on the
// engine's native scale and are NOT comparable across collections; the
// multi-source searcher normalises before merging.
type SearchHit struct {
	// DocumentID is the matched document.
	DocumentID string

	// Score is the engine-native relevance score.
	Score float64
}

// SearchFilters narrows a per-collection keyword search.
type SearchFilters struct {
	// From and To bound the canonical timestamp field (inclusive).
	From time.Time
	To   time.Time
}

// SearchIndex provides full-text and structured search over one or
// more collections. Backed by Bleve, one index per collection.
type SearchIndex interface {
	// Index adds or replaces documents in a collection's index.
	Index(ctx context.Context, collection domain.Collection, docs []domain.Document) error

	// Search performs a keyword search within one collection and
	// returns hits in the engine's ranking order.
	Search(ctx context.Context, collection domain.Collection, query string, limit int, filters SearchFilters) ([]SearchHit, error)

	// SearchByAuthor performs a filtered listing: equality match on the
	// canonical author field intersected with an inclusive timestamp
	// range, ordered by timestamp descending, capped at limit.
	// No relevance ranking.
	SearchByAuthor(ctx context.Context, collection domain.Collection, author string, from, to time.Time, limit int) ([]SearchHit, error)

	// Close releases resources.
	Close() error
}
