package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

// SearchService provides multi-source search over the document store.
type SearchService interface {
	// Search fans the query out across the requested collections,
	// merges by normalised relevance score, and truncates to TopK.
	// A collection whose index is unavailable is excluded from the
	// merge and listed in the response, not treated as a failure.
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)

	// SearchByAuthor lists documents in one collection whose author
	// field equals author and whose timestamp falls in [from, to]
	// inclusive, ordered by timestamp descending, capped at limit.
	SearchByAuthor(ctx context.Context, collection domain.Collection, author string, from, to time.Time, limit int) ([]domain.SearchResult, error)
}
