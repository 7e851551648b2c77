package domain

import "time"

// SearchOptions configures a multi-source search.
type SearchOptions struct {
	// TopK is the maximum number of merged results to return.
	TopK int

	// Collections restricts the fan-out to specific collections.
	// Order matters: it is the tie-break order for equal scores.
	// Empty means all known collections.
	Collections []Collection

	// From and To bound results to an inclusive timestamp window.
	// Zero values leave the corresponding side unbounded.
	From time.Time
	To   time.Time

	// Refine enables the secondary LLM relevance pass over the
	// merged results. Ignored when no LLM service is configured.
	Refine bool

	// SelectCollections asks the LLM to pick which collections are
	// worth querying, based on their descriptions, before fanning out.
	// Best effort: selection failures fall back to searching all.
	// Ignored when Collections is set or no LLM service is configured.
	SelectCollections bool
}

// SearchResult is a document plus its relevance score and originating
// collection. Its lifetime is the duration of one search call; scores
// are never persisted. Ordering by Score descending is a contract.
type SearchResult struct {
	// Document is the matched document.
	Document Document

	// Collection is where the match came from.
	Collection Collection

	// Score is the normalised relevance score, comparable across
	// collections within a single search call.
	Score float64

	// Rank is the original position within the collection's own
	// result list, used as the final merge tie-break.
	Rank int
}

// SearchResponse carries merged results plus which collections were
// skipped because their index was unavailable. Partial results are the
// designed behaviour: one broken source never blocks the others.
type SearchResponse struct {
	Results []SearchResult

	// Unavailable lists collections excluded from the merge because
	// their search failed.
	Unavailable []Collection
}
