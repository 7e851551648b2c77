package driven

import (
	"context"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

// VectorIndex provides semantic similarity search per collection.
type VectorIndex interface {
	// Add inserts or replaces the vector for a document.
	Add(ctx context.Context, collection domain.Collection, docID string, embedding []float32) error

	// Search finds the k nearest neighbours to the query vector
	// within one collection.
	Search(ctx context.Context, collection domain.Collection, query []float32, k int) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// DocumentID is the matched document.
	DocumentID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}
