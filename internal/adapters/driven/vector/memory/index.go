// Package memory implements the vector index port as an in-memory
// cosine-similarity store. Vectors are persisted by the SQLite
// document store and replayed into this index on startup, so the
// process holds no exclusive state.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

type entry struct {
	id  string
	vec []float32
	// norm caches the vector magnitude for cosine similarity.
	norm float64
}

// Index is an exact (brute-force) nearest-neighbour index, one vector
// set per collection. Exact scan is fine at the corpus sizes a single
// team produces; swap the backing implementation if that changes.
type Index struct {
	mu          sync.RWMutex
	collections map[domain.Collection]map[string]*entry
}

// NewIndex creates an empty vector index.
func NewIndex() *Index {
	return &Index{
		collections: make(map[domain.Collection]map[string]*entry),
	}
}

// Add inserts or replaces the vector for a document.
func (x *Index) Add(_ context.Context, collection domain.Collection, docID string, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding for %s", domain.ErrInvalidInput, docID)
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.collections[collection] == nil {
		x.collections[collection] = make(map[string]*entry)
	}
	x.collections[collection][docID] = &entry{id: docID, vec: vec, norm: norm(vec)}
	return nil
}

// Search finds the k nearest neighbours by cosine similarity.
func (x *Index) Search(
	_ context.Context, collection domain.Collection, query []float32, k int,
) ([]driven.VectorHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidInput)
	}
	queryNorm := norm(query)
	if queryNorm == 0 {
		return nil, fmt.Errorf("%w: zero query vector", domain.ErrInvalidInput)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	entries := x.collections[collection]
	hits := make([]driven.VectorHit, 0, len(entries))
	for _, e := range entries {
		if len(e.vec) != len(query) || e.norm == 0 {
			continue
		}
		hits = append(hits, driven.VectorHit{
			DocumentID: e.id,
			Similarity: dot(query, e.vec) / (queryNorm * e.norm),
		})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Similarity != hits[b].Similarity {
			return hits[a].Similarity > hits[b].Similarity
		}
		return hits[a].DocumentID < hits[b].DocumentID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Size returns the number of vectors held for a collection.
func (x *Index) Size(collection domain.Collection) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.collections[collection])
}

// Close releases held vectors.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.collections = make(map[domain.Collection]map[string]*entry)
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
