// Package dual implements the document store port as a composite that
// keeps the canonical store and the derived indexes in step: every
// upsert writes SQLite (system of record), the Bleve full-text index,
// and the vector index, computing embeddings at ingest time when an
// embedding service is configured.
package dual

import (
	"context"
	"errors"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
	"github.com/custodia-labs/scribe/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

// Store fans document writes out to the canonical store and the
// derived indexes. Reads go to the canonical store only.
type Store struct {
	primary  driven.DocumentStore
	index    driven.SearchIndex
	vector   driven.VectorIndex
	embedder driven.EmbeddingService
}

// NewStore creates the composite. The vector index and embedder are
// optional (can be nil); without them documents are stored and
// full-text indexed but not vector-searchable.
func NewStore(
	primary driven.DocumentStore,
	index driven.SearchIndex,
	vector driven.VectorIndex,
	embedder driven.EmbeddingService,
) *Store {
	return &Store{
		primary:  primary,
		index:    index,
		vector:   vector,
		embedder: embedder,
	}
}

// Upsert validates, embeds, and writes documents to every backend.
// A batch that fails against the canonical store is retried once at
// half size; documents still failing after that are skipped with a
// per-id logged error rather than aborting the run.
func (s *Store) Upsert(
	ctx context.Context, collection domain.Collection, docs []domain.Document,
) (driven.UpsertStats, error) {
	var stats driven.UpsertStats

	// Validate up front so every backend sees the same accepted set.
	accepted := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if err := domain.ValidateMetadata(doc.Metadata); err != nil {
			logger.Warn("Rejecting document %s/%s: %v", collection, doc.ID, err)
			stats.Rejected++
			continue
		}
		accepted = append(accepted, doc)
	}
	if len(accepted) == 0 {
		return stats, nil
	}

	s.embed(ctx, accepted)

	written, skipped := s.writeCanonical(ctx, collection, accepted)
	stats.Written = len(written)
	stats.Rejected += skipped
	if len(written) == 0 {
		return stats, nil
	}

	// Derived indexes. An index failure is logged, not fatal: the
	// canonical store holds the truth and indexes can be rebuilt.
	if err := s.index.Index(ctx, collection, written); err != nil {
		logger.Warn("Full-text indexing failed for %s: %v", collection, err)
	}
	if s.vector != nil {
		for _, doc := range written {
			if len(doc.Embedding) == 0 {
				continue
			}
			if err := s.vector.Add(ctx, collection, doc.ID, doc.Embedding); err != nil {
				logger.Warn("Vector indexing failed for %s/%s: %v", collection, doc.ID, err)
			}
		}
	}

	return stats, nil
}

// embed fills in missing embeddings. A per-document embedding failure
// leaves that document keyword-only.
func (s *Store) embed(ctx context.Context, docs []domain.Document) {
	if s.embedder == nil || s.vector == nil {
		return
	}
	for i := range docs {
		if len(docs[i].Embedding) > 0 || docs[i].Text == "" {
			continue
		}
		vec, err := s.embedder.Embed(ctx, docs[i].Text)
		if err != nil {
			logger.Warn("Embedding failed for %s, keyword-only: %v", docs[i].ID, err)
			continue
		}
		docs[i].Embedding = vec
	}
}

// writeCanonical writes a batch to the canonical store with the
// half-size retry policy, returning the documents actually written.
func (s *Store) writeCanonical(
	ctx context.Context, collection domain.Collection, docs []domain.Document,
) (written []domain.Document, skipped int) {
	stats, err := s.primary.Upsert(ctx, collection, docs)
	if err == nil {
		return acceptedPrefix(docs, stats), stats.Rejected
	}

	logger.Warn("Batch of %d failed for %s, retrying at half size: %v", len(docs), collection, err)
	mid := len(docs) / 2
	if mid == 0 {
		logger.Error("Skipping document %s/%s: %v", collection, docs[0].ID, err)
		return nil, 1
	}

	for _, half := range [][]domain.Document{docs[:mid], docs[mid:]} {
		stats, err := s.primary.Upsert(ctx, collection, half)
		if err == nil {
			written = append(written, acceptedPrefix(half, stats)...)
			skipped += stats.Rejected
			continue
		}
		// The half failed too: write one by one and drop offenders.
		for _, doc := range half {
			if _, err := s.primary.Upsert(ctx, collection, []domain.Document{doc}); err != nil {
				logger.Error("Skipping document %s/%s: %v", collection, doc.ID, err)
				skipped++
				continue
			}
			written = append(written, doc)
		}
	}
	return written, skipped
}

// acceptedPrefix reconciles a store's per-batch stats with the batch.
// The canonical store rejects only pre-validated shapes, so after the
// composite's own validation a successful call writes everything; this
// guards the edge where it still rejected some.
func acceptedPrefix(docs []domain.Document, stats driven.UpsertStats) []domain.Document {
	if stats.Written >= len(docs) {
		return docs
	}
	return docs[:stats.Written]
}

// Get retrieves a document from the canonical store.
func (s *Store) Get(ctx context.Context, collection domain.Collection, id string) (*domain.Document, error) {
	return s.primary.Get(ctx, collection, id)
}

// GetMany retrieves documents from the canonical store.
func (s *Store) GetMany(ctx context.Context, collection domain.Collection, ids []string) ([]domain.Document, error) {
	return s.primary.GetMany(ctx, collection, ids)
}

// Count returns the canonical store's document count.
func (s *Store) Count(ctx context.Context, collection domain.Collection) (int, error) {
	return s.primary.Count(ctx, collection)
}

// Close closes every owned backend.
func (s *Store) Close() error {
	errs := []error{s.primary.Close(), s.index.Close()}
	if s.vector != nil {
		errs = append(errs, s.vector.Close())
	}
	return errors.Join(errs...)
}
