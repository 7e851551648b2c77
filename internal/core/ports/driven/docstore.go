package driven

import (
	"context"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

// UpsertStats summarises one batched upsert call.
type UpsertStats struct {
	// Written is the number of documents stored or replaced.
	Written int

	// Rejected is the number of documents dropped because the store
	// refused them (metadata shape violations, persistent batch
	// failures). Each rejection is logged with the document id.
	Rejected int
}

// DocumentStore persists documents with insert-or-replace semantics.
//
// Upsert is batched: implementations write in configurable batch sizes,
// retry a failing batch once at half size, and then skip the offending
// documents with a per-id logged error rather than aborting the run.
// A write with an existing id replaces prior content for that id; old
// and new metadata are never merged. There is no delete operation.
type DocumentStore interface {
	// Upsert stores the documents in the named collection.
	Upsert(ctx context.Context, collection domain.Collection, docs []domain.Document) (UpsertStats, error)

	// Get retrieves a document by id.
	Get(ctx context.Context, collection domain.Collection, id string) (*domain.Document, error)

	// GetMany retrieves documents by id, skipping ids that no longer exist.
	GetMany(ctx context.Context, collection domain.Collection, ids []string) ([]domain.Document, error)

	// Count returns the number of documents in a collection.
	Count(ctx context.Context, collection domain.Collection) (int, error)

	// Close releases resources.
	Close() error
}
