package domain

import "time"

// Document is the normalised unit stored and retrieved.
// Its ID is stable across re-ingestion runs so that re-processing the
// same source item is an update, not a duplicate (upsert keyed on ID).
type Document struct {
	// ID is globally unique within the document's collection.
	ID string

	// Collection is the logical index this document belongs to.
	Collection Collection

	// Text is the primary content blob. May be empty.
	Text string

	// Metadata maps string keys to scalar or flat string-list values
	// only. Nested structures are flattened or dropped by the
	// normaliser before storage; the store rejects anything else.
	Metadata map[string]any

	// Embedding is the vector representation of Text, computed at
	// ingest time when an embedding service is configured.
	Embedding []float32

	// IngestedAt is when the document was last written by a pipeline.
	IngestedAt time.Time
}

// Author returns the canonical author metadata value, if present.
func (d *Document) Author() string {
	if v, ok := d.Metadata[MetaAuthor].(string); ok {
		return v
	}
	return ""
}

// Timestamp returns the canonical timestamp metadata value, if present.
func (d *Document) Timestamp() time.Time {
	if v, ok := d.Metadata[MetaTimestamp].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Canonical metadata keys every normaliser populates in addition to its
// vendor-specific fields. Author search and date filtering key off these.
const (
	MetaAuthor    = "author"
	MetaTimestamp = "timestamp"
	MetaSource    = "source"
	MetaTitle     = "title"
	MetaURL       = "url"
)
