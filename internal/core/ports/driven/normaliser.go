package driven

import (
	"time"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

// NormaliseDefaults carries ingestion-time values attached to every
// document a pipeline run produces.
type NormaliseDefaults struct {
	// IngestedAt is the pipeline run start time.
	IngestedAt time.Time
}

// Normaliser maps raw vendor records into uniform documents.
// Implementations are pure functions over the record: no I/O.
//
// A normaliser must select or derive the document ID, flatten metadata
// to scalar/flat-list form (nested values are JSON-stringified or
// dropped, consistently), and attach the collection tag plus ingestion
// defaults. Malformed optional fields never cause an error; the
// normaliser substitutes zero values and continues. A record with no
// usable unique ID returns domain.ErrMalformedRecord.
type Normaliser interface {
	// Collection returns the collection this normaliser serves.
	Collection() domain.Collection

	// Normalise converts one raw record into a document.
	Normalise(rec domain.RawRecord, defaults NormaliseDefaults) (domain.Document, error)
}
