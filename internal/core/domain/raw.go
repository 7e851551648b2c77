package domain

import "time"

// RawRecord is a vendor-shaped record as returned by one exporter,
// before normalisation. Fields vary per source; every record carries
// a source-native unique ID and free text. RawRecords are created
// fresh on every pipeline run and discarded after normalisation.
type RawRecord struct {
	// ID is the source-native unique identifier (message-id, issue key,
	// event id). Empty means the record is malformed and must be skipped.
	ID string

	// Collection identifies which exporter produced this record.
	Collection Collection

	// Text is the primary free-text content. May be empty.
	Text string

	// Timestamp is the record's post/update time in the source system.
	Timestamp time.Time

	// Author is the source-native author/owner identifier, when the
	// source has one (sender, assignee, organiser).
	Author string

	// Fields contains vendor-specific values. Values may be nested;
	// the normaliser flattens them before storage.
	Fields map[string]any
}
