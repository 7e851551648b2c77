// Package sqlite provides the canonical document store and run history
// backed by SQLite (via modernc.org/sqlite, no cgo).
//
// SQLite is the system of record: the Bleve and vector indexes can be
// rebuilt from it. Documents are keyed on (collection, id) so that
// re-ingesting a source item replaces its prior version.
//
// Schema migrations are embedded and applied automatically on open.
package sqlite
