// Package domain defines the core business entities for Scribe.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawRecord: A vendor-shaped record produced by an exporter
//   - Document: A normalised, stored unit with id/text/metadata/collection
//   - Collection: A named logical partition of the document store
//   - SearchResult: A document plus its relevance score for one search call
//   - Report: A generated prose report routed to an output category
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
