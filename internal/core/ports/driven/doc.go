// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Exporter: Fetches raw records from one vendor API
//   - Normaliser: Transforms raw records into stored documents
//   - DocumentStore: Batched dual-write upsert persistence
//   - SearchIndex: Full-text/metadata search per collection (Bleve)
//   - RunHistoryStore: Last-successful-run timestamps per pipeline
//   - ConfigStore: Application configuration
//   - ReportSink: Report artifact output
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorIndex: Vector similarity search. Only enabled when EmbeddingService is configured.
//   - EmbeddingService: Generates vector embeddings. Without it, VectorIndex is also disabled.
//   - LLMService: Language model operations. Required only for report generation and the refine pass.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, exporter, or normaliser package
package driven
