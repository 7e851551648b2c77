package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/scribe/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
	"github.com/custodia-labs/scribe/internal/logger"
)

// Store is the SQLite-backed storage that provides access to the
// document and run history store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.scribe/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".scribe", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "scribe.db")

	// WAL mode for better concurrency between ingest and search.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// RunHistoryStore returns a RunHistoryStore interface backed by this store.
func (s *Store) RunHistoryStore() driven.RunHistoryStore {
	return &runHistoryStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// Upsert stores documents with insert-or-replace semantics. Documents
// whose metadata is not flat (scalars and string lists only) are
// rejected individually; the rest of the batch proceeds.
func (s *documentStore) Upsert(
	ctx context.Context, collection domain.Collection, docs []domain.Document,
) (driven.UpsertStats, error) {
	var stats driven.UpsertStats

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (collection, id, text, metadata, embedding, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			text = excluded.text,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			ingested_at = excluded.ingested_at
	`)
	if err != nil {
		return stats, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if err := domain.ValidateMetadata(doc.Metadata); err != nil {
			logger.Warn("Rejecting document %s/%s: %v", collection, doc.ID, err)
			stats.Rejected++
			continue
		}

		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			logger.Warn("Rejecting document %s/%s: %v", collection, doc.ID, err)
			stats.Rejected++
			continue
		}

		if _, err := stmt.ExecContext(ctx, string(collection), doc.ID, doc.Text,
			string(metadataJSON), float32SliceToBytes(doc.Embedding), doc.IngestedAt.UTC()); err != nil {
			return stats, fmt.Errorf("saving document %s: %w", doc.ID, err)
		}
		stats.Written++
	}

	if err := tx.Commit(); err != nil {
		return driven.UpsertStats{}, fmt.Errorf("committing transaction: %w", err)
	}
	return stats, nil
}

// Get retrieves a document by id.
func (s *documentStore) Get(ctx context.Context, collection domain.Collection, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT collection, id, text, metadata, embedding, ingested_at
		FROM documents WHERE collection = ? AND id = ?
	`, string(collection), id)
	return scanDocument(row.Scan)
}

// GetMany retrieves documents by id, skipping ids that do not exist.
func (s *documentStore) GetMany(
	ctx context.Context, collection domain.Collection, ids []string,
) ([]domain.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(collection))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.store.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT collection, id, text, metadata, embedding, ingested_at
		FROM documents WHERE collection = ? AND id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Document)
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		byID[doc.ID] = *doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	// Preserve the caller's id order.
	docs := make([]domain.Document, 0, len(byID))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Count returns the number of documents in a collection.
func (s *documentStore) Count(ctx context.Context, collection domain.Collection) (int, error) {
	var count int
	row := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = ?", string(collection))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// Close is a no-op; the owning Store manages the connection.
func (s *documentStore) Close() error {
	return nil
}

// Embeddings iterates stored embeddings for one collection, used to
// rebuild the in-memory vector index on startup.
func (s *Store) Embeddings(
	ctx context.Context, collection domain.Collection, fn func(id string, embedding []float32) error,
) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, embedding FROM documents
		WHERE collection = ? AND embedding IS NOT NULL AND length(embedding) > 0
	`, string(collection))
	if err != nil {
		return fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return fmt.Errorf("scanning embedding: %w", err)
		}
		if err := fn(id, bytesToFloat32Slice(blob)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// scanDocument scans one document row.
func scanDocument(scan func(dest ...any) error) (*domain.Document, error) {
	var doc domain.Document
	var collection, metadataJSON string
	var embedding []byte
	var ingestedAt time.Time

	err := scan(&collection, &doc.ID, &doc.Text, &metadataJSON, &embedding, &ingestedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Collection = domain.Collection(collection)
	doc.IngestedAt = ingestedAt.UTC()
	doc.Embedding = bytesToFloat32Slice(embedding)
	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	return &doc, nil
}

// ==================== Run History Store ====================

// runHistoryStore implements driven.RunHistoryStore.
type runHistoryStore struct {
	store *Store
}

var _ driven.RunHistoryStore = (*runHistoryStore)(nil)

// LastSuccess returns the start time of the most recent successful run.
func (s *runHistoryStore) LastSuccess(ctx context.Context, pipeline string) (time.Time, error) {
	var startedAt time.Time
	row := s.store.db.QueryRowContext(ctx, `
		SELECT started_at FROM runs
		WHERE pipeline = ? AND status = ?
		ORDER BY started_at DESC LIMIT 1
	`, pipeline, string(domain.RunSucceeded))
	err := row.Scan(&startedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, domain.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("querying last success: %w", err)
	}
	return startedAt.UTC(), nil
}

// Record persists a finished run.
func (s *runHistoryStore) Record(ctx context.Context, run domain.RunRecord) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO runs (id, pipeline, status, processed, skipped, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Pipeline, string(run.Status), run.Processed, run.Skipped,
		run.Error, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// List returns runs for a pipeline, most recent first.
func (s *runHistoryStore) List(ctx context.Context, pipeline string, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, pipeline, status, processed, skipped, error, started_at, finished_at
		FROM runs WHERE pipeline = ?
		ORDER BY started_at DESC LIMIT ?
	`, pipeline, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		var run domain.RunRecord
		var status string
		if err := rows.Scan(&run.ID, &run.Pipeline, &status, &run.Processed,
			&run.Skipped, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.Status = domain.RunStatus(status)
		run.StartedAt = run.StartedAt.UTC()
		run.FinishedAt = run.FinishedAt.UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ==================== Embedding Helpers ====================

// float32SliceToBytes converts a float32 slice to a byte slice for BLOB storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	bytes := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(bytes[i*4:], math.Float32bits(f))
	}
	return bytes
}

// bytesToFloat32Slice converts a BLOB byte slice back to float32s.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
