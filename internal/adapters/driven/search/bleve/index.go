package bleve

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
)

// indexSuffix is the suffix for per-collection index directories.
const indexSuffix = ".bleve"

// Indexed field names. These mirror the canonical metadata keys.
const (
	fieldText      = "text"
	fieldAuthor    = "author"
	fieldTimestamp = "timestamp"
)

// indexDoc is the shape of one indexed document.
type indexDoc struct {
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// Ensure Index implements the interface.
var _ driven.SearchIndex = (*Index)(nil)

// Index manages one Bleve index per collection.
type Index struct {
	baseDir string

	mu      sync.Mutex
	indexes map[domain.Collection]bleve.Index
}

// NewIndex creates the index manager. Per-collection indexes are
// opened (or created) lazily on first use.
func NewIndex(baseDir string) *Index {
	return &Index{
		baseDir: baseDir,
		indexes: make(map[domain.Collection]bleve.Index),
	}
}

// newIndexMapping creates the Bleve mapping shared by all collections.
func newIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Text - analyzed for full-text relevance ranking.
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	docMapping.AddFieldMappingsAt(fieldText, textField)

	// Author - keyword (not analyzed), so lookups are exact.
	authorField := bleve.NewTextFieldMapping()
	authorField.Analyzer = keyword.Name
	authorField.Store = false
	docMapping.AddFieldMappingsAt(fieldAuthor, authorField)

	// Timestamp - datetime for range filtering and sorting.
	tsField := bleve.NewDateTimeFieldMapping()
	tsField.Store = false
	docMapping.AddFieldMappingsAt(fieldTimestamp, tsField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// open returns the collection's index, opening or creating it on
// first use.
func (x *Index) open(collection domain.Collection) (bleve.Index, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if idx, ok := x.indexes[collection]; ok {
		return idx, nil
	}

	path := filepath.Join(x.baseDir, string(collection)+indexSuffix)
	idx, err := bleve.Open(path)
	if err != nil {
		idx, err = bleve.New(path, newIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating index for %s: %w", collection, err)
		}
	}
	x.indexes[collection] = idx
	return idx, nil
}

// Index adds or replaces documents in a collection's index.
func (x *Index) Index(ctx context.Context, collection domain.Collection, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	idx, err := x.open(collection)
	if err != nil {
		return err
	}

	batch := idx.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(doc.ID, indexDoc{
			Text:      doc.Text,
			Author:    doc.Author(),
			Timestamp: doc.Timestamp(),
		}); err != nil {
			return fmt.Errorf("batching document %s: %w", doc.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("indexing batch in %s: %w", collection, err)
	}
	return nil
}

// Search performs a keyword search within one collection.
func (x *Index) Search(
	ctx context.Context, collection domain.Collection, queryStr string, limit int, filters driven.SearchFilters,
) ([]driven.SearchHit, error) {
	idx, err := x.open(collection)
	if err != nil {
		return nil, err
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField(fieldText)

	searchQuery := withDateRange(matchQuery, filters.From, filters.To)

	req := bleve.NewSearchRequestOptions(searchQuery, limit, 0, false)
	result, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}

	hits := make([]driven.SearchHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, driven.SearchHit{DocumentID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// SearchByAuthor lists documents by exact author match within an
// inclusive time window, newest first. No relevance ranking.
func (x *Index) SearchByAuthor(
	ctx context.Context, collection domain.Collection, author string, from, to time.Time, limit int,
) ([]driven.SearchHit, error) {
	idx, err := x.open(collection)
	if err != nil {
		return nil, err
	}

	authorQuery := bleve.NewTermQuery(author)
	authorQuery.SetField(fieldAuthor)

	searchQuery := withDateRange(authorQuery, from, to)

	req := bleve.NewSearchRequestOptions(searchQuery, limit, 0, false)
	req.SortBy([]string{"-" + fieldTimestamp})
	result, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searching %s by author: %w", collection, err)
	}

	hits := make([]driven.SearchHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, driven.SearchHit{DocumentID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// withDateRange intersects q with an inclusive timestamp window.
// Zero bounds leave that side open; a fully open window returns q
// unchanged.
func withDateRange(q query.Query, from, to time.Time) query.Query {
	if from.IsZero() && to.IsZero() {
		return q
	}
	inclusive := true
	rangeQuery := bleve.NewDateRangeInclusiveQuery(from, to, &inclusive, &inclusive)
	rangeQuery.SetField(fieldTimestamp)
	return bleve.NewConjunctionQuery(q, rangeQuery)
}

// Close closes all open collection indexes.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var firstErr error
	for collection, idx := range x.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing index for %s: %w", collection, err)
		}
		delete(x.indexes, collection)
	}
	return firstErr
}
