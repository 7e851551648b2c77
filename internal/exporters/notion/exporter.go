// Package notion exports wiki pages from the Notion API.
package notion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
	"github.com/custodia-labs/scribe/internal/logger"
)

var _ driven.Exporter = (*Exporter)(nil)

const (
	pageSize     = 100
	recordBuffer = 20
)

// Config configures the Notion exporter.
type Config struct {
	// Token is a Notion integration token.
	Token string
}

// Exporter streams Notion pages as raw wiki documents. Page bodies are
// assembled from block children, so each page costs at least two API
// calls.
type Exporter struct {
	cfg    Config
	client *notionapi.Client
}

// New creates a Notion exporter.
func New(cfg Config) *Exporter {
	e := &Exporter{cfg: cfg}
	if cfg.Token != "" {
		e.client = notionapi.NewClient(notionapi.Token(cfg.Token))
	}
	return e
}

// Type returns the exporter type identifier.
func (e *Exporter) Type() string { return "notion" }

// Collection returns the collection this exporter feeds.
func (e *Exporter) Collection() domain.Collection { return domain.CollectionWiki }

// Validate checks the token by fetching the bot user.
func (e *Exporter) Validate(ctx context.Context) error {
	if e.client == nil {
		return fmt.Errorf("%w: notion token not configured", domain.ErrAuthRequired)
	}
	if _, err := e.client.User.Me(ctx); err != nil {
		return wrapError(err)
	}
	return nil
}

// Export searches for pages sorted by last edit, newest first, and
// stops once pages fall before the Since bound.
func (e *Exporter) Export(ctx context.Context, filter driven.ExportFilter) (<-chan domain.RawRecord, <-chan error) {
	records := make(chan domain.RawRecord, recordBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(records)
		defer close(errs)
		if err := e.export(ctx, filter, records); err != nil {
			errs <- err
		}
	}()

	return records, errs
}

// Close releases resources.
func (e *Exporter) Close() error { return nil }

func (e *Exporter) export(ctx context.Context, filter driven.ExportFilter, records chan<- domain.RawRecord) error {
	if e.client == nil {
		return fmt.Errorf("%w: notion token not configured", domain.ErrAuthRequired)
	}

	req := &notionapi.SearchRequest{
		Query:    filter.Query,
		PageSize: pageSize,
		Filter:   notionapi.SearchFilter{Property: "object", Value: "page"},
		Sort: &notionapi.SortObject{
			Timestamp: notionapi.TimestampLastEdited,
			Direction: notionapi.SortOrderDESC,
		},
	}

	for {
		resp, err := e.client.Search.Do(ctx, req)
		if err != nil {
			return wrapError(err)
		}

		for _, obj := range resp.Results {
			page, ok := obj.(*notionapi.Page)
			if !ok || page.Archived {
				continue
			}
			// Results arrive newest-edit first, so the first page
			// before the window ends the export.
			if !filter.Since.IsZero() && page.LastEditedTime.Before(filter.Since) {
				return nil
			}
			if !filter.Until.IsZero() && page.LastEditedTime.After(filter.Until) {
				continue
			}

			body, err := e.pageBody(ctx, page.ID)
			if err != nil {
				logger.Warn("Failed to fetch body for page %s: %v", page.ID, err)
				body = ""
			}

			select {
			case records <- pageToRecord(page, body):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if !resp.HasMore || resp.NextCursor == "" {
			return nil
		}
		req.StartCursor = resp.NextCursor
	}
}

// pageBody concatenates the plain text of a page's top-level blocks.
func (e *Exporter) pageBody(ctx context.Context, id notionapi.ObjectID) (string, error) {
	var parts []string
	pagination := &notionapi.Pagination{PageSize: pageSize}
	for {
		resp, err := e.client.Block.GetChildren(ctx, notionapi.BlockID(id), pagination)
		if err != nil {
			return "", wrapError(err)
		}
		for _, block := range resp.Results {
			if text := blockText(block); text != "" {
				parts = append(parts, text)
			}
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return strings.Join(parts, "\n"), nil
		}
		pagination.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
}

func pageToRecord(page *notionapi.Page, body string) domain.RawRecord {
	title := pageTitle(page)

	text := title
	if body != "" {
		text = title + "\n\n" + body
	}

	return domain.RawRecord{
		ID:         string(page.ID),
		Collection: domain.CollectionWiki,
		Text:       text,
		Timestamp:  page.LastEditedTime.UTC(),
		Author:     string(page.CreatedBy.ID),
		Fields: map[string]any{
			"title":        title,
			"url":          page.URL,
			"created_time": page.CreatedTime.UTC().Format(time.RFC3339),
		},
	}
}

// pageTitle pulls the title property, whatever it is named.
func pageTitle(page *notionapi.Page) string {
	for _, prop := range page.Properties {
		tp, ok := prop.(*notionapi.TitleProperty)
		if !ok {
			continue
		}
		return richTextPlain(tp.Title)
	}
	return ""
}

// blockText extracts plain text from the block types that carry prose.
func blockText(block notionapi.Block) string {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return richTextPlain(b.Paragraph.RichText)
	case *notionapi.Heading1Block:
		return richTextPlain(b.Heading1.RichText)
	case *notionapi.Heading2Block:
		return richTextPlain(b.Heading2.RichText)
	case *notionapi.Heading3Block:
		return richTextPlain(b.Heading3.RichText)
	case *notionapi.BulletedListItemBlock:
		return richTextPlain(b.BulletedListItem.RichText)
	case *notionapi.NumberedListItemBlock:
		return richTextPlain(b.NumberedListItem.RichText)
	case *notionapi.ToDoBlock:
		return richTextPlain(b.ToDo.RichText)
	case *notionapi.QuoteBlock:
		return richTextPlain(b.Quote.RichText)
	case *notionapi.CalloutBlock:
		return richTextPlain(b.Callout.RichText)
	case *notionapi.CodeBlock:
		return richTextPlain(b.Code.RichText)
	default:
		return ""
	}
}

func richTextPlain(rich []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rich {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}

// wrapError maps Notion API errors onto the domain error taxonomy.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unauthorized"):
		return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, msg)
	case strings.Contains(msg, "rate_limited"):
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case strings.Contains(msg, "service_unavailable") || strings.Contains(msg, "internal_server_error"):
		return fmt.Errorf("%w: %s", domain.ErrVendorUnavailable, msg)
	default:
		return err
	}
}
