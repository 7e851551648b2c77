package driving

import (
	"context"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

// ReportRequest describes one report to generate.
type ReportRequest struct {
	// Query is the natural-language ask.
	Query string

	// Title is the report title. Derived from the query when empty.
	Title string

	// Category routes the report artifact to an output subfolder.
	Category string

	// Collections restricts retrieval; empty means all collections.
	Collections []domain.Collection

	// TopK bounds the number of documents retrieved for the report.
	TopK int
}

// ReportService generates reports from retrieved documents through a
// bounded draft/review loop.
type ReportService interface {
	// Generate retrieves documents for the request, drafts a report,
	// runs the review loop, writes the result through the report sink,
	// and returns the finished report. Generation always yields a
	// report, possibly noting omissions, rather than failing when some
	// sources are thin or absent.
	Generate(ctx context.Context, req ReportRequest) (*domain.Report, error)
}
