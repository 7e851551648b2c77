package driven

import (
	"context"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

// ReportSink writes finished reports out as plain-text artifacts.
// The report's category is used purely for output routing.
type ReportSink interface {
	// Write persists the report and returns the destination path.
	Write(ctx context.Context, report domain.Report) (string, error)
}
