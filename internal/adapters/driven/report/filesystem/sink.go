// Package filesystem implements the report sink port by writing
// reports as markdown files, one subfolder per category.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
)

// Ensure Sink implements the interface.
var _ driven.ReportSink = (*Sink)(nil)

// maxSlugLen bounds the filename slug derived from the report title.
const maxSlugLen = 60

// Sink writes reports under a base directory:
// <base>/<category>/reporting_<slug>_<timestamp>.md
type Sink struct {
	baseDir string
}

// NewSink creates a report sink. If baseDir is empty, defaults to
// ~/.scribe/reports.
func NewSink(baseDir string) (*Sink, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".scribe", "reports")
	}
	return &Sink{baseDir: baseDir}, nil
}

// Write persists the report and returns the destination path.
func (s *Sink) Write(_ context.Context, report domain.Report) (string, error) {
	category := slugify(report.Category)
	if category == "" {
		category = "general"
	}

	dir := filepath.Join(s.baseDir, category)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	name := fmt.Sprintf("reporting_%s_%s.md",
		slugify(report.Title), report.CreatedAt.UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", report.Title)
	fmt.Fprintf(&b, "> Query: %s\n>\n> Generated: %s\n\n",
		report.Query, report.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	b.WriteString(report.Body)
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// slugify reduces a string to a safe lowercase filename fragment.
func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('_')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "_")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "_")
	}
	return slug
}
