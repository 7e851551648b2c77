package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

func TestWriteRoutesByCategory(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)

	report := domain.Report{
		ID:        "r1",
		Title:     "Weekly Deploy Summary",
		Body:      "## Findings\n\nAll fine.",
		Category:  "Ops Reviews",
		Query:     "what happened with deploys this week",
		CreatedAt: time.Date(2026, 7, 1, 14, 30, 0, 0, time.UTC),
	}

	path, err := sink.Write(context.Background(), report)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "ops_reviews"), filepath.Dir(path))
	assert.Equal(t, "reporting_weekly_deploy_summary_20260701T143000.md", filepath.Base(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Weekly Deploy Summary")
	assert.Contains(t, string(content), "All fine.")
	assert.Contains(t, string(content), report.Query)
}

func TestWriteEmptyCategoryDefaultsToGeneral(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)

	path, err := sink.Write(context.Background(), domain.Report{
		Title:     "Untitled",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "general", filepath.Base(filepath.Dir(path)))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Weekly Deploy Summary", "weekly_deploy_summary"},
		{"  spaces   everywhere  ", "spaces_everywhere"},
		{"Q3/2026: what's next?", "q3_2026_what_s_next"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), "slugify(%q)", tt.in)
	}
}
