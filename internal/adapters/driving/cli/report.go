package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scribe/internal/core/ports/driving"
)

var (
	reportTitle       string
	reportCategory    string
	reportCollections []string
	reportTopK        int
)

var reportCmd = &cobra.Command{
	Use:   "report [query]",
	Short: "Generate a reviewed report from ingested sources",
	Long: `Retrieves source material matching the query, summarises it, drafts
a report, and runs it through a bounded review loop before writing the
final markdown file.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportTitle, "title", "", "report title (derived from the query when empty)")
	reportCmd.Flags().StringVar(&reportCategory, "category", "", "category folder the report is filed under")
	reportCmd.Flags().StringSliceVar(&reportCollections, "collections", nil, "collections to draw from (default: all)")
	reportCmd.Flags().IntVarP(&reportTopK, "limit", "n", 0, "number of source documents to retrieve")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportService == nil {
		return errors.New("report service not configured")
	}

	req := driving.ReportRequest{
		Query:       args[0],
		Title:       reportTitle,
		Category:    reportCategory,
		Collections: toCollections(reportCollections),
		TopK:        reportTopK,
	}

	report, err := reportService.Generate(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("report generation failed: %w", err)
	}

	cmd.Printf("Report %q generated after %d review round(s).\n", report.Title, report.ReviewRounds)
	if !report.Converged {
		cmd.Println("warning: review did not converge; the latest draft was kept")
	}
	return nil
}
