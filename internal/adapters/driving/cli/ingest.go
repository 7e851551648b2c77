package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [pipeline]",
	Short: "Run ingestion pipelines",
	Long: `Runs the named ingestion pipeline, or all registered pipelines when
no name is given. Each run is incremental: only records updated since the
pipeline's last successful run are fetched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	ctx := cmd.Context()

	if len(args) > 0 {
		summary, err := ingestService.Run(ctx, args[0])
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		printSummary(cmd, summary.Pipeline, summary.Processed, summary.Skipped, summary.Incremental)
		return nil
	}

	summaries, err := ingestService.RunAll(ctx)
	for _, s := range summaries {
		printSummary(cmd, s.Pipeline, s.Processed, s.Skipped, s.Incremental)
	}
	if err != nil {
		return fmt.Errorf("some pipelines failed: %w", err)
	}
	return nil
}

func printSummary(cmd *cobra.Command, pipeline string, processed, skipped int, incremental bool) {
	mode := "full"
	if incremental {
		mode = "incremental"
	}
	cmd.Printf("%s (%s): %d processed, %d skipped\n", pipeline, mode, processed, skipped)
}
