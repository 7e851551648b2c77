package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [pipeline]",
	Short: "Show pipeline run history",
	Long: `Lists recent runs of the named pipeline, or of every registered
pipeline when no name is given, most recent first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "maximum runs per pipeline")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	ctx := cmd.Context()

	pipelines := args
	if len(pipelines) == 0 {
		pipelines = ingestService.Pipelines()
	}

	for _, pipeline := range pipelines {
		runs, err := ingestService.History(ctx, pipeline, runsLimit)
		if err != nil {
			return fmt.Errorf("list runs for %s: %w", pipeline, err)
		}

		cmd.Printf("%s:\n", pipeline)
		if len(runs) == 0 {
			cmd.Println("  no runs recorded")
			continue
		}
		for _, run := range runs {
			line := fmt.Sprintf("  %s  %-9s  %d processed, %d skipped",
				run.StartedAt.Format(time.RFC3339), run.Status, run.Processed, run.Skipped)
			if run.Error != "" {
				line += "  " + strings.SplitN(run.Error, "\n", 2)[0]
			}
			cmd.Println(line)
		}
	}
	return nil
}
