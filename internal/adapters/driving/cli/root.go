// Package cli implements the command-line driving adapter.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/scribe/internal/core/ports/driving"
	"github.com/custodia-labs/scribe/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services wired in by main before Execute.
var (
	ingestService driving.IngestService
	searchService driving.SearchService
	reportService driving.ReportService
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Ingest, search, and report over team knowledge sources",
	Long: `Scribe pulls email, chat, wiki, issue, pull request, and calendar
data into one searchable store, and generates reviewed reports from it.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
}

// Configure injects the core services. Must be called before Execute.
func Configure(ingest driving.IngestService, search driving.SearchService, report driving.ReportService) {
	ingestService = ingest
	searchService = search
	reportService = report
}

// SetVersion overrides the reported version string.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
