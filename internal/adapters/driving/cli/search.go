package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

var (
	searchLimit       int
	searchJSON        bool
	searchRefine      bool
	searchSelect      bool
	searchCollections []string
	searchFrom        string
	searchTo          string
	searchAuthor      string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search across all ingested collections",
	Long: `Searches every collection concurrently and merges results into one
relevance-ranked list. Scores are normalised per collection, so results
from different sources are comparable.

With --author, lists documents by that author newest first instead of
ranking by relevance; --collections must then name exactly one collection.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchRefine, "refine", false, "filter results for relevance with the LLM")
	searchCmd.Flags().BoolVar(&searchSelect, "select-collections", false, "let the LLM pick which collections to search")
	searchCmd.Flags().StringSliceVar(&searchCollections, "collections", nil, "collections to search (default: all)")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "only results on or after this date (2006-01-02)")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "only results on or before this date (2006-01-02)")
	searchCmd.Flags().StringVar(&searchAuthor, "author", "", "list documents by this author instead of searching")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}
	ctx := cmd.Context()

	from, err := parseDateFlag(searchFrom)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := parseDateFlag(searchTo)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	if searchAuthor != "" {
		return runAuthorSearch(cmd, from, to)
	}

	if len(args) == 0 {
		return errors.New("a query is required unless --author is given")
	}

	opts := domain.SearchOptions{
		TopK:              searchLimit,
		Collections:       toCollections(searchCollections),
		From:              from,
		To:                to,
		Refine:            searchRefine,
		SelectCollections: searchSelect,
	}

	resp, err := searchService.Search(ctx, args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, resp)
	}
	return printResults(cmd, resp)
}

func runAuthorSearch(cmd *cobra.Command, from, to time.Time) error {
	if len(searchCollections) != 1 {
		return errors.New("--author requires exactly one collection via --collections")
	}
	collection := domain.Collection(searchCollections[0])

	results, err := searchService.SearchByAuthor(cmd.Context(), collection, searchAuthor, from, to, searchLimit)
	if err != nil {
		return fmt.Errorf("author search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, results)
	}
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i := range results {
		printResult(cmd, i, &results[i])
	}
	return nil
}

func printResults(cmd *cobra.Command, resp *domain.SearchResponse) error {
	for _, collection := range resp.Unavailable {
		cmd.Printf("warning: collection %s was unavailable\n", collection)
	}
	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range resp.Results {
		printResult(cmd, i, &resp.Results[i])
	}
	return nil
}

func printResult(cmd *cobra.Command, i int, result *domain.SearchResult) {
	title := result.Document.ID
	if t, ok := result.Document.Metadata[domain.MetaTitle].(string); ok && t != "" {
		title = t
	}

	cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, result.Score)
	cmd.Printf("      Collection: %s\n", result.Collection)
	if author := result.Document.Author(); author != "" {
		cmd.Printf("      Author: %s\n", author)
	}
	if snippet := firstLine(result.Document.Text, 120); snippet != "" {
		cmd.Printf("      %s\n", snippet)
	}
	cmd.Println()
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// parseDateFlag accepts a plain date or a full RFC 3339 timestamp.
func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected 2006-01-02 or RFC 3339, got %q", s)
	}
	return t.UTC(), nil
}

func toCollections(names []string) []domain.Collection {
	var out []domain.Collection
	for _, name := range names {
		out = append(out, domain.Collection(name))
	}
	return out
}

// firstLine trims text to its first line, capped at max runes.
func firstLine(text string, max int) string {
	for i, r := range text {
		if r == '\n' {
			text = text[:i]
			break
		}
	}
	runes := []rune(text)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return text
}
