package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
	"github.com/custodia-labs/scribe/internal/core/ports/driving"
	"github.com/custodia-labs/scribe/internal/logger"
)

// Ensure ReportService implements the interfaces.
var (
	_ driving.ReportService   = (*ReportService)(nil)
	_ driven.PromptStoreAware = (*ReportService)(nil)
)

const (
	// maxReviewRounds bounds the draft/review loop. When the reviewer
	// has not accepted by then, the latest draft ships anyway.
	maxReviewRounds = 3

	// reviewDoneSentinel is the reviewer's acceptance signal.
	reviewDoneSentinel = "FINISHED"

	// omitSentinel marks a chunk summary as irrelevant to the query.
	omitSentinel = "OMIT"

	// defaultReportTopK is how many documents are retrieved for a
	// report when the request gives no bound.
	defaultReportTopK = 30

	// summaryChunkSize is how many documents go into one summarisation
	// call.
	summaryChunkSize = 10

	// defaultCategory routes uncategorised reports.
	defaultCategory = "general"
)

// Built-in prompt defaults, overridable through the prompt store.
const (
	defaultDraftPrompt = `You are a technical writer producing an internal report. Using only the research notes below, write a well-structured markdown report that answers the request. Use headings and short paragraphs. Do not invent facts that are not in the notes; where the notes are silent, say so briefly.

Research notes:
%s

Request: %s`

	defaultReviewPrompt = `You are a critical reviewer of internal reports. Review the draft below for structure, readability, and whether it answers the stated request. If the draft is acceptable as-is, reply with exactly FINISHED. Otherwise reply with a concise list of concrete improvements; do not rewrite the draft yourself.

Draft:
%s`

	defaultSummarisePrompt = `Summarise the source documents below with respect to the query. Keep concrete facts, names, dates, and decisions. If none of the documents are relevant to the query, reply with exactly OMIT.

Query: %s

Documents:
%s`

	reviseInstruction = "Revise the report to address this review feedback. Reply with the full revised report only.\n\nFeedback:\n"
)

// ReportService generates reports through retrieve → summarise →
// draft → review.
type ReportService struct {
	searcher driving.SearchService
	llm      driven.LLMService
	sink     driven.ReportSink
	prompts  driven.PromptStore
}

// NewReportService creates a report service. The llm service is
// required at generation time but may be nil at construction.
func NewReportService(
	searcher driving.SearchService,
	llm driven.LLMService,
	sink driven.ReportSink,
) *ReportService {
	return &ReportService{
		searcher: searcher,
		llm:      llm,
		sink:     sink,
	}
}

// SetPromptStore sets the prompt store for customisable prompts.
func (s *ReportService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Generate produces one report end to end. Thin or missing source
// material produces a report that says so; it is not an error.
func (s *ReportService) Generate(ctx context.Context, req driving.ReportRequest) (*domain.Report, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if s.llm == nil {
		return nil, fmt.Errorf("generate report: %w", domain.ErrLLMUnavailable)
	}

	logger.Section("Report Generation")
	logger.Info("Query: %q", req.Query)

	topK := req.TopK
	if topK <= 0 {
		topK = defaultReportTopK
	}

	// With no explicit collections the searcher's LLM pre-pass decides
	// which sources are worth consulting for this request.
	resp, err := s.searcher.Search(ctx, req.Query, domain.SearchOptions{
		TopK:              topK,
		Collections:       req.Collections,
		SelectCollections: true,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}
	logger.Info("Retrieved %d documents for report", len(resp.Results))

	research, err := s.summarise(ctx, req.Query, resp.Results)
	if err != nil {
		return nil, fmt.Errorf("summarise research: %w", err)
	}
	if research == "" {
		research = "No relevant source material was found for this request."
	}

	body, rounds, converged, err := s.draftAndReview(ctx, req.Query, research)
	if err != nil {
		return nil, err
	}
	if !converged {
		logger.Warn("Shipping latest draft after %d rounds: %v", maxReviewRounds, domain.ErrReviewNotConverged)
	}

	report := domain.Report{
		ID:           uuid.NewString(),
		Title:        reportTitle(req),
		Body:         body,
		Category:     reportCategory(req),
		Query:        req.Query,
		ReviewRounds: rounds,
		Converged:    converged,
		CreatedAt:    time.Now().UTC(),
	}

	if s.sink != nil {
		path, err := s.sink.Write(ctx, report)
		if err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
		logger.Info("Report written to %s", path)
	}

	return &report, nil
}

// summarise condenses retrieved documents into research notes, one LLM
// call per chunk. Chunks judged irrelevant by the model are dropped.
func (s *ReportService) summarise(
	ctx context.Context, query string, results []domain.SearchResult,
) (string, error) {
	if len(results) == 0 {
		return "", nil
	}
	template := s.prompt(driven.PromptChunkSummarise, defaultSummarisePrompt)

	var notes []string
	for start := 0; start < len(results); start += summaryChunkSize {
		end := start + summaryChunkSize
		if end > len(results) {
			end = len(results)
		}

		prompt := fmt.Sprintf(template, query, renderChunk(results[start:end]))
		summary, err := s.llm.Complete(ctx, "", []driven.ChatMessage{
			{Role: "user", Content: prompt},
		}, driven.CompleteOptions{})
		if err != nil {
			return "", fmt.Errorf("summarise chunk %d: %w", start/summaryChunkSize, err)
		}

		summary = strings.TrimSpace(summary)
		if strings.EqualFold(summary, omitSentinel) {
			logger.Debug("Chunk %d omitted as irrelevant", start/summaryChunkSize)
			continue
		}
		notes = append(notes, summary)
	}

	return strings.Join(notes, "\n\n"), nil
}

// draftAndReview runs the bounded draft/review loop.
func (s *ReportService) draftAndReview(
	ctx context.Context, query, research string,
) (body string, rounds int, converged bool, err error) {
	draftTemplate := s.prompt(driven.PromptReportDraft, defaultDraftPrompt)
	reviewTemplate := s.prompt(driven.PromptReportReview, defaultReviewPrompt)

	messages := []driven.ChatMessage{
		{Role: "user", Content: fmt.Sprintf(draftTemplate, research, query)},
	}
	draft, err := s.llm.Complete(ctx, "", messages, driven.CompleteOptions{})
	if err != nil {
		return "", 0, false, fmt.Errorf("draft report: %w", err)
	}
	messages = append(messages, driven.ChatMessage{Role: "assistant", Content: draft})

	for round := 1; round <= maxReviewRounds; round++ {
		review, err := s.llm.Complete(ctx, "", []driven.ChatMessage{
			{Role: "user", Content: fmt.Sprintf(reviewTemplate, draft)},
		}, driven.CompleteOptions{})
		if err != nil {
			return "", round, false, fmt.Errorf("review round %d: %w", round, err)
		}

		if strings.Contains(strings.ToUpper(review), reviewDoneSentinel) {
			logger.Debug("Reviewer accepted draft after %d round(s)", round)
			return strings.TrimSpace(draft), round, true, nil
		}

		messages = append(messages, driven.ChatMessage{Role: "user", Content: reviseInstruction + review})
		draft, err = s.llm.Complete(ctx, "", messages, driven.CompleteOptions{})
		if err != nil {
			return "", round, false, fmt.Errorf("revise round %d: %w", round, err)
		}
		messages = append(messages, driven.ChatMessage{Role: "assistant", Content: draft})
	}

	return strings.TrimSpace(draft), maxReviewRounds, false, nil
}

// renderChunk formats documents for a summarisation prompt.
func renderChunk(results []domain.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "--- Document %d (%s) ---\n", i+1, r.Collection)
		if title, ok := r.Document.Metadata[domain.MetaTitle].(string); ok && title != "" {
			fmt.Fprintf(&b, "Title: %s\n", title)
		}
		if author := r.Document.Author(); author != "" {
			fmt.Fprintf(&b, "Author: %s\n", author)
		}
		if ts := r.Document.Timestamp(); !ts.IsZero() {
			fmt.Fprintf(&b, "Date: %s\n", ts.Format("2006-01-02"))
		}
		b.WriteString(snippet(r.Document.Text, 4000))
		b.WriteString("\n\n")
	}
	return b.String()
}

// reportTitle derives a title from the request, falling back to a
// trimmed form of the query.
func reportTitle(req driving.ReportRequest) string {
	if t := strings.TrimSpace(req.Title); t != "" {
		return t
	}
	words := strings.Fields(req.Query)
	if len(words) > 10 {
		words = words[:10]
	}
	return strings.Join(words, " ")
}

func reportCategory(req driving.ReportRequest) string {
	if c := strings.TrimSpace(req.Category); c != "" {
		return c
	}
	return defaultCategory
}

// prompt loads a named prompt, falling back to the built-in default.
func (s *ReportService) prompt(name, fallback string) string {
	if s.prompts == nil {
		return fallback
	}
	p, err := s.prompts.Load(name)
	if err != nil || strings.TrimSpace(p) == "" {
		return fallback
	}
	return p
}
