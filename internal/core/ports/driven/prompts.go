package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptReportDraft produces a report draft from research content.
	// The template expects %s (research) and %s (query) placeholders.
	PromptReportDraft = "report_draft"

	// PromptReportReview critiques a report draft's structure and
	// readability. The template expects a %s placeholder for the draft.
	PromptReportReview = "report_review"

	// PromptChunkSummarise summarises one chunk of documents against a
	// query, replying with the omit sentinel when the chunk is
	// irrelevant. The template expects %s (query) and %s (documents).
	PromptChunkSummarise = "chunk_summarise"

	// PromptRelevanceFilter asks whether a single document helps answer
	// a query. The template expects %s (query) and %s (document).
	PromptRelevanceFilter = "relevance_filter"

	// PromptCollectionSelect asks which collections are worth querying
	// for a search. The template expects %s (query) and %s (the
	// collection catalogue).
	PromptCollectionSelect = "collection_select"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
