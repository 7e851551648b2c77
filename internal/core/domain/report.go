package domain

import "time"

// Report is text produced from a query and a set of documents.
// Reports are created once, written out, and never mutated.
type Report struct {
	// ID is a unique identifier for the report.
	ID string

	// Title is the human-readable report title.
	Title string

	// Body is the generated prose.
	Body string

	// Category routes the report to an output subfolder. It is not
	// part of the retrieval model.
	Category string

	// Query is the natural-language ask that produced the report.
	Query string

	// ReviewRounds is how many review iterations the draft went
	// through before acceptance.
	ReviewRounds int

	// Converged is false when the review loop hit its iteration bound
	// without the reviewer signalling completion; the most recent
	// draft is accepted in that case.
	Converged bool

	// CreatedAt is when the report was generated.
	CreatedAt time.Time
}
