package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedCollection indicates an unknown collection name.
	ErrUnsupportedCollection = errors.New("unsupported collection")

	// Exporter Errors.

	// ErrAuthRequired indicates the exporter requires credentials but none are configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthInvalid indicates the configured credentials are invalid.
	// Fatal to the exporter call; never silently retried.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrAuthExpired indicates the credentials have expired.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrRateLimited indicates the vendor API rate limit was exceeded.
	// Transient; retried with backoff at the pipeline layer.
	ErrRateLimited = errors.New("rate limited")

	// ErrVendorUnavailable indicates the vendor API is unreachable or
	// returning server errors. Transient; retried at the pipeline layer.
	ErrVendorUnavailable = errors.New("vendor unavailable")

	// ErrMalformedRecord indicates a record is missing its required
	// unique id or fields. The record is skipped, not fatal to the batch.
	ErrMalformedRecord = errors.New("malformed record")

	// Store Errors.

	// ErrStoreRejected indicates a document violated the store's
	// metadata shape constraints. The document is dropped with a logged
	// error; the batch continues.
	ErrStoreRejected = errors.New("document rejected by store")

	// Search Errors.

	// ErrCollectionUnavailable indicates a collection failed during
	// fan-out. A failing subset is excluded from the merge and the
	// search still succeeds with partial results; when every collection
	// fails the search returns this error.
	ErrCollectionUnavailable = errors.New("collection unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Report generation and the refine pass require it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// Report Errors.

	// ErrReviewNotConverged indicates the report review loop exceeded
	// its iteration bound. Non-fatal: the most recent draft is accepted.
	ErrReviewNotConverged = errors.New("review did not converge")
)
