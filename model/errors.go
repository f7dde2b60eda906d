package model

import "errors"

// Sentinel errors shared across components. Data-integrity conditions get
// their own kinds so callers can distinguish them from transient upstream
// failures instead of silently coercing them.
var (
	// ErrDimensionMismatch reports vectors of unequal dimension being
	// compared or a query vector not matching the stored dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNotFound reports a missing document, chunk, session or message.
	ErrNotFound = errors.New("not found")

	// ErrNoDocuments reports a retrieval against an empty index while
	// general-knowledge fallback is disabled.
	ErrNoDocuments = errors.New("no documents indexed")

	// ErrEmptyInput reports empty or whitespace-only input where content
	// is required.
	ErrEmptyInput = errors.New("empty input")
)
