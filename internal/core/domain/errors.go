package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown provider, backend or index kind.
	ErrUnsupportedType = errors.New("unsupported type")

	// Index Errors.

	// ErrIndexNotFound indicates the index was never built.
	// Recoverable: the caller should run the reindex command.
	ErrIndexNotFound = errors.New("index not found")

	// ErrMalformedQuery indicates the lexical engine rejected the phrase
	// even after sanitisation.
	ErrMalformedQuery = errors.New("malformed query")

	// ErrDatasetNotFound indicates the tabular dataset file is missing.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrReindexInProgress indicates a rebuild is already running for the index.
	ErrReindexInProgress = errors.New("reindex in progress")

	// Embedding Errors.

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Semantic search and semantic explanations are disabled without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmbeddingFailed indicates the provider failed to embed a text
	// after all retries. During a batch build the row is skipped.
	ErrEmbeddingFailed = errors.New("embedding failed")
)
