package driving

import (
	"context"

	"github.com/kingsdigitallab/refida/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// SearchPhrase queries the index selected by mode.
	// Returns domain.ErrIndexNotFound when the index was never built and
	// domain.ErrMalformedQuery when the lexical engine rejects the phrase.
	SearchPhrase(ctx context.Context, mode domain.SearchMode, phrase string, opts domain.SearchOptions) ([]domain.Hit, error)

	// Explain returns the sentences of a hit that best match the phrase.
	Explain(ctx context.Context, hit domain.Hit, phrase string, limit int) (domain.Explanation, error)

	// GetHighlightedTextFromHit returns the hit text with matched parts
	// wrapped in the configured highlight delimiters.
	GetHighlightedTextFromHit(ctx context.Context, hit domain.Hit, phrase string, limit int) (string, error)

	// Info describes every index.
	Info(ctx context.Context) []domain.IndexInfo
}

// ReindexService rebuilds every index from the dataset.
type ReindexService interface {
	// Reindex rebuilds the sentence, document and lexical indexes in order.
	// column overrides the configured search column when non-empty.
	Reindex(ctx context.Context, column string, progress domain.ProgressFunc) (*domain.ReindexReport, error)
}
