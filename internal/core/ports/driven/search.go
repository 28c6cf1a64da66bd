package driven

import (
	"context"

	"github.com/kingsdigitallab/refida/internal/core/domain"
)

// LexicalStore provides full-text search operations.
// Backed by SQLite FTS5 with the porter stemmer and BM25 ranking.
type LexicalStore interface {
	// Reindex drops the full-text table and rebuilds it from rows.
	// The rebuild is written to a temporary file that replaces the
	// artifact only once complete.
	Reindex(ctx context.Context, rows []LexicalRow) error

	// Open attaches to an existing artifact.
	// Returns domain.ErrIndexNotFound if it does not exist.
	Open(ctx context.Context) error

	// SearchPhrase runs a keyword query. Terms are ANDed unless OR, AND or
	// NOT appear between them. Returns domain.ErrMalformedQuery when the
	// engine rejects the phrase.
	SearchPhrase(ctx context.Context, phrase string, limit int) ([]LexicalHit, error)

	// Count returns the number of indexed rows.
	Count(ctx context.Context) (int, error)

	// Info describes the store for diagnostics.
	Info(ctx context.Context) domain.IndexInfo

	// Close releases resources.
	Close() error
}

// LexicalRow is one document to index.
type LexicalRow struct {
	ID   string
	Text string
}

// LexicalHit represents a search result from the engine.
type LexicalHit struct {
	ID   string
	Text string

	// Score is derived from BM25: higher is better, in (0, 1).
	Score float64

	// Raw is the engine's bm25() value. Lower is better.
	Raw float64

	// Highlighted is the text with matched terms wrapped in the
	// configured delimiters. Empty when highlighting is disabled.
	Highlighted string
}
