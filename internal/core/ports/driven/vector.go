package driven

import (
	"context"

	"github.com/kingsdigitallab/refida/internal/core/domain"
)

// VectorStore holds unit-length embeddings with a metadata side table and
// answers exact or approximate nearest-neighbour queries by cosine similarity.
//
// Stores are built in memory and persisted with Save; a store returned by
// the factory is empty until Load or Upsert is called.
type VectorStore interface {
	// Upsert inserts or replaces entries by ID. Entries without a vector are
	// embedded from their text. A vector whose dimension differs from the
	// store's returns domain.ErrInvalidInput.
	Upsert(ctx context.Context, entries []VectorEntry) error

	// Search embeds the query and returns at most limit hits, best first.
	Search(ctx context.Context, query string, limit int, filter domain.Filter) ([]VectorHit, error)

	// SearchVector is Search with a pre-computed query vector.
	SearchVector(ctx context.Context, vector []float32, limit int, filter domain.Filter) ([]VectorHit, error)

	// Similarity scores each text against the query, best first.
	// The texts are embedded on the fly, not looked up in the store.
	Similarity(ctx context.Context, query string, texts []string) ([]TextScore, error)

	// Delete removes an entry. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// Reset discards every entry so the store can be rebuilt from scratch.
	Reset(ctx context.Context) error

	// Save persists the store atomically: readers see the previous artifact
	// or the new one, never a partial write.
	Save(ctx context.Context) error

	// Load restores the store from its artifact.
	// Returns domain.ErrIndexNotFound if the artifact does not exist.
	Load(ctx context.Context) error

	// Count returns the number of entries.
	Count() int

	// Info describes the store for diagnostics.
	Info() domain.IndexInfo

	// Close releases resources.
	Close() error
}

// VectorEntry is one row of a vector store.
type VectorEntry struct {
	// ID is unique within the store: a doc ID for document stores, a
	// sentence counter for sentence stores.
	ID string

	// Text is the embedded text, kept for display.
	Text string

	// DocID references the parent document. Equal to ID in document stores.
	DocID string

	// Vector is optional; when nil the store embeds Text.
	Vector []float32
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	ID    string
	Text  string
	DocID string

	// Score is the cosine similarity in [-1, 1].
	Score float64
}

// TextScore is the similarity of one candidate text to a query.
type TextScore struct {
	// Index is the position of the text in the input slice.
	Index int
	Text  string
	Score float64
}
