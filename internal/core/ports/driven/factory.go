package driven

import "github.com/kingsdigitallab/refida/internal/core/domain"

// IndexStoreFactory opens the stores backing each index artifact.
// Stores are not loaded; callers Load/Open them or rebuild them.
type IndexStoreFactory interface {
	// NewVectorStore returns an empty store for a semantic index kind.
	// Returns domain.ErrUnsupportedType for the lexical kind.
	NewVectorStore(kind domain.IndexKind) (VectorStore, error)

	// NewLexicalStore returns an unopened lexical store.
	NewLexicalStore() (LexicalStore, error)

	// Path returns the artifact location for an index kind.
	Path(kind domain.IndexKind) string
}
