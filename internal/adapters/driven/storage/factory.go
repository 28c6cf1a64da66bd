// Package storage opens the on-disk stores behind each index artifact.
package storage

import (
	"fmt"
	"path/filepath"

	"github.com/kingsdigitallab/refida/internal/adapters/driven/storage/sqlite"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/vector/chromem"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/vector/flat"
	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
)

// InterimDir is the data subdirectory holding the index artifacts.
const InterimDir = "1_interim"

// Ensure Factory implements the interface.
var _ driven.IndexStoreFactory = (*Factory)(nil)

// Config configures a Factory.
type Config struct {
	// DataDir is the pipeline data directory.
	DataDir string

	// Backend selects the vector store implementation.
	Backend domain.VectorBackend

	// Compress gzips chromem documents on disk.
	Compress bool

	HighlightBefore string
	HighlightAfter  string
}

// Factory creates stores located under DataDir/1_interim.
type Factory struct {
	config   Config
	embedder driven.EmbeddingService
}

// NewFactory creates a factory. The embedder may be nil, in which case
// vector stores can be loaded and inspected but not queried by phrase.
func NewFactory(config Config, embedder driven.EmbeddingService) (*Factory, error) {
	if config.Backend == "" {
		config.Backend = domain.VectorBackendFlat
	}
	if !config.Backend.IsValid() {
		return nil, fmt.Errorf("%w: vector backend %q", domain.ErrInvalidInput, config.Backend)
	}
	return &Factory{config: config, embedder: embedder}, nil
}

// Path returns DataDir/1_interim/<kind>.
func (f *Factory) Path(kind domain.IndexKind) string {
	return filepath.Join(f.config.DataDir, InterimDir, kind.String())
}

// NewVectorStore returns an empty store for a semantic index kind.
func (f *Factory) NewVectorStore(kind domain.IndexKind) (driven.VectorStore, error) {
	switch kind {
	case domain.IndexKindDocuments, domain.IndexKindSentences:
	default:
		return nil, fmt.Errorf("%w: %q is not a vector index", domain.ErrUnsupportedType, kind)
	}

	path := f.Path(kind)
	switch f.config.Backend {
	case domain.VectorBackendChromem:
		return chromem.New(path, f.embedder, f.config.Compress), nil
	default:
		return flat.New(path, f.embedder), nil
	}
}

// NewLexicalStore returns an unopened FTS5 store.
func (f *Factory) NewLexicalStore() (driven.LexicalStore, error) {
	return sqlite.NewLexicalStore(f.Path(domain.IndexKindLexical), f.config.HighlightBefore, f.config.HighlightAfter), nil
}
