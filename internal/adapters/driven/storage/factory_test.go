package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsdigitallab/refida/internal/adapters/driven/storage/sqlite"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/vector/chromem"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/vector/flat"
	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
)

func TestFactory_Paths(t *testing.T) {
	f, err := NewFactory(Config{DataDir: "/data"}, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/data", "1_interim", "semindex"), f.Path(domain.IndexKindDocuments))
	assert.Equal(t, filepath.Join("/data", "1_interim", "semindex_sents"), f.Path(domain.IndexKindSentences))
	assert.Equal(t, filepath.Join("/data", "1_interim", "lexindex"), f.Path(domain.IndexKindLexical))
}

func TestFactory_Backends(t *testing.T) {
	tests := []struct {
		name    string
		backend domain.VectorBackend
		check   func(t *testing.T, s driven.VectorStore)
	}{
		{"default is flat", "", func(t *testing.T, s driven.VectorStore) { assert.IsType(t, &flat.Store{}, s) }},
		{"flat", domain.VectorBackendFlat, func(t *testing.T, s driven.VectorStore) { assert.IsType(t, &flat.Store{}, s) }},
		{"chromem", domain.VectorBackendChromem, func(t *testing.T, s driven.VectorStore) { assert.IsType(t, &chromem.Store{}, s) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFactory(Config{DataDir: t.TempDir(), Backend: tt.backend}, nil)
			require.NoError(t, err)

			s, err := f.NewVectorStore(domain.IndexKindSentences)
			require.NoError(t, err)
			tt.check(t, s)
			assert.Equal(t, f.Path(domain.IndexKindSentences), s.Info().FilePath)
		})
	}
}

func TestFactory_InvalidBackend(t *testing.T) {
	_, err := NewFactory(Config{Backend: "faiss"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFactory_LexicalIsNotAVectorStore(t *testing.T) {
	f, err := NewFactory(Config{DataDir: t.TempDir()}, nil)
	require.NoError(t, err)

	_, err = f.NewVectorStore(domain.IndexKindLexical)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestFactory_NewLexicalStore(t *testing.T) {
	f, err := NewFactory(Config{DataDir: t.TempDir(), HighlightBefore: "[", HighlightAfter: "]"}, nil)
	require.NoError(t, err)

	s, err := f.NewLexicalStore()
	require.NoError(t, err)
	lex, ok := s.(*sqlite.LexicalStore)
	require.True(t, ok)
	assert.Equal(t, f.Path(domain.IndexKindLexical), lex.Path())

	assert.ErrorIs(t, s.Open(context.Background()), domain.ErrIndexNotFound)

	require.NoError(t, s.Reindex(context.Background(), []driven.LexicalRow{{ID: "A", Text: "the cat sat on the mat"}}))
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	hits, err := s.SearchPhrase(context.Background(), "mat", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "the cat sat on the [mat]", hits[0].Highlighted)
}
