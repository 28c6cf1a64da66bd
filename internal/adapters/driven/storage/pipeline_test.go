package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsdigitallab/refida/internal/adapters/driven/dataset/csvfile"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/embedding/hashing"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/segmenter/rules"
	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/services"
)

const catDogCSV = `id,text
A,The cat sat on the mat. The cat purred loudly.
B,Dogs are loyal companions. A puppy is a young dog.
C,ab
`

// pipeline wires the real stores the way the refida command does.
type pipeline struct {
	reindex *services.ReindexService
	search  *services.SearchService
}

func newPipeline(t *testing.T, dataDir string, backend domain.VectorBackend) *pipeline {
	t.Helper()
	embedder := hashing.NewEmbeddingService(0)
	factory, err := NewFactory(Config{
		DataDir:         dataDir,
		Backend:         backend,
		HighlightBefore: "[",
		HighlightAfter:  "]",
	}, embedder)
	require.NoError(t, err)

	cache := services.NewIndexCache()
	t.Cleanup(func() { _ = cache.Close() })
	segmenter := rules.New()

	documents := services.NewDocumentIndex(factory, cache)
	sentences := services.NewSentenceIndex(factory, cache, embedder, segmenter, documents)
	lexical := services.NewLexicalIndex(factory, cache)
	explainer := services.NewExplainer(services.ExplainerConfig{
		HighlightBefore: "[",
		HighlightAfter:  "]",
	}, documents, sentences, segmenter)

	reader := csvfile.NewDefault(dataDir)
	return &pipeline{
		reindex: services.NewReindexService(reader, "text", sentences, lexical),
		search:  services.NewSearchService(documents, sentences, lexical, explainer),
	}
}

func writeDataset(t *testing.T, dataDir, content string) {
	t.Helper()
	path := filepath.Join(dataDir, csvfile.DefaultFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func backends() []domain.VectorBackend {
	return []domain.VectorBackend{domain.VectorBackendFlat, domain.VectorBackendChromem}
}

type query struct {
	mode   domain.SearchMode
	phrase string
}

var queries = []query{
	{domain.SearchModeSemanticDocs, "cat mat"},
	{domain.SearchModeSemanticSentences, "cat mat"},
	{domain.SearchModeSemanticSentences, "loyal puppy"},
	{domain.SearchModeLexical, "cat"},
	{domain.SearchModeLexical, "dog OR mat"},
}

func runQueries(t *testing.T, p *pipeline) [][]domain.Hit {
	t.Helper()
	out := make([][]domain.Hit, len(queries))
	for i, q := range queries {
		hits, err := p.search.SearchPhrase(context.Background(), q.mode, q.phrase, domain.SearchOptions{Limit: 10})
		require.NoError(t, err, "%s %q", q.mode, q.phrase)
		out[i] = hits
	}
	return out
}

func TestPipeline_CatDogScenario(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			dataDir := t.TempDir()
			writeDataset(t, dataDir, catDogCSV)
			p := newPipeline(t, dataDir, backend)

			report, err := p.reindex.Reindex(ctx, "", nil)
			require.NoError(t, err)
			require.Len(t, report.Stats, 2)
			for _, stats := range report.Stats {
				assert.Equal(t, 2, stats.Indexed, stats.Kind)
				assert.Equal(t, 1, stats.Skipped, stats.Kind)
				assert.Empty(t, stats.Failed, stats.Kind)
			}

			lexical, err := p.search.SearchPhrase(ctx, domain.SearchModeLexical, "cat", domain.SearchOptions{})
			require.NoError(t, err)
			require.Len(t, lexical, 1)
			assert.Equal(t, "A", lexical[0].ID)
			assert.Contains(t, lexical[0].Highlighted, "[cat]")

			docs, err := p.search.SearchPhrase(ctx, domain.SearchModeSemanticDocs, "cat mat", domain.SearchOptions{Limit: 1})
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, "A", docs[0].ID)

			all, err := p.search.SearchPhrase(ctx, domain.SearchModeSemanticDocs, "cat mat", domain.SearchOptions{Limit: 10})
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Greater(t, all[0].Score, all[1].Score)

			highlighted, err := p.search.GetHighlightedTextFromHit(ctx, docs[0], "cat mat", 0)
			require.NoError(t, err)
			assert.Contains(t, highlighted, "[The cat sat on the mat.]")
		})
	}
}

func TestPipeline_SentenceSearchDeduplicatesByDocument(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			dataDir := t.TempDir()
			writeDataset(t, dataDir, catDogCSV)
			p := newPipeline(t, dataDir, backend)
			_, err := p.reindex.Reindex(ctx, "", nil)
			require.NoError(t, err)

			hits, err := p.search.SearchPhrase(ctx, domain.SearchModeSemanticSentences, "the cat", domain.SearchOptions{Limit: 10})
			require.NoError(t, err)

			seen := map[string]bool{}
			for _, h := range hits {
				assert.False(t, seen[h.ID], "document %s returned twice", h.ID)
				seen[h.ID] = true
				assert.NotEmpty(t, h.SentenceID)
			}
			require.NotEmpty(t, hits)
			assert.Equal(t, "A", hits[0].ID)
		})
	}
}

func TestPipeline_RebuildIsIdempotent(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			dataDir := t.TempDir()
			writeDataset(t, dataDir, catDogCSV)

			first := newPipeline(t, dataDir, backend)
			_, err := first.reindex.Reindex(ctx, "", nil)
			require.NoError(t, err)
			want := runQueries(t, first)

			// A second process rebuilding the same dataset.
			second := newPipeline(t, dataDir, backend)
			_, err = second.reindex.Reindex(ctx, "", nil)
			require.NoError(t, err)

			for range 3 {
				got := runQueries(t, second)
				require.Len(t, got, len(want))
				for i := range want {
					q := queries[i]
					require.Len(t, got[i], len(want[i]), "%s %q", q.mode, q.phrase)
					for j := range want[i] {
						assert.Equal(t, want[i][j].ID, got[i][j].ID, "%s %q rank %d", q.mode, q.phrase, j)
						assert.Equal(t, want[i][j].SentenceID, got[i][j].SentenceID, "%s %q rank %d", q.mode, q.phrase, j)
						assert.InDelta(t, want[i][j].Score, got[i][j].Score, 1e-6, "%s %q rank %d", q.mode, q.phrase, j)
					}
				}
			}
		})
	}
}

func TestPipeline_EmptyDataset(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			dataDir := t.TempDir()
			writeDataset(t, dataDir, "id,text\n")
			p := newPipeline(t, dataDir, backend)

			report, err := p.reindex.Reindex(ctx, "", nil)
			require.NoError(t, err)
			assert.Zero(t, report.Rows)

			infos := p.search.Info(ctx)
			require.Len(t, infos, 3)
			for _, info := range infos {
				assert.True(t, info.Built, info.Kind)
				assert.Zero(t, info.Size, info.Kind)
			}

			for _, mode := range domain.SearchModes {
				hits, err := p.search.SearchPhrase(ctx, mode, "cat", domain.SearchOptions{})
				require.NoError(t, err, mode)
				assert.Empty(t, hits, mode)
			}
		})
	}
}

func TestPipeline_PunctuationRowsDoNotAbortReindex(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			dataDir := t.TempDir()
			writeDataset(t, dataDir, "id,text\n"+
				"A,the cat sat on the mat\n"+
				"Z,\"Impact summary.\n\n•\n\nThe lab opened a clinic.\"\n"+
				"Y,*** ---\n")
			p := newPipeline(t, dataDir, backend)

			report, err := p.reindex.Reindex(ctx, "", nil)
			require.NoError(t, err)

			sentences := report.Stats[0]
			assert.Equal(t, domain.IndexKindSentences, sentences.Kind)
			assert.Equal(t, 2, sentences.Indexed)
			assert.Equal(t, []string{"Y"}, sentences.Failed)

			hits, err := p.search.SearchPhrase(ctx, domain.SearchModeSemanticDocs, "clinic", domain.SearchOptions{Limit: 1})
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, "Z", hits[0].ID)
		})
	}
}
