package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsdigitallab/refida/internal/core/domain"
)

func newDocumentIndex(t *testing.T) (*DocumentIndex, *memFactory, *conceptEmbedder) {
	t.Helper()
	embedder := &conceptEmbedder{}
	factory := newMemFactory(embedder)
	cache := NewIndexCache()
	t.Cleanup(func() { _ = cache.Close() })
	return NewDocumentIndex(factory, cache), factory, embedder
}

func TestDocumentIndex_SearchBeforeBuild(t *testing.T) {
	idx, _, _ := newDocumentIndex(t)

	_, err := idx.SearchPhrase(context.Background(), "cat", domain.SearchOptions{Limit: 5})

	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
}

func TestDocumentIndex_ReindexAndSearch(t *testing.T) {
	ctx := context.Background()
	idx, factory, _ := newDocumentIndex(t)

	var progress []domain.Progress
	stats, err := idx.Reindex(ctx, catDogRows(), "text", func(p domain.Progress) { progress = append(progress, p) })
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 1, factory.saves[domain.IndexKindDocuments])
	require.NotEmpty(t, progress)
	assert.Equal(t, domain.Progress{Kind: domain.IndexKindDocuments, Done: 2, Total: 2}, progress[len(progress)-1])

	hits, err := idx.SearchPhrase(ctx, "feline pet", domain.SearchOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "A", hits[0].ID)
	assert.Equal(t, "the cat sat on the mat", hits[0].Text)
	assert.Greater(t, hits[0].Score, 0.9)

	hits, err = idx.SearchPhrase(ctx, "loyal canine", domain.SearchOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "B", hits[0].ID)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
}

func TestDocumentIndex_MinScore(t *testing.T) {
	ctx := context.Background()
	idx, _, _ := newDocumentIndex(t)
	_, err := idx.Reindex(ctx, catDogRows(), "text", nil)
	require.NoError(t, err)

	all, err := idx.SearchPhrase(ctx, "cat", domain.SearchOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 2, "zero min score keeps everything")

	filtered, err := idx.SearchPhrase(ctx, "cat", domain.SearchOptions{Limit: 10, MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "A", filtered[0].ID)
}

func TestDocumentIndex_SkipsShortAndEmptyRows(t *testing.T) {
	ctx := context.Background()
	idx, _, _ := newDocumentIndex(t)

	rows := textRows("A", "the cat sat on the mat", "B", "abc", "C", "", "", "no id here")
	rows = append(rows, domain.Row{ID: "D", Fields: map[string]string{"title": "wrong column"}})

	stats, err := idx.Reindex(ctx, rows, "text", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 4, stats.Skipped)

	info := idx.Info(ctx)
	assert.True(t, info.Built)
	assert.Equal(t, 1, info.Size)
}

func TestDocumentIndex_EmptyDatasetBuildsEmptyIndex(t *testing.T) {
	ctx := context.Background()
	idx, _, _ := newDocumentIndex(t)

	_, err := idx.Reindex(ctx, nil, "text", nil)
	require.NoError(t, err)

	info := idx.Info(ctx)
	assert.True(t, info.Built)
	assert.Equal(t, 0, info.Size)

	hits, err := idx.SearchPhrase(ctx, "cat", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDocumentIndex_FailedEmbeddingSkipsRow(t *testing.T) {
	ctx := context.Background()
	idx, _, embedder := newDocumentIndex(t)
	embedder.failOn = "loyal"

	stats, err := idx.Reindex(ctx, catDogRows(), "text", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, []string{"B"}, stats.Failed)

	embedder.failOn = ""
	hits, err := idx.SearchPhrase(ctx, "dog", domain.SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "A", hits[0].ID)
}

func TestDocumentIndex_TextWithoutWordsSkipsRow(t *testing.T) {
	ctx := context.Background()
	idx, _, _ := newDocumentIndex(t)
	rows := append(catDogRows(), textRows("Z", "*** ---")...)

	stats, err := idx.Reindex(ctx, rows, "text", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, []string{"Z"}, stats.Failed)

	hits, err := idx.SearchPhrase(ctx, "cat", domain.SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "A", hits[0].ID)
}

func TestDocumentIndex_RebuildReplacesCachedStore(t *testing.T) {
	ctx := context.Background()
	idx, _, _ := newDocumentIndex(t)

	_, err := idx.Reindex(ctx, catDogRows(), "text", nil)
	require.NoError(t, err)
	hits, err := idx.SearchPhrase(ctx, "cat", domain.SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	_, err = idx.Reindex(ctx, textRows("Z", "research at the laboratory"), "text", nil)
	require.NoError(t, err)

	hits, err = idx.SearchPhrase(ctx, "cat", domain.SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Z", hits[0].ID)
}

func TestDocumentIndex_SaveFailureKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	idx, factory, _ := newDocumentIndex(t)

	_, err := idx.Reindex(ctx, catDogRows(), "text", nil)
	require.NoError(t, err)

	factory.failSave[domain.IndexKindDocuments] = true
	_, err = idx.Reindex(ctx, textRows("Z", "research at the laboratory"), "text", nil)
	require.Error(t, err)

	assert.Equal(t, 2, idx.Info(ctx).Size)
}

func TestDocumentIndex_Info_NotBuilt(t *testing.T) {
	idx, _, _ := newDocumentIndex(t)

	info := idx.Info(context.Background())

	assert.False(t, info.Built)
	assert.Equal(t, "DocumentIndex", info.Class)
	assert.Equal(t, domain.IndexKindDocuments, info.Kind)
	assert.Equal(t, "/data/1_interim/semindex", info.FilePath)
	assert.Nil(t, info.Config)
}

func TestInflatedLimit(t *testing.T) {
	assert.Equal(t, MinInflatedLimit, inflatedLimit(1, InflationFactor))
	assert.Equal(t, 40, inflatedLimit(20, InflationFactor))
	assert.Equal(t, 100, inflatedLimit(20, SentenceInflationFactor))
	assert.Equal(t, domain.DefaultSearchLimit, effectiveLimit(0))
}
