package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/services"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [phrase]", searchCmd.Use)
}

func TestSearchCmd_Short(t *testing.T) {
	assert.Equal(t, "Search indexed documents", searchCmd.Short)
}

func TestSearchCmd_Long(t *testing.T) {
	assert.Contains(t, searchCmd.Long, "semantic-docs")
	assert.Contains(t, searchCmd.Long, "semantic-sentences")
	assert.Contains(t, searchCmd.Long, "BM25")
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"search"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestSearchCmd_HasModeFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("mode")
	require.NotNil(t, flag, "mode flag should exist")
	assert.Equal(t, "m", flag.Shorthand)
	assert.Equal(t, "semantic-docs", flag.DefValue)
}

func TestSearchCmd_ExplainsDocumentHits(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := searchService.(*mockSearchService)
	mock.explanation = domain.Explanation{Preview: "The cat sat on the mat."}

	out, err := execute(t, "search", "feline")

	require.NoError(t, err)
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "[1] doc-1 (0.91)")
	assert.Contains(t, out, "The cat sat on the mat.")
	assert.Equal(t, domain.SearchModeSemanticDocs, mock.lastMode)
	assert.Equal(t, "feline", mock.lastPhrase)
}

func TestSearchCmd_ExplanationFailureIsShown(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := searchService.(*mockSearchService)
	mock.explainErr = errors.New("sentence index missing")

	out, err := execute(t, "search", "feline")

	require.NoError(t, err)
	assert.Contains(t, out, "[1] doc-1")
	assert.Contains(t, out, services.ExplanationFailedWarning)
}

func TestSearchCmd_NoExplainSkipsExplanation(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := searchService.(*mockSearchService)
	mock.explainErr = errors.New("should not be called")

	out, err := execute(t, "search", "--no-explain", "feline")

	require.NoError(t, err)
	assert.NotContains(t, out, services.ExplanationFailedWarning)
}

func TestSearchCmd_LexicalUsesHighlighting(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := searchService.(*mockSearchService)
	mock.highlighted = "The [cat] sat on the mat."

	out, err := execute(t, "search", "--mode", "lexical", "cat")

	require.NoError(t, err)
	assert.Contains(t, out, "The [cat] sat on the mat.")
	assert.Equal(t, domain.SearchModeLexical, mock.lastMode)
}

func TestSearchCmd_ExecutesWithLimitAndOffset(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := searchService.(*mockSearchService)

	out, err := execute(t, "search", "--limit", "25", "--offset", "5", "--no-explain", "test query")

	require.NoError(t, err)
	assert.Equal(t, 25, mock.lastOpts.Limit)
	assert.Equal(t, 5, mock.lastOpts.Offset)
	assert.Contains(t, out, "[6] doc-1")
}

func TestSearchCmd_MinScore(t *testing.T) {
	t.Run("defaults to configured value", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()
		settings := settingsService.(*mockSettingsService)
		settings.settings.Search.MinScore = 0.3
		mock := searchService.(*mockSearchService)

		_, err := execute(t, "search", "--no-explain", "q")

		require.NoError(t, err)
		assert.InDelta(t, 0.3, mock.lastOpts.MinScore, 1e-9)
	})

	t.Run("flag overrides configured value", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()
		mock := searchService.(*mockSearchService)

		_, err := execute(t, "search", "--min-score", "0", "--no-explain", "q")

		require.NoError(t, err)
		assert.Zero(t, mock.lastOpts.MinScore)
	})
}

func TestSearchCmd_NoResults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	searchService.(*mockSearchService).hits = nil

	out, err := execute(t, "search", "nothing matches")

	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_MissingIndex(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	searchService.(*mockSearchService).err = fmt.Errorf("search: %w", domain.ErrIndexNotFound)

	_, err := execute(t, "search", "cat")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Run `refida reindex` to build it")
	assert.NotContains(t, err.Error(), "search failed")
}

func TestSearchCmd_MalformedQuery(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	searchService.(*mockSearchService).err = fmt.Errorf("search: %w", domain.ErrMalformedQuery)

	_, err := execute(t, "search", "--mode", "lexical", "AND")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedQuery)
	assert.Contains(t, err.Error(), "search failed")
}

func TestSearchCmd_EmbeddingUnavailable(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	searchService.(*mockSearchService).err = domain.ErrEmbeddingUnavailable

	_, err := execute(t, "search", "cat")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--mode lexical")
}

func TestSearchCmd_InvalidMode(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "search", "--mode", "fuzzy", "cat")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown search mode")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	searchService.(*mockSearchService).explanation = domain.Explanation{
		Preview:   "The cat sat.",
		Sentences: []domain.ScoredSentence{{Text: "The cat sat.", Score: 0.7}},
	}

	out, err := execute(t, "search", "--json", "cat")
	require.NoError(t, err)

	var results []searchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].ID)
	assert.Equal(t, "The cat sat.", results[0].Snippet)
	require.NotNil(t, results[0].Explanation)
	assert.Len(t, results[0].Explanation.Sentences, 1)
}

func TestSearchCmd_NilService(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	searchService = nil

	_, err := execute(t, "search", "cat")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b c", truncate("a \n b\t c", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	long := strings.Repeat("é", 5)
	assert.Equal(t, "éé...", truncate(long, 2))
}
