package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsdigitallab/refida/internal/core/domain"
)

func dataset(rows ...domain.Row) *staticDataset {
	return &staticDataset{dataset: &domain.Dataset{Columns: []string{"id", "text"}, Rows: rows}}
}

func TestReindexService_RunsIndexesInOrder(t *testing.T) {
	var calls []string
	sents := &recordingIndex{kind: domain.IndexKindSentences, calls: &calls}
	docs := &recordingIndex{kind: domain.IndexKindDocuments, calls: &calls}
	lex := &recordingIndex{kind: domain.IndexKindLexical, calls: &calls}
	service := NewReindexService(dataset(catDogRows()...), "", sents, docs, lex)

	report, err := service.Reindex(context.Background(), "", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"semindex_sents", "semindex", "lexindex"}, calls)
	assert.Equal(t, 2, report.Rows)
	require.Len(t, report.Stats, 3)

	_, err = uuid.Parse(report.BuildID)
	require.NoError(t, err)
	for _, idx := range []*recordingIndex{sents, docs, lex} {
		assert.Equal(t, report.BuildID, idx.buildID)
	}
}

func TestReindexService_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	sents := &recordingIndex{kind: domain.IndexKindSentences, calls: &calls, err: boom}
	lex := &recordingIndex{kind: domain.IndexKindLexical, calls: &calls}
	service := NewReindexService(dataset(catDogRows()...), "text", sents, lex)

	report, err := service.Reindex(context.Background(), "", nil)

	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "reindex semindex_sents")
	assert.Equal(t, []string{"semindex_sents"}, calls)
	assert.Empty(t, report.Stats)
}

func TestReindexService_InProgress(t *testing.T) {
	service := NewReindexService(dataset(), "text")
	service.mu.Lock()
	defer service.mu.Unlock()

	_, err := service.Reindex(context.Background(), "", nil)

	assert.ErrorIs(t, err, domain.ErrReindexInProgress)
}

func TestReindexService_MissingColumn(t *testing.T) {
	service := NewReindexService(dataset(catDogRows()...), "text")

	_, err := service.Reindex(context.Background(), "abstract", nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReindexService_DatasetError(t *testing.T) {
	service := NewReindexService(&staticDataset{err: domain.ErrDatasetNotFound}, "text")

	_, err := service.Reindex(context.Background(), "", nil)

	assert.ErrorIs(t, err, domain.ErrDatasetNotFound)
}

func TestReindexService_EmptyDataset(t *testing.T) {
	ctx := context.Background()
	f := newSentenceFixture(t, true)
	lexical := NewLexicalIndex(f.factory, NewIndexCache())
	service := NewReindexService(&staticDataset{dataset: &domain.Dataset{}}, "text", f.sentences, lexical)

	report, err := service.Reindex(ctx, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Rows)

	for _, info := range []domain.IndexInfo{f.sentences.Info(ctx), f.documents.Info(ctx), lexical.Info(ctx)} {
		assert.True(t, info.Built, info.Kind)
		assert.Equal(t, 0, info.Size, info.Kind)
	}
}

func TestReindexService_Cancelled(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	service := NewReindexService(dataset(catDogRows()...), "text", &recordingIndex{kind: domain.IndexKindLexical, calls: &calls})

	_, err := service.Reindex(ctx, "", nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}
