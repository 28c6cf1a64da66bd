package mcp

import (
	"context"

	"github.com/kingsdigitallab/refida/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	hits        []domain.Hit
	err         error
	explanation domain.Explanation
	explainErr  error
	infos       []domain.IndexInfo

	lastMode  domain.SearchMode
	lastOpts  domain.SearchOptions
	explained []string
}

func (m *mockSearchService) SearchPhrase(
	_ context.Context,
	mode domain.SearchMode,
	_ string,
	opts domain.SearchOptions,
) ([]domain.Hit, error) {
	m.lastMode = mode
	m.lastOpts = opts
	return m.hits, m.err
}

func (m *mockSearchService) Explain(_ context.Context, hit domain.Hit, _ string, _ int) (domain.Explanation, error) {
	m.explained = append(m.explained, hit.ID)
	return m.explanation, m.explainErr
}

func (m *mockSearchService) GetHighlightedTextFromHit(_ context.Context, hit domain.Hit, _ string, _ int) (string, error) {
	return hit.Text, nil
}

func (m *mockSearchService) Info(_ context.Context) []domain.IndexInfo {
	return m.infos
}
