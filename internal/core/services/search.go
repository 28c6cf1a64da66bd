package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driving"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService dispatches phrase queries to the index selected by mode and
// explains document hits.
type SearchService struct {
	documents driving.Index
	sentences driving.Index
	lexical   driving.Index
	explainer *Explainer
	limit     int
}

// NewSearchService creates a new search service.
// The documents, sentences and explainer parameters are optional (can be nil)
// when no embedding provider is configured; lexical search still works.
func NewSearchService(
	documents driving.Index,
	sentences driving.Index,
	lexical driving.Index,
	explainer *Explainer,
) *SearchService {
	return &SearchService{
		documents: documents,
		sentences: sentences,
		lexical:   lexical,
		explainer: explainer,
		limit:     domain.DefaultSearchLimit,
	}
}

// SetDefaultLimit sets the page size used when a query asks for none.
func (s *SearchService) SetDefaultLimit(limit int) {
	if limit > 0 {
		s.limit = limit
	}
}

func (s *SearchService) index(mode domain.SearchMode) (driving.Index, error) {
	var idx driving.Index
	switch mode {
	case domain.SearchModeSemanticDocs:
		idx = s.documents
	case domain.SearchModeSemanticSentences:
		idx = s.sentences
	case domain.SearchModeLexical:
		idx = s.lexical
	default:
		return nil, fmt.Errorf("%w: unknown search mode %q", domain.ErrInvalidInput, mode)
	}
	if idx == nil {
		if mode.IsSemantic() {
			return nil, domain.ErrEmbeddingUnavailable
		}
		return nil, fmt.Errorf("%w: no index for %s", domain.ErrInvalidInput, mode)
	}
	return idx, nil
}

// SearchPhrase queries the index selected by mode and applies pagination.
func (s *SearchService) SearchPhrase(
	ctx context.Context, mode domain.SearchMode, phrase string, opts domain.SearchOptions,
) ([]domain.Hit, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q, mode: %s", phrase, mode)

	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.Hit{}, nil
	}

	idx, err := s.index(mode)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.limit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	logger.Debug("Limit: %d, Offset: %d, MinScore: %.2f", limit, opts.Offset, opts.MinScore)

	// Ask the index for everything up to the end of the requested page.
	internal := opts
	internal.Limit = opts.Offset + limit

	hits, err := idx.SearchPhrase(ctx, phrase, internal)
	if err != nil {
		logger.Warn("Search failed: %v", err)
		return nil, fmt.Errorf("search: %w", err)
	}
	logger.Debug("Raw results: %d hits", len(hits))

	hits = applyPagination(hits, opts.Offset, limit)
	logger.Info("Final results: %d", len(hits))
	return hits, nil
}

// Explain returns the sentences of a hit that best match the phrase.
func (s *SearchService) Explain(ctx context.Context, hit domain.Hit, phrase string, limit int) (domain.Explanation, error) {
	if s.explainer == nil {
		return domain.Explanation{}, domain.ErrEmbeddingUnavailable
	}
	return s.explainer.Explain(ctx, hit, phrase, limit)
}

// GetHighlightedTextFromHit returns the hit text with matched parts
// wrapped in the configured highlight delimiters.
func (s *SearchService) GetHighlightedTextFromHit(ctx context.Context, hit domain.Hit, phrase string, limit int) (string, error) {
	if hit.Highlighted != "" {
		return hit.Highlighted, nil
	}
	if s.explainer == nil {
		return hit.Text, nil
	}
	return s.explainer.Highlight(ctx, hit, phrase, limit)
}

// Info describes every configured index.
func (s *SearchService) Info(ctx context.Context) []domain.IndexInfo {
	var infos []domain.IndexInfo
	for _, idx := range []driving.Index{s.documents, s.sentences, s.lexical} {
		if idx != nil {
			infos = append(infos, idx.Info(ctx))
		}
	}
	return infos
}

// applyPagination applies offset and limit to results.
func applyPagination(results []domain.Hit, offset, limit int) []domain.Hit {
	if offset >= len(results) {
		return []domain.Hit{}
	}

	end := offset + limit
	if end > len(results) {
		end = len(results)
	}

	return results[offset:end]
}
