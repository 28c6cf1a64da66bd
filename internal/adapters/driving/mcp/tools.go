package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query    string   `json:"query" jsonschema:"the phrase to search for"`
	Mode     string   `json:"mode,omitempty" jsonschema:"semantic-docs (default), semantic-sentences or lexical"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum number of results to return"`
	Offset   int      `json:"offset,omitempty" jsonschema:"number of results to skip"`
	MinScore *float64 `json:"min_score,omitempty" jsonschema:"minimum semantic score between 0 and 1"`
	Explain  bool     `json:"explain,omitempty" jsonschema:"attach the best matching sentences to document hits"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID  string                  `json:"document_id"`
	Score       float64                 `json:"score"`
	Text        string                  `json:"text"`
	SentenceID  string                  `json:"sentence_id,omitempty"`
	Highlighted string                  `json:"highlighted,omitempty"`
	Preview     string                  `json:"preview,omitempty"`
	Sentences   []domain.ScoredSentence `json:"sentences,omitempty"`
	Warning     string                  `json:"warning,omitempty"`
}

// ExplainInput is the input schema for the explain tool.
type ExplainInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to explain"`
	Query      string `json:"query" jsonschema:"the phrase the document matched"`
	Text       string `json:"text,omitempty" jsonschema:"the document text, needed by the exact explain strategy"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of sentences"`
}

// IndexInfoInput is the (empty) input schema for the index_info tool.
type IndexInfoInput struct{}

// IndexInfoOutput is the output schema for the index_info tool.
type IndexInfoOutput struct {
	Indexes []domain.IndexInfo `json:"indexes"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search the research case studies semantically or lexically",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "explain",
		Description: "Return the sentences of a document that best match a query",
	}, s.handleExplain)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_info",
		Description: "Describe the search indexes: location, backend, size and build",
	}, s.handleIndexInfo)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	mode := domain.SearchModeSemanticDocs
	if input.Mode != "" {
		mode = domain.SearchMode(input.Mode)
	}
	if !mode.IsValid() {
		return nil, SearchOutput{}, fmt.Errorf("unknown search mode %q", input.Mode)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	opts := domain.SearchOptions{Limit: limit, Offset: input.Offset, MinScore: s.opts.MinScore}
	if input.MinScore != nil {
		opts.MinScore = *input.MinScore
	}

	hits, err := s.ports.Search.SearchPhrase(ctx, mode, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, toolError(err)
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(hits)),
		Count:   len(hits),
	}
	for i, hit := range hits {
		r := SearchResultOutput{
			DocumentID:  hit.ID,
			Score:       hit.Score,
			Text:        hit.Text,
			SentenceID:  hit.SentenceID,
			Highlighted: hit.Highlighted,
		}
		if input.Explain && mode == domain.SearchModeSemanticDocs {
			exp, err := s.ports.Search.Explain(ctx, hit, input.Query, s.opts.MaxSnippets)
			if err != nil {
				logger.Warn("mcp: explaining %s: %v", hit.ID, err)
				r.Warning = explanationFailed
			} else {
				r.Preview = exp.Preview
				r.Sentences = exp.Sentences
			}
		}
		output.Results[i] = r
	}

	return nil, output, nil
}

// explanationFailed marks a hit whose explanation could not be produced.
const explanationFailed = "explanation failed"

// handleExplain handles the explain tool invocation.
func (s *Server) handleExplain(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ExplainInput,
) (*mcp.CallToolResult, domain.Explanation, error) {
	if input.DocumentID == "" {
		return nil, domain.Explanation{}, errors.New("document_id is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = s.opts.MaxSnippets
	}

	hit := domain.Hit{ID: input.DocumentID, Text: input.Text}
	exp, err := s.ports.Search.Explain(ctx, hit, input.Query, limit)
	if err != nil {
		return nil, domain.Explanation{}, toolError(err)
	}
	return nil, exp, nil
}

// handleIndexInfo handles the index_info tool invocation.
func (s *Server) handleIndexInfo(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ IndexInfoInput,
) (*mcp.CallToolResult, IndexInfoOutput, error) {
	infos := s.ports.Search.Info(ctx)
	if infos == nil {
		infos = []domain.IndexInfo{}
	}
	return nil, IndexInfoOutput{Indexes: infos}, nil
}

// toolError rewrites well-known failures into messages an assistant can act on.
func toolError(err error) error {
	switch {
	case errors.Is(err, domain.ErrIndexNotFound):
		return fmt.Errorf("index not built, run `refida reindex`: %w", err)
	case errors.Is(err, domain.ErrMalformedQuery):
		return fmt.Errorf("malformed query: %w", err)
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return fmt.Errorf("semantic search is unavailable, use mode lexical: %w", err)
	default:
		return err
	}
}
