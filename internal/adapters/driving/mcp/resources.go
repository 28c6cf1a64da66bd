package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kingsdigitallab/refida/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for refida resources.
	uriScheme = "refida://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource listing every index.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "indexes",
		Name:        "indexes",
		Description: "Diagnostics for the document, sentence and lexical indexes",
		MIMEType:    "application/json",
	}, s.handleIndexesResource)

	// Template for a single index.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "indexes/{kind}",
		Name:        "index",
		Description: "Diagnostics for one index (semindex, semindex_sents or lexindex)",
		MIMEType:    "application/json",
	}, s.handleIndexResource)
}

// handleIndexesResource returns every index's diagnostics.
func (s *Server) handleIndexesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	infos := s.ports.Search.Info(ctx)
	if infos == nil {
		infos = []domain.IndexInfo{}
	}
	return jsonResource(req.Params.URI, infos)
}

// handleIndexResource returns one index's diagnostics.
func (s *Server) handleIndexResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	kind := extractIndexKind(req.Params.URI)
	if !kind.IsValid() {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	for _, info := range s.ports.Search.Info(ctx) {
		if info.Kind == kind {
			return jsonResource(req.Params.URI, info)
		}
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling index info: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractIndexKind extracts the kind from a URI like refida://indexes/{kind}.
func extractIndexKind(uri string) domain.IndexKind {
	const prefix = uriScheme + "indexes/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return domain.IndexKind(strings.TrimPrefix(uri, prefix))
}
