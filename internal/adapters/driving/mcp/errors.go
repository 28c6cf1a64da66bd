// Package mcp provides an MCP (Model Context Protocol) server adapter for refida.
// It lets AI assistants search the document, sentence and lexical indexes.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
