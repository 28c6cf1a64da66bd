package mcp

import (
	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides search, explanation and index diagnostics.
	Search driving.SearchService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}

// Options holds the search defaults applied to tool calls that omit them.
type Options struct {
	DefaultLimit int
	MinScore     float64
	MaxSnippets  int
}

func (o Options) withDefaults() Options {
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = domain.DefaultSearchLimit
	}
	if o.MaxSnippets <= 0 {
		o.MaxSnippets = domain.SearchMaxSnippets
	}
	return o
}
