package driving

import (
	"context"

	"github.com/kingsdigitallab/refida/internal/core/domain"
)

// Index is the capability shared by the document, sentence and lexical
// indexes. Each is rebuilt from dataset rows and answers phrase queries.
type Index interface {
	// Kind returns the index identity.
	Kind() domain.IndexKind

	// Reindex rebuilds the index from scratch and persists it.
	Reindex(ctx context.Context, rows []domain.Row, column string, progress domain.ProgressFunc) (domain.ReindexStats, error)

	// SearchPhrase returns at most opts.Limit hits, best first.
	// opts.Offset is ignored here; pagination is applied by SearchService.
	SearchPhrase(ctx context.Context, phrase string, opts domain.SearchOptions) ([]domain.Hit, error)

	// Info describes the index.
	Info(ctx context.Context) domain.IndexInfo
}
