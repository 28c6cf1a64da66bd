package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/core/ports/driving"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// Ensure LexicalIndex implements the interface.
var _ driving.Index = (*LexicalIndex)(nil)

// LexicalIndex is the BM25 keyword index over document text.
type LexicalIndex struct {
	factory driven.IndexStoreFactory
	cache   *IndexCache
}

// NewLexicalIndex creates a lexical index backed by stores from factory.
func NewLexicalIndex(factory driven.IndexStoreFactory, cache *IndexCache) *LexicalIndex {
	return &LexicalIndex{factory: factory, cache: cache}
}

// Kind returns the index identity.
func (l *LexicalIndex) Kind() domain.IndexKind {
	return domain.IndexKindLexical
}

func (l *LexicalIndex) key() string {
	return IndexKey(l.Kind(), l.factory.Path(l.Kind()))
}

// Reindex rebuilds the full-text table. Rows are filtered by the same
// length rule as the semantic indexes so all indexes agree on doc IDs.
func (l *LexicalIndex) Reindex(ctx context.Context, rows []domain.Row, column string, progress domain.ProgressFunc) (domain.ReindexStats, error) {
	defer logger.Timed("reindex " + string(l.Kind()))()
	stats, start := newStats(l.Kind())

	src := &rowSource{rows: rows, column: column}
	eligible := src.eligible()
	stats.Skipped = src.skipped

	lexRows := make([]driven.LexicalRow, len(eligible))
	for i, r := range eligible {
		lexRows[i] = driven.LexicalRow{ID: r.ID, Text: r.Text(column)}
	}

	store, err := l.factory.NewLexicalStore()
	if err != nil {
		return stats, fmt.Errorf("opening lexical store: %w", err)
	}
	defer store.Close()

	if err := store.Reindex(ctx, lexRows); err != nil {
		return stats, fmt.Errorf("rebuilding lexical index: %w", err)
	}
	l.cache.Invalidate(l.key())

	stats.Indexed = len(lexRows)
	report(progress, l.Kind(), len(lexRows), len(lexRows))
	stats.Duration = time.Since(start)
	return stats, nil
}

func (l *LexicalIndex) load(ctx context.Context) (driven.LexicalStore, error) {
	return cacheLoad(ctx, l.cache, l.key(), func(ctx context.Context) (driven.LexicalStore, error) {
		store, err := l.factory.NewLexicalStore()
		if err != nil {
			return nil, err
		}
		if err := store.Open(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("opening lexical index: %w", err)
		}
		return store, nil
	})
}

// SearchPhrase runs a keyword query. Boolean operators are passed through;
// opts.MinScore does not apply to lexical scores.
func (l *LexicalIndex) SearchPhrase(ctx context.Context, phrase string, opts domain.SearchOptions) ([]domain.Hit, error) {
	store, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	hits, err := store.SearchPhrase(ctx, phrase, effectiveLimit(opts.Limit))
	if err != nil {
		return nil, err
	}

	results := make([]domain.Hit, len(hits))
	for i, h := range hits {
		results[i] = domain.Hit{ID: h.ID, Text: h.Text, Score: h.Score, Highlighted: h.Highlighted}
	}
	return results, nil
}

// Info describes the index.
func (l *LexicalIndex) Info(ctx context.Context) domain.IndexInfo {
	store, err := l.load(ctx)
	if err != nil {
		info := domain.IndexInfo{Class: "LexicalIndex", Kind: l.Kind(), FilePath: l.factory.Path(l.Kind())}
		if !errors.Is(err, domain.ErrIndexNotFound) {
			info.Config = map[string]string{"error": err.Error()}
		}
		return info
	}
	info := store.Info(ctx)
	info.Class = "LexicalIndex"
	info.Kind = l.Kind()
	info.Built = true
	return info
}
