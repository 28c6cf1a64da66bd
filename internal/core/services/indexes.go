package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// Query limit inflation for vector searches. Approximate backends may return
// fewer hits than asked for large limits, and min-score filtering and
// per-document deduplication drop hits after the query.
const (
	InflationFactor  = 2
	MinInflatedLimit = 10

	// SentenceInflationFactor applies to sentence searches that are
	// deduplicated by document.
	SentenceInflationFactor = 5
)

// upsertBatchSize is the number of rows embedded per store call during reindex.
const upsertBatchSize = 32

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return domain.DefaultSearchLimit
	}
	return limit
}

func inflatedLimit(limit, factor int) int {
	n := limit * factor
	if n < MinInflatedLimit {
		n = MinInflatedLimit
	}
	return n
}

// loadVectorStore returns the cached, loaded store for a semantic index.
func loadVectorStore(ctx context.Context, cache *IndexCache, factory driven.IndexStoreFactory, kind domain.IndexKind) (driven.VectorStore, error) {
	key := IndexKey(kind, factory.Path(kind))
	return cacheLoad(ctx, cache, key, func(ctx context.Context) (driven.VectorStore, error) {
		store, err := factory.NewVectorStore(kind)
		if err != nil {
			return nil, err
		}
		if err := store.Load(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("loading %s: %w", kind, err)
		}
		logger.Debug("loaded %s: %d entries", kind, store.Count())
		return store, nil
	})
}

// vectorIndexInfo reports a semantic index, built or not.
func vectorIndexInfo(ctx context.Context, cache *IndexCache, factory driven.IndexStoreFactory, kind domain.IndexKind, class string) domain.IndexInfo {
	store, err := loadVectorStore(ctx, cache, factory, kind)
	if err != nil {
		info := domain.IndexInfo{Class: class, Kind: kind, FilePath: factory.Path(kind)}
		if !errors.Is(err, domain.ErrIndexNotFound) {
			info.Config = map[string]string{"error": err.Error()}
		}
		return info
	}
	info := store.Info()
	info.Class = class
	info.Kind = kind
	info.Built = true
	return info
}

// vectorHitsToHits converts document-store hits, dropping those below minScore.
func vectorHitsToHits(hits []driven.VectorHit, minScore float64, limit int) []domain.Hit {
	results := make([]domain.Hit, 0, min(len(hits), limit))
	for _, h := range hits {
		if minScore > 0 && h.Score < minScore {
			continue
		}
		results = append(results, domain.Hit{ID: h.DocID, Text: h.Text, Score: h.Score})
		if len(results) == limit {
			break
		}
	}
	return results
}

// isRowFailure reports whether an upsert error concerns the rows being
// written rather than the store: a failed embedding or an unusable vector.
func isRowFailure(err error) bool {
	return errors.Is(err, domain.ErrEmbeddingFailed) || errors.Is(err, domain.ErrInvalidInput)
}

// isDegenerate reports whether v cannot be normalised.
func isDegenerate(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// rowSource yields the indexable rows of a dataset for one column.
type rowSource struct {
	rows    []domain.Row
	column  string
	skipped int
}

func (s *rowSource) eligible() []domain.Row {
	out := make([]domain.Row, 0, len(s.rows))
	s.skipped = 0
	for _, r := range s.rows {
		if r.ID == "" || !domain.IsIndexable(r.Text(s.column)) {
			s.skipped++
			continue
		}
		out = append(out, r)
	}
	return out
}

func report(progress domain.ProgressFunc, kind domain.IndexKind, done, total int) {
	if progress != nil {
		progress(domain.Progress{Kind: kind, Done: done, Total: total})
	}
}

func newStats(kind domain.IndexKind) (domain.ReindexStats, time.Time) {
	return domain.ReindexStats{Kind: kind}, time.Now()
}
