package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/core/ports/driving"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// Ensure DocumentIndex implements the interface.
var _ driving.Index = (*DocumentIndex)(nil)

// DocumentIndex keeps one embedding per document, keyed by doc ID.
type DocumentIndex struct {
	factory driven.IndexStoreFactory
	cache   *IndexCache
}

// NewDocumentIndex creates a document index backed by stores from factory.
func NewDocumentIndex(factory driven.IndexStoreFactory, cache *IndexCache) *DocumentIndex {
	return &DocumentIndex{factory: factory, cache: cache}
}

// Kind returns the index identity.
func (d *DocumentIndex) Kind() domain.IndexKind {
	return domain.IndexKindDocuments
}

func (d *DocumentIndex) key() string {
	return IndexKey(d.Kind(), d.factory.Path(d.Kind()))
}

// Reindex embeds the column text of every eligible row and persists the store.
// Rows whose embedding fails after retries are skipped and listed in the stats.
func (d *DocumentIndex) Reindex(ctx context.Context, rows []domain.Row, column string, progress domain.ProgressFunc) (domain.ReindexStats, error) {
	defer logger.Timed("reindex " + string(d.Kind()))()
	stats, start := newStats(d.Kind())

	build, err := d.NewBuild(ctx)
	if err != nil {
		return stats, err
	}
	defer build.Abort()

	src := &rowSource{rows: rows, column: column}
	eligible := src.eligible()
	stats.Skipped = src.skipped

	for i := 0; i < len(eligible); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(eligible))
		batch := make([]driven.VectorEntry, 0, end-i)
		for _, r := range eligible[i:end] {
			batch = append(batch, driven.VectorEntry{ID: r.ID, DocID: r.ID, Text: r.Text(column)})
		}

		indexed, failed, err := upsertIsolating(ctx, build.store, batch)
		if err != nil {
			return stats, err
		}
		stats.Indexed += indexed
		stats.Failed = append(stats.Failed, failed...)
		report(progress, d.Kind(), end, len(eligible))
	}

	if err := build.Commit(ctx); err != nil {
		return stats, err
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

// upsertIsolating upserts a batch; when the batch fails to embed, or an
// entry embeds to an unusable vector, it retries entry by entry so a single
// bad row only costs itself.
func upsertIsolating(ctx context.Context, store driven.VectorStore, batch []driven.VectorEntry) (int, []string, error) {
	err := store.Upsert(ctx, batch)
	if err == nil {
		return len(batch), nil, nil
	}
	if !isRowFailure(err) {
		return 0, nil, fmt.Errorf("upserting documents: %w", err)
	}

	var failed []string
	indexed := 0
	for _, e := range batch {
		if err := store.Upsert(ctx, []driven.VectorEntry{e}); err != nil {
			if !isRowFailure(err) {
				return indexed, failed, fmt.Errorf("upserting %s: %w", e.DocID, err)
			}
			logger.Warn("skipping document %s: %v", e.DocID, err)
			failed = append(failed, e.DocID)
			continue
		}
		indexed++
	}
	return indexed, failed, nil
}

// SearchPhrase returns documents whose embedding is closest to the phrase.
func (d *DocumentIndex) SearchPhrase(ctx context.Context, phrase string, opts domain.SearchOptions) ([]domain.Hit, error) {
	phrase = CleanSemanticPhrase(phrase)
	if phrase == "" {
		return []domain.Hit{}, nil
	}

	store, err := loadVectorStore(ctx, d.cache, d.factory, d.Kind())
	if err != nil {
		return nil, err
	}

	limit := effectiveLimit(opts.Limit)
	hits, err := store.Search(ctx, phrase, inflatedLimit(limit, InflationFactor), domain.Filter{})
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	logger.Debug("document index: %d raw hits for %q", len(hits), phrase)

	return vectorHitsToHits(hits, opts.MinScore, limit), nil
}

// Similarity scores texts against the phrase using the document store's
// embedding model.
func (d *DocumentIndex) Similarity(ctx context.Context, phrase string, texts []string) ([]driven.TextScore, error) {
	store, err := loadVectorStore(ctx, d.cache, d.factory, d.Kind())
	if err != nil {
		return nil, err
	}
	return store.Similarity(ctx, CleanSemanticPhrase(phrase), texts)
}

// Info describes the index.
func (d *DocumentIndex) Info(ctx context.Context) domain.IndexInfo {
	return vectorIndexInfo(ctx, d.cache, d.factory, d.Kind(), "DocumentIndex")
}

// DocumentBuild is an in-progress rebuild of the document store.
// Nothing is visible to queries until Commit.
type DocumentBuild struct {
	index *DocumentIndex
	store driven.VectorStore
	done  bool
}

// NewBuild starts a rebuild from an empty store.
func (d *DocumentIndex) NewBuild(ctx context.Context) (*DocumentBuild, error) {
	store, err := d.factory.NewVectorStore(d.Kind())
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w", err)
	}
	if err := store.Reset(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("resetting document store: %w", err)
	}
	return &DocumentBuild{index: d, store: store}, nil
}

// UpsertVector stores a pre-computed document vector.
func (b *DocumentBuild) UpsertVector(ctx context.Context, docID, text string, vector []float32) error {
	return b.store.Upsert(ctx, []driven.VectorEntry{{ID: docID, DocID: docID, Text: text, Vector: vector}})
}

// Count returns the number of documents in the build.
func (b *DocumentBuild) Count() int {
	return b.store.Count()
}

// Commit persists the build and makes it visible to subsequent queries.
func (b *DocumentBuild) Commit(ctx context.Context) error {
	if b.done {
		return nil
	}
	if err := b.save(ctx); err != nil {
		return err
	}
	b.publish()
	return nil
}

// save persists the build without touching the cache. A failed save ends the
// build.
func (b *DocumentBuild) save(ctx context.Context) error {
	if err := b.store.Save(ctx); err != nil {
		b.Abort()
		return fmt.Errorf("saving document index: %w", err)
	}
	return nil
}

// publish ends a saved build and drops the cached store so the next query
// loads the new artifact.
func (b *DocumentBuild) publish() {
	if b.done {
		return
	}
	b.done = true
	_ = b.store.Close()
	b.index.cache.Invalidate(b.index.key())
}

// Abort discards the build. It is a no-op after Commit.
func (b *DocumentBuild) Abort() {
	if b.done {
		return
	}
	b.done = true
	_ = b.store.Close()
}
