package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/core/ports/driving"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// Ensure SentenceIndex implements the interface.
var _ driving.Index = (*SentenceIndex)(nil)

// SentenceIndex keeps one embedding per sentence, each tagged with its
// document. When built with a companion DocumentIndex it also derives the
// document vectors as the mean of their sentence vectors, so a single
// segmentation and embedding pass serves both indexes.
type SentenceIndex struct {
	factory   driven.IndexStoreFactory
	cache     *IndexCache
	embedder  driven.EmbeddingService
	segmenter driven.SentenceSegmenter
	documents *DocumentIndex
}

// NewSentenceIndex creates a sentence index. documents may be nil, in which
// case Reindex leaves the document index alone.
func NewSentenceIndex(
	factory driven.IndexStoreFactory,
	cache *IndexCache,
	embedder driven.EmbeddingService,
	segmenter driven.SentenceSegmenter,
	documents *DocumentIndex,
) *SentenceIndex {
	return &SentenceIndex{
		factory:   factory,
		cache:     cache,
		embedder:  embedder,
		segmenter: segmenter,
		documents: documents,
	}
}

// Kind returns the index identity.
func (s *SentenceIndex) Kind() domain.IndexKind {
	return domain.IndexKindSentences
}

func (s *SentenceIndex) key() string {
	return IndexKey(s.Kind(), s.factory.Path(s.Kind()))
}

// Reindex segments every eligible row, embeds and stores each sentence under
// a per-run counter, then stores the mean sentence vector of each row in the
// companion document index. Both stores are persisted only if the whole run
// succeeds.
func (s *SentenceIndex) Reindex(ctx context.Context, rows []domain.Row, column string, progress domain.ProgressFunc) (domain.ReindexStats, error) {
	defer logger.Timed("reindex " + string(s.Kind()))()
	stats, start := newStats(s.Kind())

	if s.embedder == nil {
		return stats, domain.ErrEmbeddingUnavailable
	}

	store, err := s.factory.NewVectorStore(s.Kind())
	if err != nil {
		return stats, fmt.Errorf("opening sentence store: %w", err)
	}
	defer store.Close()
	if err := store.Reset(ctx); err != nil {
		return stats, fmt.Errorf("resetting sentence store: %w", err)
	}

	var docs *DocumentBuild
	if s.documents != nil {
		docs, err = s.documents.NewBuild(ctx)
		if err != nil {
			return stats, err
		}
		defer docs.Abort()
	}

	src := &rowSource{rows: rows, column: column}
	eligible := src.eligible()
	stats.Skipped = src.skipped

	counter := 0
	for i, row := range eligible {
		text := row.Text(column)
		sentences := s.segmenter.Split(text)
		if len(sentences) == 0 {
			stats.Skipped++
			report(progress, s.Kind(), i+1, len(eligible))
			continue
		}

		vectors, err := s.embedder.EmbedBatch(ctx, sentences)
		if err == nil && len(vectors) != len(sentences) {
			err = fmt.Errorf("%w: got %d vectors for %d sentences", domain.ErrEmbeddingFailed, len(vectors), len(sentences))
		}
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			logger.Warn("skipping document %s: %v", row.ID, err)
			stats.Failed = append(stats.Failed, row.ID)
			report(progress, s.Kind(), i+1, len(eligible))
			continue
		}

		sentences, vectors = dropDegenerate(sentences, vectors)
		if len(sentences) == 0 {
			logger.Warn("skipping document %s: no sentence has a usable embedding", row.ID)
			stats.Failed = append(stats.Failed, row.ID)
			report(progress, s.Kind(), i+1, len(eligible))
			continue
		}

		entries := make([]driven.VectorEntry, len(sentences))
		for j, sent := range sentences {
			entries[j] = driven.VectorEntry{
				ID:     strconv.Itoa(counter + j),
				Text:   sent,
				DocID:  row.ID,
				Vector: vectors[j],
			}
		}
		if err := store.Upsert(ctx, entries); err != nil {
			if !isRowFailure(err) {
				return stats, fmt.Errorf("upserting sentences of %s: %w", row.ID, err)
			}
			logger.Warn("skipping document %s: %v", row.ID, err)
			stats.Failed = append(stats.Failed, row.ID)
			report(progress, s.Kind(), i+1, len(eligible))
			continue
		}
		counter += len(entries)

		if docs != nil {
			if err := docs.UpsertVector(ctx, row.ID, text, MeanVector(vectors)); err != nil {
				if !isRowFailure(err) {
					return stats, fmt.Errorf("upserting derived vector of %s: %w", row.ID, err)
				}
				logger.Warn("document %s has no derived vector: %v", row.ID, err)
			}
		}

		stats.Indexed++
		stats.Sentences += len(sentences)
		report(progress, s.Kind(), i+1, len(eligible))
	}

	// Both artifacts are written before either is made visible to queries.
	if err := store.Save(ctx); err != nil {
		return stats, fmt.Errorf("saving sentence index: %w", err)
	}
	if docs != nil {
		logger.Info("derived %d document vectors from sentences", docs.Count())
		if err := docs.save(ctx); err != nil {
			return stats, err
		}
	}
	s.cache.Invalidate(s.key())
	if docs != nil {
		docs.publish()
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// dropDegenerate removes the sentences whose embedding is empty or all
// zeros, such as a lone bullet or a run of punctuation.
func dropDegenerate(sentences []string, vectors [][]float32) ([]string, [][]float32) {
	keptS := sentences[:0:0]
	keptV := vectors[:0:0]
	for j, v := range vectors {
		if isDegenerate(v) {
			logger.Debug("dropping sentence without a usable embedding: %q", sentences[j])
			continue
		}
		keptS = append(keptS, sentences[j])
		keptV = append(keptV, v)
	}
	return keptS, keptV
}

// MeanVector returns the element-wise mean of vectors, which must share a
// dimension. Returns nil for no input.
func MeanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	sum := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i := range sum {
			sum[i] += float64(v[i])
		}
	}
	mean := make([]float32, len(sum))
	n := float64(len(vectors))
	for i, x := range sum {
		mean[i] = float32(x / n)
	}
	return mean
}

// SearchPhrase ranks documents by their best-matching sentence.
func (s *SentenceIndex) SearchPhrase(ctx context.Context, phrase string, opts domain.SearchOptions) ([]domain.Hit, error) {
	return s.SearchDocs(ctx, phrase, opts)
}

// SearchDocs searches sentences and keeps the first (best) hit per document
// until opts.Limit distinct documents are collected. Hit.Text is the
// matching sentence.
func (s *SentenceIndex) SearchDocs(ctx context.Context, phrase string, opts domain.SearchOptions) ([]domain.Hit, error) {
	phrase = CleanSemanticPhrase(phrase)
	if phrase == "" {
		return []domain.Hit{}, nil
	}

	store, err := loadVectorStore(ctx, s.cache, s.factory, s.Kind())
	if err != nil {
		return nil, err
	}

	limit := effectiveLimit(opts.Limit)
	hits, err := store.Search(ctx, phrase, inflatedLimit(limit, SentenceInflationFactor), domain.Filter{})
	if err != nil {
		return nil, fmt.Errorf("searching sentences: %w", err)
	}
	logger.Debug("sentence index: %d raw hits for %q", len(hits), phrase)

	seen := make(map[string]bool)
	results := make([]domain.Hit, 0, limit)
	for _, h := range hits {
		if opts.MinScore > 0 && h.Score < opts.MinScore {
			continue
		}
		if seen[h.DocID] {
			continue
		}
		seen[h.DocID] = true
		results = append(results, domain.Hit{ID: h.DocID, Text: h.Text, Score: h.Score, SentenceID: h.ID})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// SearchSentencesForDoc returns the sentences of one document closest to the
// phrase, best first.
func (s *SentenceIndex) SearchSentencesForDoc(ctx context.Context, docID, phrase string, limit int) ([]domain.Hit, error) {
	phrase = CleanSemanticPhrase(phrase)
	if phrase == "" || docID == "" {
		return []domain.Hit{}, nil
	}
	if limit <= 0 {
		limit = domain.SearchMaxSnippets
	}

	store, err := loadVectorStore(ctx, s.cache, s.factory, s.Kind())
	if err != nil {
		return nil, err
	}

	hits, err := store.Search(ctx, phrase, limit, domain.Filter{DocID: docID})
	if err != nil {
		return nil, fmt.Errorf("searching sentences of %s: %w", docID, err)
	}

	results := make([]domain.Hit, 0, len(hits))
	for _, h := range hits {
		results = append(results, domain.Hit{ID: h.DocID, Text: h.Text, Score: h.Score, SentenceID: h.ID})
	}
	return results, nil
}

// Info describes the index.
func (s *SentenceIndex) Info(ctx context.Context) domain.IndexInfo {
	info := vectorIndexInfo(ctx, s.cache, s.factory, s.Kind(), "SentenceIndex")
	if s.documents != nil {
		if info.Config == nil {
			info.Config = map[string]string{}
		}
		info.Config["derives"] = string(domain.IndexKindDocuments)
	}
	return info
}
