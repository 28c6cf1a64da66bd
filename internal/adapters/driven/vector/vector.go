// Package vector holds the math and embedding plumbing shared by the vector
// store backends in its subpackages.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
)

// Normalize returns v scaled to unit length.
// Returns domain.ErrInvalidInput for an empty or zero vector.
func Normalize(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}

	var magnitude float64
	for _, x := range v {
		magnitude += float64(x) * float64(x)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return nil, fmt.Errorf("%w: zero vector", domain.ErrInvalidInput)
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / magnitude)
	}
	return out, nil
}

// Dot returns the dot product of two vectors of equal length.
// For unit vectors this is the cosine similarity.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// SortHits orders hits by descending score, breaking ties by ascending ID.
func SortHits(hits []driven.VectorHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

// EmbedMissing fills in the vector of every entry that has none.
func EmbedMissing(ctx context.Context, embedder driven.EmbeddingService, entries []driven.VectorEntry) ([]driven.VectorEntry, error) {
	var (
		texts []string
		at    []int
	)
	for i, e := range entries {
		if e.Vector == nil {
			texts = append(texts, e.Text)
			at = append(at, i)
		}
	}
	if len(texts) == 0 {
		return entries, nil
	}
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbeddingFailed, len(vectors), len(texts))
	}

	out := make([]driven.VectorEntry, len(entries))
	copy(out, entries)
	for j, i := range at {
		out[i].Vector = vectors[j]
	}
	return out, nil
}

// ScoreTexts embeds the query and every text and returns the texts ordered
// by cosine similarity to the query, best first.
func ScoreTexts(ctx context.Context, embedder driven.EmbeddingService, query string, texts []string) ([]driven.TextScore, error) {
	if len(texts) == 0 {
		return []driven.TextScore{}, nil
	}
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	q, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding candidates: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbeddingFailed, len(vectors), len(texts))
	}

	scores := make([]driven.TextScore, len(texts))
	for i, v := range vectors {
		scores[i] = driven.TextScore{Index: i, Text: texts[i], Score: Cosine(q, v)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores, nil
}
