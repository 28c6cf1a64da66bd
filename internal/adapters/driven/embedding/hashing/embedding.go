// Package hashing provides an offline embedding service based on feature
// hashing. Each word is hashed into one of a fixed number of buckets, so
// texts sharing words get similar vectors. It needs no model download.
package hashing

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"

	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultDimensions = 512
	ModelName         = "fnv-512"
)

// EmbeddingService hashes words into a fixed-size vector.
type EmbeddingService struct {
	dimensions int
	model      string
}

// NewEmbeddingService creates a hashing embedder with the given number of
// buckets. Zero selects DefaultDimensions.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	model := ModelName
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	if dimensions != DefaultDimensions {
		model = "fnv-" + strconv.Itoa(dimensions)
	}
	return &EmbeddingService{dimensions: dimensions, model: model}
}

// Embed returns the hashed word counts of text. A text without words yields
// a zero vector.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := make([]float32, s.dimensions)
	for _, w := range Tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		bucket := sum % uint64(s.dimensions)
		// The top bit picks a sign so that collisions tend to cancel out.
		if sum>>63 == 1 {
			v[bucket]--
		} else {
			v[bucket]++
		}
	}
	return v, nil
}

// EmbedBatch embeds each text.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Tokenize lowercases text and splits it into words of letters and digits.
// Possessive 's is folded into the stem.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := words[:0]
	for _, w := range words {
		w = strings.TrimSuffix(strings.Trim(w, "'"), "'s")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Dimensions returns the number of buckets.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName identifies the hashing scheme.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
