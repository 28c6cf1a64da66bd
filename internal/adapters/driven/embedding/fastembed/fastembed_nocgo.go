//go:build !cgo

package fastembed

import (
	"context"

	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// EmbeddingService is a stub for builds without cgo.
type EmbeddingService struct{}

// NewEmbeddingService returns ErrNotAvailable.
func NewEmbeddingService(_ Config) (*EmbeddingService, error) {
	return nil, ErrNotAvailable
}

// Embed returns ErrNotAvailable.
func (s *EmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrNotAvailable
}

// EmbedBatch returns ErrNotAvailable.
func (s *EmbeddingService) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrNotAvailable
}

// Dimensions returns 0.
func (s *EmbeddingService) Dimensions() int { return 0 }

// ModelName returns "".
func (s *EmbeddingService) ModelName() string { return "" }

// Ping returns ErrNotAvailable.
func (s *EmbeddingService) Ping(_ context.Context) error { return ErrNotAvailable }

// Close is a no-op.
func (s *EmbeddingService) Close() error { return nil }
