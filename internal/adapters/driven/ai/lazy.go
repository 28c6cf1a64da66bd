package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
)

// Ensure LazyEmbeddingService implements the interface.
var _ driven.EmbeddingService = (*LazyEmbeddingService)(nil)

// LazyEmbeddingService creates the configured embedding service on first
// use, so commands that never embed do not load a model.
type LazyEmbeddingService struct {
	model      string
	dimensions int
	create     func() (driven.EmbeddingService, error)

	once sync.Once
	mu   sync.Mutex
	svc  driven.EmbeddingService
	err  error
}

// NewLazyEmbeddingService defers CreateEmbeddingService until the service is
// first needed. Returns nil if the provider is not configured.
func NewLazyEmbeddingService(settings *domain.EmbeddingSettings, opts Options) driven.EmbeddingService {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	s := *settings
	return newLazy(s.Model, domain.EmbeddingDimensions()[s.Model], func() (driven.EmbeddingService, error) {
		return CreateEmbeddingService(&s, opts)
	})
}

func newLazy(model string, dimensions int, create func() (driven.EmbeddingService, error)) *LazyEmbeddingService {
	return &LazyEmbeddingService{model: model, dimensions: dimensions, create: create}
}

func (l *LazyEmbeddingService) get() (driven.EmbeddingService, error) {
	l.once.Do(func() {
		svc, err := l.create()
		if err == nil && svc == nil {
			err = fmt.Errorf("provider for %s not configured", l.model)
		}
		l.mu.Lock()
		l.svc, l.err = svc, err
		l.mu.Unlock()
	})
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, l.err)
	}
	return l.svc, nil
}

// Embed generates a vector embedding for the given text.
func (l *LazyEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	svc, err := l.get()
	if err != nil {
		return nil, err
	}
	return svc.Embed(ctx, text)
}

// EmbedBatch generates embeddings for multiple texts.
func (l *LazyEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	svc, err := l.get()
	if err != nil {
		return nil, err
	}
	return svc.EmbedBatch(ctx, texts)
}

// Dimensions returns the known size for the model without creating the
// service, or the service's answer otherwise.
func (l *LazyEmbeddingService) Dimensions() int {
	if l.dimensions > 0 {
		return l.dimensions
	}
	svc, err := l.get()
	if err != nil {
		return 0
	}
	return svc.Dimensions()
}

// ModelName returns the configured model name.
func (l *LazyEmbeddingService) ModelName() string {
	return l.model
}

// Ping creates the service and checks that it is reachable.
func (l *LazyEmbeddingService) Ping(ctx context.Context) error {
	svc, err := l.get()
	if err != nil {
		return err
	}
	return svc.Ping(ctx)
}

// Close releases the service if it was created.
func (l *LazyEmbeddingService) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.svc == nil {
		return nil
	}
	err := l.svc.Close()
	l.svc = nil
	return err
}
